package client

import (
	"context"
	"time"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
)

// QueryEvent describes one statement sent to the database.
type QueryEvent struct {
	Query    string
	Args     []interface{}
	Duration time.Duration
	Error    error
	Start    time.Time
	End      time.Time
}

// Middleware intercepts a statement. It must call next to run it.
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// Hooks is an ordered middleware chain.
type Hooks struct {
	middlewares []Middleware
}

// Use appends middleware to the chain.
func (h *Hooks) Use(middleware ...Middleware) {
	h.middlewares = append(h.middlewares, middleware...)
}

// Run executes exec through the chain. The event is timed around exec.
func (h *Hooks) Run(ctx context.Context, query string, args []interface{}, exec func() error) error {
	event := &QueryEvent{Query: query, Args: args, Start: time.Now()}

	index := 0
	var next func() error
	next = func() error {
		if index >= len(h.middlewares) {
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}
		middleware := h.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}
	return next()
}

// LoggingMiddleware logs every statement at debug level.
func LoggingMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil {
			debug.Debug("query failed", "sql", event.Query, "args", event.Args, "error", err)
		} else {
			debug.Debug("query", "sql", event.Query, "args", event.Args, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware reports the duration of every statement.
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware translates driver errors with TranslateError.
func ErrorMiddleware() Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		return TranslateError(next())
	}
}
