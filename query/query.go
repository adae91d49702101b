// Package query is the query engine: it validates write arguments into
// write query sets, runs them transactionally and reads records back.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/builder"
	"github.com/satishbabariya/prisma-engines-go/query/executor"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/runtime"
	"github.com/satishbabariya/prisma-engines-go/runtime/client"
)

// SlowQueryThreshold is the statement duration above which a warning is
// logged.
var SlowQueryThreshold = time.Second

// Engine answers queries for one datamodel.
type Engine struct {
	schema *models.Schema
	exec   *executor.Executor
}

// New builds the internal data model of dm and an executor on db.
func New(db *sql.DB, provider string, dm *datamodel.Datamodel) (*Engine, error) {
	schema, err := models.New(dm)
	if err != nil {
		return nil, fmt.Errorf("failed to build query schema: %w", err)
	}
	exec := executor.New(db, provider, schema)
	exec.Use(client.TimingMiddleware(warnSlow))
	return &Engine{schema: schema, exec: exec}, nil
}

func warnSlow(query string, d time.Duration) {
	if d >= SlowQueryThreshold {
		debug.Warn("slow query", "sql", query, "duration", d)
	}
}

// Schema returns the internal data model.
func (e *Engine) Schema() *models.Schema {
	return e.schema
}

// Use appends statement middleware to the executor.
func (e *Engine) Use(mw ...client.Middleware) {
	e.exec.Use(mw...)
}

// Result is the outcome of a write. Single-record writes return the
// record as it is after the write, or before it for deletes. Bulk writes
// return the number of affected records.
type Result struct {
	Record executor.Record
	Count  int64
}

// Write runs action on model. Reads of the written record happen after
// the write transaction committed.
func (e *Engine) Write(ctx context.Context, model string, action builder.Action, args map[string]interface{}) (*Result, error) {
	set, err := builder.Build(e.schema, model, action, args)
	if err != nil {
		return nil, err
	}

	var before executor.Record
	if del, ok := ast.BaseTree(set).Root.(*ast.DeleteRecord); ok {
		before, err = e.exec.FindOne(ctx, del.Where)
		if err != nil {
			return nil, err
		}
	}

	res, err := e.exec.ExecuteWrite(ctx, set)
	if err != nil {
		return nil, err
	}

	switch action {
	case builder.UpdateMany, builder.DeleteMany:
		debug.Debug("bulk write", "model", model, "action", action, "count", res.Count)
		return &Result{Count: res.Count}, nil
	case builder.DeleteOne:
		return &Result{Record: before, Count: 1}, nil
	}

	rec, err := e.exec.FindOne(ctx, ast.NodeSelector{Field: res.Model.IDField(), Value: res.ID})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, runtime.NewInternalError("record %v of %s vanished after %s", res.ID, model, action)
	}
	return &Result{Record: rec, Count: 1}, nil
}

// FindMany returns the records of model matching the where argument.
func (e *Engine) FindMany(ctx context.Context, model string, where map[string]interface{}, opts ...executor.ReadOption) ([]executor.Record, error) {
	m, f, err := e.parse(model, where)
	if err != nil {
		return nil, err
	}
	return e.exec.FindMany(ctx, m, f, opts...)
}

// FindOne returns the record a unique where argument selects, or nil.
func (e *Engine) FindOne(ctx context.Context, model string, where map[string]interface{}) (executor.Record, error) {
	m := e.schema.FindModel(model)
	if m == nil {
		return nil, runtime.NewValidationError("", "unknown model %s", model)
	}
	if len(where) != 1 {
		return nil, runtime.NewValidationError("where", "expected exactly one unique field of %s", model)
	}
	for key, value := range where {
		f := m.ScalarField(key)
		if f == nil || !(f.IsID || f.IsUnique) {
			return nil, runtime.NewValidationError("where."+key, "%s is not a unique field of %s", key, model)
		}
		v, err := f.Coerce(value)
		if err != nil {
			return nil, runtime.NewValidationError("where."+key, "%v", err)
		}
		return e.exec.FindOne(ctx, ast.NodeSelector{Field: f, Value: v})
	}
	return nil, nil
}

// Count returns the number of records of model matching the where argument.
func (e *Engine) Count(ctx context.Context, model string, where map[string]interface{}) (int64, error) {
	m, f, err := e.parse(model, where)
	if err != nil {
		return 0, err
	}
	return e.exec.Count(ctx, m, f)
}

func (e *Engine) parse(model string, where map[string]interface{}) (*models.Model, filter.Filter, error) {
	m := e.schema.FindModel(model)
	if m == nil {
		return nil, nil, runtime.NewValidationError("", "unknown model %s", model)
	}
	if len(where) == 0 {
		return m, nil, nil
	}
	f, err := filter.Parse(m, where)
	if err != nil {
		return nil, nil, err
	}
	return m, f, nil
}
