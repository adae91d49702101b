// Package executor applies database migration steps.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/sqlgen"
)

var (
	// ErrForeignKeyCheck is returned when PRAGMA foreign_key_check reports rows.
	ErrForeignKeyCheck = errors.New("foreign key check failed")
	// ErrRollbackFailed is joined to the step error when the rollback fails.
	ErrRollbackFailed = errors.New("rollback failed")
)

// StepError reports the step that failed.
type StepError struct {
	Index    int
	StepType diff.StepType
	Table    string
	SQL      string
	Err      error
}

func (e *StepError) Error() string {
	target := e.Table
	if target == "" {
		target = "-"
	}
	return fmt.Sprintf("step %d (%s on %s) failed: %v", e.Index, e.StepType, target, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Execer is satisfied by *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Applier renders a step and executes it. It never retries.
type Applier struct {
	renderer sqlgen.Renderer
}

// NewApplier creates an applier for renderer's dialect.
func NewApplier(renderer sqlgen.Renderer) *Applier {
	return &Applier{renderer: renderer}
}

// Apply executes step on ex. Errors carry the step type and table.
func (a *Applier) Apply(ctx context.Context, ex Execer, step diff.Step) error {
	return a.apply(ctx, ex, -1, step)
}

func (a *Applier) apply(ctx context.Context, ex Execer, index int, step diff.Step) error {
	fail := func(stmt string, err error) error {
		return &StepError{Index: index, StepType: step.StepType(), Table: step.Target(), SQL: stmt, Err: err}
	}

	if raw, ok := step.(diff.RawSQL); ok && raw.SQL == diff.PragmaForeignKeyCheck {
		if err := foreignKeyCheck(ctx, ex); err != nil {
			return fail(raw.SQL, err)
		}
		return nil
	}

	stmts, err := a.renderer.Render(step)
	if err != nil {
		return fail("", err)
	}
	for _, stmt := range stmts {
		debug.Debug("Executing migration statement", "step", step.StepType(), "sql", stmt)
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			return fail(stmt, err)
		}
	}
	return nil
}

// foreignKeyCheck fails when SQLite reports any dangling reference.
func foreignKeyCheck(ctx context.Context, ex Execer) error {
	rows, err := ex.QueryContext(ctx, diff.PragmaForeignKeyCheck)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		var (
			table, parent string
			rowid         sql.NullInt64
			fkid          int
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("%w: %w", ErrForeignKeyCheck, err)
		}
		return fmt.Errorf("%w: row %d of %s references a missing %s row", ErrForeignKeyCheck, rowid.Int64, table, parent)
	}
	return rows.Err()
}
