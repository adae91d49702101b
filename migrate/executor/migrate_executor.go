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

// MigrationExecutor executes migrations on a database
type MigrationExecutor struct {
	db       *sql.DB
	provider string
	applier  *Applier
}

// NewMigrationExecutor creates a new migration executor
func NewMigrationExecutor(db *sql.DB, provider string) (*MigrationExecutor, error) {
	renderer, err := sqlgen.NewRenderer(provider)
	if err != nil {
		return nil, err
	}
	return &MigrationExecutor{
		db:       db,
		provider: renderer.Provider(),
		applier:  NewApplier(renderer),
	}, nil
}

// Renderer returns the renderer steps are applied with.
func (e *MigrationExecutor) Renderer() sqlgen.Renderer {
	return e.applier.renderer
}

// ApplySteps executes steps in order inside one transaction and returns the
// number of steps that ran. On failure the transaction is rolled back in full
// and the error is a *StepError, joined with ErrRollbackFailed when the
// rollback fails too.
//
// SQLite ignores PRAGMA foreign_keys inside a transaction, so the OFF/ON
// pragmas of a table rewrite run on the same connection around it.
func (e *MigrationExecutor) ApplySteps(ctx context.Context, steps []diff.Step) (applied int, err error) {
	if len(steps) == 0 {
		return 0, nil
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if e.provider == "sqlite" && togglesForeignKeys(steps) {
		restore, err := disableForeignKeys(ctx, conn)
		if err != nil {
			return 0, err
		}
		defer restore()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	for i, step := range steps {
		if raw, ok := step.(diff.RawSQL); ok && (raw.SQL == diff.PragmaForeignKeysOff || raw.SQL == diff.PragmaForeignKeysOn) {
			applied++
			continue
		}
		if err := e.applier.apply(ctx, tx, i, step); err != nil {
			debug.Failure("Migration step failed, rolling back", err, "step", i, "type", step.StepType())
			if rbErr := tx.Rollback(); rbErr != nil {
				return applied, errors.Join(err, fmt.Errorf("%w: %w", ErrRollbackFailed, rbErr))
			}
			return applied, err
		}
		applied++
	}

	if err := tx.Commit(); err != nil {
		return applied, fmt.Errorf("failed to commit migration: %w", err)
	}
	debug.Debug("Applied migration steps", "count", applied, "provider", e.provider)
	return applied, nil
}

func togglesForeignKeys(steps []diff.Step) bool {
	for _, step := range steps {
		if raw, ok := step.(diff.RawSQL); ok && raw.SQL == diff.PragmaForeignKeysOff {
			return true
		}
	}
	return false
}

// disableForeignKeys turns enforcement off on conn and returns a function
// restoring the previous setting.
func disableForeignKeys(ctx context.Context, conn *sql.Conn) (func(), error) {
	var enabled int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return nil, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if _, err := conn.ExecContext(ctx, diff.PragmaForeignKeysOff); err != nil {
		return nil, fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	return func() {
		if enabled == 0 {
			return
		}
		// ctx may already be cancelled; the setting must still be restored
		if _, err := conn.ExecContext(context.Background(), diff.PragmaForeignKeysOn); err != nil {
			debug.Warn("Failed to re-enable foreign keys", "error", err)
		}
	}, nil
}
