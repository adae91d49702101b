package migrate

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v4"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/executor"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/migrate/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// ErrDestructiveChanges is returned when a migration would lose data and
// was not forced. Nothing is applied or recorded.
var ErrDestructiveChanges = errors.New("migration contains destructive changes")

// databasePlan is the database side of a datamodel transition.
type databasePlan struct {
	previous *introspect.DatabaseSchema
	next     *introspect.DatabaseSchema
	// raw are the differ's steps, before dialect fixes.
	raw   []diff.Step
	steps []diff.Step
}

// planTo computes the steps taking the live database to the schema of dm.
func (e *Engine) planTo(ctx context.Context, dm *datamodel.Datamodel) (*databasePlan, error) {
	next, err := converter.ConvertDatamodel(dm)
	if err != nil {
		return nil, err
	}
	previous, err := e.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	raw := e.differ.Diff(previous, next)
	fixed, err := diff.Fix(raw, previous, next, e.flavour)
	if err != nil {
		return nil, err
	}
	return &databasePlan{previous: previous, next: next, raw: raw, steps: fixed}, nil
}

// describe fills the database part of out from plan.
func (e *Engine) describe(out *MigrationOutput, plan *databasePlan) error {
	pretty, err := sqlgen.Pretty(e.Renderer(), plan.steps)
	if err != nil {
		return err
	}
	out.DatabaseMigration = plan.steps
	out.DatabaseSteps = pretty
	out.Warnings = append(out.Warnings, diff.Warnings(plan.raw, plan.previous, e.flavour)...)
	return nil
}

// ApplyMigration applies in.Steps on top of the current datamodel and
// records the result as migration in.MigrationID. The envelope is returned
// on failure too.
func (e *Engine) ApplyMigration(ctx context.Context, in ApplyMigrationInput) (*MigrationOutput, error) {
	out := newOutput(in.Steps)
	log := debug.With("migration", in.MigrationID)

	if err := e.validate.Struct(in); err != nil {
		verr := runtime.NewValidationError("migrationId", "%v", err)
		return generalError(out, verr)
	}

	if !history.IsWatchName(in.MigrationID) {
		watchSteps, err := e.history.LoadAllDatamodelStepsFromAllCurrentWatchMigrations(ctx)
		if err != nil {
			return generalError(out, err)
		}
		if len(watchSteps) > 0 {
			return e.finalizeWatch(ctx, in, watchSteps, out)
		}
	}

	current, err := e.history.CurrentDatamodel(ctx)
	if err != nil {
		return generalError(out, err)
	}
	next, err := e.calculator.Apply(current, in.Steps)
	if err != nil {
		return generalError(out, err)
	}
	if err := datamodel.Validate(next); err != nil {
		return generalError(out, err)
	}

	plan, err := e.planTo(ctx, next)
	if err != nil {
		return generalError(out, err)
	}
	if err := e.describe(out, plan); err != nil {
		return generalError(out, err)
	}

	blocked := len(out.Warnings) > 0
	if e.provider == "sqlite" && !in.Force {
		unexecutable, err := e.idColumnTypeChanges(ctx, plan)
		if err != nil {
			return generalError(out, err)
		}
		out.Warnings = append(out.Warnings, unexecutable...)
		blocked = blocked || len(unexecutable) > 0
	}

	if in.DryRun {
		log.Debug("Dry run, nothing applied", "databaseSteps", len(plan.steps), "warnings", len(out.Warnings))
		return out, nil
	}
	if blocked && !in.Force {
		log.Info("Migration has warnings and was not forced", "warnings", len(out.Warnings))
		return out, ErrDestructiveChanges
	}

	mig := history.NewMigration(in.MigrationID)
	mig.Datamodel = next
	mig.DatamodelSteps = in.Steps
	mig.DatabaseMigration = plan.steps
	return e.run(ctx, mig, out)
}

// run records mig, executes its database steps and finishes the record
// with the outcome.
func (e *Engine) run(ctx context.Context, mig *history.Migration, out *MigrationOutput) (*MigrationOutput, error) {
	log := debug.With("migration", mig.Name)

	mig, err := e.history.Create(ctx, mig)
	if err != nil {
		return generalError(out, err)
	}
	log = log.With("revision", mig.Revision)

	mig.Status = history.StatusInProgress
	if err := e.history.Update(ctx, mig.UpdateParams()); err != nil {
		return generalError(out, err)
	}

	applied, applyErr := e.executor.ApplySteps(ctx, mig.DatabaseMigration)
	mig.Applied = applied
	mig.FinishedAt = null.TimeFrom(history.Now())
	switch {
	case applyErr == nil:
		mig.Status = history.StatusSuccess
	case errors.Is(applyErr, executor.ErrRollbackFailed):
		mig.Status = history.StatusRollbackFailure
		mig.Errors = append(mig.Errors, applyErr.Error())
	default:
		mig.Status = history.StatusRollbackSuccess
		mig.RolledBack = applied
		mig.Errors = append(mig.Errors, applyErr.Error())
	}

	if err := e.history.Update(ctx, mig.UpdateParams()); err != nil {
		if applyErr != nil {
			err = errors.Join(applyErr, err)
		}
		return generalError(out, err)
	}

	if applyErr != nil {
		out.Errors = append(out.Errors, applyErr.Error())
		debug.Failure("Migration failed", applyErr, "migration", mig.Name, "status", mig.Status, "applied", applied)
		return out, fmt.Errorf("failed to apply migration %s: %w", mig.Name, applyErr)
	}
	log.Info("Migration applied", "databaseSteps", len(mig.DatabaseMigration))
	return out, nil
}

// finalizeWatch turns the current watch migrations into the named migration
// in.MigrationID. The database already has the watched changes, so the new
// record carries no database steps.
func (e *Engine) finalizeWatch(ctx context.Context, in ApplyMigrationInput, watchSteps []steps.MigrationStep, out *MigrationOutput) (*MigrationOutput, error) {
	if !steps.Equal(in.Steps, watchSteps) {
		return generalError(out, runtime.NewValidationError("steps",
			"the provided steps for migration %s do not match the steps of the %d watch steps applied so far", in.MigrationID, len(watchSteps)))
	}

	current, err := e.history.CurrentDatamodel(ctx)
	if err != nil {
		return generalError(out, err)
	}
	if in.DryRun {
		return out, nil
	}

	mig := history.NewMigration(in.MigrationID)
	mig.Datamodel = current
	mig.DatamodelSteps = in.Steps
	mig.Status = history.StatusSuccess
	mig.FinishedAt = null.TimeFrom(history.Now())
	mig, err = e.history.Create(ctx, mig)
	if err != nil {
		return generalError(out, err)
	}
	debug.Info("Watch migrations finalized", "migration", mig.Name, "revision", mig.Revision, "steps", len(watchSteps))
	return out, nil
}

// idColumnTypeChanges returns a warning for every non-empty table whose
// primary key changes type. SQLite cannot convert those rows in a rewrite.
func (e *Engine) idColumnTypeChanges(ctx context.Context, plan *databasePlan) ([]string, error) {
	var warnings []string
	for _, table := range diff.IDColumnTypeChanges(plan.raw, plan.previous) {
		var count int
		query := "SELECT COUNT(*) FROM " + e.Renderer().QuoteIdentifier(table)
		if err := e.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
		if count > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"The id column of the `%s` table changes type and the table has %d rows. This change cannot be executed.", table, count))
		}
	}
	return warnings, nil
}

// generalError records err in the envelope and returns both.
func generalError(out *MigrationOutput, err error) (*MigrationOutput, error) {
	out.GeneralErrors = append(out.GeneralErrors, err.Error())
	debug.Failure("Migration request failed", err)
	return out, err
}
