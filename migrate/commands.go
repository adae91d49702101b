package migrate

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v4"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// ErrNothingToUnapply is returned when no successful migration exists.
var ErrNothingToUnapply = errors.New("there is no applied migration to unapply")

// ErrMigrationRunning is returned when the newest migration has not
// reached a terminal status.
var ErrMigrationRunning = errors.New("a migration is still running")

// UnapplyMigration rolls back the last successful migration by migrating the
// database back to the datamodel of the successful migration before it.
func (e *Engine) UnapplyMigration(ctx context.Context) (*MigrationOutput, error) {
	out := newOutput(nil)

	all, err := e.history.LoadAll(ctx)
	if err != nil {
		return generalError(out, err)
	}
	if n := len(all); n > 0 && !all[n-1].Status.IsTerminal() {
		return generalError(out, fmt.Errorf("%w: %s is %s", ErrMigrationRunning, all[n-1].Name, all[n-1].Status))
	}
	last, previous := lastTwoSuccessful(all)
	if last == nil {
		return generalError(out, ErrNothingToUnapply)
	}
	target := datamodel.Empty()
	if previous != nil {
		target = previous.Datamodel
	}
	out.DatamodelSteps = steps.Infer(last.Datamodel, target)
	log := debug.With("migration", last.Name, "revision", last.Revision)

	last.Status = history.StatusRollingBack
	if err := e.history.Update(ctx, last.UpdateParams()); err != nil {
		return generalError(out, err)
	}

	plan, err := e.planTo(ctx, target)
	if err == nil {
		err = e.describe(out, plan)
	}
	if err != nil {
		last.Status = history.StatusRollbackFailure
		last.Errors = append(last.Errors, err.Error())
		last.FinishedAt = null.TimeFrom(history.Now())
		if uerr := e.history.Update(ctx, last.UpdateParams()); uerr != nil {
			err = errors.Join(err, uerr)
		}
		return generalError(out, err)
	}

	applied, applyErr := e.executor.ApplySteps(ctx, plan.steps)
	last.FinishedAt = null.TimeFrom(history.Now())
	if applyErr != nil {
		last.Status = history.StatusRollbackFailure
		last.Errors = append(last.Errors, applyErr.Error())
		out.Errors = append(out.Errors, applyErr.Error())
	} else {
		last.Status = history.StatusRollbackSuccess
		last.RolledBack = applied
	}
	if err := e.history.Update(ctx, last.UpdateParams()); err != nil {
		return generalError(out, errors.Join(applyErr, err))
	}

	if applyErr != nil {
		debug.Failure("Unapply failed", applyErr, "migration", last.Name)
		return out, fmt.Errorf("failed to unapply migration %s: %w", last.Name, applyErr)
	}
	log.Info("Migration unapplied", "databaseSteps", applied)
	return out, nil
}

func lastTwoSuccessful(all []*history.Migration) (last, previous *history.Migration) {
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Status != history.StatusSuccess {
			continue
		}
		if last == nil {
			last = all[i]
			continue
		}
		return last, all[i]
	}
	return last, nil
}

// ListMigrations returns every recorded migration in revision order.
func (e *Engine) ListMigrations(ctx context.Context) ([]MigrationSummary, error) {
	all, err := e.history.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]MigrationSummary, 0, len(all))
	for _, m := range all {
		summaries = append(summaries, summarize(m))
	}
	return summaries, nil
}

// MigrationProgress reports the state of the latest migration named name.
func (e *Engine) MigrationProgress(ctx context.Context, name string) (*ProgressOutput, error) {
	mig, err := e.history.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if mig == nil {
		return nil, fmt.Errorf("%w: %s", history.ErrMigrationNotFound, name)
	}
	s := summarize(mig)
	return &ProgressOutput{
		Status:     s.Status,
		Steps:      s.DatabaseSteps,
		Applied:    s.Applied,
		RolledBack: s.RolledBack,
		Errors:     s.Errors,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}, nil
}

// Reset drops every table of the schema and clears the migration log. When
// a database file is configured it is removed and the engine must not be
// used afterwards.
func (e *Engine) Reset(ctx context.Context) error {
	schema, err := e.Introspect(ctx)
	if err != nil {
		return err
	}
	drops := diff.DropAll(schema)
	if _, err := e.executor.ApplySteps(ctx, drops); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := e.history.Reset(ctx); err != nil {
		return err
	}
	debug.Info("Database reset", "droppedTables", len(drops))
	return nil
}

// InferMigrationSteps returns the datamodel steps leading from the current
// datamodel to in.Datamodel, together with the database steps they would run.
func (e *Engine) InferMigrationSteps(ctx context.Context, in InferInput) (*MigrationOutput, error) {
	out := newOutput(nil)
	if err := e.validate.Struct(in); err != nil {
		return generalError(out, runtime.NewValidationError("", "%v", err))
	}
	if err := datamodel.Validate(in.Datamodel); err != nil {
		return generalError(out, err)
	}

	current, err := e.history.CurrentDatamodel(ctx)
	if err != nil {
		return generalError(out, err)
	}
	if len(in.AssumeToBeApplied) > 0 {
		if current, err = e.calculator.Apply(current, in.AssumeToBeApplied); err != nil {
			return generalError(out, err)
		}
	}
	out.DatamodelSteps = steps.Infer(current, in.Datamodel)

	plan, err := e.planTo(ctx, in.Datamodel)
	if err != nil {
		return generalError(out, err)
	}
	if err := e.describe(out, plan); err != nil {
		return generalError(out, err)
	}
	return out, nil
}

// CalculateDatamodel applies steps to an empty datamodel.
func (e *Engine) CalculateDatamodel(stepList []steps.MigrationStep) (*datamodel.Datamodel, error) {
	return e.calculator.Apply(datamodel.Empty(), stepList)
}

// CalculateDatabaseSteps returns the database steps that migrate the live
// database to dm, after dialect fixes.
func (e *Engine) CalculateDatabaseSteps(ctx context.Context, dm *datamodel.Datamodel) ([]diff.Step, error) {
	plan, err := e.planTo(ctx, dm)
	if err != nil {
		return nil, err
	}
	return plan.steps, nil
}
