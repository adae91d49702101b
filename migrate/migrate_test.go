package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

func newTestEngine(t *testing.T) (*Engine, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e, err := NewEngine(db, "sqlite")
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background()))
	return e, db
}

func ptr[T any](v T) *T { return &v }

func createTestModel() []steps.MigrationStep {
	return []steps.MigrationStep{
		steps.CreateModel{Name: "Test"},
		steps.CreateField{Model: "Test", Name: "id", Type: datamodel.ScalarOf(datamodel.Int), Arity: datamodel.Required,
			IsID: ptr(true), Default: &datamodel.Default{Function: datamodel.FuncAutoincrement}},
		steps.CreateField{Model: "Test", Name: "name", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
	}
}

func addField(name string, arity datamodel.Arity) []steps.MigrationStep {
	return []steps.MigrationStep{
		steps.CreateField{Model: "Test", Name: name, Type: datamodel.ScalarOf(datamodel.String), Arity: arity},
	}
}

func tableNames(t *testing.T, e *Engine) []string {
	t.Helper()
	schema, err := e.Introspect(context.Background())
	require.NoError(t, err)
	return schema.TableNames()
}

func TestApplyMigrationCreatesTables(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)
	assert.False(t, out.HasErrors())
	assert.Empty(t, out.Warnings)
	assert.Contains(t, out.DatabaseSteps, `CREATE TABLE "Test"`)
	assert.Len(t, out.DatamodelSteps, 3)

	assert.Equal(t, []string{"Test"}, tableNames(t, e))

	list, err := e.ListMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "init", list[0].Name)
	assert.Equal(t, string(history.StatusSuccess), list[0].Status)
	assert.Equal(t, 1, list[0].Applied)
	assert.NotNil(t, list[0].FinishedAt)

	current, err := e.History().CurrentDatamodel(ctx)
	require.NoError(t, err)
	require.NotNil(t, current.FindModel("Test"))

	// nothing left to do
	out, err = e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "noop"})
	require.NoError(t, err)
	assert.Empty(t, out.DatabaseMigration)
}

func TestModelNamedLikeCatalogTableSurvivesLaterMigrations(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	settings := []steps.MigrationStep{
		steps.CreateModel{Name: "SqliteSettings"},
		steps.CreateField{Model: "SqliteSettings", Name: "id", Type: datamodel.ScalarOf(datamodel.Int), Arity: datamodel.Required,
			IsID: ptr(true), Default: &datamodel.Default{Function: datamodel.FuncAutoincrement}},
	}
	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: settings})
	require.NoError(t, err)

	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "second", Steps: createTestModel()})
	require.NoError(t, err)
	assert.False(t, out.HasErrors())
	assert.NotContains(t, out.DatabaseSteps, `CREATE TABLE "SqliteSettings"`)
	assert.Equal(t, []string{"SqliteSettings", "Test"}, tableNames(t, e))
}

func TestWatchMigrationsAreFinalized(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "watch-0001", Steps: createTestModel()})
	require.NoError(t, err)

	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "a-custom-migration-id", Steps: createTestModel()})
	require.NoError(t, err)
	assert.Empty(t, out.DatabaseMigration)

	all, err := e.History().LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-custom-migration-id", all[1].Name)
	assert.Equal(t, history.StatusSuccess, all[1].Status)
	assert.True(t, all[1].FinishedAt.Valid)
	assert.Equal(t, 0, all[1].Applied)
	require.NotNil(t, all[1].Datamodel.FindModel("Test"))

	watch, err := e.History().LoadCurrentWatchMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, watch)
}

func TestWatchFinalizeWithDifferentStepsIsRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "watch-0001", Steps: createTestModel()})
	require.NoError(t, err)

	superset := append(createTestModel(), addField("title", datamodel.Optional)...)
	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "final", Steps: superset})
	require.Error(t, err)
	assert.True(t, runtime.IsValidation(err))
	assert.NotEmpty(t, out.GeneralErrors)

	all, err := e.History().LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDryRunTouchesNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel(), DryRun: true})
	require.NoError(t, err)
	assert.Contains(t, out.DatabaseSteps, `CREATE TABLE "Test"`)

	assert.Empty(t, tableNames(t, e))
	all, err := e.History().LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDestructiveChangesNeedForce(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)

	drop := []steps.MigrationStep{steps.DeleteField{Model: "Test", Name: "name"}}
	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "drop-name", Steps: drop})
	require.ErrorIs(t, err, ErrDestructiveChanges)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "drop the column `name`")

	all, err := e.History().LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "drop-name", Steps: drop, Force: true})
	require.NoError(t, err)

	schema, err := e.Introspect(ctx)
	require.NoError(t, err)
	assert.False(t, schema.Table("Test").HasColumn("name"))
}

func TestFailedMigrationIsRolledBack(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "Test" ("name") VALUES ('a')`)
	require.NoError(t, err)

	// the copied row has no value for the new required column
	out, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "add-title", Steps: addField("title", datamodel.Required)})
	require.Error(t, err)
	require.NotEmpty(t, out.Errors)
	assert.NotEmpty(t, out.DatabaseSteps)

	progress, err := e.MigrationProgress(ctx, "add-title")
	require.NoError(t, err)
	assert.Equal(t, string(history.StatusRollbackSuccess), progress.Status)
	assert.NotEmpty(t, progress.Errors)
	assert.NotNil(t, progress.FinishedAt)

	schema, err := e.Introspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test"}, schema.TableNames())
	assert.False(t, schema.Table("Test").HasColumn("title"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "Test"`).Scan(&count))
	assert.Equal(t, 1, count)

	last, err := e.History().Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "init", last.Name)
}

func TestUnapplyMigration(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)
	_, err = e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "add-title", Steps: addField("title", datamodel.Optional)})
	require.NoError(t, err)

	out, err := e.UnapplyMigration(ctx)
	require.NoError(t, err)
	assert.Equal(t, []steps.MigrationStep{steps.DeleteField{Model: "Test", Name: "title"}}, out.DatamodelSteps)

	schema, err := e.Introspect(ctx)
	require.NoError(t, err)
	assert.False(t, schema.Table("Test").HasColumn("title"))

	progress, err := e.MigrationProgress(ctx, "add-title")
	require.NoError(t, err)
	assert.Equal(t, string(history.StatusRollbackSuccess), progress.Status)
	assert.Positive(t, progress.RolledBack)

	_, err = e.UnapplyMigration(ctx)
	require.NoError(t, err)
	assert.Empty(t, tableNames(t, e))

	_, err = e.UnapplyMigration(ctx)
	assert.ErrorIs(t, err, ErrNothingToUnapply)
}

func TestUnapplyRefusesWhileMigrationRuns(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)

	running := history.NewMigration("running")
	running.Status = history.StatusInProgress
	_, err = e.History().Create(ctx, running)
	require.NoError(t, err)

	out, err := e.UnapplyMigration(ctx)
	assert.ErrorIs(t, err, ErrMigrationRunning)
	assert.NotEmpty(t, out.GeneralErrors)
	assert.Equal(t, []string{"Test"}, tableNames(t, e))

	progress, err := e.MigrationProgress(ctx, "init")
	require.NoError(t, err)
	assert.Equal(t, string(history.StatusSuccess), progress.Status)
}

func TestReset(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)

	require.NoError(t, e.Reset(ctx))
	assert.Empty(t, tableNames(t, e))

	list, err := e.ListMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInferMigrationSteps(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ApplyMigration(ctx, ApplyMigrationInput{MigrationID: "init", Steps: createTestModel()})
	require.NoError(t, err)

	current, err := e.History().CurrentDatamodel(ctx)
	require.NoError(t, err)
	next := current.Clone()
	next.Models[0].Fields = append(next.Models[0].Fields,
		datamodel.Field{Name: "title", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional})

	out, err := e.InferMigrationSteps(ctx, InferInput{MigrationID: "watch-0002", Datamodel: next})
	require.NoError(t, err)
	require.Len(t, out.DatamodelSteps, 1)
	assert.IsType(t, steps.CreateField{}, out.DatamodelSteps[0])
	assert.Contains(t, out.DatabaseSteps, "title")

	all, err := e.History().LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestApplyMigrationValidatesInput(t *testing.T) {
	e, _ := newTestEngine(t)

	out, err := e.ApplyMigration(context.Background(), ApplyMigrationInput{Steps: createTestModel()})
	require.Error(t, err)
	assert.True(t, runtime.IsValidation(err))
	assert.NotEmpty(t, out.GeneralErrors)

	_, err = e.ApplyMigration(context.Background(), ApplyMigrationInput{
		MigrationID: "broken",
		Steps:       []steps.MigrationStep{steps.DeleteModel{Name: "Missing"}},
	})
	assert.True(t, runtime.IsValidation(err))
}

func TestApplyMigrationInputJSON(t *testing.T) {
	var in ApplyMigrationInput
	err := json.Unmarshal([]byte(`{
		"migrationId": "init",
		"dryRun": true,
		"steps": [{"stepType": "CreateModel", "name": "Test", "embedded": false}]
	}`), &in)
	require.NoError(t, err)
	assert.Equal(t, "init", in.MigrationID)
	assert.True(t, in.DryRun)
	assert.Equal(t, []steps.MigrationStep{steps.CreateModel{Name: "Test"}}, in.Steps)

	out := newOutput(in.Steps)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"datamodelSteps": [{"stepType": "CreateModel", "name": "Test", "embedded": false}],
		"databaseSteps": "",
		"errors": [],
		"warnings": [],
		"generalErrors": []
	}`, string(data))
}
