package executor

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

func openSQLite(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func introspectSQLite(t *testing.T, db *sql.DB) *introspect.DatabaseSchema {
	t.Helper()
	schema, err := introspect.NewSQLiteConnector(db).Introspect(context.Background(), "")
	require.NoError(t, err)
	return schema
}

func newExecutor(t *testing.T, db *sql.DB) *MigrationExecutor {
	t.Helper()
	e, err := NewMigrationExecutor(db, "sqlite")
	require.NoError(t, err)
	return e
}

func TestApplyStepsCreatesTables(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	next := &introspect.DatabaseSchema{Tables: []introspect.Table{{
		Name: "User",
		Columns: []introspect.Column{
			{Name: "id", Type: introspect.Pure(introspect.FamilyInt), Arity: introspect.Required, AutoIncrement: true},
			{Name: "email", Type: introspect.Pure(introspect.FamilyString), Arity: introspect.Required},
		},
		PrimaryKey: &introspect.PrimaryKey{Columns: []string{"id"}},
		Indexes:    []introspect.Index{{Name: "User.email._UNIQUE", Columns: []string{"email"}, Unique: true}},
	}}}

	steps := diff.Diff(introspect.Empty(), next)
	applied, err := newExecutor(t, db).ApplySteps(ctx, steps)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// round trip: the database now introspects as next
	assert.Empty(t, diff.Diff(introspectSQLite(t, db), next))
}

func TestAlterColumnRewritePreservesRows(t *testing.T) {
	db := openSQLite(t,
		`CREATE TABLE "T" ("id" INTEGER NOT NULL PRIMARY KEY, "name" TEXT)`,
		`INSERT INTO "T" ("id", "name") VALUES (1, '10'), (2, '20'), (3, '30')`,
	)
	ctx := context.Background()

	prev := introspectSQLite(t, db)
	next := prev.Clone()
	next.Tables[0].Columns[1].Type = introspect.Pure(introspect.FamilyInt)

	steps, err := diff.Fix(diff.Diff(prev, next), prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	require.Len(t, steps, 7)

	applied, err := newExecutor(t, db).ApplySteps(ctx, steps)
	require.NoError(t, err)
	assert.Equal(t, 7, applied)

	rows, err := db.Query(`SELECT "id", "name" FROM "T" ORDER BY "id"`)
	require.NoError(t, err)
	defer rows.Close()
	got := map[int64]int64{}
	for rows.Next() {
		var id, name int64
		require.NoError(t, rows.Scan(&id, &name))
		got[id] = name
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, map[int64]int64{1: 10, 2: 20, 3: 30}, got)

	after := introspectSQLite(t, db)
	assert.Equal(t, []string{"T"}, after.TableNames())
	assert.Equal(t, introspect.FamilyInt, after.Table("T").Column("name").Type.Family)
	assert.Empty(t, diff.Diff(after, next))
}

func TestDropColumnRewriteKeepsForeignKeysEnabled(t *testing.T) {
	db := openSQLite(t,
		`CREATE TABLE "User" ("id" INTEGER NOT NULL PRIMARY KEY, "age" INTEGER)`,
		`CREATE TABLE "Post" ("id" INTEGER NOT NULL PRIMARY KEY, "author" INTEGER REFERENCES "User"("id") ON DELETE SET NULL)`,
		`INSERT INTO "User" ("id", "age") VALUES (1, 30)`,
		`INSERT INTO "Post" ("id", "author") VALUES (1, 1)`,
	)
	ctx := context.Background()

	prev := introspectSQLite(t, db)
	next := prev.Clone()
	next.Table("User").Columns = next.Table("User").Columns[:1]

	steps, err := diff.Fix(diff.Diff(prev, next), prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	_, err = newExecutor(t, db).ApplySteps(ctx, steps)
	require.NoError(t, err)

	var author int
	require.NoError(t, db.QueryRow(`SELECT "author" FROM "Post" WHERE "id" = 1`).Scan(&author))
	assert.Equal(t, 1, author)
	assert.Empty(t, diff.Diff(introspectSQLite(t, db), next))
}

func TestApplyStepsRollsBackOnFailure(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	steps := []diff.Step{
		diff.CreateTable{
			Name:           "A",
			Columns:        []introspect.Column{{Name: "id", Type: introspect.Pure(introspect.FamilyInt), Arity: introspect.Required}},
			PrimaryColumns: []string{"id"},
		},
		diff.AlterTable{Table: "Missing", Changes: []diff.TableChange{
			diff.AddColumn{Column: introspect.Column{Name: "x", Type: introspect.Pure(introspect.FamilyInt), Arity: introspect.Nullable}},
		}},
	}

	applied, err := newExecutor(t, db).ApplySteps(ctx, steps)
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, diff.StepAlterTable, stepErr.StepType)
	assert.Equal(t, "Missing", stepErr.Table)
	assert.NotErrorIs(t, err, ErrRollbackFailed)

	assert.Empty(t, introspectSQLite(t, db).Tables)
}

func TestForeignKeyCheckFailsTheMigration(t *testing.T) {
	db := openSQLite(t,
		`CREATE TABLE "Parent" ("id" INTEGER NOT NULL PRIMARY KEY)`,
		`CREATE TABLE "Child" ("id" INTEGER NOT NULL PRIMARY KEY, "parent" INTEGER REFERENCES "Parent"("id"))`,
	)
	ctx := context.Background()

	steps := []diff.Step{
		diff.RawSQL{SQL: diff.PragmaForeignKeysOff},
		diff.RawSQL{SQL: `INSERT INTO "Child" ("id", "parent") VALUES (1, 99)`},
		diff.RawSQL{SQL: diff.PragmaForeignKeyCheck},
		diff.RawSQL{SQL: diff.PragmaForeignKeysOn},
	}
	_, err := newExecutor(t, db).ApplySteps(ctx, steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForeignKeyCheck)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "Child"`).Scan(&count))
	assert.Zero(t, count)
}

func TestApplierWrapsStepErrors(t *testing.T) {
	db := openSQLite(t)
	a := NewApplier(newExecutor(t, db).Renderer())

	err := a.Apply(context.Background(), db, diff.DropTable{Name: "Nope"})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, diff.StepDropTable, stepErr.StepType)
	assert.Equal(t, `DROP TABLE "Nope"`, stepErr.SQL)
}
