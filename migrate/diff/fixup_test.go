package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

func TestFixPassesThroughOnDialectsWithAlter(t *testing.T) {
	prev := blogSchema()
	next := blogSchema()
	next.Tables[1].Columns = next.Tables[1].Columns[:2]

	steps := Diff(prev, next)
	fixed, err := Fix(steps, prev, next, flavour.NewPostgresFlavour())
	require.NoError(t, err)
	assert.Equal(t, steps, fixed)
}

func TestFixRewritesDropColumnOnSQLite(t *testing.T) {
	prev := blogSchema()
	next := blogSchema()
	next.Tables[0].Columns = append(next.Tables[0].Columns, col("name", introspect.FamilyString, introspect.Nullable))
	next.Tables[1].Columns = next.Tables[1].Columns[:2]
	next.Tables[1].ForeignKeys = nil

	steps := Diff(prev, next)
	require.Len(t, steps, 2)

	fixed, err := Fix(steps, prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	require.Len(t, fixed, 8)

	assert.Equal(t, RawSQL{SQL: PragmaForeignKeysOff}, fixed[0])
	shadow, ok := fixed[1].(CreateTable)
	require.True(t, ok)
	assert.Equal(t, "new_Post", shadow.Name)
	assert.Equal(t, []string{"id", "title"}, (&introspect.Table{Columns: shadow.Columns}).ColumnNames())
	assert.Equal(t, []string{"id"}, shadow.PrimaryColumns)
	assert.Equal(t, RawSQL{SQL: `INSERT INTO "new_Post" ("id", "title") SELECT "id", "title" FROM "Post";`}, fixed[2])
	assert.Equal(t, DropTable{Name: "Post"}, fixed[3])
	assert.Equal(t, RenameTable{Name: "new_Post", NewName: "Post"}, fixed[4])
	assert.Equal(t, RawSQL{SQL: PragmaForeignKeyCheck}, fixed[5])
	assert.Equal(t, RawSQL{SQL: PragmaForeignKeysOn}, fixed[6])

	// pure nullable adds run natively
	alter, ok := fixed[7].(AlterTable)
	require.True(t, ok)
	assert.Equal(t, "User", alter.Table)
}

func TestFixRewritesRequiredAddWithoutDefault(t *testing.T) {
	prev := blogSchema()
	next := blogSchema()
	next.Tables[0].Columns = append(next.Tables[0].Columns, col("name", introspect.FamilyString, introspect.Required))

	fixed, err := Fix(Diff(prev, next), prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)

	var types []StepType
	for _, s := range fixed {
		types = append(types, s.StepType())
	}
	assert.Equal(t, []StepType{
		StepRawSQL, StepCreateTable, StepRawSQL, StepDropTable, StepRenameTable, StepRawSQL, StepRawSQL,
		StepCreateIndex,
	}, types)

	// indexes are rebuilt on the renamed table, not on the shadow table
	create := fixed[1].(CreateTable)
	assert.Empty(t, create.Indexes)
	idx := fixed[7].(CreateIndex)
	assert.Equal(t, "User", idx.Table)
	assert.Equal(t, "User.email._UNIQUE", idx.Index.Name)
}

func TestFixKeepsRequiredAddWithConstantDefault(t *testing.T) {
	prev := blogSchema()
	next := blogSchema()
	c := col("score", introspect.FamilyInt, introspect.Required)
	c.Default = strPtr("0")
	next.Tables[1].Columns = append(next.Tables[1].Columns, c)

	steps := Diff(prev, next)
	fixed, err := Fix(steps, prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	assert.Equal(t, steps, fixed)
}

func TestFixDropsIndexStepsOfRewrittenTables(t *testing.T) {
	prev := blogSchema()
	next := blogSchema()
	next.Tables[0].Columns[1].Type = introspect.Pure(introspect.FamilyInt)
	next.Tables[0].Indexes = []introspect.Index{{Name: "User.email", Columns: []string{"email"}}}

	steps := Diff(prev, next)
	require.Len(t, steps, 3) // alter, drop index, create index

	fixed, err := Fix(steps, prev, next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	require.Len(t, fixed, 8)
	assert.Equal(t, CreateIndex{Table: "User", Index: introspect.Index{Name: "User.email", Columns: []string{"email"}}}, fixed[7])
}

func TestFixMissingTableIsInternalError(t *testing.T) {
	steps := []Step{AlterTable{Table: "Ghost", Changes: []TableChange{DropColumn{Name: "x"}}}}
	_, err := Fix(steps, introspect.Empty(), introspect.Empty(), flavour.NewSQLiteFlavour())
	assert.ErrorIs(t, err, runtime.ErrInternal)
}
