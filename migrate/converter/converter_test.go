package converter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/executor"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

func idField() datamodel.Field {
	return datamodel.Field{Name: "id", Type: datamodel.ScalarOf(datamodel.Int), Arity: datamodel.Required,
		IsID: true, Default: &datamodel.Default{Function: datamodel.FuncAutoincrement}}
}

func blog() *datamodel.Datamodel {
	return &datamodel.Datamodel{
		Models: []datamodel.Model{
			{Name: "Post", Fields: []datamodel.Field{
				idField(),
				{Name: "title", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required, IsUnique: true},
				{Name: "published", Type: datamodel.ScalarOf(datamodel.Boolean), Arity: datamodel.Required,
					Default: &datamodel.Default{Value: "true"}},
				{Name: "status", Type: datamodel.EnumOf("Status"), Arity: datamodel.Optional},
				{Name: "labels", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.List},
				{Name: "comments", Type: datamodel.RelationTo("Comment", ""), Arity: datamodel.List},
				{Name: "tags", Type: datamodel.RelationTo("Tag", ""), Arity: datamodel.List},
			}},
			{Name: "Comment", Fields: []datamodel.Field{
				idField(),
				{Name: "text", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
				{Name: "post", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.Optional},
			}},
			{Name: "Tag", Fields: []datamodel.Field{
				{Name: "id", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required, IsID: true,
					Default: &datamodel.Default{Function: datamodel.FuncCUID}},
				{Name: "posts", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.List},
			}},
		},
		Enums: []datamodel.Enum{{Name: "Status", Values: []string{"DRAFT", "LIVE"}}},
	}
}

func TestConvertDatamodel(t *testing.T) {
	schema, err := ConvertDatamodel(blog())
	require.NoError(t, err)

	assert.Equal(t, []string{"Post", "Comment", "Tag", "Post_labels", "_PostToTag"}, schema.TableNames())

	post := schema.Table("Post")
	assert.Equal(t, []string{"id"}, post.PrimaryColumns())
	assert.True(t, post.Column("id").AutoIncrement)
	assert.Nil(t, post.Column("id").Default)
	assert.Equal(t, introspect.FamilyString, post.Column("status").Type.Family)
	assert.Equal(t, introspect.Nullable, post.Column("status").Arity)
	require.NotNil(t, post.Column("published").Default)
	assert.Equal(t, "true", *post.Column("published").Default)
	assert.False(t, post.HasColumn("labels"))
	assert.False(t, post.HasColumn("comments"))
	assert.Equal(t, []introspect.Index{{Name: "Post.title._UNIQUE", Columns: []string{"title"}, Unique: true}}, post.Indexes)

	comment := schema.Table("Comment")
	fk := comment.Column("post")
	require.NotNil(t, fk)
	assert.Equal(t, introspect.FamilyInt, fk.Type.Family)
	assert.False(t, fk.AutoIncrement)
	assert.Equal(t, []introspect.ForeignKey{{
		Columns: []string{"post"}, ReferencedTable: "Post", ReferencedColumns: []string{"id"},
		OnDelete: introspect.ActionSetNull,
	}}, comment.ForeignKeys)

	// cuid ids are generated by the query engine
	assert.Nil(t, schema.Table("Tag").Column("id").Default)

	list := schema.Table("Post_labels")
	assert.Equal(t, []string{"nodeId", "position", "value"}, list.ColumnNames())
	assert.Equal(t, []string{"nodeId", "position"}, list.PrimaryColumns())
	assert.Equal(t, introspect.ActionCascade, list.ForeignKeys[0].OnDelete)

	link := schema.Table("_PostToTag")
	assert.Equal(t, []string{"A", "B"}, link.ColumnNames())
	assert.Equal(t, introspect.FamilyInt, link.Column("A").Type.Family)
	assert.Equal(t, introspect.FamilyString, link.Column("B").Type.Family)
	assert.Nil(t, link.PrimaryKey)
	assert.Equal(t, "_PostToTag_AB_unique", link.Indexes[0].Name)
	require.Len(t, link.ForeignKeys, 2)
	assert.Equal(t, "Tag", link.ForeignKeys[1].ReferencedTable)
}

func TestConvertDatamodelDefaults(t *testing.T) {
	tests := []struct {
		name  string
		field datamodel.Field
		want  *string
	}{
		{"string", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.String), Default: &datamodel.Default{Value: "it's"}}, strPtr("'it''s'")},
		{"int", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.Int), Default: &datamodel.Default{Value: "42"}}, strPtr("42")},
		{"boolean", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.Boolean), Default: &datamodel.Default{Value: "FALSE"}}, strPtr("false")},
		{"enum", datamodel.Field{Name: "f", Type: datamodel.EnumOf("E"), Default: &datamodel.Default{Value: "A"}}, strPtr("'A'")},
		{"now", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.DateTime), Default: &datamodel.Default{Function: datamodel.FuncNow}}, strPtr("CURRENT_TIMESTAMP")},
		{"uuid", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.String), Default: &datamodel.Default{Function: datamodel.FuncUUID}}, nil},
		{"none", datamodel.Field{Name: "f", Type: datamodel.ScalarOf(datamodel.Float)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.field.Arity = datamodel.Required
			col, err := convertFieldToColumn(&tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, col.Default)
		})
	}
}

func TestConvertDatamodelRejectsModelWithoutID(t *testing.T) {
	dm := &datamodel.Datamodel{Models: []datamodel.Model{{Name: "Log", Fields: []datamodel.Field{
		{Name: "line", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required},
	}}}}
	_, err := ConvertDatamodel(dm)
	assert.ErrorContains(t, err, "does not have an id field")
}

func TestConvertDatamodelRejectsAutoincrementString(t *testing.T) {
	f := datamodel.Field{Name: "id", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required,
		Default: &datamodel.Default{Function: datamodel.FuncAutoincrement}}
	_, err := convertFieldToColumn(&f)
	assert.Error(t, err)
}

func TestConvertedSchemaRoundTripsThroughSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	next, err := ConvertDatamodel(blog())
	require.NoError(t, err)

	steps, err := diff.Fix(diff.Diff(introspect.Empty(), next), introspect.Empty(), next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)

	exec, err := executor.NewMigrationExecutor(db, "sqlite")
	require.NoError(t, err)
	_, err = exec.ApplySteps(ctx, steps)
	require.NoError(t, err)

	actual, err := introspect.NewSQLiteConnector(db).Introspect(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, diff.Diff(actual, next))
}

func strPtr(s string) *string { return &s }
