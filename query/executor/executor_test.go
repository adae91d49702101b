package executor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	migration "github.com/satishbabariya/prisma-engines-go/migrate/executor"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/builder"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

func idField() datamodel.Field {
	return datamodel.Field{
		Name:    "id",
		Type:    datamodel.ScalarOf(datamodel.Int),
		Arity:   datamodel.Required,
		IsID:    true,
		Default: &datamodel.Default{Function: datamodel.FuncAutoincrement},
	}
}

func blog() *datamodel.Datamodel {
	return &datamodel.Datamodel{
		Models: []datamodel.Model{
			{Name: "User", Fields: []datamodel.Field{
				idField(),
				{Name: "email", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required, IsUnique: true},
				{Name: "posts", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.List},
			}},
			{Name: "Post", Fields: []datamodel.Field{
				idField(),
				{Name: "title", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required},
				{Name: "published", Type: datamodel.ScalarOf(datamodel.Boolean), Arity: datamodel.Required},
				{Name: "tags", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.List},
				{Name: "author", Type: datamodel.RelationTo("User", ""), Arity: datamodel.Required},
				{Name: "comments", Type: datamodel.RelationTo("Comment", ""), Arity: datamodel.List},
			}},
			{Name: "Comment", Fields: []datamodel.Field{
				idField(),
				{Name: "text", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
				{Name: "post", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.Required},
			}},
			{Name: "A", Fields: []datamodel.Field{
				idField(),
				{Name: "label", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
				{Name: "b", Type: datamodel.RelationTo("B", ""), Arity: datamodel.Required},
			}},
			{Name: "B", Fields: []datamodel.Field{
				idField(),
				{Name: "name", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
				{Name: "a", Type: datamodel.RelationTo("A", ""), Arity: datamodel.Required},
			}},
		},
		Enums: []datamodel.Enum{},
	}
}

// setup migrates a fresh SQLite database to the blog datamodel.
func setup(t *testing.T) *Executor {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	dm := blog()
	next, err := converter.ConvertDatamodel(dm)
	require.NoError(t, err)
	steps, err := diff.Fix(diff.Diff(introspect.Empty(), next), introspect.Empty(), next, flavour.NewSQLiteFlavour())
	require.NoError(t, err)
	exec, err := migration.NewMigrationExecutor(db, "sqlite")
	require.NoError(t, err)
	_, err = exec.ApplySteps(ctx, steps)
	require.NoError(t, err)

	schema, err := models.New(dm)
	require.NoError(t, err)
	return New(db, "sqlite", schema)
}

func write(t *testing.T, e *Executor, model string, action builder.Action, args map[string]interface{}) (*WriteResult, error) {
	t.Helper()
	set, err := builder.Build(e.Schema(), model, action, args)
	require.NoError(t, err)
	return e.ExecuteWrite(context.Background(), set)
}

type obj = map[string]interface{}
type list = []interface{}

func count(t *testing.T, e *Executor, model string) int64 {
	t.Helper()
	n, err := e.Count(context.Background(), e.Schema().FindModel(model), nil)
	require.NoError(t, err)
	return n
}

func createUser(t *testing.T, e *Executor, email string, titles ...string) interface{} {
	t.Helper()
	var posts list
	for _, title := range titles {
		posts = append(posts, obj{"title": title, "published": false})
	}
	data := obj{"email": email}
	if len(posts) > 0 {
		data["posts"] = obj{"create": posts}
	}
	res, err := write(t, e, "User", builder.CreateOne, obj{"data": data})
	require.NoError(t, err)
	return res.ID
}

func postIDs(t *testing.T, e *Executor, title string) []interface{} {
	t.Helper()
	post := e.Schema().FindModel("Post")
	records, err := e.FindMany(context.Background(), post, filter.EqualsValue(post.ScalarField("title"), title))
	require.NoError(t, err)
	var ids []interface{}
	for _, r := range records {
		ids = append(ids, r["id"])
	}
	return ids
}

func TestCreateWithNestedListRelation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	uid := createUser(t, e, "ada@example.com", "first", "second")
	assert.EqualValues(t, 2, count(t, e, "Post"))

	post := e.Schema().FindModel("Post")
	records, err := e.FindMany(ctx, post, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.EqualValues(t, uid, r["author"])
		assert.Equal(t, false, r["published"])
		assert.Equal(t, []interface{}{}, r["tags"])
	}
}

func TestMutualRequiredCreateInsertsReferencedRowFirst(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := write(t, e, "A", builder.CreateOne, obj{"data": obj{
		"label": "a1",
		"b":     obj{"create": obj{"name": "b1"}},
	}})
	require.NoError(t, err)

	b := e.Schema().FindModel("B")
	bs, err := e.FindMany(ctx, b, nil)
	require.NoError(t, err)
	require.Len(t, bs, 1)

	a := e.Schema().FindModel("A")
	rec, err := e.FindOne(ctx, selector(a, "id", res.ID))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, bs[0]["id"], rec["b"])
}

func TestCreateFromSideWithoutForeignKey(t *testing.T) {
	e := setup(t)

	res, err := write(t, e, "B", builder.CreateOne, obj{"data": obj{
		"name": "b1",
		"a":    obj{"create": obj{"label": "a1"}},
	}})
	require.NoError(t, err)

	a := e.Schema().FindModel("A")
	as, err := e.FindMany(context.Background(), a, nil)
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.EqualValues(t, res.ID, as[0]["b"])
}

func TestCreateWithRequiredConnect(t *testing.T) {
	e := setup(t)
	uid := createUser(t, e, "ada@example.com")

	res, err := write(t, e, "Post", builder.CreateOne, obj{"data": obj{
		"title":     "hello",
		"published": true,
		"tags":      list{"go", "sql"},
		"author":    obj{"connect": obj{"email": "ada@example.com"}},
	}})
	require.NoError(t, err)

	rec, err := e.FindOne(context.Background(), selector(e.Schema().FindModel("Post"), "id", res.ID))
	require.NoError(t, err)
	assert.EqualValues(t, uid, rec["author"])
	assert.Equal(t, true, rec["published"])
	assert.Equal(t, []interface{}{"go", "sql"}, rec["tags"])
}

func TestUniqueViolationIsTranslated(t *testing.T) {
	e := setup(t)
	createUser(t, e, "ada@example.com")

	_, err := write(t, e, "User", builder.CreateOne, obj{"data": obj{"email": "ada@example.com"}})
	require.Error(t, err)
	var unique *runtime.UniqueConstraintViolation
	require.ErrorAs(t, err, &unique)
	assert.Equal(t, "email", unique.Field)
	assert.True(t, errors.Is(err, runtime.ErrUniqueConstraint))
}

func TestFailedNestedWriteRollsBack(t *testing.T) {
	e := setup(t)

	_, err := write(t, e, "User", builder.CreateOne, obj{"data": obj{
		"email": "ada@example.com",
		"posts": obj{
			"create":  obj{"title": "kept?", "published": false},
			"connect": obj{"id": 42},
		},
	}})
	var notFound *runtime.NodeNotFoundForWhere
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Post", notFound.Model)

	assert.Zero(t, count(t, e, "User"))
	assert.Zero(t, count(t, e, "Post"))
}

func TestDeleteBlockedByRequiredRelation(t *testing.T) {
	e := setup(t)
	uid := createUser(t, e, "ada@example.com", "first")

	_, err := write(t, e, "User", builder.DeleteOne, obj{"where": obj{"id": uid}})
	var violation *runtime.RelationViolation
	require.ErrorAs(t, err, &violation)
	assert.EqualValues(t, 1, count(t, e, "User"))

	pid := postIDs(t, e, "first")[0]
	_, err = write(t, e, "Post", builder.DeleteOne, obj{"where": obj{"id": pid}})
	require.NoError(t, err)
	_, err = write(t, e, "User", builder.DeleteOne, obj{"where": obj{"id": uid}})
	require.NoError(t, err)
	assert.Zero(t, count(t, e, "User"))
}

func TestDisconnectRequiredRelationFails(t *testing.T) {
	e := setup(t)
	uid := createUser(t, e, "ada@example.com", "first")
	pid := postIDs(t, e, "first")[0]

	_, err := write(t, e, "User", builder.UpdateOne, obj{
		"where": obj{"id": uid},
		"data":  obj{"posts": obj{"disconnect": obj{"id": pid}}},
	})
	var violation *runtime.RelationViolation
	require.ErrorAs(t, err, &violation)
	assert.ElementsMatch(t, []string{"Post", "User"}, []string{violation.ModelA, violation.ModelB})
}

func TestNestedUpdateOfUnconnectedRecord(t *testing.T) {
	e := setup(t)
	createUser(t, e, "ada@example.com", "first", "second")
	first, second := postIDs(t, e, "first")[0], postIDs(t, e, "second")[0]

	res, err := write(t, e, "Post", builder.UpdateOne, obj{
		"where": obj{"id": first},
		"data":  obj{"comments": obj{"create": obj{"text": "hi"}}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, first, res.ID)

	comments, err := e.FindMany(context.Background(), e.Schema().FindModel("Comment"), nil)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	cid := comments[0]["id"]

	_, err = write(t, e, "Post", builder.UpdateOne, obj{
		"where": obj{"id": second},
		"data": obj{"comments": obj{"update": obj{
			"where": obj{"id": cid},
			"data":  obj{"text": "changed"},
		}}},
	})
	var nc *runtime.NodesNotConnected
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, "Post", nc.ParentModel)
	assert.Equal(t, "Comment", nc.ChildModel)
	require.NotNil(t, nc.ChildWhere)
	assert.Equal(t, "id", nc.ChildWhere.Field)
}

func TestConnectMovesChildBetweenParents(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	createUser(t, e, "ada@example.com", "first", "second")
	first, second := postIDs(t, e, "first")[0], postIDs(t, e, "second")[0]

	_, err := write(t, e, "Post", builder.UpdateOne, obj{
		"where": obj{"id": first},
		"data":  obj{"comments": obj{"create": list{obj{"text": "a"}, obj{"text": "b"}}}},
	})
	require.NoError(t, err)

	comment := e.Schema().FindModel("Comment")
	all, err := e.FindMany(ctx, comment, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = write(t, e, "Post", builder.UpdateOne, obj{
		"where": obj{"id": second},
		"data":  obj{"comments": obj{"connect": obj{"id": all[0]["id"]}}},
	})
	require.NoError(t, err)

	rec, err := e.FindOne(ctx, selector(comment, "id", all[0]["id"]))
	require.NoError(t, err)
	assert.EqualValues(t, second, rec["post"])
	rec, err = e.FindOne(ctx, selector(comment, "id", all[1]["id"]))
	require.NoError(t, err)
	assert.EqualValues(t, first, rec["post"])
}

func TestBulkWritesReturnCounts(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	createUser(t, e, "ada@example.com", "draft one", "draft two", "final")

	res, err := write(t, e, "Post", builder.UpdateMany, obj{
		"where": obj{"title_starts_with": "draft"},
		"data":  obj{"published": true, "tags": list{"x"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)

	post := e.Schema().FindModel("Post")
	published, err := e.Count(ctx, post, filter.EqualsValue(post.ScalarField("published"), true))
	require.NoError(t, err)
	assert.EqualValues(t, 2, published)

	res, err = write(t, e, "Post", builder.DeleteMany, obj{"where": obj{"published": true}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)
	assert.EqualValues(t, 1, count(t, e, "Post"))
}

func TestFindManyOptions(t *testing.T) {
	e := setup(t)
	createUser(t, e, "ada@example.com", "b", "a", "c")
	post := e.Schema().FindModel("Post")

	records, err := e.FindMany(context.Background(), post, nil, OrderBy(post, "title", true), Skip(1), Take(1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0]["title"])

	_, err = e.FindMany(context.Background(), post, nil, OrderBy(post, "nope", false))
	assert.True(t, runtime.IsValidation(err))
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	e := setup(t)
	args := obj{
		"where":  obj{"email": "ada@example.com"},
		"create": obj{"email": "ada@example.com"},
		"update": obj{"email": "grace@example.com"},
	}

	first, err := write(t, e, "User", builder.UpsertOne, args)
	require.NoError(t, err)
	second, err := write(t, e, "User", builder.UpsertOne, args)
	require.NoError(t, err)
	assert.EqualValues(t, first.ID, second.ID)

	user := e.Schema().FindModel("User")
	rec, err := e.FindOne(context.Background(), selector(user, "email", "grace@example.com"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, first.ID, rec["id"])
}

func selector(m *models.Model, field string, v interface{}) ast.NodeSelector {
	return ast.NodeSelector{Field: m.ScalarField(field), Value: v}
}
