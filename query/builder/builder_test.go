package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
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

// testSchema: a post requires an author, a comment requires a post, and A and
// B require each other with the foreign key stored in A.
func testSchema(t *testing.T) *models.Schema {
	t.Helper()
	s, err := models.New(&datamodel.Datamodel{
		Models: []datamodel.Model{
			{Name: "User", Fields: []datamodel.Field{
				idField(),
				{Name: "email", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required, IsUnique: true},
				{Name: "posts", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.List},
			}},
			{Name: "Post", Fields: []datamodel.Field{
				idField(),
				{Name: "title", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required},
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
				{Name: "b", Type: datamodel.RelationTo("B", ""), Arity: datamodel.Required},
			}},
			{Name: "B", Fields: []datamodel.Field{
				idField(),
				{Name: "name", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
				{Name: "a", Type: datamodel.RelationTo("A", ""), Arity: datamodel.Required},
			}},
		},
		Enums: []datamodel.Enum{},
	})
	require.NoError(t, err)
	return s
}

func TestBuildCollectsValidationErrors(t *testing.T) {
	s := testSchema(t)

	_, err := Build(s, "User", CreateOne, map[string]interface{}{
		"bogus": true,
		"data": map[string]interface{}{
			"email": "a@b.c",
			"nope":  1,
			"posts": map[string]interface{}{"frobnicate": map[string]interface{}{}},
		},
	})
	require.Error(t, err)
	assert.True(t, runtime.IsValidation(err))

	var errs runtime.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)
}

func TestBuildRejectsShapes(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name   string
		model  string
		action Action
		args   map[string]interface{}
	}{
		{"unknown model", "Nope", CreateOne, map[string]interface{}{"data": map[string]interface{}{}}},
		{"update verb inside create", "User", CreateOne, map[string]interface{}{
			"data": map[string]interface{}{"email": "x", "posts": map[string]interface{}{"delete": []interface{}{}}},
		}},
		{"bulk write without where", "Post", DeleteMany, map[string]interface{}{}},
		{"non unique selector", "Post", DeleteOne, map[string]interface{}{"where": map[string]interface{}{"title": "x"}}},
		{"list given to a to-one relation", "Comment", UpdateOne, map[string]interface{}{
			"where": map[string]interface{}{"id": 1},
			"data":  map[string]interface{}{"post": map[string]interface{}{"connect": []interface{}{map[string]interface{}{"id": 1}}}},
		}},
		{"null required scalar", "Post", UpdateOne, map[string]interface{}{
			"where": map[string]interface{}{"id": 1},
			"data":  map[string]interface{}{"title": nil},
		}},
		{"set on a to-one relation", "Comment", UpdateOne, map[string]interface{}{
			"where": map[string]interface{}{"id": 1},
			"data":  map[string]interface{}{"post": map[string]interface{}{"set": []interface{}{}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(s, tt.model, tt.action, tt.args)
			require.Error(t, err)
			assert.True(t, runtime.IsValidation(err))
		})
	}
}

func TestBuildUpdateWithNestedListWrites(t *testing.T) {
	s := testSchema(t)

	set, err := Build(s, "Post", UpdateOne, map[string]interface{}{
		"where": map[string]interface{}{"id": 1.0},
		"data": map[string]interface{}{
			"title": "new",
			"tags":  map[string]interface{}{"set": []interface{}{"a", "b"}},
			"comments": map[string]interface{}{
				"update":     []interface{}{map[string]interface{}{"where": map[string]interface{}{"id": 3}, "data": map[string]interface{}{"text": "y"}}},
				"deleteMany": []interface{}{map[string]interface{}{"text": "spam"}},
				"set":        []interface{}{map[string]interface{}{"id": 2}},
			},
		},
	})
	require.NoError(t, err)

	single, ok := set.(*ast.Single)
	require.True(t, ok)
	u, ok := single.Tree.Root.(*ast.UpdateRecord)
	require.True(t, ok)

	assert.Equal(t, int64(1), u.Where.Value)
	assert.Equal(t, ast.Args{"title": "new"}, u.Args)
	assert.Equal(t, ast.ListArgs{"tags": {"a", "b"}}, u.ListArgs)

	require.Len(t, u.Nested.Updates, 1)
	assert.Equal(t, int64(3), u.Nested.Updates[0].Where.Value)
	require.Len(t, u.Nested.DeleteManys, 1)
	assert.Equal(t, filter.Scalar{Field: s.FindModel("Comment").ScalarField("text"), Condition: filter.Equals, Value: "spam"}, u.Nested.DeleteManys[0].Filter)
	require.Len(t, u.Nested.Sets, 1)
	assert.Len(t, u.Nested.Sets[0].Wheres, 1)
}

func TestFoldRequiredConnects(t *testing.T) {
	s := testSchema(t)

	set, err := Build(s, "Post", CreateOne, map[string]interface{}{
		"data": map[string]interface{}{
			"title":  "hello",
			"author": map[string]interface{}{"connect": map[string]interface{}{"email": "a@b.c"}},
		},
	})
	require.NoError(t, err)

	create := ast.BaseTree(set).Root.(*ast.CreateRecord)
	assert.Empty(t, create.Nested.Connects)
	assert.Equal(t, ast.NodeSelector{Field: s.FindModel("User").ScalarField("email"), Value: "a@b.c"}, create.Args["author"])
}

func TestFoldRequiredConnectsKeepsOptionalSide(t *testing.T) {
	s := testSchema(t)

	set, err := Build(s, "User", CreateOne, map[string]interface{}{
		"data": map[string]interface{}{
			"email": "a@b.c",
			"posts": map[string]interface{}{"connect": []interface{}{map[string]interface{}{"id": 4}}},
		},
	})
	require.NoError(t, err)

	create := ast.BaseTree(set).Root.(*ast.CreateRecord)
	require.Len(t, create.Nested.Connects, 1)
	assert.True(t, create.Nested.Connects[0].TopIsCreate)
	assert.NotContains(t, create.Args, "posts")
}

func TestFlipCreateOrderHoistsNestedFoldedCreate(t *testing.T) {
	s := testSchema(t)

	set, err := Build(s, "Comment", CreateOne, map[string]interface{}{
		"data": map[string]interface{}{
			"text": "first",
			"post": map[string]interface{}{"create": map[string]interface{}{
				"title":  "hello",
				"author": map[string]interface{}{"connect": map[string]interface{}{"id": 1}},
			}},
		},
	})
	require.NoError(t, err)

	d, ok := set.(*ast.Dependents)
	require.True(t, ok)
	assert.Same(t, s.FindModel("Comment").RelationField("post"), d.Via)

	post := d.Self.Root.(*ast.CreateRecord)
	assert.Equal(t, "Post", post.Model.Name)
	assert.Equal(t, ast.NodeSelector{Field: s.FindModel("User").IDField(), Value: int64(1)}, post.Args["author"])
	assert.Empty(t, post.Nested.Connects)

	comment := ast.BaseTree(set).Root.(*ast.CreateRecord)
	assert.Empty(t, comment.Nested.Creates)
}

func TestMutualRequiredCreateRunsReferencedRowFirst(t *testing.T) {
	s := testSchema(t)
	a := s.FindModel("A")

	require.True(t, a.RelationField("b").IsInlinedInParent())

	set, err := Build(s, "A", CreateOne, map[string]interface{}{
		"data": map[string]interface{}{
			"b": map[string]interface{}{"create": map[string]interface{}{"name": "bee"}},
		},
	})
	require.NoError(t, err)

	d, ok := set.(*ast.Dependents)
	require.True(t, ok, "expected a dependents chain, got %T", set)
	self := d.Self.Root.(*ast.CreateRecord)
	assert.Equal(t, "B", self.Model.Name)
	assert.Equal(t, ast.Args{"name": "bee"}, self.Args)
	assert.Same(t, a.RelationField("b"), d.Via)

	next, err := EvalPartial(d, int64(7))
	require.NoError(t, err)
	single, ok := next.(*ast.Single)
	require.True(t, ok)
	root := single.Tree.Root.(*ast.CreateRecord)
	assert.Equal(t, int64(7), root.Args["b"])
	assert.Empty(t, root.Nested.Creates)
}

func TestMultipleDependentsChainNewestFirst(t *testing.T) {
	s := testSchema(t)
	comment := s.FindModel("Comment")
	post := s.FindModel("Post")

	// Two hoistable creates on the same root; the second hoisted is the head.
	root := &ast.CreateRecord{Model: comment, Args: ast.Args{}, Nested: ast.NestedWriteQueries{
		Creates: []*ast.NestedCreateRecord{
			{RelationField: comment.RelationField("post"), Model: post, Args: ast.Args{"title": "one"}},
			{RelationField: comment.RelationField("post"), Model: post, Args: ast.Args{"title": "two"}},
		},
	}}
	set := FlipCreateOrder(&ast.Single{Tree: ast.WriteQueryTree{Name: "c", Root: root}})

	head, ok := set.(*ast.Dependents)
	require.True(t, ok)
	assert.Equal(t, "two", head.Self.Root.(*ast.CreateRecord).Args["title"])

	inner, ok := head.Next.(*ast.Dependents)
	require.True(t, ok)
	assert.Equal(t, "one", inner.Self.Root.(*ast.CreateRecord).Args["title"])
	assert.Same(t, root, ast.BaseTree(set).Root)
}

func TestEvalPartialFallsBackToBackReference(t *testing.T) {
	s := testSchema(t)

	d := &ast.Dependents{
		Self: ast.WriteQueryTree{Name: "b", Root: &ast.CreateRecord{Model: s.FindModel("B")}},
		Next: &ast.Single{Tree: ast.WriteQueryTree{Name: "a", Root: &ast.CreateRecord{Model: s.FindModel("A")}}},
	}
	next, err := EvalPartial(d, int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ast.BaseTree(next).Root.(*ast.CreateRecord).Args["b"])
}

func TestEvalPartialInternalError(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name string
		d    *ast.Dependents
	}{
		{"next cannot take arguments", &ast.Dependents{
			Self: ast.WriteQueryTree{Root: &ast.CreateRecord{Model: s.FindModel("B")}},
			Next: &ast.Single{Tree: ast.WriteQueryTree{Root: &ast.DeleteRecord{Model: s.FindModel("A")}}},
		}},
		{"no back reference", &ast.Dependents{
			Self: ast.WriteQueryTree{Root: &ast.CreateRecord{Model: s.FindModel("User")}},
			Next: &ast.Single{Tree: ast.WriteQueryTree{Root: &ast.CreateRecord{Model: s.FindModel("A")}}},
		}},
		{"via field on another model", &ast.Dependents{
			Self: ast.WriteQueryTree{Root: &ast.CreateRecord{Model: s.FindModel("B")}},
			Next: &ast.Single{Tree: ast.WriteQueryTree{Root: &ast.CreateRecord{Model: s.FindModel("A")}}},
			Via:  s.FindModel("Comment").RelationField("post"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalPartial(tt.d, int64(1))
			require.Error(t, err)
			assert.True(t, runtime.IsInternal(err))
			assert.False(t, runtime.IsValidation(err))
		})
	}
}
