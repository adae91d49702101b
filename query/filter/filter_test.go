package filter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
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

// testSchema has Post 1:n Comment (inline in Comment), a User self
// relation stored in a link table, and a scalar list on Post.
func testSchema(t *testing.T) *models.Schema {
	t.Helper()
	dm := &datamodel.Datamodel{Models: []datamodel.Model{
		{Name: "Post", Fields: []datamodel.Field{
			idField(),
			{Name: "title", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Optional},
			{Name: "labels", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.List},
			{Name: "comments", Type: datamodel.RelationTo("Comment", ""), Arity: datamodel.List},
		}},
		{Name: "Comment", Fields: []datamodel.Field{
			idField(),
			{Name: "approved", Type: datamodel.ScalarOf(datamodel.Boolean), Arity: datamodel.Optional},
			{Name: "post", Type: datamodel.RelationTo("Post", ""), Arity: datamodel.Optional},
		}},
		{Name: "User", Fields: []datamodel.Field{
			idField(),
			{Name: "name", Type: datamodel.ScalarOf(datamodel.String), Arity: datamodel.Required},
			{Name: "friends", Type: datamodel.RelationTo("User", "Friends"), Arity: datamodel.List},
			{Name: "friendOf", Type: datamodel.RelationTo("User", "Friends"), Arity: datamodel.List},
		}},
	}}
	s, err := models.New(dm)
	require.NoError(t, err)
	return s
}

func render(t *testing.T, cond sqlgen.Condition) *sqlgen.Query {
	t.Helper()
	q, err := sqlgen.Build("sqlite", &sqlgen.Select{Table: "X", Alias: "t0", Where: cond})
	require.NoError(t, err)
	return q
}

func TestCompileNullAware(t *testing.T) {
	s := testSchema(t)
	title := s.FindModel("Post").ScalarField("title")

	tests := []struct {
		name  string
		f     Filter
		where string
	}{
		{"equals null", Scalar{Field: title, Condition: Equals}, `"t0"."title" IS NULL`},
		{"not equals null", Scalar{Field: title, Condition: NotEquals}, `"t0"."title" IS NOT NULL`},
		{"in null", Scalar{Field: title, Condition: In, Values: []interface{}{nil}}, `"t0"."title" IS NULL`},
		{"not in null", Scalar{Field: title, Condition: NotIn, Values: []interface{}{nil}}, `"t0"."title" IS NOT NULL`},
		{"in with null", Scalar{Field: title, Condition: In, Values: []interface{}{"a", nil}}, `("t0"."title" IN (?) OR "t0"."title" IS NULL)`},
		{"equals", Scalar{Field: title, Condition: Equals, Value: "a"}, `"t0"."title" = ?`},
		{"contains", Scalar{Field: title, Condition: Contains, Value: "a"}, `"t0"."title" LIKE ? ESCAPE '!'`},
		{"not starts with", Scalar{Field: title, Condition: NotStartsWith, Value: "a"}, `"t0"."title" NOT LIKE ? ESCAPE '!'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := render(t, Compile(tt.f, Root))
			assert.Equal(t, `SELECT * FROM "X" AS "t0" WHERE `+tt.where, q.SQL)
		})
	}
}

func TestCompileLogical(t *testing.T) {
	s := testSchema(t)
	title := s.FindModel("Post").ScalarField("title")
	eq := Scalar{Field: title, Condition: Equals, Value: "a"}

	assert.Equal(t, sqlgen.NoCondition{}, Compile(And{}, Root))
	assert.Equal(t, sqlgen.NoCondition{}, Compile(Or{}, Root))
	assert.Equal(t, sqlgen.NoCondition{}, Compile(nil, Root))
	assert.Equal(t, sqlgen.BoolLit(false), Compile(Bool(false), Root))

	q := render(t, Compile(Not{eq, eq}, Root))
	assert.Equal(t, `SELECT * FROM "X" AS "t0" WHERE NOT (("t0"."title" = ? AND "t0"."title" = ?))`, q.SQL)

	q = render(t, Compile(Or{eq, And{}}, Root))
	assert.Equal(t, `SELECT * FROM "X" AS "t0" WHERE ("t0"."title" = ? OR 1=1)`, q.SQL)
}

func TestCompileContainsPatterns(t *testing.T) {
	s := testSchema(t)
	title := s.FindModel("Post").ScalarField("title")

	q := render(t, Compile(Scalar{Field: title, Condition: Contains, Value: "go"}, Root))
	assert.Equal(t, []interface{}{"%go%"}, q.Args)
	q = render(t, Compile(Scalar{Field: title, Condition: StartsWith, Value: "go"}, Root))
	assert.Equal(t, []interface{}{"go%"}, q.Args)
	q = render(t, Compile(Scalar{Field: title, Condition: EndsWith, Value: "go"}, Root))
	assert.Equal(t, []interface{}{"%go"}, q.Args)

	q = render(t, Compile(Scalar{Field: title, Condition: Contains, Value: "50%_!"}, Root))
	assert.Equal(t, []interface{}{"%50!%!_!!%"}, q.Args)
}

func TestContainsMatchesWildcardsLiterally(t *testing.T) {
	s := testSchema(t)
	db := openDB(t,
		`CREATE TABLE "Post" ("id" INTEGER PRIMARY KEY, "title" TEXT)`,
		`INSERT INTO "Post" ("id", "title") VALUES (1, '50% off'), (2, '500 off'), (3, 'a_b'), (4, 'axb'), (5, 'wow!')`,
	)
	title := s.FindModel("Post").ScalarField("title")

	assert.Equal(t, []int64{1}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: Contains, Value: "50%"}))
	assert.Equal(t, []int64{3}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: StartsWith, Value: "a_"}))
	assert.Equal(t, []int64{5}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: EndsWith, Value: "!"}))
	assert.Equal(t, []int64{2, 3, 4, 5}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: NotContains, Value: "%"}))
}

func TestCompileSelfRelationAliases(t *testing.T) {
	s := testSchema(t)
	user := s.FindModel("User")
	friends := user.RelationField("friends")

	// users with a friend who has a friend named X
	f := Relation{
		Field:     friends,
		Condition: AtLeastOneRelatedRecord,
		Nested: Relation{
			Field:     friends,
			Condition: AtLeastOneRelatedRecord,
			Nested:    Scalar{Field: user.ScalarField("name"), Condition: Equals, Value: "X"},
		},
	}
	q, err := sqlgen.Build("sqlite", &sqlgen.Select{Table: "User", Alias: "t0", Where: Compile(f, Root)})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "User" AS "t0" WHERE "t0"."id" IN (`+
			`SELECT "t1"."A" FROM "_Friends" AS "t1" INNER JOIN "User" AS "j1" ON "j1"."id" = "t1"."B" WHERE ("t1"."A" IS NOT NULL AND `+
			`"j1"."id" IN (SELECT "t2"."A" FROM "_Friends" AS "t2" INNER JOIN "User" AS "j2" ON "j2"."id" = "t2"."B" WHERE ("t2"."A" IS NOT NULL AND "j2"."name" = ?))))`,
		q.SQL)
}

func TestAlias(t *testing.T) {
	assert.Equal(t, "t0", Root.String())
	next := Root.Inc(TableAlias)
	assert.Equal(t, "t1", next.String())
	assert.Equal(t, "j1", next.Flip(JoinAlias).String())
	assert.Equal(t, "j2", next.Inc(JoinAlias).String())
}

func TestParse(t *testing.T) {
	s := testSchema(t)
	post := s.FindModel("Post")

	f, err := Parse(post, map[string]interface{}{
		"title_contains": "go",
		"id_in":          []interface{}{float64(1), float64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, And{
		Scalar{Field: post.ScalarField("id"), Condition: In, Values: []interface{}{int64(1), int64(2)}},
		Scalar{Field: post.ScalarField("title"), Condition: Contains, Value: "go"},
	}, f)

	f, err = Parse(post, map[string]interface{}{
		"comments": map[string]interface{}{"every": map[string]interface{}{"approved": true}},
	})
	require.NoError(t, err)
	comment := s.FindModel("Comment")
	assert.Equal(t, Relation{
		Field:     post.RelationField("comments"),
		Condition: EveryRelatedRecord,
		Nested:    Scalar{Field: comment.ScalarField("approved"), Condition: Equals, Value: true},
	}, f)

	f, err = Parse(comment, map[string]interface{}{"post": nil})
	require.NoError(t, err)
	assert.Equal(t, OneRelationIsNull{Field: comment.RelationField("post")}, f)

	f, err = Parse(post, map[string]interface{}{"OR": []interface{}{
		map[string]interface{}{"title": "a"},
		map[string]interface{}{"title_not": nil},
	}})
	require.NoError(t, err)
	assert.Equal(t, Or{
		Scalar{Field: post.ScalarField("title"), Condition: Equals, Value: "a"},
		Scalar{Field: post.ScalarField("title"), Condition: NotEquals},
	}, f)

	f, err = Parse(post, map[string]interface{}{"labels_contains_some": []interface{}{"x"}})
	require.NoError(t, err)
	assert.Equal(t, ScalarList{Field: post.ScalarField("labels"), Condition: ListContainsSome, Values: []interface{}{"x"}}, f)
}

func TestParseCollectsErrors(t *testing.T) {
	s := testSchema(t)
	_, err := Parse(s.FindModel("Post"), map[string]interface{}{
		"nope":     1,
		"id":       "abc",
		"comments": map[string]interface{}{"is": map[string]interface{}{}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, runtime.ErrValidation)

	var errs runtime.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 3)
}

func openDB(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "filter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func postIDs(t *testing.T, db *sql.DB, s *models.Schema, model string, f Filter) []int64 {
	t.Helper()
	m := s.FindModel(model)
	q, err := sqlgen.Build("sqlite", &sqlgen.Select{
		Table:   m.Table(),
		Alias:   Root.String(),
		Columns: []sqlgen.Column{sqlgen.Col(Root.String(), "id")},
		Where:   Compile(f, Root),
		OrderBy: []sqlgen.OrderBy{{Column: sqlgen.Col(Root.String(), "id")}},
	})
	require.NoError(t, err)
	rows, err := db.QueryContext(context.Background(), q.SQL, q.Args...)
	require.NoError(t, err, q.SQL)
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func TestRelationQuantifiersAgainstSQLite(t *testing.T) {
	s := testSchema(t)
	db := openDB(t,
		`CREATE TABLE "Post" ("id" INTEGER PRIMARY KEY, "title" TEXT)`,
		`CREATE TABLE "Comment" ("id" INTEGER PRIMARY KEY, "approved" BOOLEAN, "post" INTEGER REFERENCES "Post"("id"))`,
		// 1: no comments, 2: all approved, 3: mixed, 4: only unapproved
		`INSERT INTO "Post" ("id", "title") VALUES (1, 'empty'), (2, 'approved'), (3, 'mixed'), (4, NULL)`,
		`INSERT INTO "Comment" ("id", "approved", "post") VALUES (1, 1, 2), (2, 1, 2), (3, 1, 3), (4, 0, 3), (5, 0, 4), (6, NULL, NULL)`,
	)
	post := s.FindModel("Post")
	comments := post.RelationField("comments")
	approved := Scalar{Field: s.FindModel("Comment").ScalarField("approved"), Condition: Equals, Value: true}

	every := Relation{Field: comments, Condition: EveryRelatedRecord, Nested: approved}
	assert.Equal(t, []int64{1, 2}, postIDs(t, db, s, "Post", every))

	some := Relation{Field: comments, Condition: AtLeastOneRelatedRecord, Nested: approved}
	assert.Equal(t, []int64{2, 3}, postIDs(t, db, s, "Post", some))

	none := Relation{Field: comments, Condition: NoRelatedRecord, Nested: approved}
	assert.Equal(t, []int64{1, 4}, postIDs(t, db, s, "Post", none))

	// every over an empty nested filter is vacuously true
	assert.Equal(t, []int64{1, 2, 3, 4}, postIDs(t, db, s, "Post", Relation{Field: comments, Condition: EveryRelatedRecord}))
	assert.Equal(t, []int64{1}, postIDs(t, db, s, "Post", Relation{Field: comments, Condition: NoRelatedRecord}))

	// to-one from the side holding the foreign key
	commentPost := s.FindModel("Comment").RelationField("post")
	assert.Equal(t, []int64{6}, postIDs(t, db, s, "Comment", OneRelationIsNull{Field: commentPost}))
	// post 4 has a NULL title, which never compares unequal
	assert.Equal(t, []int64{1, 2, 3, 4}, postIDs(t, db, s, "Comment", Relation{
		Field:     commentPost,
		Condition: ToOneRelatedRecord,
		Nested:    Scalar{Field: post.ScalarField("title"), Condition: NotEquals, Value: "zzz"},
	}))
}

func TestEveryCountsUnknownAsFailing(t *testing.T) {
	s := testSchema(t)
	db := openDB(t,
		`CREATE TABLE "Post" ("id" INTEGER PRIMARY KEY, "title" TEXT)`,
		`CREATE TABLE "Comment" ("id" INTEGER PRIMARY KEY, "approved" BOOLEAN, "post" INTEGER REFERENCES "Post"("id"))`,
		// 1: approved, 2: approved and undecided, 3: undecided only
		`INSERT INTO "Post" ("id") VALUES (1), (2), (3)`,
		`INSERT INTO "Comment" ("id", "approved", "post") VALUES (1, 1, 1), (2, 1, 2), (3, NULL, 2), (4, NULL, 3)`,
	)
	comments := s.FindModel("Post").RelationField("comments")
	approved := Scalar{Field: s.FindModel("Comment").ScalarField("approved"), Condition: Equals, Value: true}

	assert.Equal(t, []int64{1}, postIDs(t, db, s, "Post", Relation{Field: comments, Condition: EveryRelatedRecord, Nested: approved}))
	assert.Equal(t, []int64{1, 2}, postIDs(t, db, s, "Post", Relation{Field: comments, Condition: AtLeastOneRelatedRecord, Nested: approved}))
}

func TestNullFiltersAgainstSQLite(t *testing.T) {
	s := testSchema(t)
	db := openDB(t,
		`CREATE TABLE "Post" ("id" INTEGER PRIMARY KEY, "title" TEXT)`,
		`INSERT INTO "Post" ("id", "title") VALUES (1, 'a'), (2, NULL), (3, 'b'), (4, NULL)`,
	)
	title := s.FindModel("Post").ScalarField("title")

	isNull := postIDs(t, db, s, "Post", Scalar{Field: title, Condition: Equals})
	notNull := postIDs(t, db, s, "Post", Scalar{Field: title, Condition: NotEquals})
	assert.Equal(t, []int64{2, 4}, isNull)
	assert.Equal(t, []int64{1, 3}, notNull)

	assert.Equal(t, []int64{1, 2, 4}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: In, Values: []interface{}{"a", nil}}))
	assert.Equal(t, []int64{3}, postIDs(t, db, s, "Post", Scalar{Field: title, Condition: NotIn, Values: []interface{}{"a", nil}}))
}

func TestOneRelationIsNullFromListSide(t *testing.T) {
	s := testSchema(t)
	db := openDB(t,
		`CREATE TABLE "User" ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`,
		`CREATE TABLE "_Friends" ("A" INTEGER NOT NULL, "B" INTEGER NOT NULL)`,
		`INSERT INTO "User" ("id", "name") VALUES (1, 'a'), (2, 'b'), (3, 'c')`,
		`INSERT INTO "_Friends" ("A", "B") VALUES (1, 2)`,
	)
	friends := s.FindModel("User").RelationField("friends")
	assert.Equal(t, []int64{2, 3}, postIDs(t, db, s, "User", OneRelationIsNull{Field: friends}))
	assert.Equal(t, []int64{1}, postIDs(t, db, s, "User", Relation{Field: friends, Condition: AtLeastOneRelatedRecord}))
}
