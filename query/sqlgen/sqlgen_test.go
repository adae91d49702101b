package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPlaceholders(t *testing.T) {
	limit := 10
	stmt := &Select{
		Table:   "User",
		Alias:   "t0",
		Columns: []Column{Col("t0", "id"), Col("t0", "email")},
		Where: And{
			Equals(Col("t0", "email"), "a@b.c"),
			NoCondition{},
			In{Column: Col("t0", "id"), Values: []interface{}{1, 2}},
		},
		OrderBy: []OrderBy{{Column: Col("t0", "id")}},
		Limit:   &limit,
	}

	q, err := Build("postgresql", stmt)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "t0"."id", "t0"."email" FROM "User" AS "t0" WHERE ("t0"."email" = $1 AND "t0"."id" IN ($2, $3)) ORDER BY "t0"."id" ASC LIMIT $4`, q.SQL)
	assert.Equal(t, []interface{}{"a@b.c", 1, 2, 10}, q.Args)

	q, err = Build("mysql", stmt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `t0`.`id`, `t0`.`email` FROM `User` AS `t0` WHERE (`t0`.`email` = ? AND `t0`.`id` IN (?, ?)) ORDER BY `t0`.`id` ASC LIMIT ?", q.SQL)
}

func TestConditionConstants(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"no condition", NoCondition{}, `SELECT * FROM "T"`},
		{"empty and", And{}, `SELECT * FROM "T" WHERE 1=1`},
		{"empty or", Or{}, `SELECT * FROM "T" WHERE 1=0`},
		{"empty in", In{Column: Col("", "a")}, `SELECT * FROM "T" WHERE 1=0`},
		{"empty not in", In{Column: Col("", "a"), Negated: true}, `SELECT * FROM "T" WHERE 1=1`},
		{"negated no condition", Negate(NoCondition{}), `SELECT * FROM "T" WHERE 1=0`},
		{"double negation", Negate(Negate(IsNull{Column: Col("", "a")})), `SELECT * FROM "T" WHERE "a" IS NULL`},
		{"not null", IsNull{Column: Col("", "a"), Negated: true}, `SELECT * FROM "T" WHERE "a" IS NOT NULL`},
		{"not like", Like{Column: Col("", "a"), Pattern: "%x%", Negated: true}, `SELECT * FROM "T" WHERE "a" NOT LIKE ?`},
		{"escaped like", Like{Column: Col("", "a"), Pattern: "%x%", Escaped: true}, `SELECT * FROM "T" WHERE "a" LIKE ? ESCAPE '!'`},
		{"is not true", IsNotTrue{Cond: Equals(Col("", "a"), 1)}, `SELECT * FROM "T" WHERE ("a" = ?) IS NOT TRUE`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Build("sqlite", &Select{Table: "T", Where: tt.cond})
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.SQL)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", EscapeLike("plain"))
	assert.Equal(t, "100!%", EscapeLike("100%"))
	assert.Equal(t, "a!_b", EscapeLike("a_b"))
	assert.Equal(t, "hey!!", EscapeLike("hey!"))
}

func TestInSelect(t *testing.T) {
	sub := &Select{
		Table:   "_CategoryToPost",
		Alias:   "t1",
		Columns: []Column{Col("t1", "B")},
		Joins: []Join{{
			Table: "Category",
			Alias: "j1",
			On:    CompareColumns{Left: Col("j1", "id"), Op: "=", Right: Col("t1", "A")},
		}},
		Where: Equals(Col("j1", "name"), "go"),
	}
	q, err := Build("postgres", &Select{
		Table: "Post",
		Alias: "t0",
		Where: Or{
			InSelect{Column: Col("t0", "id"), Select: sub, Negated: true},
			Compare{Column: Col("t0", "id"), Op: ">", Value: 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Post" AS "t0" WHERE ("t0"."id" NOT IN (SELECT "t1"."B" FROM "_CategoryToPost" AS "t1" INNER JOIN "Category" AS "j1" ON "j1"."id" = "t1"."A" WHERE "j1"."name" = $1) OR "t0"."id" > $2)`, q.SQL)
	assert.Equal(t, []interface{}{"go", 5}, q.Args)
}

func TestInsert(t *testing.T) {
	stmt := &Insert{Table: "User", Columns: []string{"email"}, Values: []interface{}{"x"}, Returning: []string{"id"}}

	q, err := Build("postgresql", stmt)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "User" ("email") VALUES ($1) RETURNING "id"`, q.SQL)

	q, err = Build("sqlite", stmt)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "User" ("email") VALUES (?)`, q.SQL)

	q, err = Build("sqlite", &Insert{Table: "User"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "User" DEFAULT VALUES`, q.SQL)

	q, err = Build("mysql", &Insert{Table: "User"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `User` () VALUES ()", q.SQL)
}

func TestUpdateAndDelete(t *testing.T) {
	q, err := Build("postgresql", &Update{
		Table: "User",
		Set:   []Assignment{{Column: "email", Value: "y"}, {Column: "age", Value: nil}},
		Where: Equals(Col("", "id"), 1),
	})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "User" SET "email" = $1, "age" = $2 WHERE "id" = $3`, q.SQL)
	assert.Equal(t, []interface{}{"y", nil, 1}, q.Args)

	_, err = Build("postgresql", &Update{Table: "User"})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	q, err = Build("sqlite", &Delete{Table: "User", Where: In{Column: Col("", "id"), Values: []interface{}{1}}})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "User" WHERE "id" IN (?)`, q.SQL)
}

func TestOffsetWithoutLimit(t *testing.T) {
	offset := 5
	q, err := Build("sqlite", &Select{Table: "T", Offset: &offset})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "T" LIMIT -1 OFFSET ?`, q.SQL)

	q, err = Build("postgresql", &Select{Table: "T", Offset: &offset})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "T" OFFSET $1`, q.SQL)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"we""ird"`, NewGenerator("postgresql").QuoteIdentifier(`we"ird`))
	assert.Equal(t, "`a``b`", NewGenerator("mysql").QuoteIdentifier("a`b"))
	assert.True(t, NewGenerator("postgres").SupportsReturning())
	assert.False(t, NewGenerator("sqlite").SupportsReturning())
}

func TestCount(t *testing.T) {
	q, err := Build("sqlite", &Select{Table: "Post", Alias: "t0", Count: true, Where: Equals(Col("t0", "published"), true)})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "Post" AS "t0" WHERE "t0"."published" = ?`, q.SQL)
	assert.Equal(t, []interface{}{true}, q.Args)
}
