package filter

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
)

// Compile translates f into a condition over the table named by alias.
// A nil filter places no restriction.
func Compile(f Filter, alias Alias) sqlgen.Condition {
	switch v := f.(type) {
	case nil:
		return sqlgen.NoCondition{}

	case And:
		conds := make(sqlgen.And, 0, len(v))
		for _, child := range v {
			c := Compile(child, alias)
			if _, ok := c.(sqlgen.NoCondition); ok {
				continue
			}
			conds = append(conds, c)
		}
		switch len(conds) {
		case 0:
			return sqlgen.NoCondition{}
		case 1:
			return conds[0]
		}
		return conds

	case Or:
		if len(v) == 0 {
			return sqlgen.NoCondition{}
		}
		conds := make(sqlgen.Or, len(v))
		for i, child := range v {
			conds[i] = Compile(child, alias)
		}
		if len(conds) == 1 {
			return conds[0]
		}
		return conds

	case Not:
		return sqlgen.Not{Cond: Compile(And(v), alias)}

	case Bool:
		return sqlgen.BoolLit(v)

	case Scalar:
		return compileScalar(v, alias)

	case ScalarList:
		return compileScalarList(v, alias)

	case Relation:
		return compileRelation(v, alias)

	case OneRelationIsNull:
		return compileOneRelationIsNull(v, alias)
	}
	panic(fmt.Sprintf("filter: unknown filter %T", f))
}

func compileScalar(s Scalar, alias Alias) sqlgen.Condition {
	col := sqlgen.Col(alias.String(), s.Field.ColumnName())

	switch s.Condition {
	case Equals:
		if s.Value == nil {
			return sqlgen.IsNull{Column: col}
		}
		return sqlgen.Compare{Column: col, Op: "=", Value: s.Value}
	case NotEquals:
		if s.Value == nil {
			return sqlgen.IsNull{Column: col, Negated: true}
		}
		return sqlgen.Compare{Column: col, Op: "<>", Value: s.Value}
	case LessThan:
		return sqlgen.Compare{Column: col, Op: "<", Value: s.Value}
	case LessThanOrEquals:
		return sqlgen.Compare{Column: col, Op: "<=", Value: s.Value}
	case GreaterThan:
		return sqlgen.Compare{Column: col, Op: ">", Value: s.Value}
	case GreaterThanOrEquals:
		return sqlgen.Compare{Column: col, Op: ">=", Value: s.Value}
	case Contains, NotContains:
		return like(col, "%", s.Value, "%", s.Condition == NotContains)
	case StartsWith, NotStartsWith:
		return like(col, "", s.Value, "%", s.Condition == NotStartsWith)
	case EndsWith, NotEndsWith:
		return like(col, "%", s.Value, "", s.Condition == NotEndsWith)
	case In, NotIn:
		return compileIn(col, s.Values, s.Condition == NotIn)
	}
	panic(fmt.Sprintf("filter: unknown scalar condition %q", s.Condition))
}

// like matches v literally between the given wildcards.
func like(col sqlgen.Column, prefix string, v interface{}, suffix string, negated bool) sqlgen.Condition {
	pattern := prefix + sqlgen.EscapeLike(fmt.Sprint(v)) + suffix
	return sqlgen.Like{Column: col, Pattern: pattern, Negated: negated, Escaped: true}
}

// compileIn splits null out of the value list: `x IN (NULL)` never matches.
func compileIn(col sqlgen.Column, values []interface{}, negated bool) sqlgen.Condition {
	var (
		rest    = make([]interface{}, 0, len(values))
		hasNull bool
	)
	for _, v := range values {
		if v == nil {
			hasNull = true
			continue
		}
		rest = append(rest, v)
	}

	in := sqlgen.In{Column: col, Values: rest, Negated: negated}
	if !hasNull {
		return in
	}
	isNull := sqlgen.IsNull{Column: col, Negated: negated}
	if len(rest) == 0 {
		return isNull
	}
	if negated {
		return sqlgen.And{in, isNull}
	}
	return sqlgen.Or{in, isNull}
}

func compileScalarList(s ScalarList, alias Alias) sqlgen.Condition {
	id := sqlgen.Col(alias.String(), s.Field.Model().IDField().ColumnName())
	list := alias.Inc(TableAlias)
	value := sqlgen.Col(list.String(), converter.ScalarListValue)

	sub := func(cond sqlgen.Condition) sqlgen.Condition {
		return sqlgen.InSelect{Column: id, Select: &sqlgen.Select{
			Table:   s.Field.ScalarListTable(),
			Alias:   list.String(),
			Columns: []sqlgen.Column{sqlgen.Col(list.String(), converter.ScalarListNodeID)},
			Where:   cond,
		}}
	}

	switch s.Condition {
	case ListContains:
		if len(s.Values) == 0 {
			return sqlgen.NoCondition{}
		}
		return sub(sqlgen.Compare{Column: value, Op: "=", Value: s.Values[0]})
	case ListContainsSome:
		return sub(sqlgen.In{Column: value, Values: s.Values})
	case ListContainsEvery:
		conds := make(sqlgen.And, 0, len(s.Values))
		for _, v := range s.Values {
			conds = append(conds, sub(sqlgen.Compare{Column: value, Op: "=", Value: v}))
		}
		if len(conds) == 0 {
			return sqlgen.NoCondition{}
		}
		return conds
	}
	panic(fmt.Sprintf("filter: unknown scalar list condition %q", s.Condition))
}

// compileRelation selects the ids of parents that have a related record
// matching the nested filter. Every is expressed as "no related record fails
// the nested filter", so it and None exclude parents with NOT IN.
func compileRelation(r Relation, alias Alias) sqlgen.Condition {
	id := sqlgen.Col(alias.String(), r.Field.Model().IDField().ColumnName())

	switch r.Condition {
	case EveryRelatedRecord:
		return sqlgen.InSelect{Column: id, Select: relatedParents(r.Field, r.Nested, true, alias), Negated: true}
	case NoRelatedRecord:
		return sqlgen.InSelect{Column: id, Select: relatedParents(r.Field, r.Nested, false, alias), Negated: true}
	case AtLeastOneRelatedRecord, ToOneRelatedRecord:
		return sqlgen.InSelect{Column: id, Select: relatedParents(r.Field, r.Nested, false, alias)}
	}
	panic(fmt.Sprintf("filter: unknown relation condition %q", r.Condition))
}

// relatedParents selects the parent column of the relation rows whose
// related record matches nested. The relation table gets the next table
// alias and the related model the join alias of the same level.
func relatedParents(field *models.RelationField, nested Filter, negate bool, alias Alias) *sqlgen.Select {
	table := alias.Inc(TableAlias)
	join := table.Flip(JoinAlias)
	related := field.RelatedModel()

	cond := Compile(nested, join)
	if negate {
		// a related record whose filter is unknown (NULL) fails it too
		switch cond.(type) {
		case sqlgen.NoCondition, sqlgen.BoolLit:
			cond = sqlgen.Negate(cond)
		default:
			cond = sqlgen.IsNotTrue{Cond: cond}
		}
	}

	parent := sqlgen.Col(table.String(), field.RelationColumn())
	return &sqlgen.Select{
		Table:   field.Relation().Table(),
		Alias:   table.String(),
		Columns: []sqlgen.Column{parent},
		Joins: []sqlgen.Join{{
			Table: related.Table(),
			Alias: join.String(),
			On: sqlgen.CompareColumns{
				Left:  sqlgen.Col(join.String(), related.IDField().ColumnName()),
				Op:    "=",
				Right: sqlgen.Col(table.String(), field.OppositeColumn()),
			},
		}},
		// NOT IN over a list containing NULL matches nothing
		Where: sqlgen.And{sqlgen.IsNull{Column: parent, Negated: true}, cond},
	}
}

func compileOneRelationIsNull(f OneRelationIsNull, alias Alias) sqlgen.Condition {
	if f.Field.IsInlinedInParent() {
		return sqlgen.IsNull{Column: sqlgen.Col(alias.String(), f.Field.ColumnName())}
	}

	table := alias.Inc(TableAlias)
	parent := sqlgen.Col(table.String(), f.Field.RelationColumn())
	child := sqlgen.Col(table.String(), f.Field.OppositeColumn())
	return sqlgen.InSelect{
		Column: sqlgen.Col(alias.String(), f.Field.Model().IDField().ColumnName()),
		Select: &sqlgen.Select{
			Table:   f.Field.Relation().Table(),
			Alias:   table.String(),
			Columns: []sqlgen.Column{parent},
			Where:   sqlgen.And{sqlgen.IsNull{Column: parent, Negated: true}, sqlgen.IsNull{Column: child, Negated: true}},
		},
		Negated: true,
	}
}
