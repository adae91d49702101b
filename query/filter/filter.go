// Package filter holds the record filter tree and compiles it into sqlgen
// conditions.
package filter

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/query/models"
)

// Filter is a node of a record filter. The set of implementations is closed.
type Filter interface {
	isFilter()
}

// And matches when every child matches. An empty And matches everything.
type And []Filter

// Or matches when any child matches. An empty Or places no restriction.
type Or []Filter

// Not matches when the conjunction of its children does not.
type Not []Filter

// Bool is a constant filter.
type Bool bool

// ScalarCondition names a scalar comparison.
type ScalarCondition string

const (
	Equals              ScalarCondition = "equals"
	NotEquals           ScalarCondition = "not"
	Contains            ScalarCondition = "contains"
	NotContains         ScalarCondition = "not_contains"
	StartsWith          ScalarCondition = "starts_with"
	NotStartsWith       ScalarCondition = "not_starts_with"
	EndsWith            ScalarCondition = "ends_with"
	NotEndsWith         ScalarCondition = "not_ends_with"
	LessThan            ScalarCondition = "lt"
	LessThanOrEquals    ScalarCondition = "lte"
	GreaterThan         ScalarCondition = "gt"
	GreaterThanOrEquals ScalarCondition = "gte"
	In                  ScalarCondition = "in"
	NotIn               ScalarCondition = "not_in"
)

// Scalar compares one column. In and NotIn use Values, the rest use Value.
type Scalar struct {
	Field     *models.ScalarField
	Condition ScalarCondition
	Value     interface{}
	Values    []interface{}
}

// ScalarListCondition names a scalar list test.
type ScalarListCondition string

const (
	ListContains      ScalarListCondition = "contains"
	ListContainsEvery ScalarListCondition = "contains_every"
	ListContainsSome  ScalarListCondition = "contains_some"
)

// ScalarList tests the values stored for a scalar list field.
type ScalarList struct {
	Field     *models.ScalarField
	Condition ScalarListCondition
	Values    []interface{}
}

// RelationCondition is the quantifier of a relation filter.
type RelationCondition string

const (
	EveryRelatedRecord      RelationCondition = "every"
	AtLeastOneRelatedRecord RelationCondition = "some"
	NoRelatedRecord         RelationCondition = "none"
	ToOneRelatedRecord      RelationCondition = "is"
)

// Relation constrains a record by the records related through Field.
type Relation struct {
	Field     *models.RelationField
	Nested    Filter
	Condition RelationCondition
}

// OneRelationIsNull matches records without a record related through a
// to-one Field.
type OneRelationIsNull struct {
	Field *models.RelationField
}

func (And) isFilter()               {}
func (Or) isFilter()                {}
func (Not) isFilter()               {}
func (Bool) isFilter()              {}
func (Scalar) isFilter()            {}
func (ScalarList) isFilter()        {}
func (Relation) isFilter()          {}
func (OneRelationIsNull) isFilter() {}

// EqualsValue builds an equality filter, the form where selectors take.
func EqualsValue(field *models.ScalarField, v interface{}) Filter {
	return Scalar{Field: field, Condition: Equals, Value: v}
}

// AliasMode tells whether an alias names a table or a join.
type AliasMode int

const (
	TableAlias AliasMode = iota
	JoinAlias
)

// Alias names the table a condition is evaluated against. Each level of
// relation nesting increments Counter so self-relations never collide.
type Alias struct {
	Counter int
	Mode    AliasMode
}

// Root is the alias of the table a top-level filter reads from.
var Root = Alias{}

func (a Alias) String() string {
	if a.Mode == JoinAlias {
		return fmt.Sprintf("j%d", a.Counter)
	}
	return fmt.Sprintf("t%d", a.Counter)
}

// Inc returns the alias one level deeper.
func (a Alias) Inc(mode AliasMode) Alias {
	return Alias{Counter: a.Counter + 1, Mode: mode}
}

// Flip returns the alias of the same level in another mode.
func (a Alias) Flip(mode AliasMode) Alias {
	return Alias{Counter: a.Counter, Mode: mode}
}
