package sqlgen

import "strings"

// Column is a possibly table-qualified column reference.
type Column struct {
	Table string
	Name  string
}

// Col builds a column qualified by table (or alias). An empty table leaves
// the column unqualified.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// Condition is a node of a WHERE tree.
type Condition interface {
	isCondition()
}

// NoCondition places no restriction. It renders as 1=1 and disappears
// inside And.
type NoCondition struct{}

// BoolLit is a constant condition.
type BoolLit bool

// And is a conjunction. An empty And is true.
type And []Condition

// Or is a disjunction. An empty Or is false.
type Or []Condition

// Not negates Cond.
type Not struct {
	Cond Condition
}

// Compare compares a column with a bound value. Op is one of
// =, <>, <, <=, >, >=.
type Compare struct {
	Column Column
	Op     string
	Value  interface{}
}

// CompareColumns compares two columns.
type CompareColumns struct {
	Left  Column
	Op    string
	Right Column
}

type IsNull struct {
	Column  Column
	Negated bool
}

// In tests membership in a value list. An empty list is false, or true
// when negated.
type In struct {
	Column  Column
	Values  []interface{}
	Negated bool
}

// InSelect tests membership in the single-column result of Select.
type InSelect struct {
	Column  Column
	Select  *Select
	Negated bool
}

// Like matches Pattern. Escaped patterns use LikeEscape before literal
// wildcard characters, see EscapeLike.
type Like struct {
	Column  Column
	Pattern string
	Negated bool
	Escaped bool
}

// IsNotTrue holds when Cond is false or unknown.
type IsNotTrue struct {
	Cond Condition
}

// LikeEscape is the escape character of escaped LIKE patterns. It needs no
// quoting in any supported dialect.
const LikeEscape = "!"

var likeEscaper = strings.NewReplacer(LikeEscape, LikeEscape+LikeEscape, "%", LikeEscape+"%", "_", LikeEscape+"_")

// EscapeLike makes every character of s match literally in an escaped
// LIKE pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (NoCondition) isCondition()    {}
func (BoolLit) isCondition()        {}
func (And) isCondition()            {}
func (Or) isCondition()             {}
func (Not) isCondition()            {}
func (Compare) isCondition()        {}
func (CompareColumns) isCondition() {}
func (IsNull) isCondition()         {}
func (In) isCondition()             {}
func (InSelect) isCondition()       {}
func (Like) isCondition()           {}
func (IsNotTrue) isCondition()      {}

// Negate returns the complement of c, folding constants and double negation.
func Negate(c Condition) Condition {
	switch v := c.(type) {
	case nil, NoCondition:
		return BoolLit(false)
	case BoolLit:
		return !v
	case Not:
		return v.Cond
	}
	return Not{Cond: c}
}

// Equals is shorthand for an equality comparison.
func Equals(col Column, v interface{}) Condition {
	return Compare{Column: col, Op: "=", Value: v}
}

// Statement is one of Select, Insert, Update, Delete.
type Statement interface {
	isStatement()
}

// Join is an inner join.
type Join struct {
	Table string
	Alias string
	On    Condition
}

// OrderBy orders a select by one column.
type OrderBy struct {
	Column Column
	Desc   bool
}

// Select reads rows. No Columns means every column; Count replaces the
// column list with COUNT(*).
type Select struct {
	Table    string
	Alias    string
	Distinct bool
	Count    bool
	Columns  []Column
	Joins    []Join
	Where    Condition
	OrderBy  []OrderBy
	Limit    *int
	Offset   *int
}

// Insert writes one row. Returning is honoured by dialects that support it.
type Insert struct {
	Table     string
	Columns   []string
	Values    []interface{}
	Returning []string
}

// Assignment is one SET entry of an update.
type Assignment struct {
	Column string
	Value  interface{}
}

type Update struct {
	Table string
	Set   []Assignment
	Where Condition
}

type Delete struct {
	Table string
	Where Condition
}

func (*Select) isStatement() {}
func (*Insert) isStatement() {}
func (*Update) isStatement() {}
func (*Delete) isStatement() {}
