package diff

import (
	"encoding/json"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// ColumnChanges tracks all changes to a column
type ColumnChanges struct {
	TypeChanged          bool
	ArityChanged         bool
	DefaultChanged       bool
	AutoIncrementChanged bool
	TypeChange           *flavour.ColumnTypeChange
}

// allColumnChanges detects all changes between two columns
func allColumnChanges(prev, next *introspect.Column, f flavour.DifferFlavour) *ColumnChanges {
	changes := &ColumnChanges{
		ArityChanged:         prev.Arity != next.Arity,
		DefaultChanged:       !defaultsMatch(prev, next),
		AutoIncrementChanged: prev.AutoIncrement != next.AutoIncrement,
	}
	if tc := f.ColumnTypeChange(prev, next); tc != nil {
		changes.TypeChanged = true
		changes.TypeChange = tc
	}
	return changes
}

// DiffersInSomething returns true if any change was detected
func (c *ColumnChanges) DiffersInSomething() bool {
	return c.TypeChanged || c.ArityChanged || c.DefaultChanged || c.AutoIncrementChanged
}

// defaultsMatch compares default values. Auto-increment columns carry no
// comparable default.
func defaultsMatch(prev, next *introspect.Column) bool {
	if prev.AutoIncrement && next.AutoIncrement {
		return true
	}
	if prev.Default == nil || next.Default == nil {
		return prev.Default == nil && next.Default == nil
	}

	prevVal := strings.TrimSpace(*prev.Default)
	nextVal := strings.TrimSpace(*next.Default)
	if prevVal == nextVal {
		return true
	}

	switch next.Type.Family {
	case introspect.FamilyJSON:
		return jsonDefaultsMatch(unquote(prevVal), unquote(nextVal))
	case introspect.FamilyDateTime:
		if isDateTimeFunction(prevVal) && isDateTimeFunction(nextVal) {
			return true
		}
		return unquote(prevVal) == unquote(nextVal)
	case introspect.FamilyEnum, introspect.FamilyString:
		return unquote(prevVal) == unquote(nextVal)
	case introspect.FamilyBoolean:
		return booleanLiteral(prevVal) == booleanLiteral(nextVal)
	}
	return false
}

func unquote(v string) string {
	return strings.Trim(v, `"'`)
}

// booleanLiteral maps the spellings dialects report for booleans onto one.
func booleanLiteral(v string) string {
	switch strings.ToLower(unquote(v)) {
	case "1", "true", "t":
		return "true"
	case "0", "false", "f":
		return "false"
	}
	return v
}

// jsonDefaultsMatch compares JSON default values by parsing them
func jsonDefaultsMatch(prev, next string) bool {
	var prevJSON, nextJSON any
	if err := json.Unmarshal([]byte(prev), &prevJSON); err != nil {
		return prev == next
	}
	if err := json.Unmarshal([]byte(next), &nextJSON); err != nil {
		return prev == next
	}
	a, err1 := json.Marshal(prevJSON)
	b, err2 := json.Marshal(nextJSON)
	return err1 == nil && err2 == nil && string(a) == string(b)
}

func isDateTimeFunction(val string) bool {
	upper := strings.ToUpper(strings.TrimSpace(val))
	return strings.HasPrefix(upper, "NOW()") ||
		strings.HasPrefix(upper, "CURRENT_TIMESTAMP") ||
		strings.HasPrefix(upper, "DATETIME('NOW')")
}
