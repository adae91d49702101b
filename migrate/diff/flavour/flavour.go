// Package flavour holds the per-dialect facts the differ and the fixup layer
// depend on.
package flavour

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// DifferFlavour provides provider-specific logic for schema comparison
type DifferFlavour interface {
	// Provider is the canonical provider name.
	Provider() string

	// SupportsColumnAlteration reports whether ALTER TABLE can drop and
	// alter columns in place. Dialects returning false get their alters
	// rewritten into a copy, drop and rename sequence.
	SupportsColumnAlteration() bool

	// IndexesMatch checks if two indexes match by structure (ignoring name)
	IndexesMatch(prev, next *introspect.Index) bool

	// ColumnTypeChange detects if a column type has changed
	ColumnTypeChange(prev, next *introspect.Column) *ColumnTypeChange

	// LowerCasesTableNames returns true if table names should be lowercased for comparison
	LowerCasesTableNames() bool

	// TableShouldBeIgnored returns true if a table should be ignored during diffing
	TableShouldBeIgnored(tableName string) bool
}

// ColumnTypeChange represents a column type change
type ColumnTypeChange struct {
	From   introspect.TypeFamily
	To     introspect.TypeFamily
	IsSafe bool
}

// New returns the flavour for provider.
func New(provider string) (DifferFlavour, error) {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return NewPostgresFlavour(), nil
	case "mysql":
		return NewMySQLFlavour(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteFlavour(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// base carries the behaviour shared by every dialect.
type base struct{}

func (base) IndexesMatch(prev, next *introspect.Index) bool {
	if prev.Unique != next.Unique || len(prev.Columns) != len(next.Columns) {
		return false
	}
	for i, col := range prev.Columns {
		if col != next.Columns[i] {
			return false
		}
	}
	return true
}

func (base) ColumnTypeChange(prev, next *introspect.Column) *ColumnTypeChange {
	if prev.Type.Family == next.Type.Family {
		return nil
	}
	return &ColumnTypeChange{From: prev.Type.Family, To: next.Type.Family, IsSafe: safeWidening(prev.Type.Family, next.Type.Family)}
}

func (base) LowerCasesTableNames() bool { return false }

func (base) TableShouldBeIgnored(tableName string) bool {
	return tableName == introspect.MigrationTableName
}

// safeWidening lists the family changes every dialect can cast without loss.
func safeWidening(from, to introspect.TypeFamily) bool {
	switch {
	case from == introspect.FamilyInt && to == introspect.FamilyFloat:
		return true
	case from == introspect.FamilyBoolean && to == introspect.FamilyInt:
		return true
	case to == introspect.FamilyString && from != introspect.FamilyBinary && from != introspect.FamilyJSON:
		return true
	}
	return false
}

// Generic is the flavour used when no dialect is known. It matches the
// SQL-standard behaviour of Postgres.
func Generic() DifferFlavour {
	return NewPostgresFlavour()
}
