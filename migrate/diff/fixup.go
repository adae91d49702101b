package diff

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Statements emitted around a table rewrite. The executor recognizes them.
const (
	PragmaForeignKeysOff  = "PRAGMA foreign_keys=OFF;"
	PragmaForeignKeysOn   = "PRAGMA foreign_keys=ON;"
	PragmaForeignKeyCheck = "PRAGMA foreign_key_check;"
)

// RewritePrefix names the shadow table a rewrite copies rows into.
const RewritePrefix = "new_"

// Fix rewrites the AlterTable steps f cannot run in place. Each such step
// becomes: disable foreign keys, create new_<table> from next, copy the shared
// columns, drop the table, rename new_<table>, check foreign keys, re-enable
// them. The next table's indexes are recreated after the rename and index
// steps for rewritten tables are dropped. Other steps pass through.
func Fix(steps []Step, previous, next *introspect.DatabaseSchema, f flavour.DifferFlavour) ([]Step, error) {
	if f.SupportsColumnAlteration() {
		return steps, nil
	}

	rewritten := make(map[string]bool)
	out := make([]Step, 0, len(steps))
	for _, step := range steps {
		alter, ok := step.(AlterTable)
		if !ok || !needsFix(alter) {
			out = append(out, step)
			continue
		}

		prevTable, nextTable := previous.Table(alter.Table), next.Table(alter.Table)
		if prevTable == nil || nextTable == nil {
			return nil, runtime.NewInternalError("table %q is altered but missing from a snapshot", alter.Table)
		}
		debug.Debug("Rewriting table for column changes", "table", alter.Table, "changes", len(alter.Changes))
		out = append(out, rewriteTable(prevTable, nextTable)...)
		rewritten[alter.Table] = true
	}

	if len(rewritten) == 0 {
		return out, nil
	}
	fixed := out[:0]
	for _, step := range out {
		switch s := step.(type) {
		case CreateIndex:
			if rewritten[s.Table] {
				continue
			}
		case DropIndex:
			if rewritten[s.Table] {
				continue
			}
		}
		fixed = append(fixed, step)
	}
	return fixed, nil
}

// needsFix reports changes SQLite's ALTER TABLE cannot express: dropping or
// altering a column, or adding a required column without a constant default.
func needsFix(alter AlterTable) bool {
	for _, change := range alter.Changes {
		switch c := change.(type) {
		case DropColumn, AlterColumn:
			return true
		case AddColumn:
			if c.Column.Arity == introspect.Required && !c.Column.AutoIncrement && !hasConstantDefault(c.Column) {
				return true
			}
		}
	}
	return false
}

func hasConstantDefault(col introspect.Column) bool {
	return col.Default != nil && !strings.Contains(*col.Default, "(") &&
		!strings.EqualFold(strings.TrimSpace(*col.Default), "CURRENT_TIMESTAMP")
}

func rewriteTable(prev, next *introspect.Table) []Step {
	shadow := RewritePrefix + next.Name
	clone := next.Clone()
	primary := clone.PrimaryColumns()
	if primary == nil {
		primary = []string{}
	}

	steps := []Step{
		RawSQL{SQL: PragmaForeignKeysOff},
		CreateTable{
			Name:           shadow,
			Columns:        clone.Columns,
			PrimaryColumns: primary,
			ForeignKeys:    clone.ForeignKeys,
		},
	}

	// An empty intersection leaves nothing to copy.
	if shared := sharedColumns(prev, next); len(shared) > 0 {
		cols := quoteAll(shared)
		steps = append(steps, RawSQL{SQL: fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s;",
			quoteIdent(shadow), cols, cols, quoteIdent(prev.Name),
		)})
	}

	steps = append(steps,
		DropTable{Name: prev.Name},
		RenameTable{Name: shadow, NewName: next.Name},
		RawSQL{SQL: PragmaForeignKeyCheck},
		RawSQL{SQL: PragmaForeignKeysOn},
	)
	for _, idx := range sortedIndexes(clone.Indexes) {
		steps = append(steps, CreateIndex{Table: next.Name, Index: idx})
	}
	return steps
}

// sharedColumns returns the columns present in both tables, in next order.
func sharedColumns(prev, next *introspect.Table) []string {
	var shared []string
	for _, col := range next.Columns {
		if prev.HasColumn(col.Name) {
			shared = append(shared, col.Name)
		}
	}
	return shared
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
