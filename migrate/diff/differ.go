// Package diff computes the database migration steps that turn one schema
// snapshot into another, and rewrites them for dialects with limited ALTER
// TABLE support.
package diff

import (
	"sort"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// Differ compares schemas and generates migration steps
type Differ struct {
	flavour flavour.DifferFlavour
}

// NewDiffer creates a new schema differ
func NewDiffer(f flavour.DifferFlavour) *Differ {
	if f == nil {
		f = flavour.Generic()
	}
	return &Differ{flavour: f}
}

// Diff compares two snapshots with the generic flavour.
func Diff(previous, next *introspect.DatabaseSchema) []Step {
	return NewDiffer(nil).Diff(previous, next)
}

// Diff returns the steps turning previous into next: creates ordered by
// foreign key dependencies, then drops, then alters, then index changes on
// tables present in both snapshots. Renames are reported as a drop and a
// create. Neither snapshot is modified.
func (d *Differ) Diff(previous, next *introspect.DatabaseSchema) []Step {
	db := NewDifferDatabase(previous, next, d.flavour)
	var steps []Step

	var creates []CreateTable
	for _, t := range db.CreatedTables() {
		creates = append(creates, createTableStep(t))
	}
	for _, c := range orderCreates(creates) {
		steps = append(steps, c)
	}

	for _, t := range db.DroppedTables() {
		steps = append(steps, DropTable{Name: t.Name})
	}

	pairs := db.TablePairs()
	for _, pair := range pairs {
		if changes := d.tableChanges(db, pair); len(changes) > 0 {
			steps = append(steps, AlterTable{Table: pair.Table.Previous.Name, Changes: changes})
		}
	}

	for _, pair := range pairs {
		steps = append(steps, d.indexSteps(pair)...)
	}

	debug.Debug("Computed schema diff", "provider", d.flavour.Provider(), "steps", len(steps))
	return steps
}

func createTableStep(t *introspect.Table) CreateTable {
	clone := t.Clone()
	step := CreateTable{
		Name:           clone.Name,
		Columns:        clone.Columns,
		PrimaryColumns: clone.PrimaryColumns(),
		ForeignKeys:    clone.ForeignKeys,
		Indexes:        sortedIndexes(clone.Indexes),
	}
	if step.PrimaryColumns == nil {
		step.PrimaryColumns = []string{}
	}
	return step
}

// tableChanges lists drops, then adds, then alters.
func (d *Differ) tableChanges(db *DifferDatabase, pair TablePair) []TableChange {
	var changes []TableChange
	for _, col := range db.DroppedColumns(pair) {
		changes = append(changes, DropColumn{Name: col.Name})
	}
	for _, col := range db.CreatedColumns(pair) {
		add := AddColumn{Column: col.Clone()}
		if fk := pair.Table.Next.ForeignKeyFor(col.Name); fk != nil {
			clone := fk.Clone()
			add.ForeignKey = &clone
		}
		changes = append(changes, add)
	}
	for _, cp := range db.ColumnPairs(pair) {
		if allColumnChanges(cp.Previous, cp.Next, d.flavour).DiffersInSomething() {
			changes = append(changes, AlterColumn{Name: cp.Next.Name, Column: cp.Next.Clone()})
		}
	}
	return changes
}

// indexSteps drops indexes that vanished or changed shape, then creates the
// new ones.
func (d *Differ) indexSteps(pair TablePair) []Step {
	prev, next := pair.Table.Previous, pair.Table.Next
	var steps []Step
	for _, idx := range sortedIndexes(prev.Indexes) {
		if other := next.Index(idx.Name); other == nil || !d.flavour.IndexesMatch(&idx, other) {
			steps = append(steps, DropIndex{Table: prev.Name, Name: idx.Name})
		}
	}
	for _, idx := range sortedIndexes(next.Indexes) {
		if other := prev.Index(idx.Name); other == nil || !d.flavour.IndexesMatch(other, &idx) {
			idx.Columns = append([]string(nil), idx.Columns...)
			steps = append(steps, CreateIndex{Table: prev.Name, Index: idx})
		}
	}
	return steps
}

func sortedIndexes(indexes []introspect.Index) []introspect.Index {
	out := append([]introspect.Index(nil), indexes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
