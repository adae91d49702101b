package diff

import (
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// DifferDatabase pairs up the tables and columns of two snapshots. It never
// mutates the snapshots it was built from.
type DifferDatabase struct {
	flavour flavour.DifferFlavour
	// Normalized table name -> table pair
	tables map[string]MigrationPair[*introspect.Table]
	// Normalized table name -> column name -> column pair
	columns map[string]map[string]MigrationPair[*introspect.Column]
}

// NewDifferDatabase creates a new DifferDatabase
func NewDifferDatabase(prev, next *introspect.DatabaseSchema, f flavour.DifferFlavour) *DifferDatabase {
	db := &DifferDatabase{
		flavour: f,
		tables:  make(map[string]MigrationPair[*introspect.Table]),
		columns: make(map[string]map[string]MigrationPair[*introspect.Column]),
	}
	db.buildTables(prev, next)
	db.buildColumns()
	return db
}

func (db *DifferDatabase) buildTables(prev, next *introspect.DatabaseSchema) {
	if prev != nil {
		for i := range prev.Tables {
			table := &prev.Tables[i]
			key := db.normalizeTableName(table.Name)
			if db.flavour.TableShouldBeIgnored(table.Name) {
				continue
			}
			pair := db.tables[key]
			pair.Previous = table
			db.tables[key] = pair
		}
	}
	if next != nil {
		for i := range next.Tables {
			table := &next.Tables[i]
			key := db.normalizeTableName(table.Name)
			if db.flavour.TableShouldBeIgnored(table.Name) {
				continue
			}
			pair := db.tables[key]
			pair.Next = table
			db.tables[key] = pair
		}
	}
}

func (db *DifferDatabase) buildColumns() {
	for key, tablePair := range db.tables {
		if !HasBoth(tablePair) {
			continue
		}
		cols := make(map[string]MigrationPair[*introspect.Column])
		for i := range tablePair.Previous.Columns {
			col := &tablePair.Previous.Columns[i]
			cols[col.Name] = MigrationPair[*introspect.Column]{Previous: col}
		}
		for i := range tablePair.Next.Columns {
			col := &tablePair.Next.Columns[i]
			pair := cols[col.Name]
			pair.Next = col
			cols[col.Name] = pair
		}
		db.columns[key] = cols
	}
}

func (db *DifferDatabase) normalizeTableName(name string) string {
	if db.flavour.LowerCasesTableNames() {
		return strings.ToLower(name)
	}
	return name
}

func (db *DifferDatabase) sortedKeys() []string {
	keys := make([]string, 0, len(db.tables))
	for k := range db.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreatedTables returns tables that exist only in the next schema, by name.
func (db *DifferDatabase) CreatedTables() []*introspect.Table {
	var result []*introspect.Table
	for _, key := range db.sortedKeys() {
		if pair := db.tables[key]; pair.Previous == nil {
			result = append(result, pair.Next)
		}
	}
	return result
}

// DroppedTables returns tables that exist only in the previous schema, by name.
func (db *DifferDatabase) DroppedTables() []*introspect.Table {
	var result []*introspect.Table
	for _, key := range db.sortedKeys() {
		if pair := db.tables[key]; pair.Next == nil {
			result = append(result, pair.Previous)
		}
	}
	return result
}

// TablePair represents a pair of tables
type TablePair struct {
	Name  string
	Table MigrationPair[*introspect.Table]
}

// TablePairs returns tables that exist in both schemas, by name.
func (db *DifferDatabase) TablePairs() []TablePair {
	var result []TablePair
	for _, key := range db.sortedKeys() {
		if pair := db.tables[key]; HasBoth(pair) {
			result = append(result, TablePair{Name: key, Table: pair})
		}
	}
	return result
}

// DroppedColumns returns the columns of table only present in the previous
// snapshot, in previous declaration order.
func (db *DifferDatabase) DroppedColumns(pair TablePair) []*introspect.Column {
	var result []*introspect.Column
	for i := range pair.Table.Previous.Columns {
		col := &pair.Table.Previous.Columns[i]
		if db.columns[pair.Name][col.Name].Next == nil {
			result = append(result, col)
		}
	}
	return result
}

// CreatedColumns returns the columns of table only present in the next
// snapshot, in next declaration order.
func (db *DifferDatabase) CreatedColumns(pair TablePair) []*introspect.Column {
	var result []*introspect.Column
	for i := range pair.Table.Next.Columns {
		col := &pair.Table.Next.Columns[i]
		if db.columns[pair.Name][col.Name].Previous == nil {
			result = append(result, col)
		}
	}
	return result
}

// ColumnPairs returns the columns present on both sides, in next
// declaration order.
func (db *DifferDatabase) ColumnPairs(pair TablePair) []MigrationPair[*introspect.Column] {
	var result []MigrationPair[*introspect.Column]
	for i := range pair.Table.Next.Columns {
		cp := db.columns[pair.Name][pair.Table.Next.Columns[i].Name]
		if HasBoth(cp) {
			result = append(result, cp)
		}
	}
	return result
}
