package introspect

import (
	"strings"
)

// MigrationTableName is the migration log table. It is never reported by
// introspection and never touched by the differ.
const MigrationTableName = "_Migration"

// DatabaseSchema is an immutable snapshot of the physical schema.
type DatabaseSchema struct {
	Tables []Table `json:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes,omitempty"`
	PrimaryKey  *PrimaryKey  `json:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// Column represents a table column
type Column struct {
	Name          string      `json:"name"`
	Type          ColumnType  `json:"type"`
	Arity         ColumnArity `json:"arity"`
	Default       *string     `json:"default,omitempty"`
	AutoIncrement bool        `json:"autoIncrement,omitempty"`
}

// ColumnArity tells whether a column is required, nullable or list valued.
type ColumnArity string

const (
	Required ColumnArity = "required"
	Nullable ColumnArity = "nullable"
	List     ColumnArity = "list"
)

// TypeFamily is the portable type of a column.
type TypeFamily string

const (
	FamilyInt      TypeFamily = "Int"
	FamilyFloat    TypeFamily = "Float"
	FamilyBoolean  TypeFamily = "Boolean"
	FamilyString   TypeFamily = "String"
	FamilyDateTime TypeFamily = "DateTime"
	FamilyBinary   TypeFamily = "Binary"
	FamilyJSON     TypeFamily = "Json"
	FamilyUUID     TypeFamily = "Uuid"
	FamilyEnum     TypeFamily = "Enum"
)

// ColumnType is a type family plus the native type it was read from.
type ColumnType struct {
	Family TypeFamily `json:"family"`
	// Raw is the native type name. It is informational and never compared.
	Raw string `json:"raw,omitempty"`
}

// Pure returns a column type without a native type name.
func Pure(family TypeFamily) ColumnType {
	return ColumnType{Family: family}
}

// PrimaryKey lists the key columns in key order.
type PrimaryKey struct {
	Columns []string `json:"columns"`
}

// Index represents a database index
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string   `json:"name,omitempty"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          string   `json:"onDelete,omitempty"`
}

// Foreign key actions.
const (
	ActionNoAction = "NO ACTION"
	ActionCascade  = "CASCADE"
	ActionSetNull  = "SET NULL"
	ActionRestrict = "RESTRICT"
)

// NormalizeAction upper-cases a referential action and maps empty to NO ACTION.
func NormalizeAction(action string) string {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return ActionNoAction
	}
	return action
}

// Empty returns a schema without tables.
func Empty() *DatabaseSchema {
	return &DatabaseSchema{Tables: []Table{}}
}

// Table looks up a table by name.
func (s *DatabaseSchema) Table(name string) *Table {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasTable reports whether a table exists.
func (s *DatabaseSchema) HasTable(name string) bool {
	return s.Table(name) != nil
}

// TableNames returns the table names in snapshot order.
func (s *DatabaseSchema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Without returns a copy of the schema without the named table.
func (s *DatabaseSchema) Without(name string) *DatabaseSchema {
	out := Empty()
	for _, t := range s.Tables {
		if t.Name != name {
			out.Tables = append(out.Tables, t.Clone())
		}
	}
	return out
}

// Clone returns a deep copy of the schema.
func (s *DatabaseSchema) Clone() *DatabaseSchema {
	out := &DatabaseSchema{Tables: make([]Table, len(s.Tables))}
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	for _, idx := range t.Indexes {
		idx.Columns = append([]string(nil), idx.Columns...)
		out.Indexes = append(out.Indexes, idx)
	}
	if t.PrimaryKey != nil {
		out.PrimaryKey = &PrimaryKey{Columns: append([]string(nil), t.PrimaryKey.Columns...)}
	}
	for _, fk := range t.ForeignKeys {
		out.ForeignKeys = append(out.ForeignKeys, fk.Clone())
	}
	return out
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	if c.Default != nil {
		d := *c.Default
		c.Default = &d
	}
	return c
}

// Clone returns a deep copy of the foreign key.
func (fk ForeignKey) Clone() ForeignKey {
	fk.Columns = append([]string(nil), fk.Columns...)
	fk.ReferencedColumns = append([]string(nil), fk.ReferencedColumns...)
	return fk
}

// Column looks up a column by name.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryColumns returns the primary key columns, or nil.
func (t *Table) PrimaryColumns() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}

// IsPrimaryColumn reports whether the column is part of the primary key.
func (t *Table) IsPrimaryColumn(name string) bool {
	for _, c := range t.PrimaryColumns() {
		if c == name {
			return true
		}
	}
	return false
}

// ForeignKeyFor returns the single-column foreign key on column, if any.
func (t *Table) ForeignKeyFor(column string) *ForeignKey {
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if len(fk.Columns) == 1 && fk.Columns[0] == column {
			return fk
		}
	}
	return nil
}

// Index looks up an index by name.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// IsRequired reports whether the column is NOT NULL.
func (c *Column) IsRequired() bool {
	return c.Arity == Required
}
