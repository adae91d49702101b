package flavour

// SQLiteFlavour implements DifferFlavour for SQLite
type SQLiteFlavour struct {
	base
}

// NewSQLiteFlavour creates a new SQLite flavour
func NewSQLiteFlavour() DifferFlavour {
	return &SQLiteFlavour{}
}

func (f *SQLiteFlavour) Provider() string { return "sqlite" }

// SupportsColumnAlteration is false: SQLite only supports ADD COLUMN.
func (f *SQLiteFlavour) SupportsColumnAlteration() bool {
	return false
}

// TableShouldBeIgnored also skips SQLite's own bookkeeping tables.
func (f *SQLiteFlavour) TableShouldBeIgnored(tableName string) bool {
	return f.base.TableShouldBeIgnored(tableName) || tableName == "sqlite_sequence"
}
