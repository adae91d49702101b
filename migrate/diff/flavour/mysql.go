package flavour

// MySQLFlavour implements DifferFlavour for MySQL
type MySQLFlavour struct {
	base
}

// NewMySQLFlavour creates a new MySQL flavour
func NewMySQLFlavour() DifferFlavour {
	return &MySQLFlavour{}
}

func (f *MySQLFlavour) Provider() string { return "mysql" }

func (f *MySQLFlavour) SupportsColumnAlteration() bool { return true }

// LowerCasesTableNames returns true: servers running with
// lower_case_table_names report "User" as "user".
func (f *MySQLFlavour) LowerCasesTableNames() bool {
	return true
}
