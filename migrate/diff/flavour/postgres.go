package flavour

// PostgresFlavour implements DifferFlavour for PostgreSQL
type PostgresFlavour struct {
	base
}

// NewPostgresFlavour creates a new PostgreSQL flavour
func NewPostgresFlavour() DifferFlavour {
	return &PostgresFlavour{}
}

func (f *PostgresFlavour) Provider() string { return "postgresql" }

func (f *PostgresFlavour) SupportsColumnAlteration() bool { return true }
