package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

type sqliteDialect struct{}

// NewSQLiteRenderer creates a SQLite renderer. Foreign keys are rendered
// inside CREATE TABLE; column drops and alters must be rewritten by
// diff.Fix before rendering.
func NewSQLiteRenderer() Renderer {
	return &renderer{provider: "sqlite", dialect: sqliteDialect{}}
}

func (sqliteDialect) quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var sqliteTypes = map[introspect.TypeFamily]string{
	introspect.FamilyInt:      "INTEGER",
	introspect.FamilyFloat:    "REAL",
	introspect.FamilyBoolean:  "BOOLEAN",
	introspect.FamilyString:   "TEXT",
	introspect.FamilyDateTime: "DATETIME",
	introspect.FamilyBinary:   "BLOB",
	introspect.FamilyJSON:     "JSON",
	introspect.FamilyUUID:     "UUID",
	introspect.FamilyEnum:     "TEXT",
}

func (sqliteDialect) columnType(c introspect.Column) (string, error) {
	if c.Arity == introspect.List {
		return "", unsupportedFamily(c)
	}
	tpe, ok := sqliteTypes[c.Type.Family]
	if !ok {
		return "", unsupportedFamily(c)
	}
	return tpe, nil
}

// AUTOINCREMENT is only valid on an INTEGER PRIMARY KEY column.
func (sqliteDialect) autoIncrement(inlinePK bool) string {
	if inlinePK {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return ""
}

func (sqliteDialect) inlinesPrimaryKey(c introspect.Column) bool {
	return c.AutoIncrement && c.Type.Family == introspect.FamilyInt
}

func (sqliteDialect) renderDefault(c introspect.Column) string {
	return literalDefault(c)
}

// renderAlter only supports adding columns.
func (sqliteDialect) renderAlter(r *renderer, step diff.AlterTable) ([]string, error) {
	var stmts []string
	for _, change := range step.Changes {
		add, ok := change.(diff.AddColumn)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s requires a table rewrite", ErrUnsupportedStep, change.ChangeType(), step.Table)
		}
		def, err := r.columnDefinition(add.Column, false)
		if err != nil {
			return nil, err
		}
		if add.ForeignKey != nil {
			def += " " + r.referencesClause(*add.ForeignKey)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", r.dialect.quote(step.Table), def))
	}
	return stmts, nil
}

func (sqliteDialect) renderRename(r *renderer, step diff.RenameTable) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.dialect.quote(step.Name), r.dialect.quote(step.NewName))
}

func (sqliteDialect) renderDropIndex(r *renderer, step diff.DropIndex) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", r.dialect.quote(step.Name))
}
