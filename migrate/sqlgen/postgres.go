package sqlgen

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

type postgresDialect struct{}

// NewPostgresRenderer creates a PostgreSQL renderer
func NewPostgresRenderer() Renderer {
	return &renderer{provider: "postgresql", dialect: postgresDialect{}}
}

func (postgresDialect) quote(name string) string {
	return pq.QuoteIdentifier(name)
}

var postgresTypes = map[introspect.TypeFamily]string{
	introspect.FamilyInt:      "INTEGER",
	introspect.FamilyFloat:    "DOUBLE PRECISION",
	introspect.FamilyBoolean:  "BOOLEAN",
	introspect.FamilyString:   "TEXT",
	introspect.FamilyDateTime: "TIMESTAMP(3)",
	introspect.FamilyBinary:   "BYTEA",
	introspect.FamilyJSON:     "JSONB",
	introspect.FamilyUUID:     "UUID",
}

func (d postgresDialect) columnType(c introspect.Column) (string, error) {
	tpe, ok := postgresTypes[c.Type.Family]
	switch {
	case c.Type.Family == introspect.FamilyEnum && c.Type.Raw != "":
		tpe, ok = d.quote(c.Type.Raw), true
	case c.Type.Family == introspect.FamilyEnum:
		tpe, ok = "TEXT", true
	case c.AutoIncrement && c.Type.Family == introspect.FamilyInt:
		tpe = "SERIAL"
	}
	if !ok {
		return "", unsupportedFamily(c)
	}
	if c.Arity == introspect.List {
		tpe += "[]"
	}
	return tpe, nil
}

// SERIAL carries the sequence.
func (postgresDialect) autoIncrement(bool) string { return "" }

func (postgresDialect) inlinesPrimaryKey(introspect.Column) bool { return false }

func (postgresDialect) renderDefault(c introspect.Column) string {
	return literalDefault(c)
}

func (d postgresDialect) renderAlter(r *renderer, step diff.AlterTable) ([]string, error) {
	table := d.quote(step.Table)
	var stmts []string
	for _, change := range step.Changes {
		switch c := change.(type) {
		case diff.AddColumn:
			def, err := r.columnDefinition(c.Column, false)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def))
			if c.ForeignKey != nil {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", table, r.foreignKeyClause(*c.ForeignKey)))
			}
		case diff.DropColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, d.quote(c.Name)))
		case diff.AlterColumn:
			col := c.Column
			col.AutoIncrement = false
			tpe, err := d.columnType(col)
			if err != nil {
				return nil, err
			}
			name := d.quote(c.Name)
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", table, name, tpe, name, tpe))
			if c.Column.Arity == introspect.Required {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, name))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, name))
			}
			if def := literalDefault(c.Column); def != "" {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, name, def))
			} else if !c.Column.AutoIncrement {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, name))
			}
		}
	}
	return stmts, nil
}

func (d postgresDialect) renderRename(_ *renderer, step diff.RenameTable) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.quote(step.Name), d.quote(step.NewName))
}

func (d postgresDialect) renderDropIndex(_ *renderer, step diff.DropIndex) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", d.quote(step.Name))
}
