package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

type mysqlDialect struct{}

// NewMySQLRenderer creates a MySQL renderer
func NewMySQLRenderer() Renderer {
	return &renderer{provider: "mysql", dialect: mysqlDialect{}}
}

func (mysqlDialect) quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var mysqlTypes = map[introspect.TypeFamily]string{
	introspect.FamilyInt:      "INT",
	introspect.FamilyFloat:    "DOUBLE",
	introspect.FamilyBoolean:  "BOOLEAN",
	introspect.FamilyString:   "VARCHAR(191)",
	introspect.FamilyDateTime: "DATETIME(3)",
	introspect.FamilyBinary:   "BLOB",
	introspect.FamilyJSON:     "JSON",
	introspect.FamilyUUID:     "CHAR(36)",
}

func (mysqlDialect) columnType(c introspect.Column) (string, error) {
	if c.Arity == introspect.List {
		return "", unsupportedFamily(c)
	}
	if c.Type.Family == introspect.FamilyEnum {
		if strings.HasPrefix(strings.ToLower(c.Type.Raw), "enum(") {
			return c.Type.Raw, nil
		}
		return "VARCHAR(191)", nil
	}
	tpe, ok := mysqlTypes[c.Type.Family]
	if !ok {
		return "", unsupportedFamily(c)
	}
	return tpe, nil
}

func (mysqlDialect) autoIncrement(bool) string { return "AUTO_INCREMENT" }

func (mysqlDialect) inlinesPrimaryKey(introspect.Column) bool { return false }

// renderDefault widens CURRENT_TIMESTAMP to the column precision.
func (mysqlDialect) renderDefault(c introspect.Column) string {
	def := literalDefault(c)
	if c.Type.Family == introspect.FamilyDateTime && strings.EqualFold(def, "CURRENT_TIMESTAMP") {
		return "CURRENT_TIMESTAMP(3)"
	}
	return def
}

func (d mysqlDialect) renderAlter(r *renderer, step diff.AlterTable) ([]string, error) {
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
			def, err := r.columnDefinition(c.Column, false)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, def))
		}
	}
	return stmts, nil
}

func (d mysqlDialect) renderRename(_ *renderer, step diff.RenameTable) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.quote(step.Name), d.quote(step.NewName))
}

func (d mysqlDialect) renderDropIndex(_ *renderer, step diff.DropIndex) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.quote(step.Name), d.quote(step.Table))
}
