// Package sqlgen renders database migration steps as dialect-specific DDL.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// ErrUnsupportedStep is returned for steps a dialect cannot express.
var ErrUnsupportedStep = errors.New("step not supported by dialect")

// Renderer turns one migration step into the statements that apply it.
type Renderer interface {
	Provider() string
	Render(step diff.Step) ([]string, error)
	QuoteIdentifier(name string) string
}

// NewRenderer creates a renderer for the given provider
func NewRenderer(provider string) (Renderer, error) {
	switch provider {
	case "postgresql", "postgres":
		return NewPostgresRenderer(), nil
	case "mysql":
		return NewMySQLRenderer(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// dialect supplies the parts of the DDL that differ between databases.
type dialect interface {
	quote(name string) string
	columnType(c introspect.Column) (string, error)
	// autoIncrement returns the clause appended to an auto-increment column.
	// inlinePK is true when the column is the whole primary key.
	autoIncrement(inlinePK bool) string
	inlinesPrimaryKey(c introspect.Column) bool
	renderDefault(c introspect.Column) string
	renderAlter(r *renderer, step diff.AlterTable) ([]string, error)
	renderRename(r *renderer, step diff.RenameTable) string
	renderDropIndex(r *renderer, step diff.DropIndex) string
}

// renderer implements the statements shared by every dialect.
type renderer struct {
	provider string
	dialect  dialect
}

func (r *renderer) Provider() string { return r.provider }

func (r *renderer) QuoteIdentifier(name string) string { return r.dialect.quote(name) }

func (r *renderer) Render(step diff.Step) ([]string, error) {
	switch s := step.(type) {
	case diff.CreateTable:
		return r.renderCreateTable(s)
	case diff.DropTable:
		return []string{fmt.Sprintf("DROP TABLE %s", r.dialect.quote(s.Name))}, nil
	case diff.RenameTable:
		return []string{r.dialect.renderRename(r, s)}, nil
	case diff.AlterTable:
		return r.dialect.renderAlter(r, s)
	case diff.RawSQL:
		return []string{s.SQL}, nil
	case diff.CreateIndex:
		return []string{r.renderCreateIndex(s.Table, s.Index)}, nil
	case diff.DropIndex:
		return []string{r.dialect.renderDropIndex(r, s)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStep, step)
	}
}

func (r *renderer) renderCreateTable(step diff.CreateTable) ([]string, error) {
	inlinePK := ""
	if len(step.PrimaryColumns) == 1 {
		for _, c := range step.Columns {
			if c.Name == step.PrimaryColumns[0] && r.dialect.inlinesPrimaryKey(c) {
				inlinePK = c.Name
			}
		}
	}

	var lines []string
	for _, c := range step.Columns {
		def, err := r.columnDefinition(c, c.Name == inlinePK)
		if err != nil {
			return nil, fmt.Errorf("failed to render table %s: %w", step.Name, err)
		}
		lines = append(lines, def)
	}
	if len(step.PrimaryColumns) > 0 && inlinePK == "" {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", r.quoteAll(step.PrimaryColumns)))
	}
	for _, fk := range step.ForeignKeys {
		lines = append(lines, r.foreignKeyClause(fk))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", r.dialect.quote(step.Name), strings.Join(lines, ",\n    "))}
	for _, idx := range step.Indexes {
		stmts = append(stmts, r.renderCreateIndex(step.Name, idx))
	}
	return stmts, nil
}

// columnDefinition renders `name TYPE [NOT NULL] [DEFAULT x]` plus the
// auto-increment clause.
func (r *renderer) columnDefinition(c introspect.Column, inlinePK bool) (string, error) {
	tpe, err := r.dialect.columnType(c)
	if err != nil {
		return "", err
	}
	parts := []string{r.dialect.quote(c.Name), tpe}
	if c.Arity == introspect.Required {
		parts = append(parts, "NOT NULL")
	}
	if c.AutoIncrement {
		if clause := r.dialect.autoIncrement(inlinePK); clause != "" {
			parts = append(parts, clause)
		}
	} else if inlinePK {
		parts = append(parts, "PRIMARY KEY")
	}
	if def := r.dialect.renderDefault(c); def != "" {
		parts = append(parts, "DEFAULT "+def)
	}
	return strings.Join(parts, " "), nil
}

func (r *renderer) foreignKeyClause(fk introspect.ForeignKey) string {
	var b strings.Builder
	if fk.Name != "" {
		fmt.Fprintf(&b, "CONSTRAINT %s ", r.dialect.quote(fk.Name))
	}
	fmt.Fprintf(&b, "FOREIGN KEY (%s) %s", r.quoteAll(fk.Columns), r.referencesClause(fk))
	return b.String()
}

func (r *renderer) referencesClause(fk introspect.ForeignKey) string {
	clause := fmt.Sprintf("REFERENCES %s(%s)", r.dialect.quote(fk.ReferencedTable), r.quoteAll(fk.ReferencedColumns))
	if fk.OnDelete != "" && fk.OnDelete != introspect.ActionNoAction {
		clause += " ON DELETE " + fk.OnDelete
	}
	return clause
}

func (r *renderer) renderCreateIndex(table string, idx introspect.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, r.dialect.quote(idx.Name), r.dialect.quote(table), r.quoteAll(idx.Columns))
}

func (r *renderer) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = r.dialect.quote(n)
	}
	return strings.Join(quoted, ", ")
}

// literalDefault returns the stored default unchanged.
func literalDefault(c introspect.Column) string {
	if c.Default == nil || c.AutoIncrement {
		return ""
	}
	return *c.Default
}

func unsupportedFamily(c introspect.Column) error {
	return fmt.Errorf("%w: column %s has type %s", ErrUnsupportedStep, c.Name, c.Type.Family)
}
