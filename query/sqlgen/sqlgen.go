// Package sqlgen generates DML for different database providers from a small
// statement and condition tree.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Query represents a SQL query with arguments
type Query struct {
	SQL  string
	Args []interface{}
}

// Generator renders statements for a specific provider
type Generator interface {
	Provider() string
	// SupportsReturning reports whether inserts can return generated columns.
	SupportsReturning() bool
	QuoteIdentifier(name string) string
	Build(stmt Statement) (*Query, error)
}

// ErrEmptyUpdate is returned for an update without assignments.
var ErrEmptyUpdate = errors.New("update without assignments")

// NewGenerator creates a new SQL generator for the given provider
func NewGenerator(provider string) Generator {
	switch provider {
	case "postgresql", "postgres":
		return &PostgresGenerator{}
	case "mysql":
		return &MySQLGenerator{}
	case "sqlite":
		return &SQLiteGenerator{}
	default:
		return &PostgresGenerator{} // default to postgres
	}
}

// Build renders stmt with the generator of provider.
func Build(provider string, stmt Statement) (*Query, error) {
	return NewGenerator(provider).Build(stmt)
}

// PostgresGenerator generates PostgreSQL SQL
type PostgresGenerator struct{}

func (g *PostgresGenerator) Provider() string                   { return "postgresql" }
func (g *PostgresGenerator) SupportsReturning() bool            { return true }
func (g *PostgresGenerator) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (g *PostgresGenerator) Build(stmt Statement) (*Query, error) {
	return render(stmt, dialect{
		placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		quote:       g.QuoteIdentifier,
		returning:   true,
		emptyInsert: "DEFAULT VALUES",
	})
}

// MySQLGenerator generates MySQL SQL
type MySQLGenerator struct{}

func (g *MySQLGenerator) Provider() string        { return "mysql" }
func (g *MySQLGenerator) SupportsReturning() bool { return false }

func (g *MySQLGenerator) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (g *MySQLGenerator) Build(stmt Statement) (*Query, error) {
	return render(stmt, dialect{
		placeholder: func(int) string { return "?" },
		quote:       g.QuoteIdentifier,
		emptyInsert: "() VALUES ()",
		// MySQL requires LIMIT when using OFFSET
		noLimit: "18446744073709551615",
	})
}

// SQLiteGenerator generates SQLite SQL
type SQLiteGenerator struct{}

func (g *SQLiteGenerator) Provider() string        { return "sqlite" }
func (g *SQLiteGenerator) SupportsReturning() bool { return false }

func (g *SQLiteGenerator) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (g *SQLiteGenerator) Build(stmt Statement) (*Query, error) {
	return render(stmt, dialect{
		placeholder: func(int) string { return "?" },
		quote:       g.QuoteIdentifier,
		emptyInsert: "DEFAULT VALUES",
		noLimit:     "-1",
	})
}

type dialect struct {
	placeholder func(int) string
	quote       func(string) string
	returning   bool
	emptyInsert string
	// noLimit is written when OFFSET appears without LIMIT.
	noLimit string
}

// writer accumulates SQL text and bound arguments.
type writer struct {
	d    dialect
	sb   strings.Builder
	args []interface{}
}

func render(stmt Statement, d dialect) (*Query, error) {
	w := &writer{d: d}
	var err error
	switch s := stmt.(type) {
	case *Select:
		w.selectStmt(s)
	case *Insert:
		w.insert(s)
	case *Update:
		err = w.update(s)
	case *Delete:
		w.delete(s)
	default:
		err = fmt.Errorf("unsupported statement %T", stmt)
	}
	if err != nil {
		return nil, err
	}
	return &Query{SQL: w.sb.String(), Args: w.args}, nil
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.sb.WriteString(p)
	}
}

func (w *writer) bind(v interface{}) {
	w.args = append(w.args, v)
	w.sb.WriteString(w.d.placeholder(len(w.args)))
}

func (w *writer) column(c Column) {
	if c.Table != "" {
		w.write(w.d.quote(c.Table), ".")
	}
	w.write(w.d.quote(c.Name))
}

func (w *writer) table(name, alias string) {
	w.write(w.d.quote(name))
	if alias != "" {
		w.write(" AS ", w.d.quote(alias))
	}
}

func (w *writer) selectStmt(s *Select) {
	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	switch {
	case s.Count:
		w.write("COUNT(*)")
	case len(s.Columns) == 0:
		w.write("*")
	default:
		for i, c := range s.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.column(c)
		}
	}

	w.write(" FROM ")
	w.table(s.Table, s.Alias)

	for _, j := range s.Joins {
		w.write(" INNER JOIN ")
		w.table(j.Table, j.Alias)
		w.write(" ON ")
		w.condition(j.On)
	}

	w.where(s.Where)

	if len(s.OrderBy) > 0 {
		w.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				w.write(", ")
			}
			w.column(o.Column)
			if o.Desc {
				w.write(" DESC")
			} else {
				w.write(" ASC")
			}
		}
	}

	switch {
	case s.Limit != nil:
		w.write(" LIMIT ")
		w.bind(*s.Limit)
	case s.Offset != nil && w.d.noLimit != "":
		w.write(" LIMIT ", w.d.noLimit)
	}
	if s.Offset != nil {
		w.write(" OFFSET ")
		w.bind(*s.Offset)
	}
}

func (w *writer) where(c Condition) {
	if c == nil {
		return
	}
	if _, ok := c.(NoCondition); ok {
		return
	}
	w.write(" WHERE ")
	w.condition(c)
}

func (w *writer) insert(s *Insert) {
	w.write("INSERT INTO ", w.d.quote(s.Table))
	if len(s.Columns) == 0 {
		w.write(" ", w.d.emptyInsert)
	} else {
		w.write(" (")
		for i, c := range s.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.write(w.d.quote(c))
		}
		w.write(") VALUES (")
		for i, v := range s.Values {
			if i > 0 {
				w.write(", ")
			}
			w.bind(v)
		}
		w.write(")")
	}
	if w.d.returning && len(s.Returning) > 0 {
		w.write(" RETURNING ")
		for i, c := range s.Returning {
			if i > 0 {
				w.write(", ")
			}
			w.write(w.d.quote(c))
		}
	}
}

func (w *writer) update(s *Update) error {
	if len(s.Set) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyUpdate, s.Table)
	}
	w.write("UPDATE ", w.d.quote(s.Table), " SET ")
	for i, a := range s.Set {
		if i > 0 {
			w.write(", ")
		}
		w.write(w.d.quote(a.Column), " = ")
		w.bind(a.Value)
	}
	w.where(s.Where)
	return nil
}

func (w *writer) delete(s *Delete) {
	w.write("DELETE FROM ", w.d.quote(s.Table))
	w.where(s.Where)
}
