// Package introspect reads the physical schema of a live database into a
// DatabaseSchema snapshot.
package introspect

import (
	"context"
	"database/sql"
	"sort"
	"strings"
)

// Connector introspects one database. Implementations only read.
type Connector interface {
	// Introspect returns the tables of schemaName. Any failing catalog query
	// aborts the call; no partial snapshot is returned.
	Introspect(ctx context.Context, schemaName string) (*DatabaseSchema, error)
	// ListSchemas returns the schemas visible on the connection.
	ListSchemas(ctx context.Context) ([]string, error)
}

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewConnector creates a connector for the given provider
func NewConnector(db Queryer, provider string) (Connector, error) {
	switch provider {
	case "postgresql", "postgres":
		return &PostgresConnector{db: db}, nil
	case "mysql":
		return &MySQLConnector{db: db}, nil
	case "sqlite", "sqlite3":
		return &SQLiteConnector{db: db}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// skipTable reports tables that belong to the engine or the database itself.
func skipTable(name string) bool {
	return name == MigrationTableName || name == "sqlite_sequence"
}

// sortByKeySeq orders primary key columns by their key position.
func sortByKeySeq(cols []keyColumn) []string {
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].seq < cols[j].seq })
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

func sortIndexes(indexes []Index) {
	sort.SliceStable(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
}

func sortForeignKeys(fks []ForeignKey) {
	sort.SliceStable(fks, func(i, j int) bool {
		return strings.Join(fks[i].Columns, ",") < strings.Join(fks[j].Columns, ",")
	})
}

type keyColumn struct {
	name string
	seq  int
}

// collect reads all rows using scan and closes rows.
func collect(rows *sql.Rows, scan func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
