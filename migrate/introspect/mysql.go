package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MySQLConnector implements introspection for MySQL
type MySQLConnector struct {
	db Queryer
}

// NewMySQLConnector creates a MySQL connector on db.
func NewMySQLConnector(db Queryer) *MySQLConnector {
	return &MySQLConnector{db: db}
}

// ListSchemas returns all non-system databases.
func (c *MySQLConnector) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY schema_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	var schemas []string
	err = collect(rows, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan schema: %w", err)
		}
		schemas = append(schemas, name)
		return nil
	})
	return schemas, err
}

// Introspect reads the base tables of schemaName, defaulting to the
// connection's current database.
func (c *MySQLConnector) Introspect(ctx context.Context, schemaName string) (*DatabaseSchema, error) {
	if schemaName == "" {
		if err := c.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schemaName); err != nil {
			return nil, fmt.Errorf("%w: failed to get database name: %w", ErrIntrospectionFailed, err)
		}
	}
	tables, err := c.introspectTables(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	return &DatabaseSchema{Tables: tables}, nil
}

func (c *MySQLConnector) introspectTables(ctx context.Context, schema string) ([]Table, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	var names []string
	err = collect(rows, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		if !skipTable(name) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table := Table{Name: name}

		if table.Columns, err = c.introspectColumns(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect columns for %s: %w", name, err)
		}
		if table.PrimaryKey, table.Indexes, err = c.introspectIndexes(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect indexes for %s: %w", name, err)
		}
		if table.ForeignKeys, err = c.introspectForeignKeys(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect foreign keys for %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (c *MySQLConnector) introspectColumns(ctx context.Context, schema, table string) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ?
		  AND table_name = ?
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	var columns []Column
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			name, columnType, isNullable, extra string
			dflt                                sql.NullString
		)
		if err := rows.Scan(&name, &columnType, &isNullable, &dflt, &extra); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		tpe, err := mysqlColumnType(columnType)
		if err != nil {
			return fmt.Errorf("column %s.%s: %w", table, name, err)
		}

		col := Column{Name: name, Type: tpe, Arity: Required}
		if isNullable == "YES" {
			col.Arity = Nullable
		}
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if dflt.Valid {
			v := normalizeMySQLDefault(dflt.String, tpe, extra)
			col.Default = &v
		}
		columns = append(columns, col)
		return nil
	})
	return columns, err
}

// introspectIndexes reads information_schema.statistics. The PRIMARY index
// becomes the primary key, ordered by SEQ_IN_INDEX.
func (c *MySQLConnector) introspectIndexes(ctx context.Context, schema, table string) (*PrimaryKey, []Index, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT index_name, column_name, seq_in_index, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND table_name = ?
		ORDER BY index_name, seq_in_index
	`, schema, table)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var (
		pkKeys  []keyColumn
		indexes []Index
	)
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			name, column string
			seq          int
			nonUnique    int
		)
		if err := rows.Scan(&name, &column, &seq, &nonUnique); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		if name == "PRIMARY" {
			pkKeys = append(pkKeys, keyColumn{name: column, seq: seq})
			return nil
		}
		if n := len(indexes); n > 0 && indexes[n-1].Name == name {
			indexes[n-1].Columns = append(indexes[n-1].Columns, column)
			return nil
		}
		indexes = append(indexes, Index{Name: name, Unique: nonUnique == 0, Columns: []string{column}})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var pk *PrimaryKey
	if len(pkKeys) > 0 {
		pk = &PrimaryKey{Columns: sortByKeySeq(pkKeys)}
	}
	return pk, indexes, nil
}

func (c *MySQLConnector) introspectForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT kcu.constraint_name, kcu.column_name, kcu.referenced_table_name,
			kcu.referenced_column_name, rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON kcu.constraint_name = rc.constraint_name
			AND kcu.constraint_schema = rc.constraint_schema
		WHERE kcu.table_schema = ?
		  AND kcu.table_name = ?
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	var fks []ForeignKey
	err = collect(rows, func(rows *sql.Rows) error {
		var name, column, refTable, refColumn, onDelete string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &onDelete); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if n := len(fks); n > 0 && fks[n-1].Name == name {
			fks[n-1].Columns = append(fks[n-1].Columns, column)
			fks[n-1].ReferencedColumns = append(fks[n-1].ReferencedColumns, refColumn)
			return nil
		}
		fks = append(fks, ForeignKey{
			Name:              name,
			Columns:           []string{column},
			ReferencedTable:   refTable,
			ReferencedColumns: []string{refColumn},
			OnDelete:          NormalizeAction(onDelete),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortForeignKeys(fks)
	return fks, nil
}

// normalizeMySQLDefault re-quotes string defaults, which information_schema
// reports without quotes, so they compare equal to rendered DDL.
func normalizeMySQLDefault(def string, tpe ColumnType, extra string) string {
	if strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED") {
		upper := strings.ToUpper(def)
		if strings.HasPrefix(upper, "CURRENT_TIMESTAMP") {
			return "CURRENT_TIMESTAMP"
		}
		return def
	}
	switch tpe.Family {
	case FamilyString, FamilyEnum, FamilyDateTime, FamilyJSON:
		if strings.HasPrefix(strings.ToUpper(def), "CURRENT_TIMESTAMP") {
			return "CURRENT_TIMESTAMP"
		}
		return "'" + strings.ReplaceAll(def, "'", "''") + "'"
	}
	return def
}
