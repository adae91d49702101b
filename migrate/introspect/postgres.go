package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// PostgresConnector implements introspection for PostgreSQL
type PostgresConnector struct {
	db Queryer
}

// NewPostgresConnector creates a PostgreSQL connector on db.
func NewPostgresConnector(db Queryer) *PostgresConnector {
	return &PostgresConnector{db: db}
}

// ListSchemas returns all non-system schemas.
func (c *PostgresConnector) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE left(schema_name, 3) <> 'pg_'
		  AND schema_name <> 'information_schema'
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

// Introspect reads the base tables of schemaName ("public" by default).
func (c *PostgresConnector) Introspect(ctx context.Context, schemaName string) (*DatabaseSchema, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	tables, err := c.introspectTables(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	return &DatabaseSchema{Tables: tables}, nil
}

func (c *PostgresConnector) introspectTables(ctx context.Context, schema string) ([]Table, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
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
		if table.PrimaryKey, err = c.introspectPrimaryKey(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect primary key for %s: %w", name, err)
		}
		if table.Indexes, err = c.introspectIndexes(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect indexes for %s: %w", name, err)
		}
		if table.ForeignKeys, err = c.introspectForeignKeys(ctx, schema, name); err != nil {
			return nil, fmt.Errorf("failed to introspect foreign keys for %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (c *PostgresConnector) introspectColumns(ctx context.Context, schema, table string) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable, column_default, is_identity
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}

	var columns []Column
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			name, dataType, udtName, isNullable, isIdentity string
			dflt                                            sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &udtName, &isNullable, &dflt, &isIdentity); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		tpe, err := postgresColumnType(dataType, udtName)
		if err != nil {
			return fmt.Errorf("column %s.%s: %w", table, name, err)
		}

		col := Column{Name: name, Type: tpe, Arity: Required}
		if isNullable == "YES" {
			col.Arity = Nullable
		}
		if udtName != "" && strings.HasPrefix(udtName, "_") {
			col.Arity = List
		}
		switch {
		case isIdentity == "YES":
			col.AutoIncrement = true
		case dflt.Valid && strings.Contains(strings.ToLower(dflt.String), "nextval("):
			col.AutoIncrement = true
		case dflt.Valid && dflt.String != "":
			v := normalizePostgresDefault(dflt.String)
			col.Default = &v
		}
		columns = append(columns, col)
		return nil
	})
	return columns, err
}

func (c *PostgresConnector) introspectPrimaryKey(ctx context.Context, schema, table string) (*PrimaryKey, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary key: %w", err)
	}

	var keys []keyColumn
	err = collect(rows, func(rows *sql.Rows) error {
		var k keyColumn
		if err := rows.Scan(&k.name, &k.seq); err != nil {
			return fmt.Errorf("failed to scan primary key column: %w", err)
		}
		keys = append(keys, k)
		return nil
	})
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return &PrimaryKey{Columns: sortByKeySeq(keys)}, nil
}

func (c *PostgresConnector) introspectIndexes(ctx context.Context, schema, table string) ([]Index, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT i.relname, ix.indisunique, a.attname,
			array_position(ix.indkey::int2[], a.attnum) AS pos
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, pos
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var indexes []Index
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			name, column string
			unique       bool
			pos          int
		)
		if err := rows.Scan(&name, &unique, &column, &pos); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		if n := len(indexes); n > 0 && indexes[n-1].Name == name {
			indexes[n-1].Columns = append(indexes[n-1].Columns, column)
			return nil
		}
		indexes = append(indexes, Index{Name: name, Unique: unique, Columns: []string{column}})
		return nil
	})
	return indexes, err
}

var postgresDeleteActions = map[string]string{
	"a": ActionNoAction,
	"r": ActionRestrict,
	"c": ActionCascade,
	"n": ActionSetNull,
	"d": "SET DEFAULT",
}

func (c *PostgresConnector) introspectForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT con.conname, att.attname, ref.relname, refatt.attname, con.confdeltype::text
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cl.relnamespace
		JOIN pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(attnum, refattnum, ord)
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
		JOIN pg_attribute refatt ON refatt.attrelid = con.confrelid AND refatt.attnum = u.refattnum
		WHERE con.contype = 'f'
		  AND ns.nspname = $1
		  AND cl.relname = $2
		ORDER BY con.conname, u.ord
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
			OnDelete:          NormalizeAction(postgresDeleteActions[onDelete]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortForeignKeys(fks)
	return fks, nil
}

var castSuffix = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_ ."\[\]()]*$`)

// normalizePostgresDefault strips type casts and maps now() onto
// CURRENT_TIMESTAMP so defaults compare equal to the rendered DDL.
func normalizePostgresDefault(def string) string {
	def = strings.TrimSpace(def)
	for castSuffix.MatchString(def) {
		def = castSuffix.ReplaceAllString(def, "")
	}
	if strings.HasPrefix(def, "(") && strings.HasSuffix(def, ")") {
		def = strings.TrimSuffix(strings.TrimPrefix(def, "("), ")")
	}
	switch strings.ToLower(def) {
	case "now()", "current_timestamp", "current_timestamp(3)":
		return "CURRENT_TIMESTAMP"
	}
	return def
}
