package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteConnector implements introspection for SQLite
type SQLiteConnector struct {
	db Queryer
}

// NewSQLiteConnector creates a SQLite connector on db.
func NewSQLiteConnector(db Queryer) *SQLiteConnector {
	return &SQLiteConnector{db: db}
}

// ListSchemas returns the attached databases.
func (c *SQLiteConnector) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	var schemas []string
	err = collect(rows, func(rows *sql.Rows) error {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return fmt.Errorf("failed to scan database: %w", err)
		}
		schemas = append(schemas, name)
		return nil
	})
	return schemas, err
}

// Introspect reads the tables of an attached database ("main" by default).
func (c *SQLiteConnector) Introspect(ctx context.Context, schemaName string) (*DatabaseSchema, error) {
	if schemaName == "" {
		schemaName = "main"
	}
	tables, err := c.introspectTables(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	return &DatabaseSchema{Tables: tables}, nil
}

func (c *SQLiteConnector) introspectTables(ctx context.Context, schema string) ([]Table, error) {
	query := fmt.Sprintf(`
		SELECT name, COALESCE(sql, '')
		FROM %s.sqlite_master
		WHERE type = 'table'
		  AND substr(name, 1, 7) <> 'sqlite_'
		ORDER BY name
	`, quote(schema))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	type entry struct{ name, ddl string }
	var entries []entry
	err = collect(rows, func(rows *sql.Rows) error {
		var e entry
		if err := rows.Scan(&e.name, &e.ddl); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		if !skipTable(e.name) {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(entries))
	for _, e := range entries {
		table, err := c.introspectTable(ctx, schema, e.name, e.ddl)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (c *SQLiteConnector) introspectTable(ctx context.Context, schema, name, ddl string) (Table, error) {
	table := Table{Name: name}

	columns, pk, err := c.introspectColumns(ctx, schema, name, ddl)
	if err != nil {
		return table, fmt.Errorf("failed to introspect columns for %s: %w", name, err)
	}
	table.Columns = columns
	table.PrimaryKey = pk

	indexes, err := c.introspectIndexes(ctx, schema, name)
	if err != nil {
		return table, fmt.Errorf("failed to introspect indexes for %s: %w", name, err)
	}
	table.Indexes = indexes

	fks, err := c.introspectForeignKeys(ctx, schema, name)
	if err != nil {
		return table, fmt.Errorf("failed to introspect foreign keys for %s: %w", name, err)
	}
	table.ForeignKeys = fks

	return table, nil
}

// introspectColumns reads PRAGMA table_info. The pk column holds the 1-based
// position of the column inside the primary key.
func (c *SQLiteConnector) introspectColumns(ctx context.Context, schema, table, ddl string) ([]Column, *PrimaryKey, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.table_info(%s)", quote(schema), quote(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query columns: %w", err)
	}

	var (
		columns []Column
		keys    []keyColumn
	)
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pkSeq     int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pkSeq); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		tpe, err := sqliteColumnType(colType)
		if err != nil {
			return fmt.Errorf("column %s.%s: %w", table, name, err)
		}

		col := Column{Name: name, Type: tpe, Arity: Nullable}
		if notNull != 0 || pkSeq > 0 {
			col.Arity = Required
		}
		if dfltValue.Valid && dfltValue.String != "" {
			v := dfltValue.String
			col.Default = &v
		}
		if pkSeq > 0 {
			keys = append(keys, keyColumn{name: name, seq: pkSeq})
		}
		columns = append(columns, col)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var pk *PrimaryKey
	if len(keys) > 0 {
		pk = &PrimaryKey{Columns: sortByKeySeq(keys)}
	}

	// AUTOINCREMENT is only legal on a single INTEGER PRIMARY KEY column and
	// is only visible in the stored CREATE TABLE statement.
	if pk != nil && len(pk.Columns) == 1 && autoIncrementColumn(ddl, pk.Columns[0]) {
		for i := range columns {
			if columns[i].Name == pk.Columns[0] && columns[i].Type.Family == FamilyInt {
				columns[i].AutoIncrement = true
			}
		}
	}

	return columns, pk, nil
}

// introspectIndexes reads user created indexes. Automatic indexes backing
// primary keys and inline UNIQUE constraints are skipped.
func (c *SQLiteConnector) introspectIndexes(ctx context.Context, schema, table string) ([]Index, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.index_list(%s)", quote(schema), quote(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var indexes []Index
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			seq     int
			idx     Index
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &idx.Name, &unique, &origin, &partial); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		if origin != "c" {
			return nil
		}
		idx.Unique = unique == 1
		indexes = append(indexes, idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range indexes {
		cols, err := c.indexColumns(ctx, schema, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}
	sortIndexes(indexes)
	return indexes, nil
}

func (c *SQLiteConnector) indexColumns(ctx context.Context, schema, index string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.index_info(%s)", quote(schema), quote(index)))
	if err != nil {
		return nil, fmt.Errorf("failed to query index columns of %s: %w", index, err)
	}
	var keys []keyColumn
	err = collect(rows, func(rows *sql.Rows) error {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return fmt.Errorf("failed to scan index column: %w", err)
		}
		if name.Valid {
			keys = append(keys, keyColumn{name: name.String, seq: seqno})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortByKeySeq(keys), nil
}

// introspectForeignKeys reads PRAGMA foreign_key_list, which returns one row
// per column; rows are grouped by constraint id.
func (c *SQLiteConnector) introspectForeignKeys(ctx context.Context, schema, table string) ([]ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.foreign_key_list(%s)", quote(schema), quote(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	var (
		order []int
		byID  = make(map[int]*ForeignKey)
	)
	err = collect(rows, func(rows *sql.Rows) error {
		var (
			id, seq                   int
			refTable, from            string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &ForeignKey{ReferencedTable: refTable, OnDelete: NormalizeAction(onDelete)}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.ReferencedColumns = append(fk.ReferencedColumns, to.String)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fks := make([]ForeignKey, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	sortForeignKeys(fks)
	return fks, nil
}

// autoIncrementColumn reports whether the definition of column in the
// CREATE TABLE statement ddl carries the AUTOINCREMENT keyword.
func autoIncrementColumn(ddl, column string) bool {
	for _, def := range tableDefinitions(ddl) {
		name, rest := leadingIdentifier(def)
		if !strings.EqualFold(name, column) {
			continue
		}
		for _, word := range strings.Fields(strings.ToUpper(blankQuoted(rest))) {
			if word == "AUTOINCREMENT" {
				return true
			}
		}
		return false
	}
	return false
}

// tableDefinitions splits the parenthesized body of a CREATE TABLE
// statement at its top-level commas.
func tableDefinitions(ddl string) []string {
	open := strings.IndexByte(ddl, '(')
	if open < 0 {
		return nil
	}
	var (
		defs  []string
		start = open + 1
		depth int
		quote byte
	)
	for i := start; i < len(ddl); i++ {
		ch := ddl[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		case ch == '(':
			depth++
		case ch == ')' && depth > 0:
			depth--
		case ch == ')' || (ch == ',' && depth == 0):
			defs = append(defs, strings.TrimSpace(ddl[start:i]))
			if ch == ')' {
				return defs
			}
			start = i + 1
		}
	}
	return defs
}

// leadingIdentifier splits def into its first identifier, unquoted, and
// the remainder.
func leadingIdentifier(def string) (string, string) {
	if def == "" {
		return "", ""
	}
	closing := byte(0)
	switch def[0] {
	case '"', '`', '\'':
		closing = def[0]
	case '[':
		closing = ']'
	}
	if closing == 0 {
		if i := strings.IndexAny(def, " \t\r\n"); i >= 0 {
			return def[:i], def[i:]
		}
		return def, ""
	}
	var name strings.Builder
	for i := 1; i < len(def); i++ {
		if def[i] != closing {
			name.WriteByte(def[i])
			continue
		}
		// doubled quotes stand for one
		if closing != ']' && i+1 < len(def) && def[i+1] == closing {
			name.WriteByte(closing)
			i++
			continue
		}
		return name.String(), def[i+1:]
	}
	return name.String(), ""
}

// blankQuoted replaces string literals and quoted identifiers with a space.
func blankQuoted(s string) string {
	var (
		out   strings.Builder
		quote byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
				out.WriteByte(' ')
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '[':
			quote = ']'
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
