package client

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/prisma-engines-go/runtime"
)

const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"

	mysqlDuplicateEntry = 1062
	mysqlBadNull        = 1048
)

var (
	// Key (email)=(a@b.c) already exists.
	pgKeyDetail = regexp.MustCompile(`Key \(([^)]+)\)`)
	// Duplicate entry 'a@b.c' for key 'User.User.email._UNIQUE'
	mysqlKey = regexp.MustCompile(`for key '([^']+)'`)
	// Column 'title' cannot be null
	mysqlColumn = regexp.MustCompile(`Column '([^']+)'`)
)

// TranslateError maps driver constraint errors onto the runtime error
// types. Other errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &runtime.UniqueConstraintViolation{Field: sqliteField(sqliteErr.Error())}
		case sqlite3.ErrConstraintNotNull:
			return &runtime.FieldCannotBeNull{Field: sqliteField(sqliteErr.Error())}
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return &runtime.UniqueConstraintViolation{Field: postgresKey(pqErr.Detail, pqErr.Constraint)}
		case pgNotNullViolation:
			return &runtime.FieldCannotBeNull{Field: pqErr.Column}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &runtime.UniqueConstraintViolation{Field: postgresKey(pgErr.Detail, pgErr.ConstraintName)}
		case pgNotNullViolation:
			return &runtime.FieldCannotBeNull{Field: pgErr.ColumnName}
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return &runtime.UniqueConstraintViolation{Field: firstMatch(mysqlKey, myErr.Message)}
		case mysqlBadNull:
			return &runtime.FieldCannotBeNull{Field: firstMatch(mysqlColumn, myErr.Message)}
		}
	}
	return err
}

// sqliteField reads the column out of "UNIQUE constraint failed: User.email".
// Composite constraints report their first column.
func sqliteField(msg string) string {
	i := strings.LastIndex(msg, ": ")
	if i < 0 {
		return ""
	}
	first := strings.TrimSpace(strings.Split(msg[i+2:], ",")[0])
	if j := strings.LastIndex(first, "."); j >= 0 {
		return first[j+1:]
	}
	return first
}

func postgresKey(detail, constraint string) string {
	if key := firstMatch(pgKeyDetail, detail); key != "" {
		return key
	}
	return constraint
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
