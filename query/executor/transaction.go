package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/runtime/client"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// conn runs statements on a pool or inside a transaction.
type conn struct {
	*Executor
	q queryer
}

func (e *Executor) conn(q queryer) *conn {
	return &conn{Executor: e, q: q}
}

func (c *conn) build(stmt sqlgen.Statement) (*sqlgen.Query, error) {
	query, err := c.gen.Build(stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}
	return query, nil
}

func (c *conn) exec(ctx context.Context, stmt sqlgen.Statement) (sql.Result, error) {
	query, err := c.build(stmt)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	err = c.hooks.Run(ctx, query.SQL, query.Args, func() error {
		var err error
		res, err = c.q.ExecContext(ctx, query.SQL, query.Args...)
		return err
	})
	return res, err
}

func (c *conn) query(ctx context.Context, stmt sqlgen.Statement) ([]client.Row, error) {
	query, err := c.build(stmt)
	if err != nil {
		return nil, err
	}
	var out []client.Row
	err = c.hooks.Run(ctx, query.SQL, query.Args, func() error {
		rows, err := c.q.QueryContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = client.ScanRows(rows)
		return err
	})
	return out, err
}

// values returns the first column of every row.
func (c *conn) values(ctx context.Context, stmt sqlgen.Statement) ([]interface{}, error) {
	query, err := c.build(stmt)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	err = c.hooks.Run(ctx, query.SQL, query.Args, func() error {
		rows, err := c.q.QueryContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v interface{}
			if err := rows.Scan(&v); err != nil {
				return err
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	return out, err
}
