// Package executor runs write query sets and record reads against a
// database/sql pool.
package executor

import (
	"context"
	"database/sql"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/builder"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/runtime"
	"github.com/satishbabariya/prisma-engines-go/runtime/client"
)

// Executor executes queries for one schema.
type Executor struct {
	db     *sql.DB
	schema *models.Schema
	gen    sqlgen.Generator
	hooks  client.Hooks
}

// New creates an executor. Every statement is logged and its driver errors
// are translated into runtime errors.
func New(db *sql.DB, provider string, schema *models.Schema) *Executor {
	e := &Executor{
		db:     db,
		schema: schema,
		gen:    sqlgen.NewGenerator(provider),
	}
	e.hooks.Use(client.ErrorMiddleware(), client.LoggingMiddleware())
	return e
}

// Use appends statement middleware.
func (e *Executor) Use(mw ...client.Middleware) {
	e.hooks.Use(mw...)
}

// Schema returns the schema the executor was built for.
func (e *Executor) Schema() *models.Schema {
	return e.schema
}

// WriteResult is the outcome of a write: the id of the record written by
// the base tree, or the number of records touched by a bulk write.
type WriteResult struct {
	Model *models.Model
	ID    interface{}
	Count int64
}

// ExecuteWrite runs set in one transaction. The Self tree of a Dependents
// runs first and its id is written into the rest of the chain before it
// runs.
func (e *Executor) ExecuteWrite(ctx context.Context, set ast.WriteQuerySet) (*WriteResult, error) {
	var result *WriteResult
	err := client.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		c := e.conn(tx)
		for {
			switch s := set.(type) {
			case *ast.Dependents:
				res, err := c.execute(ctx, &s.Self)
				if err != nil {
					return err
				}
				next, err := builder.EvalPartial(s, res.ID)
				if err != nil {
					return err
				}
				set = next
			case *ast.Single:
				res, err := c.execute(ctx, &s.Tree)
				result = res
				return err
			default:
				return runtime.NewInternalError("unsupported write query set %T", set)
			}
		}
	})
	if err != nil {
		debug.Failure("failed to execute write", err)
		return nil, err
	}
	return result, nil
}

func (c *conn) execute(ctx context.Context, tree *ast.WriteQueryTree) (*WriteResult, error) {
	model := tree.Root.TargetModel()
	debug.Debug("executing write", "name", tree.Name, "model", model.Name)

	res := &WriteResult{Model: model}
	switch r := tree.Root.(type) {
	case *ast.CreateRecord:
		id, err := c.createRecord(ctx, r.Model, r.Args, r.ListArgs, &r.Nested)
		res.ID = id
		return res, err

	case *ast.UpdateRecord:
		id, err := c.idOf(ctx, r.Where)
		if err != nil {
			return nil, err
		}
		res.ID, err = c.updateRecord(ctx, r.Model, id, r.Args, r.ListArgs, &r.Nested)
		return res, err

	case *ast.UpsertRecord:
		id, found, err := c.findID(ctx, r.Where)
		if err != nil {
			return nil, err
		}
		if found {
			res.ID, err = c.updateRecord(ctx, r.Model, id, r.Update.Args, r.Update.ListArgs, &r.Update.Nested)
		} else {
			res.ID, err = c.createRecord(ctx, r.Model, r.Create.Args, r.Create.ListArgs, &r.Create.Nested)
		}
		return res, err

	case *ast.DeleteRecord:
		id, err := c.idOf(ctx, r.Where)
		if err != nil {
			return nil, err
		}
		res.ID = id
		return res, c.deleteRecord(ctx, r.Model, id)

	case *ast.UpdateManyRecords:
		ids, err := c.matching(ctx, r.Model, r.Filter)
		if err != nil {
			return nil, err
		}
		res.Count, err = c.updateIDs(ctx, r.Model, ids, r.Args, r.ListArgs)
		return res, err

	case *ast.DeleteManyRecords:
		ids, err := c.matching(ctx, r.Model, r.Filter)
		if err != nil {
			return nil, err
		}
		res.Count, err = c.deleteIDs(ctx, r.Model, ids)
		return res, err
	}
	return nil, runtime.NewInternalError("unsupported write %T", tree.Root)
}
