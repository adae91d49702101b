package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// createRecord inserts a record and runs its nested writes. Nested creates
// the new row references through its own foreign key are inserted first.
func (c *conn) createRecord(ctx context.Context, model *models.Model, args ast.Args, lists ast.ListArgs, nested *ast.NestedWriteQueries) (interface{}, error) {
	args = copyArgs(args)

	rest := *nested
	rest.Creates = nil
	for _, nc := range nested.Creates {
		if !nc.RelationField.IsInlinedInParent() {
			rest.Creates = append(rest.Creates, nc)
			continue
		}
		childID, err := c.createRecord(ctx, nc.Model, nc.Args, nc.ListArgs, &nc.Nested)
		if err != nil {
			return nil, err
		}
		args[nc.RelationField.Name] = childID
	}

	id, err := c.insert(ctx, model, args, lists)
	if err != nil {
		return nil, err
	}
	if err := c.nested(ctx, id, &rest); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *conn) insert(ctx context.Context, model *models.Model, args ast.Args, lists ast.ListArgs) (interface{}, error) {
	var (
		idField = model.IDField()
		now     = time.Now().UTC()
		columns []string
		values  []interface{}
		id      interface{}
	)

	for _, f := range model.ColumnFields() {
		v, ok := args[f.Name]
		if !ok {
			v, ok = generatedValue(f, now)
		}
		if !ok {
			continue
		}
		columns = append(columns, f.ColumnName())
		values = append(values, v)
		if f.IsID {
			id = v
		}
	}
	for _, rf := range model.InlineRelationFields() {
		v, ok := args[rf.Name]
		if !ok {
			continue
		}
		v, err := c.resolve(ctx, v)
		if err != nil {
			return nil, err
		}
		columns = append(columns, foreignKey(rf))
		values = append(values, v)
	}

	ins := &sqlgen.Insert{Table: model.Table(), Columns: columns, Values: values, Returning: []string{idField.ColumnName()}}
	switch {
	case id != nil:
		if _, err := c.exec(ctx, ins); err != nil {
			return nil, err
		}
	case c.gen.SupportsReturning():
		rows, err := c.values(ctx, ins)
		if err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, runtime.NewInternalError("insert into %s returned %d rows", model.Table(), len(rows))
		}
		id = rows[0]
	default:
		res, err := c.exec(ctx, ins)
		if err != nil {
			return nil, err
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read generated id of %s: %w", model.Name, err)
		}
	}

	for _, f := range model.ListFields() {
		if items, ok := lists[f.Name]; ok {
			if err := c.writeList(ctx, f, id, items, false); err != nil {
				return nil, err
			}
		}
	}
	return id, nil
}

// generatedValue returns the value the engine generates for a field left
// out of a create. Autoincrement ids and static defaults are left to the
// database.
func generatedValue(f *models.ScalarField, now time.Time) (interface{}, bool) {
	if f.Default != nil {
		switch f.Default.Function {
		case datamodel.FuncCUID:
			return ksuid.New().String(), true
		case datamodel.FuncUUID:
			return uuid.NewString(), true
		case datamodel.FuncNow:
			return now, true
		}
	}
	if f.IsCreatedAt || f.IsUpdatedAt {
		return now, true
	}
	return nil, false
}

// updateRecord updates one record and runs its nested writes. It returns
// the record's id, which the update may have changed.
func (c *conn) updateRecord(ctx context.Context, model *models.Model, id interface{}, args ast.Args, lists ast.ListArgs, nested *ast.NestedWriteQueries) (interface{}, error) {
	if _, err := c.updateIDs(ctx, model, []interface{}{id}, args, lists); err != nil {
		return nil, err
	}
	if v, ok := args[model.IDField().Name]; ok && v != nil {
		id = v
	}
	if err := c.nested(ctx, id, nested); err != nil {
		return nil, err
	}
	return id, nil
}

// updateIDs applies args and lists to every record in ids.
func (c *conn) updateIDs(ctx context.Context, model *models.Model, ids []interface{}, args ast.Args, lists ast.ListArgs) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var set []sqlgen.Assignment
	if len(args) > 0 || len(lists) > 0 {
		now := time.Now().UTC()
		for _, f := range model.ColumnFields() {
			if v, ok := args[f.Name]; ok {
				set = append(set, sqlgen.Assignment{Column: f.ColumnName(), Value: v})
			} else if f.IsUpdatedAt {
				set = append(set, sqlgen.Assignment{Column: f.ColumnName(), Value: now})
			}
		}
	}
	for _, rf := range model.InlineRelationFields() {
		v, ok := args[rf.Name]
		if !ok {
			continue
		}
		v, err := c.resolve(ctx, v)
		if err != nil {
			return 0, err
		}
		set = append(set, sqlgen.Assignment{Column: foreignKey(rf), Value: v})
	}

	if len(set) > 0 {
		upd := &sqlgen.Update{
			Table: model.Table(),
			Set:   set,
			Where: sqlgen.In{Column: sqlgen.Col("", model.IDField().ColumnName()), Values: ids},
		}
		if _, err := c.exec(ctx, upd); err != nil {
			return 0, err
		}
	}

	for _, f := range model.ListFields() {
		values, ok := lists[f.Name]
		if !ok {
			continue
		}
		for _, id := range ids {
			if err := c.writeList(ctx, f, id, values, true); err != nil {
				return 0, err
			}
		}
	}
	return int64(len(ids)), nil
}

// deleteRecord deletes one record after checking no related record
// requires it. Links to it are removed first.
func (c *conn) deleteRecord(ctx context.Context, model *models.Model, id interface{}) error {
	for _, rf := range model.RelationFields {
		if !rf.RelatedField().IsRequired {
			continue
		}
		linked, err := c.linked(ctx, rf, id, nil)
		if err != nil {
			return err
		}
		if len(linked) > 0 {
			return violation(rf)
		}
	}

	for _, rf := range model.RelationFields {
		if rf.IsInlinedInParent() {
			continue
		}
		if err := c.removeByParent(ctx, rf, id); err != nil {
			return err
		}
	}
	for _, f := range model.ListFields() {
		del := &sqlgen.Delete{Table: f.ScalarListTable(), Where: sqlgen.Equals(sqlgen.Col("", converter.ScalarListNodeID), id)}
		if _, err := c.exec(ctx, del); err != nil {
			return err
		}
	}

	del := &sqlgen.Delete{Table: model.Table(), Where: sqlgen.Equals(sqlgen.Col("", model.IDField().ColumnName()), id)}
	_, err := c.exec(ctx, del)
	return err
}

func (c *conn) deleteIDs(ctx context.Context, model *models.Model, ids []interface{}) (int64, error) {
	for _, id := range ids {
		if err := c.deleteRecord(ctx, model, id); err != nil {
			return 0, err
		}
	}
	return int64(len(ids)), nil
}

// writeList stores the values of a scalar list field, replacing the
// current ones when replace is set.
func (c *conn) writeList(ctx context.Context, f *models.ScalarField, id interface{}, values []interface{}, replace bool) error {
	if replace {
		del := &sqlgen.Delete{Table: f.ScalarListTable(), Where: sqlgen.Equals(sqlgen.Col("", converter.ScalarListNodeID), id)}
		if _, err := c.exec(ctx, del); err != nil {
			return err
		}
	}
	for i, v := range values {
		ins := &sqlgen.Insert{
			Table:   f.ScalarListTable(),
			Columns: []string{converter.ScalarListNodeID, converter.ScalarListPosition, converter.ScalarListValue},
			Values:  []interface{}{id, i, v},
		}
		if _, err := c.exec(ctx, ins); err != nil {
			return err
		}
	}
	return nil
}

// resolve turns a NodeSelector argument into the id it selects.
func (c *conn) resolve(ctx context.Context, v interface{}) (interface{}, error) {
	if sel, ok := v.(ast.NodeSelector); ok {
		return c.idOf(ctx, sel)
	}
	return v, nil
}

// idOf returns the id of the record sel selects.
func (c *conn) idOf(ctx context.Context, sel ast.NodeSelector) (interface{}, error) {
	id, found, err := c.findID(ctx, sel)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &runtime.NodeNotFoundForWhere{Model: sel.Field.Model().Name, Field: sel.Field.Name, Value: sel.Value}
	}
	return id, nil
}

func (c *conn) findID(ctx context.Context, sel ast.NodeSelector) (interface{}, bool, error) {
	ids, err := c.matching(ctx, sel.Field.Model(), sel.Filter())
	if err != nil || len(ids) == 0 {
		return nil, false, err
	}
	return ids[0], true, nil
}

// matching returns the ids of the records of model matching f.
func (c *conn) matching(ctx context.Context, model *models.Model, f filter.Filter) ([]interface{}, error) {
	return c.values(ctx, idsMatching(model, f))
}

func idsMatching(model *models.Model, f filter.Filter) *sqlgen.Select {
	alias := filter.Root.String()
	return &sqlgen.Select{
		Table:   model.Table(),
		Alias:   alias,
		Columns: []sqlgen.Column{sqlgen.Col(alias, model.IDField().ColumnName())},
		Where:   filter.Compile(f, filter.Root),
	}
}

func copyArgs(args ast.Args) ast.Args {
	out := make(ast.Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func sameID(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
