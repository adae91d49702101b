package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Record is a read record keyed by field name. Scalar lists hold their
// values in order; a relation stored in the record's own table holds the
// related id.
type Record map[string]interface{}

// ReadOption customises FindMany.
type ReadOption func(*readOptions)

type readOptions struct {
	orderBy []sqlgen.OrderBy
	skip    *int
	take    *int
	err     error
}

// OrderBy sorts by a scalar field. Records are sorted by id when no order
// is given.
func OrderBy(model *models.Model, field string, desc bool) ReadOption {
	return func(o *readOptions) {
		f := model.ScalarField(field)
		if f == nil || f.IsList {
			o.err = runtime.NewValidationError("orderBy", "unknown field %q on model %s", field, model.Name)
			return
		}
		o.orderBy = append(o.orderBy, sqlgen.OrderBy{Column: sqlgen.Col(filter.Root.String(), f.ColumnName()), Desc: desc})
	}
}

// Skip drops the first n records.
func Skip(n int) ReadOption {
	return func(o *readOptions) { o.skip = &n }
}

// Take limits the result to n records.
func Take(n int) ReadOption {
	return func(o *readOptions) { o.take = &n }
}

// FindMany returns the records of model matching f.
func (e *Executor) FindMany(ctx context.Context, model *models.Model, f filter.Filter, opts ...ReadOption) ([]Record, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}
	return e.conn(e.db).findMany(ctx, model, f, &o)
}

// FindOne returns the record sel selects, or nil when there is none.
func (e *Executor) FindOne(ctx context.Context, sel ast.NodeSelector) (Record, error) {
	one := 1
	records, err := e.conn(e.db).findMany(ctx, sel.Field.Model(), sel.Filter(), &readOptions{take: &one})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (c *conn) findMany(ctx context.Context, model *models.Model, f filter.Filter, o *readOptions) ([]Record, error) {
	alias := filter.Root.String()
	sel := &sqlgen.Select{
		Table:   model.Table(),
		Alias:   alias,
		Where:   filter.Compile(f, filter.Root),
		OrderBy: o.orderBy,
		Limit:   o.take,
		Offset:  o.skip,
	}
	scalars := model.ColumnFields()
	for _, sf := range scalars {
		sel.Columns = append(sel.Columns, sqlgen.Col(alias, sf.ColumnName()))
	}
	inline := model.InlineRelationFields()
	for _, rf := range inline {
		sel.Columns = append(sel.Columns, sqlgen.Col(alias, foreignKey(rf)))
	}
	if len(sel.OrderBy) == 0 {
		sel.OrderBy = []sqlgen.OrderBy{{Column: sqlgen.Col(alias, model.IDField().ColumnName())}}
	}

	rows, err := c.query(ctx, sel)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	ids := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(scalars)+len(inline))
		for _, sf := range scalars {
			v, err := normalize(sf, row[sf.ColumnName()])
			if err != nil {
				return nil, err
			}
			rec[sf.Name] = v
		}
		for _, rf := range inline {
			rec[rf.Name] = row[foreignKey(rf)]
		}
		records = append(records, rec)
		ids = append(ids, rec[model.IDField().Name])
	}

	if len(ids) == 0 {
		return records, nil
	}
	for _, sf := range model.ListFields() {
		lists, err := c.loadList(ctx, sf, ids)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			values := lists[fmt.Sprint(rec[model.IDField().Name])]
			if values == nil {
				values = []interface{}{}
			}
			rec[sf.Name] = values
		}
	}
	return records, nil
}

// loadList reads the values of a scalar list field for ids, keyed by the
// printed id.
func (c *conn) loadList(ctx context.Context, sf *models.ScalarField, ids []interface{}) (map[string][]interface{}, error) {
	nodeID := sqlgen.Col("", converter.ScalarListNodeID)
	rows, err := c.query(ctx, &sqlgen.Select{
		Table:   sf.ScalarListTable(),
		Columns: []sqlgen.Column{nodeID, sqlgen.Col("", converter.ScalarListValue)},
		Where:   sqlgen.In{Column: nodeID, Values: ids},
		OrderBy: []sqlgen.OrderBy{{Column: nodeID}, {Column: sqlgen.Col("", converter.ScalarListPosition)}},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]interface{})
	for _, row := range rows {
		v, err := normalize(sf, row[converter.ScalarListValue])
		if err != nil {
			return nil, err
		}
		key := fmt.Sprint(row[converter.ScalarListNodeID])
		out[key] = append(out[key], v)
	}
	return out, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalize converts a driver value into the Go type of the field.
// SQLite stores booleans as integers and may return times as text.
func normalize(sf *models.ScalarField, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch sf.Type {
	case datamodel.Boolean:
		if n, ok := v.(int64); ok {
			return n != 0, nil
		}
	case datamodel.Float:
		if n, ok := v.(int64); ok {
			return float64(n), nil
		}
	case datamodel.DateTime:
		if s, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
			return nil, &runtime.ConversionError{Kind: string(sf.Type), Value: s}
		}
	}
	return v, nil
}
