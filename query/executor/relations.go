package executor

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Links are read and written through the relation's table: the table of
// the model holding the foreign key for inline relations, or the link table.
// RelationColumn identifies the parent record and OppositeColumn the child.

func foreignKey(rf *models.RelationField) string {
	col, _ := rf.Relation().InlineColumn()
	return col
}

// parentHoldsKey reports whether the parent row stores the foreign key.
func parentHoldsKey(rf *models.RelationField) bool {
	return rf.IsInlinedInParent()
}

// childHoldsKey reports whether the child row stores the foreign key.
func childHoldsKey(rf *models.RelationField) bool {
	return rf.RelatedField().IsInlinedInParent()
}

func parentCol(rf *models.RelationField) sqlgen.Column { return sqlgen.Col("", rf.RelationColumn()) }
func childCol(rf *models.RelationField) sqlgen.Column  { return sqlgen.Col("", rf.OppositeColumn()) }

func notNull(col sqlgen.Column) sqlgen.Condition {
	return sqlgen.IsNull{Column: col, Negated: true}
}

// linked returns the ids of the records linked to parentID through rf.
// A non-nil f restricts them to the related records it matches.
func (c *conn) linked(ctx context.Context, rf *models.RelationField, parentID interface{}, f filter.Filter) ([]interface{}, error) {
	where := sqlgen.And{sqlgen.Equals(parentCol(rf), parentID), notNull(childCol(rf))}
	if f != nil {
		where = append(where, sqlgen.InSelect{Column: childCol(rf), Select: idsMatching(rf.RelatedModel(), f)})
	}
	return c.values(ctx, &sqlgen.Select{
		Table:   rf.Relation().Table(),
		Columns: []sqlgen.Column{childCol(rf)},
		Where:   where,
	})
}

// parents returns the ids of the records childID is linked to through rf.
func (c *conn) parents(ctx context.Context, rf *models.RelationField, childID interface{}) ([]interface{}, error) {
	return c.values(ctx, &sqlgen.Select{
		Table:   rf.Relation().Table(),
		Columns: []sqlgen.Column{parentCol(rf)},
		Where:   sqlgen.And{sqlgen.Equals(childCol(rf), childID), notNull(parentCol(rf))},
	})
}

func (c *conn) connected(ctx context.Context, rf *models.RelationField, parentID, childID interface{}) (bool, error) {
	ids, err := c.values(ctx, &sqlgen.Select{
		Table:   rf.Relation().Table(),
		Columns: []sqlgen.Column{childCol(rf)},
		Where:   sqlgen.And{sqlgen.Equals(parentCol(rf), parentID), sqlgen.Equals(childCol(rf), childID)},
	})
	return len(ids) > 0, err
}

// link connects parentID and childID. For inline relations the foreign key
// is overwritten, which also drops the previous link of the row holding it.
func (c *conn) link(ctx context.Context, rf *models.RelationField, parentID, childID interface{}) error {
	rel := rf.Relation()
	switch m := rel.Manifestation.(type) {
	case models.Inline:
		upd := &sqlgen.Update{Table: rel.Table()}
		if parentHoldsKey(rf) {
			upd.Set = []sqlgen.Assignment{{Column: m.ReferencingColumn, Value: childID}}
			upd.Where = sqlgen.Equals(parentCol(rf), parentID)
		} else {
			upd.Set = []sqlgen.Assignment{{Column: m.ReferencingColumn, Value: parentID}}
			upd.Where = sqlgen.Equals(childCol(rf), childID)
		}
		_, err := c.exec(ctx, upd)
		return err

	case models.RelationTable:
		ins := &sqlgen.Insert{
			Table:   m.Table,
			Columns: []string{rf.RelationColumn(), rf.OppositeColumn()},
			Values:  []interface{}{parentID, childID},
		}
		if m.IDColumn != "" {
			ins.Columns = append(ins.Columns, m.IDColumn)
			ins.Values = append(ins.Values, ksuid.New().String())
		}
		_, err := c.exec(ctx, ins)
		return err
	}
	return runtime.NewInternalError("relation %s has no manifestation", rel.Name)
}

// unlinkWhere removes the links matching cond.
func (c *conn) unlinkWhere(ctx context.Context, rf *models.RelationField, cond sqlgen.Condition) error {
	rel := rf.Relation()
	var stmt sqlgen.Statement
	switch m := rel.Manifestation.(type) {
	case models.Inline:
		stmt = &sqlgen.Update{
			Table: rel.Table(),
			Set:   []sqlgen.Assignment{{Column: m.ReferencingColumn, Value: nil}},
			Where: cond,
		}
	case models.RelationTable:
		stmt = &sqlgen.Delete{Table: m.Table, Where: cond}
	default:
		return runtime.NewInternalError("relation %s has no manifestation", rel.Name)
	}
	_, err := c.exec(ctx, stmt)
	return err
}

func (c *conn) unlink(ctx context.Context, rf *models.RelationField, parentID, childID interface{}) error {
	return c.unlinkWhere(ctx, rf, sqlgen.And{sqlgen.Equals(parentCol(rf), parentID), sqlgen.Equals(childCol(rf), childID)})
}

// removeByParent drops every link of parentID.
func (c *conn) removeByParent(ctx context.Context, rf *models.RelationField, parentID interface{}) error {
	return c.unlinkWhere(ctx, rf, sqlgen.Equals(parentCol(rf), parentID))
}

// removeByChild drops every link of childID.
func (c *conn) removeByChild(ctx context.Context, rf *models.RelationField, childID interface{}) error {
	return c.unlinkWhere(ctx, rf, sqlgen.Equals(childCol(rf), childID))
}

func violation(rf *models.RelationField) error {
	rel := rf.Relation()
	return &runtime.RelationViolation{Relation: rel.Name, ModelA: rel.ModelA, ModelB: rel.ModelB}
}

func notConnected(rf *models.RelationField, parentID interface{}, where *ast.NodeSelector) error {
	err := &runtime.NodesNotConnected{
		Relation:    rf.RelationName,
		ParentModel: rf.Model().Name,
		ParentWhere: &runtime.RecordFinder{Field: rf.Model().IDField().Name, Value: parentID},
		ChildModel:  rf.RelatedModel().Name,
	}
	if where != nil {
		err.ChildWhere = &runtime.RecordFinder{Field: where.Field.Name, Value: where.Value}
	}
	return err
}

// checkForOldChild fails when parentID is linked to a record other than
// childID whose own side of the relation is required.
func (c *conn) checkForOldChild(ctx context.Context, rf *models.RelationField, parentID, childID interface{}) error {
	ids, err := c.linked(ctx, rf, parentID, nil)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if childID == nil || !sameID(id, childID) {
			return violation(rf)
		}
	}
	return nil
}

// checkForOldParentByChild fails when childID is already linked to a parent
// other than parentID.
func (c *conn) checkForOldParentByChild(ctx context.Context, rf *models.RelationField, parentID, childID interface{}) error {
	ids, err := c.parents(ctx, rf, childID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !sameID(id, parentID) {
			return violation(rf)
		}
	}
	return nil
}

// nestedTarget finds the child a nested update or delete acts on: the
// linked record of a to-one relation, or the record where selects, which
// must be linked to parentID.
func (c *conn) nestedTarget(ctx context.Context, rf *models.RelationField, parentID interface{}, where *ast.NodeSelector) (interface{}, error) {
	if where == nil {
		ids, err := c.linked(ctx, rf, parentID, nil)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, notConnected(rf, parentID, nil)
		}
		return ids[0], nil
	}

	childID, err := c.idOf(ctx, *where)
	if err != nil {
		return nil, err
	}
	ok, err := c.connected(ctx, rf, parentID, childID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notConnected(rf, parentID, where)
	}
	return childID, nil
}
