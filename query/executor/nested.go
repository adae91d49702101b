package executor

import (
	"context"

	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/models"
)

// nested runs the relation writes attached to the record parentID in a
// fixed order: creates, updates, upserts, deletes, connects, sets,
// disconnects, updateManys and deleteManys.
func (c *conn) nested(ctx context.Context, parentID interface{}, nw *ast.NestedWriteQueries) error {
	if nw == nil || nw.IsEmpty() {
		return nil
	}
	for _, q := range nw.Creates {
		if err := c.nestedCreate(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Updates {
		if err := c.nestedUpdate(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Upserts {
		if err := c.nestedUpsert(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Deletes {
		if err := c.nestedDelete(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Connects {
		if err := c.nestedConnect(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Sets {
		if err := c.nestedSet(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.Disconnects {
		if err := c.nestedDisconnect(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.UpdateManys {
		if err := c.nestedUpdateMany(ctx, parentID, q); err != nil {
			return err
		}
	}
	for _, q := range nw.DeleteManys {
		if err := c.nestedDeleteMany(ctx, parentID, q); err != nil {
			return err
		}
	}
	return nil
}

// shape is (parent is list, parent required, child is list, child required).
type shape [4]bool

func shapeOf(p *models.RelationField) shape {
	ch := p.RelatedField()
	return shape{p.IsList, p.IsRequired, ch.IsList, ch.IsRequired}
}

var (
	bothRequiredToOne  = shape{false, true, false, true}
	requiredParentOnly = shape{false, true, false, false}
	requiredChildOnly  = shape{false, false, false, true}
)

// dropOldLinks removes the links a new link between parentID and childID
// replaces. Foreign keys about to be overwritten by link are left alone.
func (c *conn) dropOldLinks(ctx context.Context, p *models.RelationField, parentID, childID interface{}) error {
	ch := p.RelatedField()
	if !p.IsList && !parentHoldsKey(p) {
		if err := c.removeByParent(ctx, p, parentID); err != nil {
			return err
		}
	}
	if !ch.IsList && !childHoldsKey(p) && childID != nil {
		if err := c.removeByChild(ctx, p, childID); err != nil {
			return err
		}
	}
	return nil
}

func (c *conn) nestedCreate(ctx context.Context, parentID interface{}, q *ast.NestedCreateRecord) error {
	p := q.RelationField

	if !q.TopIsCreate {
		switch shapeOf(p) {
		case bothRequiredToOne:
			return violation(p)
		case requiredChildOnly:
			if err := c.checkForOldChild(ctx, p, parentID, nil); err != nil {
				return err
			}
		}
		if err := c.dropOldLinks(ctx, p, parentID, nil); err != nil {
			return err
		}
	}

	if childHoldsKey(p) {
		args := copyArgs(q.Args)
		args[p.RelatedField().Name] = parentID
		_, err := c.createRecord(ctx, q.Model, args, q.ListArgs, &q.Nested)
		return err
	}
	childID, err := c.createRecord(ctx, q.Model, q.Args, q.ListArgs, &q.Nested)
	if err != nil {
		return err
	}
	return c.link(ctx, p, parentID, childID)
}

func (c *conn) nestedConnect(ctx context.Context, parentID interface{}, q *ast.NestedConnect) error {
	p := q.RelationField
	childID, err := c.idOf(ctx, q.Where)
	if err != nil {
		return err
	}

	switch shapeOf(p) {
	case bothRequiredToOne:
		return violation(p)
	case requiredParentOnly:
		if err := c.checkForOldParentByChild(ctx, p, parentID, childID); err != nil {
			return err
		}
	case requiredChildOnly:
		if !q.TopIsCreate {
			if err := c.checkForOldChild(ctx, p, parentID, childID); err != nil {
				return err
			}
		}
	}

	if err := c.dropOldLinks(ctx, p, parentID, childID); err != nil {
		return err
	}
	return c.link(ctx, p, parentID, childID)
}

func (c *conn) nestedDisconnect(ctx context.Context, parentID interface{}, q *ast.NestedDisconnect) error {
	p := q.RelationField
	if p.IsRequired || p.RelatedField().IsRequired {
		return violation(p)
	}

	if q.Where == nil {
		ids, err := c.linked(ctx, p, parentID, nil)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return notConnected(p, parentID, nil)
		}
		return c.unlink(ctx, p, parentID, ids[0])
	}

	childID, err := c.idOf(ctx, *q.Where)
	if err != nil {
		return err
	}
	ok, err := c.connected(ctx, p, parentID, childID)
	if err != nil {
		return err
	}
	if !ok {
		return notConnected(p, parentID, q.Where)
	}
	return c.unlink(ctx, p, parentID, childID)
}

// nestedSet makes the records selected by q the only ones linked to
// parentID.
func (c *conn) nestedSet(ctx context.Context, parentID interface{}, q *ast.NestedSet) error {
	p := q.RelationField
	old, err := c.linked(ctx, p, parentID, nil)
	if err != nil {
		return err
	}

	next := make([]interface{}, 0, len(q.Wheres))
	for _, where := range q.Wheres {
		id, err := c.idOf(ctx, where)
		if err != nil {
			return err
		}
		next = append(next, id)
	}

	var dropped []interface{}
	for _, id := range old {
		if !containsID(next, id) {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 && p.RelatedField().IsRequired {
		return violation(p)
	}
	for _, id := range dropped {
		if err := c.unlink(ctx, p, parentID, id); err != nil {
			return err
		}
	}

	for _, id := range next {
		if containsID(old, id) {
			continue
		}
		if err := c.dropOldLinks(ctx, p, parentID, id); err != nil {
			return err
		}
		if err := c.link(ctx, p, parentID, id); err != nil {
			return err
		}
		old = append(old, id)
	}
	return nil
}

func (c *conn) nestedUpdate(ctx context.Context, parentID interface{}, q *ast.NestedUpdateRecord) error {
	childID, err := c.nestedTarget(ctx, q.RelationField, parentID, q.Where)
	if err != nil {
		return err
	}
	_, err = c.updateRecord(ctx, q.RelationField.RelatedModel(), childID, q.Args, q.ListArgs, &q.Nested)
	return err
}

// nestedUpsert updates the linked record the selector matches, or creates
// and links a new one.
func (c *conn) nestedUpsert(ctx context.Context, parentID interface{}, q *ast.NestedUpsertRecord) error {
	p := q.RelationField
	var (
		ids []interface{}
		err error
	)
	if q.Where != nil {
		ids, err = c.linked(ctx, p, parentID, q.Where.Filter())
	} else {
		ids, err = c.linked(ctx, p, parentID, nil)
	}
	if err != nil {
		return err
	}

	if len(ids) > 0 {
		u := q.Update
		_, err := c.updateRecord(ctx, p.RelatedModel(), ids[0], u.Args, u.ListArgs, &u.Nested)
		return err
	}
	return c.nestedCreate(ctx, parentID, q.Create)
}

func (c *conn) nestedDelete(ctx context.Context, parentID interface{}, q *ast.NestedDeleteRecord) error {
	p := q.RelationField
	childID, err := c.nestedTarget(ctx, p, parentID, q.Where)
	if err != nil {
		return err
	}
	if p.IsRequired {
		return violation(p)
	}
	return c.deleteRecord(ctx, p.RelatedModel(), childID)
}

func (c *conn) nestedUpdateMany(ctx context.Context, parentID interface{}, q *ast.NestedUpdateManyRecords) error {
	ids, err := c.linked(ctx, q.RelationField, parentID, q.Filter)
	if err != nil {
		return err
	}
	_, err = c.updateIDs(ctx, q.RelationField.RelatedModel(), ids, q.Args, q.ListArgs)
	return err
}

func (c *conn) nestedDeleteMany(ctx context.Context, parentID interface{}, q *ast.NestedDeleteManyRecords) error {
	ids, err := c.linked(ctx, q.RelationField, parentID, q.Filter)
	if err != nil {
		return err
	}
	_, err = c.deleteIDs(ctx, q.RelationField.RelatedModel(), ids)
	return err
}

func containsID(ids []interface{}, id interface{}) bool {
	for _, v := range ids {
		if sameID(v, id) {
			return true
		}
	}
	return false
}
