package builder

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
)

// NestedWriteType is a verb accepted under a relation field of a data object.
type NestedWriteType string

const (
	NestedWriteCreate     NestedWriteType = "create"
	NestedWriteConnect    NestedWriteType = "connect"
	NestedWriteDisconnect NestedWriteType = "disconnect"
	NestedWriteUpdate     NestedWriteType = "update"
	NestedWriteUpdateMany NestedWriteType = "updateMany"
	NestedWriteDelete     NestedWriteType = "delete"
	NestedWriteDeleteMany NestedWriteType = "deleteMany"
	NestedWriteUpsert     NestedWriteType = "upsert"
	NestedWriteSet        NestedWriteType = "set"
)

var nestedWriteOrder = []NestedWriteType{
	NestedWriteCreate, NestedWriteConnect, NestedWriteDisconnect, NestedWriteUpdate,
	NestedWriteUpdateMany, NestedWriteDelete, NestedWriteDeleteMany, NestedWriteUpsert, NestedWriteSet,
}

// nested parses `rel: {verb: ...}` into out. Inside a create only create
// and connect make sense.
func (b *builder) nested(rf *models.RelationField, v interface{}, path string, inCreate bool, out *ast.NestedWriteQueries) {
	obj := b.object(v, path)
	if obj == nil {
		return
	}

	known := make(map[string]bool, len(nestedWriteOrder))
	for _, verb := range nestedWriteOrder {
		known[string(verb)] = true
	}
	for _, key := range sortedKeys(obj) {
		if !known[key] {
			b.errs.Add(join(path, key), "unsupported nested operation %s", key)
		} else if inCreate && key != string(NestedWriteCreate) && key != string(NestedWriteConnect) {
			b.errs.Add(join(path, key), "only create and connect are allowed inside a create")
		}
	}

	related := rf.RelatedModel()
	for _, verb := range nestedWriteOrder {
		value, ok := obj[string(verb)]
		if !ok {
			continue
		}
		vpath := join(path, string(verb))
		if inCreate && verb != NestedWriteCreate && verb != NestedWriteConnect {
			continue
		}

		switch verb {
		case NestedWriteCreate:
			for i, item := range b.items(rf, value, vpath) {
				ipath := indexed(vpath, value, i)
				c := &ast.NestedCreateRecord{RelationField: rf, Model: related, TopIsCreate: inCreate}
				c.Args, c.ListArgs, c.Nested = b.data(related, b.object(item, ipath), ipath, true)
				out.Creates = append(out.Creates, c)
			}

		case NestedWriteConnect:
			for i, item := range b.items(rf, value, vpath) {
				out.Connects = append(out.Connects, &ast.NestedConnect{
					RelationField: rf,
					Where:         b.unique(related, item, indexed(vpath, value, i)),
					TopIsCreate:   inCreate,
				})
			}

		case NestedWriteDisconnect:
			if !rf.IsList {
				if b.flag(value, vpath) {
					out.Disconnects = append(out.Disconnects, &ast.NestedDisconnect{RelationField: rf})
				}
				continue
			}
			for i, item := range b.items(rf, value, vpath) {
				where := b.unique(related, item, indexed(vpath, value, i))
				out.Disconnects = append(out.Disconnects, &ast.NestedDisconnect{RelationField: rf, Where: &where})
			}

		case NestedWriteDelete:
			if !rf.IsList {
				if b.flag(value, vpath) {
					out.Deletes = append(out.Deletes, &ast.NestedDeleteRecord{RelationField: rf})
				}
				continue
			}
			for i, item := range b.items(rf, value, vpath) {
				where := b.unique(related, item, indexed(vpath, value, i))
				out.Deletes = append(out.Deletes, &ast.NestedDeleteRecord{RelationField: rf, Where: &where})
			}

		case NestedWriteUpdate:
			if !rf.IsList {
				u := &ast.NestedUpdateRecord{RelationField: rf}
				u.Args, u.ListArgs, u.Nested = b.data(related, b.object(value, vpath), vpath, false)
				out.Updates = append(out.Updates, u)
				continue
			}
			for i, item := range b.items(rf, value, vpath) {
				ipath := indexed(vpath, value, i)
				obj := b.object(item, ipath)
				b.allowKeys(obj, ipath, "where", "data")
				where := b.unique(related, obj["where"], join(ipath, "where"))
				u := &ast.NestedUpdateRecord{RelationField: rf, Where: &where}
				u.Args, u.ListArgs, u.Nested = b.data(related, b.object(obj["data"], join(ipath, "data")), join(ipath, "data"), false)
				out.Updates = append(out.Updates, u)
			}

		case NestedWriteUpsert:
			for i, item := range b.items(rf, value, vpath) {
				ipath := indexed(vpath, value, i)
				obj := b.object(item, ipath)
				up := &ast.NestedUpsertRecord{RelationField: rf}
				if rf.IsList {
					b.allowKeys(obj, ipath, "where", "create", "update")
					where := b.unique(related, obj["where"], join(ipath, "where"))
					up.Where = &where
				} else {
					b.allowKeys(obj, ipath, "create", "update")
				}
				up.Create = &ast.NestedCreateRecord{RelationField: rf, Model: related}
				up.Create.Args, up.Create.ListArgs, up.Create.Nested = b.data(related, b.object(obj["create"], join(ipath, "create")), join(ipath, "create"), true)
				up.Update = &ast.NestedUpdateRecord{RelationField: rf, Where: up.Where}
				up.Update.Args, up.Update.ListArgs, up.Update.Nested = b.data(related, b.object(obj["update"], join(ipath, "update")), join(ipath, "update"), false)
				out.Upserts = append(out.Upserts, up)
			}

		case NestedWriteUpdateMany:
			if !b.listOnly(rf, vpath) {
				continue
			}
			for i, item := range b.items(rf, value, vpath) {
				ipath := indexed(vpath, value, i)
				spec := b.object(item, ipath)
				b.allowKeys(spec, ipath, "where", "data")
				u := &ast.NestedUpdateManyRecords{RelationField: rf, Filter: b.optionalFilter(related, spec["where"], join(ipath, "where"))}
				u.Args, u.ListArgs = b.scalars(related, b.object(spec["data"], join(ipath, "data")), join(ipath, "data"))
				out.UpdateManys = append(out.UpdateManys, u)
			}

		case NestedWriteDeleteMany:
			if !b.listOnly(rf, vpath) {
				continue
			}
			for i, item := range b.items(rf, value, vpath) {
				out.DeleteManys = append(out.DeleteManys, &ast.NestedDeleteManyRecords{
					RelationField: rf,
					Filter:        b.optionalFilter(related, item, indexed(vpath, value, i)),
				})
			}

		case NestedWriteSet:
			if !b.listOnly(rf, vpath) {
				continue
			}
			set := &ast.NestedSet{RelationField: rf, Wheres: []ast.NodeSelector{}}
			items, ok := value.([]interface{})
			if !ok {
				b.errs.Add(vpath, "expected a list")
				continue
			}
			for i, item := range items {
				set.Wheres = append(set.Wheres, b.unique(related, item, indexed(vpath, value, i)))
			}
			out.Sets = append(out.Sets, set)
		}
	}
}

// items accepts one object, or a list of them for list relations.
func (b *builder) items(rf *models.RelationField, v interface{}, path string) []interface{} {
	if list, ok := v.([]interface{}); ok {
		if !rf.IsList {
			b.errs.Add(path, "to-one relation %s accepts a single object", rf.Name)
			return nil
		}
		return list
	}
	return []interface{}{v}
}

func (b *builder) flag(v interface{}, path string) bool {
	set, ok := v.(bool)
	if !ok {
		b.errs.Add(path, "expected a boolean")
	}
	return set
}

func (b *builder) listOnly(rf *models.RelationField, path string) bool {
	if !rf.IsList {
		b.errs.Add(path, "only list relations support this operation")
		return false
	}
	return true
}

// optionalFilter parses a nested bulk filter; nil matches every related record.
func (b *builder) optionalFilter(m *models.Model, v interface{}, path string) filter.Filter {
	if v == nil {
		return nil
	}
	obj := b.object(v, path)
	if obj == nil {
		return nil
	}
	f, err := filter.Parse(m, obj)
	if err != nil {
		b.addErr(err)
		return nil
	}
	return f
}

// indexed names item i of value, which is either one object or a list.
func indexed(path string, value interface{}, i int) string {
	if _, ok := value.([]interface{}); !ok {
		return path
	}
	return fmt.Sprintf("%s[%d]", path, i)
}
