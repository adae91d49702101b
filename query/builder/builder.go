// Package builder turns request arguments into a write query set and
// reorders it so every row is inserted after the rows its foreign keys
// reference.
package builder

import (
	"fmt"
	"sort"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Action is a top-level write.
type Action string

const (
	CreateOne  Action = "createOne"
	UpdateOne  Action = "updateOne"
	UpsertOne  Action = "upsertOne"
	DeleteOne  Action = "deleteOne"
	UpdateMany Action = "updateMany"
	DeleteMany Action = "deleteMany"
)

// Build parses args for action on model and runs both look-ahead passes.
// All validation problems are returned together as runtime.ValidationErrors.
func Build(schema *models.Schema, model string, action Action, args map[string]interface{}) (ast.WriteQuerySet, error) {
	m := schema.FindModel(model)
	if m == nil {
		return nil, runtime.NewValidationError("", "unknown model %s", model)
	}

	b := &builder{}
	root := b.root(m, action, args)
	if err := b.errs.ErrOrNil(); err != nil {
		debug.Debug("write query rejected", "model", model, "action", action, "kind", "validation", "error", err)
		return nil, err
	}

	FoldRequiredConnects(root)
	set := FlipCreateOrder(&ast.Single{Tree: ast.WriteQueryTree{Name: fmt.Sprintf("%s%s", action, m.Name), Root: root}})
	return set, nil
}

type builder struct {
	errs runtime.ValidationErrors
}

func (b *builder) root(m *models.Model, action Action, args map[string]interface{}) ast.RootWriteQuery {
	switch action {
	case CreateOne:
		b.allowKeys(args, "", "data")
		data := b.object(args["data"], "data")
		c := &ast.CreateRecord{Model: m}
		c.Args, c.ListArgs, c.Nested = b.data(m, data, "data", true)
		return c

	case UpdateOne:
		b.allowKeys(args, "", "where", "data")
		u := &ast.UpdateRecord{Model: m, Where: b.unique(m, args["where"], "where")}
		u.Args, u.ListArgs, u.Nested = b.data(m, b.object(args["data"], "data"), "data", false)
		return u

	case UpsertOne:
		b.allowKeys(args, "", "where", "create", "update")
		where := b.unique(m, args["where"], "where")
		c := &ast.CreateRecord{Model: m}
		c.Args, c.ListArgs, c.Nested = b.data(m, b.object(args["create"], "create"), "create", true)
		u := &ast.UpdateRecord{Model: m, Where: where}
		u.Args, u.ListArgs, u.Nested = b.data(m, b.object(args["update"], "update"), "update", false)
		return &ast.UpsertRecord{Model: m, Where: where, Create: c, Update: u}

	case DeleteOne:
		b.allowKeys(args, "", "where")
		return &ast.DeleteRecord{Model: m, Where: b.unique(m, args["where"], "where")}

	case UpdateMany:
		b.allowKeys(args, "", "where", "data")
		u := &ast.UpdateManyRecords{Model: m, Filter: b.filter(m, args, "where")}
		u.Args, u.ListArgs = b.scalars(m, b.object(args["data"], "data"), "data")
		return u

	case DeleteMany:
		b.allowKeys(args, "", "where")
		return &ast.DeleteManyRecords{Model: m, Filter: b.filter(m, args, "where")}
	}

	b.errs.Add("", "unsupported action %s", action)
	return nil
}

// allowKeys reports keys outside allowed.
func (b *builder) allowKeys(obj map[string]interface{}, path string, allowed ...string) {
	for _, k := range sortedKeys(obj) {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			b.errs.Add(join(path, k), "unexpected argument")
		}
	}
}

func (b *builder) object(v interface{}, path string) map[string]interface{} {
	obj, ok := v.(map[string]interface{})
	if !ok {
		if v == nil {
			b.errs.Add(path, "argument is required")
		} else {
			b.errs.Add(path, "expected an object, got %T", v)
		}
		return nil
	}
	return obj
}

// unique parses a where selector: exactly one id or unique field.
func (b *builder) unique(m *models.Model, v interface{}, path string) ast.NodeSelector {
	obj := b.object(v, path)
	if obj == nil {
		return ast.NodeSelector{}
	}
	if len(obj) != 1 {
		b.errs.Add(path, "expected exactly one unique field of %s", m.Name)
		return ast.NodeSelector{}
	}
	for key, value := range obj {
		f := m.ScalarField(key)
		if f == nil || !(f.IsID || f.IsUnique) {
			b.errs.Add(join(path, key), "%s is not a unique field of %s", key, m.Name)
			return ast.NodeSelector{}
		}
		if value == nil {
			b.errs.Add(join(path, key), "unique selector cannot be null")
			return ast.NodeSelector{}
		}
		c, err := f.Coerce(value)
		if err != nil {
			b.errs.Add(join(path, key), "%v", err)
			return ast.NodeSelector{}
		}
		return ast.NodeSelector{Field: f, Value: c}
	}
	return ast.NodeSelector{}
}

// filter parses the mandatory where argument of a bulk write.
func (b *builder) filter(m *models.Model, args map[string]interface{}, key string) filter.Filter {
	v, ok := args[key]
	if !ok {
		b.errs.Add(key, "bulk writes require a where argument")
		return nil
	}
	obj := b.object(v, key)
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

func (b *builder) addErr(err error) {
	switch e := err.(type) {
	case runtime.ValidationErrors:
		b.errs = append(b.errs, e...)
	case *runtime.ValidationError:
		b.errs = append(b.errs, e)
	default:
		b.errs.Add("", "%v", err)
	}
}

// scalars parses the scalar part of a data object and rejects relation keys.
func (b *builder) scalars(m *models.Model, data map[string]interface{}, path string) (ast.Args, ast.ListArgs) {
	args, lists := ast.Args{}, ast.ListArgs{}
	for _, key := range sortedKeys(data) {
		if m.RelationField(key) != nil {
			b.errs.Add(join(path, key), "relation fields cannot be written by a bulk update")
			continue
		}
		b.scalar(m, key, data[key], join(path, key), args, lists)
	}
	return args, lists
}

// data parses a create or update data object.
func (b *builder) data(m *models.Model, data map[string]interface{}, path string, inCreate bool) (ast.Args, ast.ListArgs, ast.NestedWriteQueries) {
	var (
		args   = ast.Args{}
		lists  = ast.ListArgs{}
		nested ast.NestedWriteQueries
	)
	for _, key := range sortedKeys(data) {
		if rf := m.RelationField(key); rf != nil {
			b.nested(rf, data[key], join(path, key), inCreate, &nested)
			continue
		}
		b.scalar(m, key, data[key], join(path, key), args, lists)
	}
	return args, lists, nested
}

func (b *builder) scalar(m *models.Model, key string, value interface{}, path string, args ast.Args, lists ast.ListArgs) {
	f := m.ScalarField(key)
	if f == nil {
		b.errs.Add(path, "unknown field %s on model %s", key, m.Name)
		return
	}
	if f.IsList {
		if obj, ok := value.(map[string]interface{}); ok {
			b.allowKeys(obj, path, "set")
			value = obj["set"]
		}
		values, err := f.CoerceAll(value)
		if err != nil {
			b.errs.Add(path, "%v", err)
			return
		}
		lists[key] = values
		return
	}
	if value == nil && f.IsRequired {
		b.errs.Add(path, "required field %s cannot be null", key)
		return
	}
	c, err := f.Coerce(value)
	if err != nil {
		b.errs.Add(path, "%v", err)
		return
	}
	args[key] = c
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
