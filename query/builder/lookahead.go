package builder

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/query/ast"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// needsParentRow reports whether the record behind rf must exist before the
// parent row is inserted: the parent holds a not-null foreign key to it.
// Which side of a self relation holds the key follows the model-name
// ordering applied when relations are calculated.
func needsParentRow(rf *models.RelationField) bool {
	return rf.IsRequired && rf.IsInlinedInParent()
}

// FoldRequiredConnects moves connects on required relations whose foreign
// key lives in the record being created into that record's arguments, so
// the key is part of the insert. It recurses into every nested create,
// update and upsert and returns root.
func FoldRequiredConnects(root ast.RootWriteQuery) ast.RootWriteQuery {
	switch r := root.(type) {
	case *ast.CreateRecord:
		r.Args = foldCreate(r.Args, &r.Nested)
	case *ast.UpdateRecord:
		foldNested(&r.Nested)
	case *ast.UpsertRecord:
		r.Create.Args = foldCreate(r.Create.Args, &r.Create.Nested)
		foldNested(&r.Update.Nested)
	}
	return root
}

func foldCreate(args ast.Args, nested *ast.NestedWriteQueries) ast.Args {
	if args == nil {
		args = ast.Args{}
	}
	kept := nested.Connects[:0]
	for _, c := range nested.Connects {
		if needsParentRow(c.RelationField) {
			debug.Debug("folding required connect", "relation", c.RelationField.RelationName, "field", c.RelationField.Name, "where", c.Where.String())
			args[c.RelationField.Name] = c.Where
			continue
		}
		kept = append(kept, c)
	}
	nested.Connects = kept
	foldNested(nested)
	return args
}

func foldNested(nested *ast.NestedWriteQueries) {
	for _, c := range nested.Creates {
		c.Args = foldCreate(c.Args, &c.Nested)
	}
	for _, u := range nested.Updates {
		foldNested(&u.Nested)
	}
	for _, u := range nested.Upserts {
		u.Create.Args = foldCreate(u.Create.Args, &u.Create.Nested)
		foldNested(&u.Update.Nested)
	}
}

// FlipCreateOrder hoists the nested creates of a root create that the root
// row references through a required foreign key. Each one becomes the head
// of a Dependents chain so it is inserted first; its id reaches the root
// through EvalPartial. The last hoisted create is the head of the chain.
func FlipCreateOrder(set ast.WriteQuerySet) ast.WriteQuerySet {
	base := ast.BaseTree(set)
	if base == nil {
		return set
	}
	create, ok := base.Root.(*ast.CreateRecord)
	if !ok {
		return set
	}

	var hoisted []*ast.NestedCreateRecord
	kept := create.Nested.Creates[:0]
	for _, c := range create.Nested.Creates {
		if needsParentRow(c.RelationField) {
			hoisted = append(hoisted, c)
			continue
		}
		kept = append(kept, c)
	}
	create.Nested.Creates = kept

	for _, c := range hoisted {
		debug.Debug("hoisting required create", "model", c.Model.Name, "via", c.RelationField.Name)
		set = &ast.Dependents{
			Self: ast.WriteQueryTree{
				Name: fmt.Sprintf("%s.%s", base.Name, c.RelationField.Name),
				Root: &ast.CreateRecord{Model: c.Model, Args: c.Args, ListArgs: c.ListArgs, Nested: c.Nested},
			},
			Next: set,
			Via:  c.RelationField,
		}
	}
	return set
}

// EvalPartial writes the id produced by d.Self into the base tree of d.Next
// and returns d.Next. Failing to find where the id belongs is an internal
// error: the planner has already proven the relation exists.
func EvalPartial(d *ast.Dependents, id interface{}) (ast.WriteQuerySet, error) {
	base := ast.BaseTree(d.Next)
	if base == nil {
		return nil, runtime.NewInternalError("dependent write %s has no base tree", d.Self.Name)
	}
	args, ok := ast.ArgsOf(base.Root)
	if !ok {
		return nil, runtime.NewInternalError("cannot inject %s id into %T", d.Self.Name, base.Root)
	}

	field := d.Via
	if field == nil {
		field = backReference(base.Root.TargetModel(), d.Self.Root.TargetModel())
	}
	if field == nil || field.Model() != base.Root.TargetModel() {
		err := runtime.NewInternalError("no relation field on %s references %s", base.Root.TargetModel().Name, d.Self.Root.TargetModel().Name)
		debug.Failure("failed to evaluate partial result", err)
		return nil, err
	}

	args[field.Name] = id
	return d.Next, nil
}

// backReference finds the field of model storing a foreign key to target.
func backReference(model, target *models.Model) *models.RelationField {
	for _, rf := range model.RelationFields {
		if rf.RelatedModel() == target && rf.IsInlinedInParent() {
			return rf
		}
	}
	return nil
}
