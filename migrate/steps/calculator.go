package steps

import (
	"fmt"
	"slices"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Calculator applies migration steps to a datamodel.
type Calculator struct{}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Apply returns current with steps applied in order. current is not
// modified. Steps referring to unknown models, fields or enums, or creating
// duplicates, fail with a validation error naming the step index.
func (c *Calculator) Apply(current *datamodel.Datamodel, steps []MigrationStep) (*datamodel.Datamodel, error) {
	if current == nil {
		current = datamodel.Empty()
	}
	dm := current.Clone()
	for i, step := range steps {
		if err := applyStep(dm, step); err != nil {
			return nil, runtime.NewValidationError(stepPath(i, step), "%s", err.Message)
		}
	}
	return dm, nil
}

func stepPath(i int, step MigrationStep) string {
	return fmt.Sprintf("steps[%d].%s", i, step.StepType())
}

func applyStep(dm *datamodel.Datamodel, step MigrationStep) *runtime.ValidationError {
	switch s := step.(type) {
	case CreateModel:
		if dm.FindModel(s.Name) != nil {
			return runtime.NewValidationError(s.Name, "model already exists")
		}
		m := datamodel.Model{Name: s.Name, IsEmbedded: s.Embedded, Fields: []datamodel.Field{}}
		if s.DBName != nil {
			m.DBName = *s.DBName
		}
		dm.Models = append(dm.Models, m)

	case UpdateModel:
		m := dm.FindModel(s.Name)
		if m == nil {
			return runtime.NewValidationError(s.Name, "model not found")
		}
		if s.NewName != nil {
			if *s.NewName != s.Name && dm.FindModel(*s.NewName) != nil {
				return runtime.NewValidationError(s.Name, "model %s already exists", *s.NewName)
			}
			renameRelationTargets(dm, s.Name, *s.NewName)
			m.Name = *s.NewName
		}
		if s.DBName != nil {
			m.DBName = *s.DBName
		}
		if s.Embedded != nil {
			m.IsEmbedded = *s.Embedded
		}

	case DeleteModel:
		idx := slices.IndexFunc(dm.Models, func(m datamodel.Model) bool { return m.Name == s.Name })
		if idx < 0 {
			return runtime.NewValidationError(s.Name, "model not found")
		}
		dm.Models = slices.Delete(dm.Models, idx, idx+1)

	case CreateField:
		m := dm.FindModel(s.Model)
		if m == nil {
			return runtime.NewValidationError(s.Model, "model not found")
		}
		if m.FindField(s.Name) != nil {
			return runtime.NewValidationError(s.Model+"."+s.Name, "field already exists")
		}
		f := datamodel.Field{Name: s.Name, Type: s.Type, Arity: s.Arity}
		if s.DBName != nil {
			f.DBName = *s.DBName
		}
		f.IsCreatedAt = deref(s.IsCreatedAt)
		f.IsUpdatedAt = deref(s.IsUpdatedAt)
		f.IsID = deref(s.IsID)
		f.IsUnique = deref(s.IsUnique)
		if s.Default != nil {
			d := *s.Default
			f.Default = &d
		}
		m.Fields = append(m.Fields, f.Clone())

	case UpdateField:
		m := dm.FindModel(s.Model)
		if m == nil {
			return runtime.NewValidationError(s.Model, "model not found")
		}
		f := m.FindField(s.Name)
		if f == nil {
			return runtime.NewValidationError(s.Model+"."+s.Name, "field not found")
		}
		if s.NewName != nil {
			if *s.NewName != s.Name && m.FindField(*s.NewName) != nil {
				return runtime.NewValidationError(s.Model+"."+s.Name, "field %s already exists", *s.NewName)
			}
			f.Name = *s.NewName
		}
		if s.Type != nil {
			f.Type = *s.Type
		}
		if s.Arity != nil {
			f.Arity = *s.Arity
		}
		if s.DBName != nil {
			f.DBName = *s.DBName
		}
		if s.IsCreatedAt != nil {
			f.IsCreatedAt = *s.IsCreatedAt
		}
		if s.IsUpdatedAt != nil {
			f.IsUpdatedAt = *s.IsUpdatedAt
		}
		if s.IsID != nil {
			f.IsID = *s.IsID
		}
		if s.IsUnique != nil {
			f.IsUnique = *s.IsUnique
		}
		if s.Default != nil {
			if *s.Default == (datamodel.Default{}) {
				f.Default = nil
			} else {
				d := *s.Default
				f.Default = &d
			}
		}
		*f = f.Clone()

	case DeleteField:
		m := dm.FindModel(s.Model)
		if m == nil {
			return runtime.NewValidationError(s.Model, "model not found")
		}
		idx := slices.IndexFunc(m.Fields, func(f datamodel.Field) bool { return f.Name == s.Name })
		if idx < 0 {
			return runtime.NewValidationError(s.Model+"."+s.Name, "field not found")
		}
		m.Fields = slices.Delete(m.Fields, idx, idx+1)

	case CreateEnum:
		if dm.FindEnum(s.Name) != nil {
			return runtime.NewValidationError(s.Name, "enum already exists")
		}
		dm.Enums = append(dm.Enums, datamodel.Enum{Name: s.Name, Values: slices.Clone(s.Values)})

	case UpdateEnum:
		e := dm.FindEnum(s.Name)
		if e == nil {
			return runtime.NewValidationError(s.Name, "enum not found")
		}
		if s.NewName != nil {
			renameEnumReferences(dm, s.Name, *s.NewName)
			e.Name = *s.NewName
		}
		if s.Values != nil {
			e.Values = slices.Clone(s.Values)
		}

	case DeleteEnum:
		idx := slices.IndexFunc(dm.Enums, func(e datamodel.Enum) bool { return e.Name == s.Name })
		if idx < 0 {
			return runtime.NewValidationError(s.Name, "enum not found")
		}
		dm.Enums = slices.Delete(dm.Enums, idx, idx+1)

	default:
		return runtime.NewValidationError("", "unsupported step %T", step)
	}
	return nil
}

func renameRelationTargets(dm *datamodel.Datamodel, from, to string) {
	for mi := range dm.Models {
		for fi := range dm.Models[mi].Fields {
			f := &dm.Models[mi].Fields[fi]
			if f.IsRelation() && f.Type.Relation.To == from {
				f.Type.Relation.To = to
			}
		}
	}
}

func renameEnumReferences(dm *datamodel.Datamodel, from, to string) {
	for mi := range dm.Models {
		for fi := range dm.Models[mi].Fields {
			f := &dm.Models[mi].Fields[fi]
			if f.Type.Kind == datamodel.KindEnum && f.Type.Enum == from {
				f.Type.Enum = to
			}
		}
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}
