package steps

import (
	"reflect"
	"slices"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
)

// Infer computes the steps turning previous into next. Renames are not
// detected: a renamed model or field becomes a delete plus a create.
//
// Steps are ordered: enum creates and updates, model creates, field
// creates, field updates, field deletes, model deletes, enum deletes.
func Infer(previous, next *datamodel.Datamodel) []MigrationStep {
	if previous == nil {
		previous = datamodel.Empty()
	}
	if next == nil {
		next = datamodel.Empty()
	}

	var (
		enumSteps, createModels, createFields  []MigrationStep
		updateFields, deleteFields, deleteRest []MigrationStep
	)

	for _, e := range next.Enums {
		prev := previous.FindEnum(e.Name)
		switch {
		case prev == nil:
			enumSteps = append(enumSteps, CreateEnum{Name: e.Name, Values: slices.Clone(e.Values)})
		case !slices.Equal(prev.Values, e.Values):
			enumSteps = append(enumSteps, UpdateEnum{Name: e.Name, Values: slices.Clone(e.Values)})
		}
	}

	for i := range next.Models {
		model := &next.Models[i]
		prev := previous.FindModel(model.Name)
		if prev == nil {
			step := CreateModel{Name: model.Name, Embedded: model.IsEmbedded}
			if model.DBName != "" {
				step.DBName = ptr(model.DBName)
			}
			createModels = append(createModels, step)
			for j := range model.Fields {
				createFields = append(createFields, createFieldStep(model.Name, &model.Fields[j]))
			}
			continue
		}

		if prev.DBName != model.DBName || prev.IsEmbedded != model.IsEmbedded {
			step := UpdateModel{Name: model.Name}
			if prev.DBName != model.DBName {
				step.DBName = ptr(model.DBName)
			}
			if prev.IsEmbedded != model.IsEmbedded {
				step.Embedded = ptr(model.IsEmbedded)
			}
			createModels = append(createModels, step)
		}

		for j := range model.Fields {
			field := &model.Fields[j]
			prevField := prev.FindField(field.Name)
			if prevField == nil {
				createFields = append(createFields, createFieldStep(model.Name, field))
				continue
			}
			if step := updateFieldStep(model.Name, prevField, field); step.IsAnyOptionSet() {
				updateFields = append(updateFields, step)
			}
		}
		for j := range prev.Fields {
			if model.FindField(prev.Fields[j].Name) == nil {
				deleteFields = append(deleteFields, DeleteField{Model: model.Name, Name: prev.Fields[j].Name})
			}
		}
	}

	for _, m := range previous.Models {
		if next.FindModel(m.Name) == nil {
			deleteRest = append(deleteRest, DeleteModel{Name: m.Name})
		}
	}
	for _, e := range previous.Enums {
		if next.FindEnum(e.Name) == nil {
			deleteRest = append(deleteRest, DeleteEnum{Name: e.Name})
		}
	}

	out := make([]MigrationStep, 0, len(enumSteps)+len(createModels)+len(createFields)+
		len(updateFields)+len(deleteFields)+len(deleteRest))
	out = append(out, enumSteps...)
	out = append(out, createModels...)
	out = append(out, createFields...)
	out = append(out, updateFields...)
	out = append(out, deleteFields...)
	return append(out, deleteRest...)
}

func createFieldStep(model string, f *datamodel.Field) CreateField {
	c := f.Clone()
	step := CreateField{Model: model, Name: c.Name, Type: c.Type, Arity: c.Arity, Default: c.Default}
	if c.DBName != "" {
		step.DBName = ptr(c.DBName)
	}
	step.IsCreatedAt = ifTrue(c.IsCreatedAt)
	step.IsUpdatedAt = ifTrue(c.IsUpdatedAt)
	step.IsID = ifTrue(c.IsID)
	step.IsUnique = ifTrue(c.IsUnique)
	return step
}

func updateFieldStep(model string, prev, next *datamodel.Field) UpdateField {
	step := UpdateField{Model: model, Name: next.Name}
	if !reflect.DeepEqual(prev.Type, next.Type) {
		t := next.Clone().Type
		step.Type = &t
	}
	if prev.Arity != next.Arity {
		step.Arity = ptr(next.Arity)
	}
	if prev.DBName != next.DBName {
		step.DBName = ptr(next.DBName)
	}
	if prev.IsCreatedAt != next.IsCreatedAt {
		step.IsCreatedAt = ptr(next.IsCreatedAt)
	}
	if prev.IsUpdatedAt != next.IsUpdatedAt {
		step.IsUpdatedAt = ptr(next.IsUpdatedAt)
	}
	if prev.IsID != next.IsID {
		step.IsID = ptr(next.IsID)
	}
	if prev.IsUnique != next.IsUnique {
		step.IsUnique = ptr(next.IsUnique)
	}
	if !reflect.DeepEqual(prev.Default, next.Default) {
		if next.Default == nil {
			step.Default = &datamodel.Default{}
		} else {
			d := *next.Default
			step.Default = &d
		}
	}
	return step
}

func ptr[T any](v T) *T { return &v }

func ifTrue(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}
