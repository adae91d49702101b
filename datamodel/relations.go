package datamodel

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Relation pairs two relation fields. Model A is the lexicographically
// smaller model name; for self-relations the field encountered first is side A.
type Relation struct {
	Name          string
	ModelA        string
	ModelB        string
	FieldA        string
	FieldB        string
	Manifestation Manifestation
}

// ManifestationKind tells how a relation is stored.
type ManifestationKind int

const (
	// ManifestInline stores the relation as a foreign key column on one model.
	ManifestInline ManifestationKind = iota
	// ManifestTable stores the relation in a `_Name(A, B)` link table.
	ManifestTable
)

// Manifestation is the physical storage of a relation.
type Manifestation struct {
	Kind ManifestationKind
	// InTableOfModel and Column are set for inline relations.
	InTableOfModel string
	Column         string
}

// IsSelfRelation reports whether both sides point to the same model.
func (r *Relation) IsSelfRelation() bool {
	return r.ModelA == r.ModelB
}

// TableName returns the link table name of a table manifested relation.
func (r *Relation) TableName() string {
	return "_" + r.Name
}

// Relation link table columns.
const (
	ColumnA = "A"
	ColumnB = "B"
)

// CalculateRelations pairs every relation field with its back-relation field
// and decides the manifestation of each relation. Relations are returned in
// declaration order, one per relation name.
func CalculateRelations(dm *Datamodel) ([]Relation, error) {
	var (
		result []Relation
		seen   = make(map[string]bool)
		errs   runtime.ValidationErrors
	)

	for mi := range dm.Models {
		model := &dm.Models[mi]
		for fi := range model.Fields {
			field := &model.Fields[fi]
			if !field.IsRelation() {
				continue
			}
			info := field.Type.Relation
			path := model.Name + "." + field.Name

			related := dm.FindModel(info.To)
			if related == nil {
				errs.Add(path, "related model %s not found", info.To)
				continue
			}
			relatedField := findBackRelation(related, model.Name, info.Name, field.Name)
			if relatedField == nil {
				errs.Add(path, "no back-relation field on model %s", related.Name)
				continue
			}
			relatedInfo := relatedField.Type.Relation

			modelA, modelB, fieldA, fieldB := model, related, field, relatedField
			if related.Name < model.Name {
				modelA, modelB, fieldA, fieldB = related, model, relatedField, field
			}

			name := info.Name
			if name == "" {
				name = fmt.Sprintf("%sTo%s", modelA.Name, modelB.Name)
			}
			if seen[name] {
				continue
			}

			inline := func(m *Model, f *Field) Manifestation {
				return Manifestation{Kind: ManifestInline, InTableOfModel: m.Name, Column: f.ColumnName()}
			}

			var manifestation Manifestation
			switch {
			case fieldA.IsList() && fieldB.IsList():
				manifestation = Manifestation{Kind: ManifestTable}
			case !fieldA.IsList() && fieldB.IsList():
				manifestation = inline(modelA, fieldA)
			case fieldA.IsList() && !fieldB.IsList():
				manifestation = inline(modelB, fieldB)
			default:
				switch {
				case len(info.ToFields) > 0 && len(relatedInfo.ToFields) > 0:
					errs.Add(path, "both sides of relation %s specify the foreign key", name)
					continue
				case len(info.ToFields) > 0:
					manifestation = inline(model, field)
				case len(relatedInfo.ToFields) > 0:
					manifestation = inline(related, relatedField)
				case modelA.Name < modelB.Name:
					manifestation = inline(modelA, fieldA)
				default:
					manifestation = inline(modelB, fieldB)
				}
			}

			seen[name] = true
			result = append(result, Relation{
				Name:          name,
				ModelA:        modelA.Name,
				ModelB:        modelB.Name,
				FieldA:        fieldA.Name,
				FieldB:        fieldB.Name,
				Manifestation: manifestation,
			})
		}
	}

	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}
	return result, nil
}

func findBackRelation(related *Model, to, name, fieldName string) *Field {
	for i := range related.Fields {
		f := &related.Fields[i]
		if !f.IsRelation() {
			continue
		}
		if f.Type.Relation.To == to && f.Type.Relation.Name == name && f.Name != fieldName {
			return f
		}
	}
	return nil
}

// RelationFor returns the relation a field belongs to.
func RelationFor(relations []Relation, model, field string) *Relation {
	for i := range relations {
		r := &relations[i]
		if (r.ModelA == model && r.FieldA == field) || (r.ModelB == model && r.FieldB == field) {
			return r
		}
	}
	return nil
}
