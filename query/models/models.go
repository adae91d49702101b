// Package models is the query engine's view of a datamodel: models, fields
// and relations linked into one arena so any node can reach its neighbours.
package models

import (
	"fmt"
	"sort"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/converter"
)

// Schema owns every model and relation of a datamodel.
type Schema struct {
	Models    []*Model
	Relations []*Relation

	models    map[string]*Model
	relations map[string]*Relation
}

// Model is a record type backed by one table.
type Model struct {
	Name           string
	DBName         string
	ScalarFields   []*ScalarField
	RelationFields []*RelationField

	schema *Schema
}

// ScalarField is a scalar or enum field. Enum fields carry Type String and
// the enum name in Enum.
type ScalarField struct {
	Name        string
	DBName      string
	Type        datamodel.ScalarType
	Enum        string
	IsRequired  bool
	IsList      bool
	IsUnique    bool
	IsID        bool
	Default     *datamodel.Default
	IsCreatedAt bool
	IsUpdatedAt bool

	model     *Model
	listTable string
}

// RelationSide tells which end of a relation a field sits on.
type RelationSide int

const (
	SideA RelationSide = iota
	SideB
)

// Opposite returns the other side.
func (s RelationSide) Opposite() RelationSide {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s RelationSide) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// RelationField is one end of a relation.
type RelationField struct {
	Name         string
	RelationName string
	Side         RelationSide
	IsRequired   bool
	IsList       bool

	model   *Model
	related string
	column  string
}

// New links dm into a Schema. Relations are paired and given a
// manifestation by datamodel.CalculateRelations.
func New(dm *datamodel.Datamodel) (*Schema, error) {
	rels, err := datamodel.CalculateRelations(dm)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		models:    make(map[string]*Model, len(dm.Models)),
		relations: make(map[string]*Relation, len(rels)),
	}

	for i := range dm.Models {
		dmModel := &dm.Models[i]
		if dmModel.IDField() == nil {
			return nil, fmt.Errorf("model %s does not have an id field", dmModel.Name)
		}
		m := &Model{Name: dmModel.Name, DBName: dmModel.DBName, schema: s}
		for j := range dmModel.Fields {
			f := &dmModel.Fields[j]
			if f.IsRelation() {
				continue
			}
			sf := &ScalarField{
				Name:        f.Name,
				DBName:      f.DBName,
				Type:        f.Type.Scalar,
				IsRequired:  f.IsRequired(),
				IsList:      f.IsList(),
				IsUnique:    f.IsUnique,
				IsID:        f.IsID,
				Default:     f.Default,
				IsCreatedAt: f.IsCreatedAt,
				IsUpdatedAt: f.IsUpdatedAt,
				model:       m,
			}
			if f.Type.Kind == datamodel.KindEnum {
				sf.Type = datamodel.String
				sf.Enum = f.Type.Enum
			}
			if f.IsScalarList() {
				sf.listTable = converter.ScalarListTableName(dmModel, f)
			}
			m.ScalarFields = append(m.ScalarFields, sf)
		}
		s.Models = append(s.Models, m)
		s.models[m.Name] = m
	}

	for i := range rels {
		rel := rels[i]
		r := &Relation{
			Name:   rel.Name,
			ModelA: rel.ModelA,
			ModelB: rel.ModelB,
			FieldA: rel.FieldA,
			FieldB: rel.FieldB,
			schema: s,
		}
		switch rel.Manifestation.Kind {
		case datamodel.ManifestInline:
			r.Manifestation = Inline{
				InTableOfModel:    rel.Manifestation.InTableOfModel,
				ReferencingColumn: rel.Manifestation.Column,
			}
		default:
			r.Manifestation = RelationTable{
				Table:        rel.TableName(),
				ModelAColumn: datamodel.ColumnA,
				ModelBColumn: datamodel.ColumnB,
			}
		}
		s.Relations = append(s.Relations, r)
		s.relations[r.Name] = r
	}

	for i := range dm.Models {
		dmModel := &dm.Models[i]
		m := s.models[dmModel.Name]
		for j := range dmModel.Fields {
			f := &dmModel.Fields[j]
			if !f.IsRelation() {
				continue
			}
			rel := datamodel.RelationFor(rels, dmModel.Name, f.Name)
			if rel == nil {
				return nil, fmt.Errorf("field %s.%s does not belong to a relation", dmModel.Name, f.Name)
			}
			side := SideB
			if rel.ModelA == dmModel.Name && rel.FieldA == f.Name {
				side = SideA
			}
			m.RelationFields = append(m.RelationFields, &RelationField{
				Name:         f.Name,
				RelationName: rel.Name,
				Side:         side,
				IsRequired:   f.IsRequired(),
				IsList:       f.IsList(),
				model:        m,
				related:      f.Type.Relation.To,
				column:       f.ColumnName(),
			})
		}
	}

	for _, r := range s.Relations {
		if inline, ok := r.Manifestation.(Inline); ok {
			r.inlineSide = SideB
			if r.ModelA == inline.InTableOfModel && r.FieldFor(SideA).column == inline.ReferencingColumn {
				r.inlineSide = SideA
			}
		}
	}
	return s, nil
}

// FindModel returns the model called name, or nil.
func (s *Schema) FindModel(name string) *Model {
	return s.models[name]
}

// FindRelation returns the relation called name, or nil.
func (s *Schema) FindRelation(name string) *Relation {
	return s.relations[name]
}

// ModelNames returns the model names in sorted order.
func (s *Schema) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for _, m := range s.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the arena the model belongs to.
func (m *Model) Schema() *Schema { return m.schema }

// Table returns the table name.
func (m *Model) Table() string {
	if m.DBName != "" {
		return m.DBName
	}
	return m.Name
}

// IDField returns the primary key field. New guarantees one exists.
func (m *Model) IDField() *ScalarField {
	for _, f := range m.ScalarFields {
		if f.IsID {
			return f
		}
	}
	return nil
}

// ScalarField returns the scalar field called name, or nil.
func (m *Model) ScalarField(name string) *ScalarField {
	for _, f := range m.ScalarFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RelationField returns the relation field called name, or nil.
func (m *Model) RelationField(name string) *RelationField {
	for _, f := range m.RelationFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ColumnFields returns the scalar fields stored in the model's own table.
func (m *Model) ColumnFields() []*ScalarField {
	out := make([]*ScalarField, 0, len(m.ScalarFields))
	for _, f := range m.ScalarFields {
		if !f.IsList {
			out = append(out, f)
		}
	}
	return out
}

// ListFields returns the scalar list fields.
func (m *Model) ListFields() []*ScalarField {
	var out []*ScalarField
	for _, f := range m.ScalarFields {
		if f.IsList {
			out = append(out, f)
		}
	}
	return out
}

// InlineRelationFields returns the relation fields whose foreign key lives in
// the model's table.
func (m *Model) InlineRelationFields() []*RelationField {
	var out []*RelationField
	for _, f := range m.RelationFields {
		if f.IsInlinedInParent() {
			out = append(out, f)
		}
	}
	return out
}

func (f *ScalarField) Model() *Model { return f.model }

// ColumnName returns the database column of the field.
func (f *ScalarField) ColumnName() string {
	if f.DBName != "" {
		return f.DBName
	}
	return f.Name
}

// ScalarListTable returns the `<Model>_<field>` table of a list field.
func (f *ScalarField) ScalarListTable() string { return f.listTable }

// IsAutoIncrement reports whether the database generates the value.
func (f *ScalarField) IsAutoIncrement() bool {
	return f.Default != nil && f.Default.Function == datamodel.FuncAutoincrement
}

func (f *RelationField) Model() *Model { return f.model }

// Relation returns the relation the field belongs to.
func (f *RelationField) Relation() *Relation {
	return f.model.schema.relations[f.RelationName]
}

// RelatedModel returns the model on the other end.
func (f *RelationField) RelatedModel() *Model {
	return f.model.schema.models[f.related]
}

// RelatedField returns the back-relation field.
func (f *RelationField) RelatedField() *RelationField {
	return f.Relation().FieldFor(f.Side.Opposite())
}

// ColumnName is the foreign key column used when the field is inlined.
func (f *RelationField) ColumnName() string { return f.column }

// IsInlinedInParent reports whether the field's own model stores the
// foreign key for this field.
func (f *RelationField) IsInlinedInParent() bool {
	r := f.Relation()
	_, ok := r.Manifestation.(Inline)
	return ok && r.inlineSide == f.Side
}

// RelationIsInlinedInParent reports whether the relation is stored in the
// field's model table, regardless of which self-relation field owns it.
func (f *RelationField) RelationIsInlinedInParent() bool {
	inline, ok := f.Relation().Manifestation.(Inline)
	return ok && inline.InTableOfModel == f.model.Name
}

// RelationColumn is the column of the relation table identifying the
// record that owns f.
func (f *RelationField) RelationColumn() string {
	return f.Relation().ColumnForSide(f.Side)
}

// OppositeColumn is the column of the relation table identifying the
// related record.
func (f *RelationField) OppositeColumn() string {
	return f.Relation().ColumnForSide(f.Side.Opposite())
}
