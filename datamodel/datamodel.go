// Package datamodel contains the declarative data model exchanged between the
// migration engine, the migration log and the query engine. Datamodels are
// stored and transferred as JSON.
package datamodel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Datamodel is the declarative description of models and enums.
type Datamodel struct {
	Models []Model `json:"models"`
	Enums  []Enum  `json:"enums"`
}

// Model represents a model declaration.
type Model struct {
	Name       string  `json:"name"`
	DBName     string  `json:"dbName,omitempty"`
	IsEmbedded bool    `json:"isEmbedded,omitempty"`
	Fields     []Field `json:"fields"`
}

// Field represents a model field.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Arity       Arity     `json:"arity"`
	DBName      string    `json:"dbName,omitempty"`
	IsID        bool      `json:"isId,omitempty"`
	IsUnique    bool      `json:"isUnique,omitempty"`
	Default     *Default  `json:"default,omitempty"`
	IsCreatedAt bool      `json:"isCreatedAt,omitempty"`
	IsUpdatedAt bool      `json:"isUpdatedAt,omitempty"`
}

// Arity is the cardinality of a field.
type Arity string

const (
	Required Arity = "required"
	Optional Arity = "optional"
	List     Arity = "list"
)

// TypeKind discriminates FieldType.
type TypeKind string

const (
	KindScalar   TypeKind = "scalar"
	KindEnum     TypeKind = "enum"
	KindRelation TypeKind = "relation"
)

// ScalarType is one of the built-in scalar types.
type ScalarType string

const (
	Int      ScalarType = "Int"
	Float    ScalarType = "Float"
	Decimal  ScalarType = "Decimal"
	Boolean  ScalarType = "Boolean"
	String   ScalarType = "String"
	DateTime ScalarType = "DateTime"
	JSON     ScalarType = "Json"
)

// FieldType is the type of a field: a scalar, an enum reference or a relation.
type FieldType struct {
	Kind     TypeKind      `json:"kind"`
	Scalar   ScalarType    `json:"scalar,omitempty"`
	Enum     string        `json:"enum,omitempty"`
	Relation *RelationInfo `json:"relation,omitempty"`
}

// RelationInfo describes the target of a relation field.
type RelationInfo struct {
	To string `json:"to"`
	// Name pairs the two sides of a relation. Empty means the default name.
	Name string `json:"name,omitempty"`
	// ToFields marks this side as the one holding the foreign key.
	ToFields []string `json:"toFields,omitempty"`
	OnDelete string   `json:"onDelete,omitempty"`
}

// Default is a default value: either a function or a literal.
type Default struct {
	Function string `json:"function,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Default functions.
const (
	FuncAutoincrement = "autoincrement"
	FuncNow           = "now"
	FuncCUID          = "cuid"
	FuncUUID          = "uuid"
)

// Enum represents an enum declaration.
type Enum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ScalarOf builds a scalar field type.
func ScalarOf(t ScalarType) FieldType {
	return FieldType{Kind: KindScalar, Scalar: t}
}

// EnumOf builds an enum field type.
func EnumOf(name string) FieldType {
	return FieldType{Kind: KindEnum, Enum: name}
}

// RelationTo builds a relation field type.
func RelationTo(model, name string) FieldType {
	return FieldType{Kind: KindRelation, Relation: &RelationInfo{To: model, Name: name}}
}

// Empty returns a datamodel without models or enums.
func Empty() *Datamodel {
	return &Datamodel{Models: []Model{}, Enums: []Enum{}}
}

// Parse decodes a JSON datamodel. Unknown keys are rejected.
func Parse(data []byte) (*Datamodel, error) {
	dm := Empty()
	if len(bytes.TrimSpace(data)) == 0 {
		return dm, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dm); err != nil {
		return nil, fmt.Errorf("failed to parse datamodel: %w", err)
	}
	if dm.Models == nil {
		dm.Models = []Model{}
	}
	if dm.Enums == nil {
		dm.Enums = []Enum{}
	}
	return dm, nil
}

// Marshal encodes the datamodel as JSON.
func (d *Datamodel) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Clone returns a deep copy of the datamodel.
func (d *Datamodel) Clone() *Datamodel {
	out := &Datamodel{
		Models: make([]Model, len(d.Models)),
		Enums:  make([]Enum, len(d.Enums)),
	}
	for i, m := range d.Models {
		out.Models[i] = m.clone()
	}
	for i, e := range d.Enums {
		out.Enums[i] = Enum{Name: e.Name, Values: append([]string(nil), e.Values...)}
	}
	return out
}

func (m Model) clone() Model {
	fields := make([]Field, len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = f.Clone()
	}
	m.Fields = fields
	return m
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	if f.Default != nil {
		d := *f.Default
		f.Default = &d
	}
	if f.Type.Relation != nil {
		r := *f.Type.Relation
		r.ToFields = append([]string(nil), r.ToFields...)
		f.Type.Relation = &r
	}
	return f
}

// FindModel looks up a model by name.
func (d *Datamodel) FindModel(name string) *Model {
	for i := range d.Models {
		if d.Models[i].Name == name {
			return &d.Models[i]
		}
	}
	return nil
}

// FindEnum looks up an enum by name.
func (d *Datamodel) FindEnum(name string) *Enum {
	for i := range d.Enums {
		if d.Enums[i].Name == name {
			return &d.Enums[i]
		}
	}
	return nil
}

// FindField looks up a field by name.
func (m *Model) FindField(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// TableName returns the database name of the model.
func (m *Model) TableName() string {
	if m.DBName != "" {
		return m.DBName
	}
	return m.Name
}

// IDField returns the id field of the model, if any.
func (m *Model) IDField() *Field {
	for i := range m.Fields {
		if m.Fields[i].IsID {
			return &m.Fields[i]
		}
	}
	return nil
}

// ColumnName returns the database name of the field.
func (f *Field) ColumnName() string {
	if f.DBName != "" {
		return f.DBName
	}
	return f.Name
}

func (f *Field) IsRelation() bool { return f.Type.Kind == KindRelation }
func (f *Field) IsList() bool     { return f.Arity == List }
func (f *Field) IsRequired() bool { return f.Arity == Required }

// IsScalarList reports list-valued scalar or enum fields.
func (f *Field) IsScalarList() bool {
	return f.IsList() && !f.IsRelation()
}

// HasDefaultFunction reports whether the default is the given function.
func (f *Field) HasDefaultFunction(fn string) bool {
	return f.Default != nil && f.Default.Function == fn
}
