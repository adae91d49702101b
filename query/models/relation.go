package models

// Relation links two relation fields.
type Relation struct {
	Name          string
	ModelA        string
	ModelB        string
	FieldA        string
	FieldB        string
	Manifestation Manifestation

	schema     *Schema
	inlineSide RelationSide
}

// Manifestation is how a relation is stored: Inline or RelationTable.
type Manifestation interface {
	isManifestation()
}

// Inline stores the relation as a foreign key column in the table of
// InTableOfModel.
type Inline struct {
	InTableOfModel    string
	ReferencingColumn string
}

// RelationTable stores the relation in a link table.
type RelationTable struct {
	Table        string
	ModelAColumn string
	ModelBColumn string
	// IDColumn is empty for link tables without their own key.
	IDColumn string
}

func (Inline) isManifestation()        {}
func (RelationTable) isManifestation() {}

// IsSelfRelation reports whether both sides point to the same model.
func (r *Relation) IsSelfRelation() bool { return r.ModelA == r.ModelB }

// Model returns the model on side.
func (r *Relation) Model(side RelationSide) *Model {
	if side == SideA {
		return r.schema.models[r.ModelA]
	}
	return r.schema.models[r.ModelB]
}

// FieldFor returns the relation field on side.
func (r *Relation) FieldFor(side RelationSide) *RelationField {
	name := r.FieldB
	if side == SideA {
		name = r.FieldA
	}
	return r.Model(side).RelationField(name)
}

// Table returns the table rows of the relation live in. For inline
// relations this is the table holding the foreign key.
func (r *Relation) Table() string {
	switch m := r.Manifestation.(type) {
	case Inline:
		return r.schema.models[m.InTableOfModel].Table()
	case RelationTable:
		return m.Table
	}
	return ""
}

// ColumnForSide returns the column of Table() identifying the record of the
// model on side. For inline relations the side owning the foreign key is
// identified by its id column and the other side by the foreign key.
func (r *Relation) ColumnForSide(side RelationSide) string {
	switch m := r.Manifestation.(type) {
	case Inline:
		if side == r.inlineSide {
			return r.schema.models[m.InTableOfModel].IDField().ColumnName()
		}
		return m.ReferencingColumn
	case RelationTable:
		if side == SideA {
			return m.ModelAColumn
		}
		return m.ModelBColumn
	}
	return ""
}

// InlineColumn returns the foreign key column of an inline relation.
func (r *Relation) InlineColumn() (string, bool) {
	if m, ok := r.Manifestation.(Inline); ok {
		return m.ReferencingColumn, true
	}
	return "", false
}
