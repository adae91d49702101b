// Package converter calculates the database schema a datamodel requires.
package converter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// Scalar list table columns.
const (
	ScalarListNodeID   = "nodeId"
	ScalarListPosition = "position"
	ScalarListValue    = "value"
)

// ScalarListTableName returns the table holding the values of a scalar list field.
func ScalarListTableName(model *datamodel.Model, field *datamodel.Field) string {
	return model.TableName() + "_" + field.ColumnName()
}

// RelationTableIndexName returns the unique index of a relation table.
func RelationTableIndexName(relationTable string) string {
	return relationTable + "_AB_unique"
}

// UniqueIndexName returns the name of the index backing a unique field.
func UniqueIndexName(table, column string) string {
	return fmt.Sprintf("%s.%s._UNIQUE", table, column)
}

// ConvertDatamodel calculates the DatabaseSchema for dm. Tables come out in
// the order model tables, scalar list tables, relation tables.
func ConvertDatamodel(dm *datamodel.Datamodel) (*introspect.DatabaseSchema, error) {
	relations, err := datamodel.CalculateRelations(dm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate relations: %w", err)
	}

	schema := introspect.Empty()
	for i := range dm.Models {
		model := &dm.Models[i]
		if model.IsEmbedded {
			continue
		}
		table, err := convertModelToTable(dm, model, relations)
		if err != nil {
			return nil, fmt.Errorf("failed to convert model %s: %w", model.Name, err)
		}
		schema.Tables = append(schema.Tables, *table)
	}

	for i := range dm.Models {
		model := &dm.Models[i]
		if model.IsEmbedded {
			continue
		}
		lists, err := scalarListTables(model)
		if err != nil {
			return nil, fmt.Errorf("failed to convert model %s: %w", model.Name, err)
		}
		schema.Tables = append(schema.Tables, lists...)
	}

	for _, rel := range relations {
		if rel.Manifestation.Kind != datamodel.ManifestTable {
			continue
		}
		table, err := relationTable(dm, rel)
		if err != nil {
			return nil, fmt.Errorf("failed to convert relation %s: %w", rel.Name, err)
		}
		schema.Tables = append(schema.Tables, *table)
	}

	debug.Debug("Converted datamodel", "models", len(dm.Models), "tables", len(schema.Tables))
	return schema, nil
}

// convertModelToTable builds the table of a model including the foreign key
// columns of the relations inlined into it.
func convertModelToTable(dm *datamodel.Datamodel, model *datamodel.Model, relations []datamodel.Relation) (*introspect.Table, error) {
	id := model.IDField()
	if id == nil {
		return nil, fmt.Errorf("model %s does not have an id field", model.Name)
	}

	tableName := model.TableName()
	table := &introspect.Table{
		Name:       tableName,
		Columns:    []introspect.Column{},
		PrimaryKey: &introspect.PrimaryKey{Columns: []string{id.ColumnName()}},
	}

	for i := range model.Fields {
		field := &model.Fields[i]
		if field.IsRelation() || field.IsList() {
			continue
		}
		column, err := convertFieldToColumn(field)
		if err != nil {
			return nil, fmt.Errorf("failed to convert field %s: %w", field.Name, err)
		}
		table.Columns = append(table.Columns, column)

		if field.IsUnique && !field.IsID {
			table.Indexes = append(table.Indexes, introspect.Index{
				Name:    UniqueIndexName(tableName, column.Name),
				Columns: []string{column.Name},
				Unique:  true,
			})
		}
	}

	for _, rel := range relations {
		m := rel.Manifestation
		if m.Kind != datamodel.ManifestInline || m.InTableOfModel != model.Name {
			continue
		}
		field := inlineField(model, m.Column)
		if field == nil {
			return nil, fmt.Errorf("relation %s has no field for column %s", rel.Name, m.Column)
		}
		related := dm.FindModel(field.Type.Relation.To)
		relatedID := related.IDField()
		if relatedID == nil {
			return nil, fmt.Errorf("related model %s does not have an id field", related.Name)
		}

		tpe, err := columnType(relatedID)
		if err != nil {
			return nil, err
		}
		arity := introspect.Nullable
		if field.IsRequired() {
			arity = introspect.Required
		}
		table.Columns = append(table.Columns, introspect.Column{Name: m.Column, Type: tpe, Arity: arity})
		table.ForeignKeys = append(table.ForeignKeys, introspect.ForeignKey{
			Columns:           []string{m.Column},
			ReferencedTable:   related.TableName(),
			ReferencedColumns: []string{relatedID.ColumnName()},
			OnDelete:          introspect.ActionSetNull,
		})
	}

	sort.Slice(table.Indexes, func(i, j int) bool { return table.Indexes[i].Name < table.Indexes[j].Name })
	return table, nil
}

// inlineField finds the relation field stored in column.
func inlineField(model *datamodel.Model, column string) *datamodel.Field {
	for i := range model.Fields {
		f := &model.Fields[i]
		if f.IsRelation() && !f.IsList() && f.ColumnName() == column {
			return f
		}
	}
	return nil
}

// convertFieldToColumn converts a scalar or enum field.
func convertFieldToColumn(field *datamodel.Field) (introspect.Column, error) {
	tpe, err := columnType(field)
	if err != nil {
		return introspect.Column{}, err
	}
	column := introspect.Column{
		Name:  field.ColumnName(),
		Type:  tpe,
		Arity: introspect.Nullable,
	}
	if field.IsRequired() {
		column.Arity = introspect.Required
	}
	if field.HasDefaultFunction(datamodel.FuncAutoincrement) {
		if tpe.Family != introspect.FamilyInt {
			return introspect.Column{}, fmt.Errorf("autoincrement requires an Int field")
		}
		column.AutoIncrement = true
		return column, nil
	}
	if def := defaultValue(field, tpe); def != nil {
		column.Default = def
	}
	return column, nil
}

// scalarListTables builds one `<Model>_<field>(nodeId, position, value)`
// table per scalar list field.
func scalarListTables(model *datamodel.Model) ([]introspect.Table, error) {
	var tables []introspect.Table
	for i := range model.Fields {
		field := &model.Fields[i]
		if !field.IsScalarList() {
			continue
		}
		id := model.IDField()
		if id == nil {
			return nil, fmt.Errorf("model %s does not have an id field", model.Name)
		}
		idType, err := columnType(id)
		if err != nil {
			return nil, err
		}
		valueType, err := columnType(field)
		if err != nil {
			return nil, fmt.Errorf("failed to convert field %s: %w", field.Name, err)
		}
		tables = append(tables, introspect.Table{
			Name: ScalarListTableName(model, field),
			Columns: []introspect.Column{
				{Name: ScalarListNodeID, Type: idType, Arity: introspect.Required},
				{Name: ScalarListPosition, Type: introspect.Pure(introspect.FamilyInt), Arity: introspect.Required},
				{Name: ScalarListValue, Type: valueType, Arity: introspect.Required},
			},
			PrimaryKey: &introspect.PrimaryKey{Columns: []string{ScalarListNodeID, ScalarListPosition}},
			ForeignKeys: []introspect.ForeignKey{{
				Columns:           []string{ScalarListNodeID},
				ReferencedTable:   model.TableName(),
				ReferencedColumns: []string{id.ColumnName()},
				OnDelete:          introspect.ActionCascade,
			}},
		})
	}
	return tables, nil
}

// relationTable builds the `_Name(A, B)` link table of a many-to-many relation.
func relationTable(dm *datamodel.Datamodel, rel datamodel.Relation) (*introspect.Table, error) {
	modelA, modelB := dm.FindModel(rel.ModelA), dm.FindModel(rel.ModelB)
	idA, idB := modelA.IDField(), modelB.IDField()
	if idA == nil || idB == nil {
		return nil, fmt.Errorf("both models of relation %s need an id field", rel.Name)
	}
	typeA, err := columnType(idA)
	if err != nil {
		return nil, err
	}
	typeB, err := columnType(idB)
	if err != nil {
		return nil, err
	}

	name := rel.TableName()
	return &introspect.Table{
		Name: name,
		Columns: []introspect.Column{
			{Name: datamodel.ColumnA, Type: typeA, Arity: introspect.Required},
			{Name: datamodel.ColumnB, Type: typeB, Arity: introspect.Required},
		},
		Indexes: []introspect.Index{{
			Name:    RelationTableIndexName(name),
			Columns: []string{datamodel.ColumnA, datamodel.ColumnB},
			Unique:  true,
		}},
		ForeignKeys: []introspect.ForeignKey{
			{
				Columns:           []string{datamodel.ColumnA},
				ReferencedTable:   modelA.TableName(),
				ReferencedColumns: []string{idA.ColumnName()},
				OnDelete:          introspect.ActionCascade,
			},
			{
				Columns:           []string{datamodel.ColumnB},
				ReferencedTable:   modelB.TableName(),
				ReferencedColumns: []string{idB.ColumnName()},
				OnDelete:          introspect.ActionCascade,
			},
		},
	}, nil
}

// columnType maps a field type onto a column family. Enums are stored as
// strings and decimals as floats.
func columnType(field *datamodel.Field) (introspect.ColumnType, error) {
	switch field.Type.Kind {
	case datamodel.KindEnum:
		return introspect.Pure(introspect.FamilyString), nil
	case datamodel.KindScalar:
		switch field.Type.Scalar {
		case datamodel.Int:
			return introspect.Pure(introspect.FamilyInt), nil
		case datamodel.Float, datamodel.Decimal:
			return introspect.Pure(introspect.FamilyFloat), nil
		case datamodel.Boolean:
			return introspect.Pure(introspect.FamilyBoolean), nil
		case datamodel.String:
			return introspect.Pure(introspect.FamilyString), nil
		case datamodel.DateTime:
			return introspect.Pure(introspect.FamilyDateTime), nil
		case datamodel.JSON:
			return introspect.Pure(introspect.FamilyJSON), nil
		}
	}
	return introspect.ColumnType{}, fmt.Errorf("field %s of type %s has no column type", field.Name, field.Type.Kind)
}

// defaultValue renders a datamodel default as a SQL literal. Id generating
// functions are filled in by the query engine and have no database default.
func defaultValue(field *datamodel.Field, tpe introspect.ColumnType) *string {
	d := field.Default
	if d == nil {
		return nil
	}
	var out string
	switch d.Function {
	case datamodel.FuncNow:
		out = "CURRENT_TIMESTAMP"
	case datamodel.FuncCUID, datamodel.FuncUUID, datamodel.FuncAutoincrement:
		return nil
	case "":
		switch tpe.Family {
		case introspect.FamilyInt, introspect.FamilyFloat:
			out = d.Value
		case introspect.FamilyBoolean:
			out = strings.ToLower(d.Value)
		default:
			out = "'" + strings.ReplaceAll(d.Value, "'", "''") + "'"
		}
	default:
		return nil
	}
	return &out
}
