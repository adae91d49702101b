// Package ast defines the write query AST: one root operation per request
// with its nested relation writes, and the set that orders dependent trees.
package ast

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
)

// Args holds the non-list values of a write keyed by field name. A relation
// field key holds the related record's id, or a NodeSelector resolved at
// execution time, and sets the foreign key of a relation inlined in the
// record's own table.
type Args map[string]interface{}

// ListArgs holds the replacement values of scalar list fields.
type ListArgs map[string][]interface{}

// NodeSelector identifies one record by a unique field.
type NodeSelector struct {
	Field *models.ScalarField
	Value interface{}
}

// Filter returns the selector as a filter.
func (s NodeSelector) Filter() filter.Filter {
	return filter.EqualsValue(s.Field, s.Value)
}

func (s NodeSelector) String() string {
	return fmt.Sprintf("%s.%s = %v", s.Field.Model().Name, s.Field.Name, s.Value)
}

// RootWriteQuery is the top-level operation of a tree.
type RootWriteQuery interface {
	TargetModel() *models.Model
}

type CreateRecord struct {
	Model    *models.Model
	Args     Args
	ListArgs ListArgs
	Nested   NestedWriteQueries
}

type UpdateRecord struct {
	Model    *models.Model
	Where    NodeSelector
	Args     Args
	ListArgs ListArgs
	Nested   NestedWriteQueries
}

type UpsertRecord struct {
	Model  *models.Model
	Where  NodeSelector
	Create *CreateRecord
	Update *UpdateRecord
}

type DeleteRecord struct {
	Model *models.Model
	Where NodeSelector
}

type UpdateManyRecords struct {
	Model    *models.Model
	Filter   filter.Filter
	Args     Args
	ListArgs ListArgs
}

type DeleteManyRecords struct {
	Model  *models.Model
	Filter filter.Filter
}

func (q *CreateRecord) TargetModel() *models.Model      { return q.Model }
func (q *UpdateRecord) TargetModel() *models.Model      { return q.Model }
func (q *UpsertRecord) TargetModel() *models.Model      { return q.Model }
func (q *DeleteRecord) TargetModel() *models.Model      { return q.Model }
func (q *UpdateManyRecords) TargetModel() *models.Model { return q.Model }
func (q *DeleteManyRecords) TargetModel() *models.Model { return q.Model }

// NestedWriteQueries are the relation writes attached to a record.
type NestedWriteQueries struct {
	Creates     []*NestedCreateRecord
	Updates     []*NestedUpdateRecord
	Upserts     []*NestedUpsertRecord
	Deletes     []*NestedDeleteRecord
	Connects    []*NestedConnect
	Sets        []*NestedSet
	Disconnects []*NestedDisconnect
	UpdateManys []*NestedUpdateManyRecords
	DeleteManys []*NestedDeleteManyRecords
}

// IsEmpty reports whether there is nothing to do.
func (n *NestedWriteQueries) IsEmpty() bool {
	return len(n.Creates) == 0 && len(n.Updates) == 0 && len(n.Upserts) == 0 &&
		len(n.Deletes) == 0 && len(n.Connects) == 0 && len(n.Sets) == 0 &&
		len(n.Disconnects) == 0 && len(n.UpdateManys) == 0 && len(n.DeleteManys) == 0
}

// NestedCreateRecord creates a record related to the parent through
// RelationField. TopIsCreate is set when the parent is being created in the
// same request.
type NestedCreateRecord struct {
	RelationField *models.RelationField
	Model         *models.Model
	Args          Args
	ListArgs      ListArgs
	Nested        NestedWriteQueries
	TopIsCreate   bool
}

// NestedUpdateRecord updates a related record. Where is nil for to-one
// relations.
type NestedUpdateRecord struct {
	RelationField *models.RelationField
	Where         *NodeSelector
	Args          Args
	ListArgs      ListArgs
	Nested        NestedWriteQueries
}

type NestedUpsertRecord struct {
	RelationField *models.RelationField
	Where         *NodeSelector
	Create        *NestedCreateRecord
	Update        *NestedUpdateRecord
}

type NestedDeleteRecord struct {
	RelationField *models.RelationField
	Where         *NodeSelector
}

type NestedConnect struct {
	RelationField *models.RelationField
	Where         NodeSelector
	TopIsCreate   bool
}

// NestedSet replaces every related record of a list relation.
type NestedSet struct {
	RelationField *models.RelationField
	Wheres        []NodeSelector
}

type NestedDisconnect struct {
	RelationField *models.RelationField
	Where         *NodeSelector
}

type NestedUpdateManyRecords struct {
	RelationField *models.RelationField
	Filter        filter.Filter
	Args          Args
	ListArgs      ListArgs
}

type NestedDeleteManyRecords struct {
	RelationField *models.RelationField
	Filter        filter.Filter
}

// WriteQueryTree is a root operation and everything nested in it.
type WriteQueryTree struct {
	Name string
	Root RootWriteQuery
}

// WriteQuerySet is Single or Dependents.
type WriteQuerySet interface {
	isWriteQuerySet()
}

// Single is one independent tree.
type Single struct {
	Tree WriteQueryTree
}

// Dependents runs Self first and feeds the id it generates into Next
// through the relation field Via of Next's base tree.
type Dependents struct {
	Self WriteQueryTree
	Next WriteQuerySet
	Via  *models.RelationField
}

func (*Single) isWriteQuerySet()     {}
func (*Dependents) isWriteQuerySet() {}

// BaseTree returns the tree at the end of the chain.
func BaseTree(set WriteQuerySet) *WriteQueryTree {
	for {
		switch s := set.(type) {
		case *Single:
			return &s.Tree
		case *Dependents:
			set = s.Next
		default:
			return nil
		}
	}
}

// ArgsOf returns the argument map of a root that creates or updates a
// record, creating it when missing.
func ArgsOf(root RootWriteQuery) (Args, bool) {
	var args *Args
	switch r := root.(type) {
	case *CreateRecord:
		args = &r.Args
	case *UpdateRecord:
		args = &r.Args
	case *UpsertRecord:
		args = &r.Create.Args
	default:
		return nil, false
	}
	if *args == nil {
		*args = Args{}
	}
	return *args, true
}
