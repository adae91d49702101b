// Package runtime holds the error taxonomy shared by the migration and query engines.
package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors below match these through errors.Is.
var (
	// ErrValidation is returned for caller-fixable problems detected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrConnection is returned when the database cannot be reached or authenticated against.
	ErrConnection = errors.New("database connection failed")

	// ErrUniqueConstraint is returned when a unique constraint is violated.
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrNullConstraint is returned when a required field would be stored as null.
	ErrNullConstraint = errors.New("null constraint violation")

	// ErrRelationViolation is returned when a required relation would be broken.
	ErrRelationViolation = errors.New("relation violation")

	// ErrNotConnected is returned when records are not linked through the expected relation.
	ErrNotConnected = errors.New("records not connected")

	// ErrNotFound is returned when a where selector matched no record.
	ErrNotFound = errors.New("record not found")

	// ErrConversion is returned when a stored value cannot be decoded.
	ErrConversion = errors.New("conversion error")

	// ErrInternal marks broken engine invariants.
	ErrInternal = errors.New("internal error")
)

// ValidationError describes one caller-fixable problem.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Is reports ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects independent validation failures of one request.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(msgs, "; "))
}

// Is reports ErrValidation.
func (errs ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a new error built from the format arguments.
func (errs *ValidationErrors) Add(path, format string, args ...interface{}) {
	*errs = append(*errs, NewValidationError(path, format, args...))
}

// ErrOrNil returns nil for an empty collection.
func (errs ValidationErrors) ErrOrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ConnectionError wraps a failure to reach the database.
type ConnectionError struct {
	Provider string
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s database: %v", e.Provider, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// UniqueConstraintViolation carries the offending field or index name.
type UniqueConstraintViolation struct {
	Field string
}

func (e *UniqueConstraintViolation) Error() string {
	return fmt.Sprintf("unique constraint failed on the field: %s", e.Field)
}

func (e *UniqueConstraintViolation) Is(target error) bool { return target == ErrUniqueConstraint }

// FieldCannotBeNull carries the field that received a null value.
type FieldCannotBeNull struct {
	Field string
}

func (e *FieldCannotBeNull) Error() string {
	return fmt.Sprintf("null constraint failed on the field: %s", e.Field)
}

func (e *FieldCannotBeNull) Is(target error) bool { return target == ErrNullConstraint }

// RelationViolation is raised when a change would break a required relation.
type RelationViolation struct {
	Relation string
	ModelA   string
	ModelB   string
}

func (e *RelationViolation) Error() string {
	return fmt.Sprintf("the change you are trying to make would violate the required relation '%s' between the %s and %s models",
		e.Relation, e.ModelA, e.ModelB)
}

func (e *RelationViolation) Is(target error) bool { return target == ErrRelationViolation }

// RecordFinder describes the where selector of one side of a relation check.
type RecordFinder struct {
	Field string
	Value interface{}
}

func (f *RecordFinder) String() string {
	if f == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s: %v", f.Field, f.Value)
}

// NodesNotConnected is raised when a nested operation targets a record that is
// not linked to its parent.
type NodesNotConnected struct {
	Relation    string
	ParentModel string
	ParentWhere *RecordFinder
	ChildModel  string
	ChildWhere  *RecordFinder
}

func (e *NodesNotConnected) Error() string {
	return fmt.Sprintf("the records for relation '%s' between the %s (%s) and %s (%s) models are not connected",
		e.Relation, e.ParentModel, e.ParentWhere, e.ChildModel, e.ChildWhere)
}

func (e *NodesNotConnected) Is(target error) bool { return target == ErrNotConnected }

// NodeNotFoundForWhere is raised when a unique selector matched zero records.
type NodeNotFoundForWhere struct {
	Model string
	Field string
	Value interface{}
}

func (e *NodeNotFoundForWhere) Error() string {
	return fmt.Sprintf("no %s found for %s = %v", e.Model, e.Field, e.Value)
}

func (e *NodeNotFoundForWhere) Is(target error) bool { return target == ErrNotFound }

// ConversionError describes a value that could not be decoded.
type ConversionError struct {
	Kind  string
	Value string
	Cause error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not convert %s %q: %v", e.Kind, e.Value, e.Cause)
	}
	return fmt.Sprintf("could not convert %s %q", e.Kind, e.Value)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// InternalError marks a violated engine invariant.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// NewInternalError creates an InternalError with a formatted message.
func NewInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind returns a short label used when logging errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInternal):
		return "internal"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrUniqueConstraint), errors.Is(err, ErrNullConstraint),
		errors.Is(err, ErrRelationViolation), errors.Is(err, ErrNotConnected):
		return "constraint"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConversion):
		return "conversion"
	default:
		return "unknown"
	}
}
