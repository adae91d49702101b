// Package steps defines datamodel migration steps: the user facing edit
// script that turns one datamodel into the next.
package steps

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/jsonunion"
)

// StepType discriminates migration steps in their JSON form.
type StepType string

const (
	StepCreateModel StepType = "CreateModel"
	StepUpdateModel StepType = "UpdateModel"
	StepDeleteModel StepType = "DeleteModel"
	StepCreateField StepType = "CreateField"
	StepUpdateField StepType = "UpdateField"
	StepDeleteField StepType = "DeleteField"
	StepCreateEnum  StepType = "CreateEnum"
	StepUpdateEnum  StepType = "UpdateEnum"
	StepDeleteEnum  StepType = "DeleteEnum"
)

// MigrationStep is one datamodel edit.
type MigrationStep interface {
	StepType() StepType
	isMigrationStep()
}

type CreateModel struct {
	Name     string  `json:"name"`
	DBName   *string `json:"dbName,omitempty"`
	Embedded bool    `json:"embedded"`
}

// UpdateModel changes the attributes that are set. An empty DBName resets
// the database name.
type UpdateModel struct {
	Name     string  `json:"name"`
	NewName  *string `json:"newName,omitempty"`
	DBName   *string `json:"dbName,omitempty"`
	Embedded *bool   `json:"embedded,omitempty"`
}

type DeleteModel struct {
	Name string `json:"name"`
}

type CreateField struct {
	Model       string              `json:"model"`
	Name        string              `json:"name"`
	Type        datamodel.FieldType `json:"type"`
	Arity       datamodel.Arity     `json:"arity"`
	DBName      *string             `json:"dbName,omitempty"`
	IsCreatedAt *bool               `json:"isCreatedAt,omitempty"`
	IsUpdatedAt *bool               `json:"isUpdatedAt,omitempty"`
	IsID        *bool               `json:"isId,omitempty"`
	IsUnique    *bool               `json:"isUnique,omitempty"`
	Default     *datamodel.Default  `json:"default,omitempty"`
}

// UpdateField changes the attributes that are set. An empty DBName resets
// the database name and an empty Default removes the default.
type UpdateField struct {
	Model       string               `json:"model"`
	Name        string               `json:"name"`
	NewName     *string              `json:"newName,omitempty"`
	Type        *datamodel.FieldType `json:"type,omitempty"`
	Arity       *datamodel.Arity     `json:"arity,omitempty"`
	DBName      *string              `json:"dbName,omitempty"`
	IsCreatedAt *bool                `json:"isCreatedAt,omitempty"`
	IsUpdatedAt *bool                `json:"isUpdatedAt,omitempty"`
	IsID        *bool                `json:"isId,omitempty"`
	IsUnique    *bool                `json:"isUnique,omitempty"`
	Default     *datamodel.Default   `json:"default,omitempty"`
}

// IsAnyOptionSet reports whether the step changes anything.
func (s UpdateField) IsAnyOptionSet() bool {
	return s.NewName != nil || s.Type != nil || s.Arity != nil || s.DBName != nil ||
		s.IsCreatedAt != nil || s.IsUpdatedAt != nil || s.IsID != nil ||
		s.IsUnique != nil || s.Default != nil
}

type DeleteField struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

type CreateEnum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type UpdateEnum struct {
	Name    string   `json:"name"`
	NewName *string  `json:"newName,omitempty"`
	Values  []string `json:"values,omitempty"`
}

type DeleteEnum struct {
	Name string `json:"name"`
}

func (CreateModel) StepType() StepType { return StepCreateModel }
func (UpdateModel) StepType() StepType { return StepUpdateModel }
func (DeleteModel) StepType() StepType { return StepDeleteModel }
func (CreateField) StepType() StepType { return StepCreateField }
func (UpdateField) StepType() StepType { return StepUpdateField }
func (DeleteField) StepType() StepType { return StepDeleteField }
func (CreateEnum) StepType() StepType  { return StepCreateEnum }
func (UpdateEnum) StepType() StepType  { return StepUpdateEnum }
func (DeleteEnum) StepType() StepType  { return StepDeleteEnum }

func (CreateModel) isMigrationStep() {}
func (UpdateModel) isMigrationStep() {}
func (DeleteModel) isMigrationStep() {}
func (CreateField) isMigrationStep() {}
func (UpdateField) isMigrationStep() {}
func (DeleteField) isMigrationStep() {}
func (CreateEnum) isMigrationStep()  {}
func (UpdateEnum) isMigrationStep()  {}
func (DeleteEnum) isMigrationStep()  {}

// Marshal encodes steps as a JSON array tagged with "stepType".
func Marshal(steps []MigrationStep) ([]byte, error) {
	out := make([]json.RawMessage, len(steps))
	for i, s := range steps {
		b, err := jsonunion.Tag("stepType", string(s.StepType()), s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s step: %w", s.StepType(), err)
		}
		out[i] = b
	}
	return json.Marshal(out)
}

// Unmarshal decodes a JSON array of steps. Unknown step types and unknown
// fields are rejected. Empty input decodes to no steps.
func Unmarshal(data []byte) ([]MigrationStep, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []MigrationStep{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode migration steps: %w", err)
	}
	out := make([]MigrationStep, 0, len(raws))
	for i, r := range raws {
		kind, body, err := jsonunion.Untag("stepType", r)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		var step MigrationStep
		switch StepType(kind) {
		case StepCreateModel:
			step, err = jsonunion.DecodeAs[CreateModel](body)
		case StepUpdateModel:
			step, err = jsonunion.DecodeAs[UpdateModel](body)
		case StepDeleteModel:
			step, err = jsonunion.DecodeAs[DeleteModel](body)
		case StepCreateField:
			step, err = jsonunion.DecodeAs[CreateField](body)
		case StepUpdateField:
			step, err = jsonunion.DecodeAs[UpdateField](body)
		case StepDeleteField:
			step, err = jsonunion.DecodeAs[DeleteField](body)
		case StepCreateEnum:
			step, err = jsonunion.DecodeAs[CreateEnum](body)
		case StepUpdateEnum:
			step, err = jsonunion.DecodeAs[UpdateEnum](body)
		case StepDeleteEnum:
			step, err = jsonunion.DecodeAs[DeleteEnum](body)
		default:
			return nil, fmt.Errorf("step %d: unknown stepType %q", i, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, kind, err)
		}
		out = append(out, step)
	}
	return out, nil
}

// Equal compares two step lists as ordered lists.
func Equal(a, b []MigrationStep) bool {
	ea, err := Marshal(a)
	if err != nil {
		return false
	}
	eb, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
