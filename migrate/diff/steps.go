package diff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/internal/jsonunion"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// StepType discriminates database migration steps in their JSON form.
type StepType string

const (
	StepCreateTable StepType = "CreateTable"
	StepDropTable   StepType = "DropTable"
	StepRenameTable StepType = "RenameTable"
	StepAlterTable  StepType = "AlterTable"
	StepRawSQL      StepType = "RawSql"
	StepCreateIndex StepType = "CreateIndex"
	StepDropIndex   StepType = "DropIndex"
)

// Step is one database migration step. The set of implementations is closed.
type Step interface {
	StepType() StepType
	// Target is the table the step acts on, or "" for raw SQL.
	Target() string
	isStep()
}

// CreateTable creates a table with its primary key, foreign keys and indexes.
type CreateTable struct {
	Name           string                  `json:"name"`
	Columns        []introspect.Column     `json:"columns"`
	PrimaryColumns []string                `json:"primaryColumns"`
	ForeignKeys    []introspect.ForeignKey `json:"foreignKeys,omitempty"`
	Indexes        []introspect.Index      `json:"indexes,omitempty"`
}

type DropTable struct {
	Name string `json:"name"`
}

type RenameTable struct {
	Name    string `json:"name"`
	NewName string `json:"newName"`
}

// AlterTable aggregates every column change of one table.
type AlterTable struct {
	Table   string        `json:"table"`
	Changes []TableChange `json:"changes"`
}

// RawSQL is a statement without a portable representation, such as a pragma.
type RawSQL struct {
	SQL string `json:"sql"`
}

type CreateIndex struct {
	Table string           `json:"table"`
	Index introspect.Index `json:"index"`
}

type DropIndex struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

func (CreateTable) StepType() StepType { return StepCreateTable }
func (DropTable) StepType() StepType   { return StepDropTable }
func (RenameTable) StepType() StepType { return StepRenameTable }
func (AlterTable) StepType() StepType  { return StepAlterTable }
func (RawSQL) StepType() StepType      { return StepRawSQL }
func (CreateIndex) StepType() StepType { return StepCreateIndex }
func (DropIndex) StepType() StepType   { return StepDropIndex }

func (s CreateTable) Target() string { return s.Name }
func (s DropTable) Target() string   { return s.Name }
func (s RenameTable) Target() string { return s.Name }
func (s AlterTable) Target() string  { return s.Table }
func (RawSQL) Target() string        { return "" }
func (s CreateIndex) Target() string { return s.Table }
func (s DropIndex) Target() string   { return s.Table }

func (CreateTable) isStep() {}
func (DropTable) isStep()   {}
func (RenameTable) isStep() {}
func (AlterTable) isStep()  {}
func (RawSQL) isStep()      {}
func (CreateIndex) isStep() {}
func (DropIndex) isStep()   {}

// ChangeType discriminates table changes in their JSON form.
type ChangeType string

const (
	ChangeAddColumn   ChangeType = "AddColumn"
	ChangeDropColumn  ChangeType = "DropColumn"
	ChangeAlterColumn ChangeType = "AlterColumn"
)

// TableChange is one column-level change inside an AlterTable step.
type TableChange interface {
	ChangeType() ChangeType
	ColumnName() string
	isChange()
}

// AddColumn adds a column. ForeignKey is set when the column references
// another table in the target schema.
type AddColumn struct {
	Column     introspect.Column      `json:"column"`
	ForeignKey *introspect.ForeignKey `json:"foreignKey,omitempty"`
}

type DropColumn struct {
	Name string `json:"name"`
}

// AlterColumn replaces the definition of column Name with Column.
type AlterColumn struct {
	Name   string            `json:"name"`
	Column introspect.Column `json:"column"`
}

func (AddColumn) ChangeType() ChangeType   { return ChangeAddColumn }
func (DropColumn) ChangeType() ChangeType  { return ChangeDropColumn }
func (AlterColumn) ChangeType() ChangeType { return ChangeAlterColumn }

func (c AddColumn) ColumnName() string   { return c.Column.Name }
func (c DropColumn) ColumnName() string  { return c.Name }
func (c AlterColumn) ColumnName() string { return c.Name }

func (AddColumn) isChange()   {}
func (DropColumn) isChange()  {}
func (AlterColumn) isChange() {}

// MarshalJSON tags every change with its "changeType".
func (s AlterTable) MarshalJSON() ([]byte, error) {
	changes := make([]json.RawMessage, len(s.Changes))
	for i, c := range s.Changes {
		b, err := jsonunion.Tag("changeType", string(c.ChangeType()), c)
		if err != nil {
			return nil, err
		}
		changes[i] = b
	}
	return json.Marshal(struct {
		Table   string            `json:"table"`
		Changes []json.RawMessage `json:"changes"`
	}{s.Table, changes})
}

func (s *AlterTable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Table   string            `json:"table"`
		Changes []json.RawMessage `json:"changes"`
	}
	if err := jsonunion.DecodeStrict(data, &raw); err != nil {
		return err
	}
	s.Table = raw.Table
	s.Changes = make([]TableChange, 0, len(raw.Changes))
	for _, r := range raw.Changes {
		kind, body, err := jsonunion.Untag("changeType", r)
		if err != nil {
			return err
		}
		var change TableChange
		switch ChangeType(kind) {
		case ChangeAddColumn:
			change, err = jsonunion.DecodeAs[AddColumn](body)
		case ChangeDropColumn:
			change, err = jsonunion.DecodeAs[DropColumn](body)
		case ChangeAlterColumn:
			change, err = jsonunion.DecodeAs[AlterColumn](body)
		default:
			return fmt.Errorf("unknown changeType %q", kind)
		}
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", kind, err)
		}
		s.Changes = append(s.Changes, change)
	}
	return nil
}

// MarshalSteps encodes steps as a JSON array tagged with "stepType".
func MarshalSteps(steps []Step) ([]byte, error) {
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

// UnmarshalSteps decodes the output of MarshalSteps. Unknown step types and
// unknown fields are rejected.
func UnmarshalSteps(data []byte) ([]Step, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	steps := make([]Step, 0, len(raws))
	for i, r := range raws {
		kind, body, err := jsonunion.Untag("stepType", r)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		var step Step
		switch StepType(kind) {
		case StepCreateTable:
			step, err = jsonunion.DecodeAs[CreateTable](body)
		case StepDropTable:
			step, err = jsonunion.DecodeAs[DropTable](body)
		case StepRenameTable:
			step, err = jsonunion.DecodeAs[RenameTable](body)
		case StepAlterTable:
			step, err = jsonunion.DecodeAs[AlterTable](body)
		case StepRawSQL:
			step, err = jsonunion.DecodeAs[RawSQL](body)
		case StepCreateIndex:
			step, err = jsonunion.DecodeAs[CreateIndex](body)
		case StepDropIndex:
			step, err = jsonunion.DecodeAs[DropIndex](body)
		default:
			return nil, fmt.Errorf("step %d: unknown stepType %q", i, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, kind, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// StepsEqual compares two step lists by their JSON encoding.
func StepsEqual(a, b []Step) bool {
	ea, err := MarshalSteps(a)
	if err != nil {
		return false
	}
	eb, err := MarshalSteps(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
