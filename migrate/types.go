package migrate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
)

// ApplyMigrationInput is a request to apply datamodel steps as one migration.
type ApplyMigrationInput struct {
	MigrationID string               `json:"migrationId" validate:"required,max=255"`
	Steps       []steps.MigrationStep `json:"steps"`
	// Force applies the migration despite destructive warnings.
	Force bool `json:"force"`
	// DryRun computes the envelope without touching the database.
	DryRun bool `json:"dryRun"`
}

func (in *ApplyMigrationInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		MigrationID string          `json:"migrationId"`
		Steps       json.RawMessage `json:"steps"`
		Force       bool            `json:"force"`
		DryRun      bool            `json:"dryRun"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode apply migration input: %w", err)
	}
	parsed, err := steps.Unmarshal(raw.Steps)
	if err != nil {
		return err
	}
	*in = ApplyMigrationInput{
		MigrationID: raw.MigrationID,
		Steps:       parsed,
		Force:       raw.Force,
		DryRun:      raw.DryRun,
	}
	return nil
}

func (in ApplyMigrationInput) MarshalJSON() ([]byte, error) {
	encoded, err := steps.Marshal(in.Steps)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		MigrationID string          `json:"migrationId"`
		Steps       json.RawMessage `json:"steps"`
		Force       bool            `json:"force"`
		DryRun      bool            `json:"dryRun"`
	}{in.MigrationID, encoded, in.Force, in.DryRun})
}

// MigrationOutput is the envelope returned for apply, unapply and infer
// requests. It is returned even when the migration fails.
type MigrationOutput struct {
	DatamodelSteps []steps.MigrationStep
	// DatabaseSteps is the rendered SQL of DatabaseMigration.
	DatabaseSteps     string
	DatabaseMigration []diff.Step
	Errors            []string
	Warnings          []string
	GeneralErrors     []string
}

func newOutput(dmSteps []steps.MigrationStep) *MigrationOutput {
	if dmSteps == nil {
		dmSteps = []steps.MigrationStep{}
	}
	return &MigrationOutput{
		DatamodelSteps:    dmSteps,
		DatabaseMigration: []diff.Step{},
		Errors:            []string{},
		Warnings:          []string{},
		GeneralErrors:     []string{},
	}
}

// HasErrors reports whether the envelope carries step or general errors.
func (o *MigrationOutput) HasErrors() bool {
	return len(o.Errors) > 0 || len(o.GeneralErrors) > 0
}

func (o MigrationOutput) MarshalJSON() ([]byte, error) {
	dmSteps, err := steps.Marshal(o.DatamodelSteps)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		DatamodelSteps json.RawMessage `json:"datamodelSteps"`
		DatabaseSteps  string          `json:"databaseSteps"`
		Errors         []string        `json:"errors"`
		Warnings       []string        `json:"warnings"`
		GeneralErrors  []string        `json:"generalErrors"`
	}{dmSteps, o.DatabaseSteps, nonNil(o.Errors), nonNil(o.Warnings), nonNil(o.GeneralErrors)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// MigrationSummary is the listing form of a migration record.
type MigrationSummary struct {
	Name           string     `json:"name" yaml:"name"`
	Revision       int        `json:"revision" yaml:"revision"`
	Status         string     `json:"status" yaml:"status"`
	DatamodelSteps int        `json:"datamodelSteps" yaml:"datamodelSteps"`
	DatabaseSteps  int        `json:"databaseSteps" yaml:"databaseSteps"`
	Applied        int        `json:"applied" yaml:"applied"`
	RolledBack     int        `json:"rolledBack" yaml:"rolledBack"`
	Errors         []string   `json:"errors" yaml:"errors,omitempty"`
	StartedAt      time.Time  `json:"startedAt" yaml:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt" yaml:"finishedAt,omitempty"`
}

func summarize(m *history.Migration) MigrationSummary {
	s := MigrationSummary{
		Name:           m.Name,
		Revision:       m.Revision,
		Status:         string(m.Status),
		DatamodelSteps: len(m.DatamodelSteps),
		DatabaseSteps:  len(m.DatabaseMigration),
		Applied:        m.Applied,
		RolledBack:     m.RolledBack,
		Errors:         nonNil(m.Errors),
		StartedAt:      m.StartedAt,
	}
	if m.FinishedAt.Valid {
		t := m.FinishedAt.Time
		s.FinishedAt = &t
	}
	return s
}

// ProgressOutput reports how far a migration got.
type ProgressOutput struct {
	Status     string     `json:"status" yaml:"status"`
	Steps      int        `json:"steps" yaml:"steps"`
	Applied    int        `json:"applied" yaml:"applied"`
	RolledBack int        `json:"rolledBack" yaml:"rolledBack"`
	Errors     []string   `json:"errors" yaml:"errors,omitempty"`
	StartedAt  time.Time  `json:"startedAt" yaml:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt" yaml:"finishedAt,omitempty"`
}

// InferInput asks for the steps leading from the current datamodel to Datamodel.
type InferInput struct {
	MigrationID string               `json:"migrationId" validate:"required"`
	Datamodel   *datamodel.Datamodel `json:"datamodel" validate:"required"`
	// AssumeToBeApplied are steps applied on top of the current datamodel
	// before inferring, such as pending watch steps.
	AssumeToBeApplied []steps.MigrationStep `json:"-"`
}
