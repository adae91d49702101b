package history

import (
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
)

// Status is the lifecycle state of a migration record.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusInProgress      Status = "InProgress"
	StatusSuccess         Status = "Success"
	StatusRollingBack     Status = "RollingBack"
	StatusRollbackSuccess Status = "RollbackSuccess"
	StatusRollbackFailure Status = "RollbackFailure"
)

// ParseStatus validates a persisted status code.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusSuccess,
		StatusRollingBack, StatusRollbackSuccess, StatusRollbackFailure:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions happen.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusRollbackSuccess || s == StatusRollbackFailure
}

// WatchPrefix marks watch migrations.
const WatchPrefix = "watch"

// Migration is one row of the migration log.
type Migration struct {
	Name       string
	Revision   int
	Status     Status
	Applied    int
	RolledBack int
	// Datamodel is the datamodel after this migration.
	Datamodel         *datamodel.Datamodel
	DatamodelSteps    []steps.MigrationStep
	DatabaseMigration []diff.Step
	Errors            []string
	StartedAt         time.Time
	FinishedAt        null.Time
}

// NewMigration returns a Pending migration started now.
func NewMigration(name string) *Migration {
	return &Migration{
		Name:              name,
		Status:            StatusPending,
		Datamodel:         datamodel.Empty(),
		DatamodelSteps:    []steps.MigrationStep{},
		DatabaseMigration: []diff.Step{},
		Errors:            []string{},
		StartedAt:         Now(),
	}
}

// IsWatch reports whether the migration is a watch checkpoint.
func (m *Migration) IsWatch() bool {
	return IsWatchName(m.Name)
}

// IsWatchName reports whether name carries the watch prefix.
func IsWatchName(name string) bool {
	return strings.HasPrefix(name, WatchPrefix)
}

// UpdateParams returns the mutable state of m, keyed by its name and revision.
func (m *Migration) UpdateParams() UpdateParams {
	return UpdateParams{
		Name:       m.Name,
		NewName:    m.Name,
		Revision:   m.Revision,
		Status:     m.Status,
		Applied:    m.Applied,
		RolledBack: m.RolledBack,
		Errors:     append([]string(nil), m.Errors...),
		FinishedAt: m.FinishedAt,
	}
}

// UpdateParams identifies a migration by (Name, Revision) and carries its new state.
type UpdateParams struct {
	Name       string
	NewName    string
	Revision   int
	Status     Status
	Applied    int
	RolledBack int
	Errors     []string
	FinishedAt null.Time
}

// Now returns the current time truncated to the persisted millisecond precision.
func Now() time.Time {
	return time.UnixMilli(time.Now().UnixMilli()).UTC()
}
