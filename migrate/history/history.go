// Package history persists the migration log in the _Migration table.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v4"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

var (
	// ErrMigrationNotFound is returned by Update when no row matches (name, revision).
	ErrMigrationNotFound = errors.New("migration not found")
	// ErrUnsupportedProvider is returned for providers without a log table layout.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

const columns = `"revision", "name", "datamodel", "status", "applied", "rolled_back", ` +
	`"datamodel_steps", "database_steps", "errors", "started_at", "finished_at"`

// Manager manages the migration log
type Manager struct {
	db       *sql.DB
	provider string
	fs       afero.Fs
	dbFile   string
}

// NewManager creates a migration log manager for provider.
func NewManager(db *sql.DB, provider string) (*Manager, error) {
	switch provider {
	case "sqlite", "mysql":
	case "postgresql", "postgres":
		provider = "postgresql"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return &Manager{db: db, provider: provider, fs: afero.NewOsFs()}, nil
}

// WithDatabaseFile makes Reset remove path from fs.
func (m *Manager) WithDatabaseFile(fs afero.Fs, path string) *Manager {
	m.fs = fs
	m.dbFile = path
	return m
}

// Init creates the migration table if it does not exist.
func (m *Manager) Init(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, m.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// Reset deletes every migration record and removes the database file, if
// one is configured. A missing file is not an error.
func (m *Manager) Reset(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, "DELETE FROM "+m.table()); err != nil {
		return fmt.Errorf("failed to truncate migration table: %w", err)
	}
	if m.dbFile == "" {
		return nil
	}
	if err := m.fs.Remove(m.dbFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove database file %s: %w", m.dbFile, err)
	}
	debug.Debug("Removed database file", "path", m.dbFile)
	return nil
}

// Create inserts mig and returns a copy carrying the assigned revision.
func (m *Manager) Create(ctx context.Context, mig *Migration) (*Migration, error) {
	dm := mig.Datamodel
	if dm == nil {
		dm = datamodel.Empty()
	}
	dmJSON, err := dm.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode datamodel: %w", err)
	}
	stepsJSON, err := steps.Marshal(mig.DatamodelSteps)
	if err != nil {
		return nil, err
	}
	dbSteps, err := diff.MarshalSteps(mig.DatabaseMigration)
	if err != nil {
		return nil, err
	}
	errsJSON, err := encodeErrors(mig.Errors)
	if err != nil {
		return nil, err
	}

	args := []any{
		mig.Name, string(dmJSON), string(mig.Status), mig.Applied, mig.RolledBack,
		string(stepsJSON), string(dbSteps), errsJSON, mig.StartedAt.UnixMilli(), millis(mig.FinishedAt),
	}
	query := m.rebind(`INSERT INTO ` + m.table() + ` ("name", "datamodel", "status", "applied", "rolled_back", ` +
		`"datamodel_steps", "database_steps", "errors", "started_at", "finished_at") ` +
		`VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var revision int64
	if m.provider == "postgresql" {
		if err := m.db.QueryRowContext(ctx, query+` RETURNING "revision"`, args...).Scan(&revision); err != nil {
			return nil, fmt.Errorf("failed to insert migration %s: %w", mig.Name, err)
		}
	} else {
		res, err := m.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert migration %s: %w", mig.Name, err)
		}
		if revision, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to read revision of migration %s: %w", mig.Name, err)
		}
	}

	out := *mig
	out.Revision = int(revision)
	debug.Debug("Created migration", "migration", out.Name, "revision", out.Revision, "status", out.Status)
	return &out, nil
}

// Update writes the mutable state of the migration identified by
// (params.Name, params.Revision).
func (m *Manager) Update(ctx context.Context, params UpdateParams) error {
	errsJSON, err := encodeErrors(params.Errors)
	if err != nil {
		return err
	}
	newName := params.NewName
	if newName == "" {
		newName = params.Name
	}
	query := m.rebind(`UPDATE ` + m.table() + ` SET "name" = ?, "status" = ?, "applied" = ?, "rolled_back" = ?, ` +
		`"errors" = ?, "finished_at" = ? WHERE "name" = ? AND "revision" = ?`)
	res, err := m.db.ExecContext(ctx, query,
		newName, string(params.Status), params.Applied, params.RolledBack,
		errsJSON, millis(params.FinishedAt), params.Name, params.Revision)
	if err != nil {
		return fmt.Errorf("failed to update migration %s: %w", params.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update migration %s: %w", params.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s (revision %d)", ErrMigrationNotFound, params.Name, params.Revision)
	}
	debug.Debug("Updated migration", "migration", newName, "revision", params.Revision, "status", params.Status)
	return nil
}

// Last returns the most recent successful migration, or nil.
func (m *Manager) Last(ctx context.Context) (*Migration, error) {
	return m.queryOne(ctx, `WHERE "status" = ? ORDER BY "revision" DESC`, string(StatusSuccess))
}

// ByName returns the latest migration called name, or nil.
func (m *Manager) ByName(ctx context.Context, name string) (*Migration, error) {
	return m.queryOne(ctx, `WHERE "name" = ? ORDER BY "revision" DESC`, name)
}

// LoadAll returns the full history ordered by revision.
func (m *Manager) LoadAll(ctx context.Context) ([]*Migration, error) {
	return m.query(ctx, `ORDER BY "revision" ASC`)
}

// CurrentDatamodel returns the datamodel of Last, or an empty datamodel.
func (m *Manager) CurrentDatamodel(ctx context.Context) (*datamodel.Datamodel, error) {
	last, err := m.Last(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil || last.Datamodel == nil {
		return datamodel.Empty(), nil
	}
	return last.Datamodel, nil
}

// LoadCurrentWatchMigrations returns the trailing run of watch migrations
// in revision order.
func (m *Manager) LoadCurrentWatchMigrations(ctx context.Context) ([]*Migration, error) {
	all, err := m.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	start := len(all)
	for start > 0 && all[start-1].IsWatch() {
		start--
	}
	return all[start:], nil
}

// LoadAllDatamodelStepsFromAllCurrentWatchMigrations concatenates the
// datamodel steps of the current watch migrations.
func (m *Manager) LoadAllDatamodelStepsFromAllCurrentWatchMigrations(ctx context.Context) ([]steps.MigrationStep, error) {
	watch, err := m.LoadCurrentWatchMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := []steps.MigrationStep{}
	for _, mig := range watch {
		out = append(out, mig.DatamodelSteps...)
	}
	return out, nil
}

func (m *Manager) queryOne(ctx context.Context, clause string, args ...any) (*Migration, error) {
	migrations, err := m.query(ctx, clause+" LIMIT 1", args...)
	if err != nil || len(migrations) == 0 {
		return nil, err
	}
	return migrations[0], nil
}

func (m *Manager) query(ctx context.Context, clause string, args ...any) ([]*Migration, error) {
	query := m.rebind("SELECT " + columns + " FROM " + m.table() + " " + clause)
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		mig, err := scanMigration(rows)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, mig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return migrations, nil
}

func scanMigration(rows *sql.Rows) (*Migration, error) {
	var (
		mig                                          Migration
		dmJSON, status, stepsJSON, dbSteps, errsJSON string
		startedAt                                    int64
		finishedAt                                   null.Int
	)
	err := rows.Scan(&mig.Revision, &mig.Name, &dmJSON, &status, &mig.Applied, &mig.RolledBack,
		&stepsJSON, &dbSteps, &errsJSON, &startedAt, &finishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration: %w", err)
	}

	st, ok := ParseStatus(status)
	if !ok {
		return nil, &runtime.ConversionError{Kind: "migration status", Value: status}
	}
	mig.Status = st
	if mig.Datamodel, err = datamodel.Parse([]byte(dmJSON)); err != nil {
		return nil, &runtime.ConversionError{Kind: "datamodel", Value: mig.Name, Cause: err}
	}
	if mig.DatamodelSteps, err = steps.Unmarshal([]byte(stepsJSON)); err != nil {
		return nil, &runtime.ConversionError{Kind: "datamodel_steps", Value: mig.Name, Cause: err}
	}
	if mig.DatabaseMigration, err = diff.UnmarshalSteps([]byte(dbSteps)); err != nil {
		return nil, &runtime.ConversionError{Kind: "database_steps", Value: mig.Name, Cause: err}
	}
	if err := json.Unmarshal([]byte(errsJSON), &mig.Errors); err != nil {
		return nil, &runtime.ConversionError{Kind: "errors", Value: mig.Name, Cause: err}
	}
	mig.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		mig.FinishedAt = null.TimeFrom(time.UnixMilli(finishedAt.Int64).UTC())
	}
	return &mig, nil
}

func encodeErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("failed to encode errors: %w", err)
	}
	return string(b), nil
}

func millis(t null.Time) null.Int {
	if !t.Valid {
		return null.Int{}
	}
	return null.IntFrom(t.Time.UnixMilli())
}

func (m *Manager) table() string {
	return m.quote(introspect.MigrationTableName)
}

func (m *Manager) quote(name string) string {
	if m.provider == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// rebind rewrites "?" placeholders to $n for Postgres and double quoted
// identifiers to backticks for MySQL.
func (m *Manager) rebind(query string) string {
	switch m.provider {
	case "postgresql":
		var b strings.Builder
		n := 0
		for _, r := range query {
			if r == '?' {
				n++
				fmt.Fprintf(&b, "$%d", n)
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	case "mysql":
		return strings.ReplaceAll(query, `"`, "`")
	}
	return query
}

// createTableSQL returns the migration table DDL
func (m *Manager) createTableSQL() string {
	switch m.provider {
	case "postgresql":
		return `CREATE TABLE IF NOT EXISTS "_Migration" (
	"revision" SERIAL PRIMARY KEY,
	"name" TEXT NOT NULL,
	"datamodel" TEXT NOT NULL,
	"status" TEXT NOT NULL,
	"applied" INTEGER NOT NULL,
	"rolled_back" INTEGER NOT NULL,
	"datamodel_steps" TEXT NOT NULL,
	"database_steps" TEXT NOT NULL,
	"errors" TEXT NOT NULL,
	"started_at" BIGINT NOT NULL,
	"finished_at" BIGINT
)`
	case "mysql":
		return "CREATE TABLE IF NOT EXISTS `_Migration` (\n" +
			"\t`revision` INT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"\t`name` TEXT NOT NULL,\n" +
			"\t`datamodel` LONGTEXT NOT NULL,\n" +
			"\t`status` TEXT NOT NULL,\n" +
			"\t`applied` INT NOT NULL,\n" +
			"\t`rolled_back` INT NOT NULL,\n" +
			"\t`datamodel_steps` LONGTEXT NOT NULL,\n" +
			"\t`database_steps` LONGTEXT NOT NULL,\n" +
			"\t`errors` LONGTEXT NOT NULL,\n" +
			"\t`started_at` BIGINT NOT NULL,\n" +
			"\t`finished_at` BIGINT\n" +
			")"
	default:
		return `CREATE TABLE IF NOT EXISTS "_Migration" (
	"revision" INTEGER PRIMARY KEY AUTOINCREMENT,
	"name" TEXT NOT NULL,
	"datamodel" TEXT NOT NULL,
	"status" TEXT NOT NULL,
	"applied" INTEGER NOT NULL,
	"rolled_back" INTEGER NOT NULL,
	"datamodel_steps" TEXT NOT NULL,
	"database_steps" TEXT NOT NULL,
	"errors" TEXT NOT NULL,
	"started_at" INTEGER NOT NULL,
	"finished_at" INTEGER
)`
	}
}
