// Package migrate is the migration engine. It turns datamodel migration
// steps into database migrations, applies them and keeps the migration log.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/satishbabariya/prisma-engines-go/internal/config"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/executor"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
	"github.com/satishbabariya/prisma-engines-go/migrate/sqlgen"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
)

// Engine is the main migration engine
type Engine struct {
	db         *sql.DB
	provider   string
	schemaName string

	connector  introspect.Connector
	flavour    flavour.DifferFlavour
	differ     *diff.Differ
	executor   *executor.MigrationExecutor
	history    *history.Manager
	calculator *steps.Calculator
	validate   *validator.Validate
}

// Option configures an Engine.
type Option func(*Engine)

// WithSchemaName sets the schema introspected and migrated. Empty means the
// connection default.
func WithSchemaName(name string) Option {
	return func(e *Engine) { e.schemaName = name }
}

// WithDatabaseFile makes Reset remove the SQLite database file at path.
func WithDatabaseFile(fs afero.Fs, path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.history.WithDatabaseFile(fs, path)
		}
	}
}

// NewEngine creates a migration engine for provider on db.
func NewEngine(db *sql.DB, provider string, opts ...Option) (*Engine, error) {
	provider = config.NormalizeProvider(provider)

	connector, err := introspect.NewConnector(db, provider)
	if err != nil {
		return nil, err
	}
	f, err := flavour.New(provider)
	if err != nil {
		return nil, err
	}
	exec, err := executor.NewMigrationExecutor(db, provider)
	if err != nil {
		return nil, err
	}
	hist, err := history.NewManager(db, provider)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		db:         db,
		provider:   provider,
		connector:  connector,
		flavour:    f,
		differ:     diff.NewDiffer(f),
		executor:   exec,
		history:    hist,
		calculator: steps.NewCalculator(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewEngineFromConfig creates an engine from the process configuration.
func NewEngineFromConfig(db *sql.DB, cfg *config.Config) (*Engine, error) {
	var opts []Option
	if cfg.NormalizedProvider() != "sqlite" {
		opts = append(opts, WithSchemaName(cfg.SchemaName))
	}
	opts = append(opts, WithDatabaseFile(config.AppFs, cfg.DatabaseFile()))
	return NewEngine(db, cfg.Provider, opts...)
}

// Init prepares the migration log.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.history.Init(ctx); err != nil {
		return err
	}
	debug.Debug("Migration engine initialized", "provider", e.provider, "schema", e.schemaName)
	return nil
}

// Provider returns the normalized provider name.
func (e *Engine) Provider() string {
	return e.provider
}

// History gives access to the migration log.
func (e *Engine) History() *history.Manager {
	return e.history
}

// Renderer returns the DDL renderer of the engine's dialect.
func (e *Engine) Renderer() sqlgen.Renderer {
	return e.executor.Renderer()
}

// Introspect reads the current database schema, without the migration log.
func (e *Engine) Introspect(ctx context.Context) (*introspect.DatabaseSchema, error) {
	schema, err := e.connector.Introspect(ctx, e.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return schema, nil
}
