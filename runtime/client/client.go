// Package client opens database connections for the engines and wraps the
// transaction, hook and error translation plumbing shared by them.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/hashicorp/go-version"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/satishbabariya/prisma-engines-go/internal/config"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// minimumVersions are the oldest server versions the SQL renderers target.
var minimumVersions = map[string]string{
	"sqlite":     "3.8.3",
	"postgresql": "9.6",
	"mysql":      "5.6",
}

var versionPrefix = regexp.MustCompile(`^\d+(\.\d+)*`)

// Client is an open connection pool for one provider.
type Client struct {
	db       *sql.DB
	provider string
	version  *version.Version
}

// Open connects to the database described by cfg, applies its pool
// settings and checks the server version.
func Open(ctx context.Context, cfg *config.Config) (*Client, error) {
	provider := cfg.NormalizedProvider()
	driverName := cfg.Driver
	if driverName == "" {
		driverName = DriverName(provider)
	}
	if driverName == "" {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	db, err := sql.Open(driverName, cfg.DatabaseURL)
	if err != nil {
		return nil, &runtime.ConnectionError{Provider: provider, Cause: err}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	c, err := New(ctx, db, provider)
	if err != nil {
		db.Close()
		return nil, err
	}
	debug.Info("connected", "provider", provider, "driver", driverName, "version", c.version)
	return c, nil
}

// New wraps an existing pool. It pings the server and checks its version.
func New(ctx context.Context, db *sql.DB, provider string) (*Client, error) {
	provider = config.NormalizeProvider(provider)
	if err := db.PingContext(ctx); err != nil {
		return nil, &runtime.ConnectionError{Provider: provider, Cause: err}
	}

	c := &Client{db: db, provider: provider}
	v, err := ServerVersion(ctx, db, provider)
	if err != nil {
		return nil, &runtime.ConnectionError{Provider: provider, Cause: err}
	}
	c.version = v

	if min, ok := minimumVersions[provider]; ok {
		if v.LessThan(version.Must(version.NewVersion(min))) {
			return nil, &runtime.ConnectionError{
				Provider: provider,
				Cause:    fmt.Errorf("server version %s is older than the supported minimum %s", v, min),
			}
		}
	}
	return c, nil
}

// DriverName maps a provider onto its default database/sql driver.
func DriverName(provider string) string {
	switch config.NormalizeProvider(provider) {
	case "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return ""
	}
}

// ServerVersion asks the server for its version.
func ServerVersion(ctx context.Context, db *sql.DB, provider string) (*version.Version, error) {
	var query string
	switch config.NormalizeProvider(provider) {
	case "sqlite":
		query = "SELECT sqlite_version()"
	case "postgresql":
		query = "SHOW server_version"
	case "mysql":
		query = "SELECT VERSION()"
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	var raw string
	if err := db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	return ParseServerVersion(raw)
}

// ParseServerVersion reads the leading dotted number of a version banner such
// as "15.3 (Debian 15.3-1)" or "8.0.33-0ubuntu0.22.04.2".
func ParseServerVersion(raw string) (*version.Version, error) {
	v := versionPrefix.FindString(strings.TrimSpace(raw))
	if v == "" {
		return nil, fmt.Errorf("unrecognized server version %q", raw)
	}
	return version.NewVersion(v)
}

// DB returns the underlying pool.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Provider returns the normalized provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Version returns the server version read at connect time.
func (c *Client) Version() *version.Version {
	return c.version
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.db.Close()
}
