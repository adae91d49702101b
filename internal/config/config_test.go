package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaultsSQLiteURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	v := viper.New()
	v.Set("provider", "sqlite")
	v.Set("schema_name", "dev")
	v.Set("data_dir", "/tmp/engines")

	cfg, err := decode(v)
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/engines/dev.db", cfg.DatabaseURL)
	assert.Equal(t, "/tmp/engines/dev.db", cfg.DatabaseFile())
}

func TestDecodeRejectsUnknownProvider(t *testing.T) {
	v := viper.New()
	v.Set("provider", "oracle")
	v.Set("database_url", "oracle://localhost")

	_, err := decode(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNormalizeProvider(t *testing.T) {
	assert.Equal(t, "postgresql", NormalizeProvider("postgres"))
	assert.Equal(t, "postgresql", NormalizeProvider("PostgreSQL"))
	assert.Equal(t, "sqlite", NormalizeProvider("sqlite3"))
	assert.Equal(t, "mysql", NormalizeProvider("mysql"))
}

func TestDatabaseFile(t *testing.T) {
	cfg := &Config{Provider: "sqlite", DatabaseURL: "file:test.db?cache=shared"}
	assert.Equal(t, "test.db", cfg.DatabaseFile())

	cfg = &Config{Provider: "sqlite", DatabaseURL: ":memory:"}
	assert.Empty(t, cfg.DatabaseFile())

	cfg = &Config{Provider: "postgresql", DatabaseURL: "postgres://localhost/db"}
	assert.Empty(t, cfg.DatabaseFile())
}
