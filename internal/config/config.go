// Package config loads the engine configuration. A Config is built once at
// process start and passed to the constructors that need it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	valid "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the file system used for config probing and database file removal.
var AppFs = afero.NewOsFs()

const (
	configName = ".prisma-engines"
	envPrefix  = "PRISMA_ENGINES"
)

// Config holds the engine configuration
type Config struct {
	Provider        string        `mapstructure:"provider" validate:"required,oneof=sqlite postgresql postgres mysql"`
	DatabaseURL     string        `mapstructure:"database_url" validate:"required"`
	Driver          string        `mapstructure:"driver" validate:"omitempty,oneof=sqlite3 postgres pgx mysql"`
	SchemaName      string        `mapstructure:"schema_name"`
	DataDir         string        `mapstructure:"data_dir"`
	DatamodelPath   string        `mapstructure:"datamodel_path"`
	Debug           bool          `mapstructure:"debug"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// NormalizedProvider maps provider aliases onto sqlite, postgresql or mysql.
func (c *Config) NormalizedProvider() string {
	return NormalizeProvider(c.Provider)
}

// NormalizeProvider maps provider aliases onto sqlite, postgresql or mysql.
func NormalizeProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return "postgresql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(provider)
	}
}

// DatabaseFile returns the SQLite database file that Reset removes, or an empty
// string when the provider keeps no local file.
func (c *Config) DatabaseFile() string {
	if c.NormalizedProvider() != "sqlite" {
		return ""
	}
	if c.DataDir != "" && c.SchemaName != "" {
		return filepath.Join(c.DataDir, c.SchemaName+".db")
	}
	path := strings.TrimPrefix(c.DatabaseURL, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	if err := valid.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads the configuration from config files, .env files and the
// environment, in increasing order of priority.
func Load() (*Config, error) {
	v := viper.New()
	if err := setup(v); err != nil {
		return nil, err
	}
	return decode(v)
}

func setup(v *viper.Viper) error {
	home, err := homedir.Dir()
	if err != nil {
		return fmt.Errorf("failed to find home directory: %w", err)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "prisma-engines"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", "sqlite")
	v.SetDefault("schema_name", "dev")
	v.SetDefault("data_dir", ".")
	v.SetDefault("datamodel_path", "datamodel.json")
	v.SetDefault("max_open_conns", 10)
	v.SetDefault("max_idle_conns", 2)
	v.SetDefault("conn_max_lifetime", time.Hour)
	for _, key := range []string{"driver", "database_url", "debug"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	// .env.local wins over .env
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" && cfg.NormalizedProvider() == "sqlite" {
		cfg.DatabaseURL = "file:" + filepath.Join(cfg.DataDir, cfg.SchemaName+".db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the file-backed part of the configuration to
// ~/.config/prisma-engines/.prisma-engines.yaml.
func Save(cfg *Config) error {
	v := viper.New()
	v.Set("provider", cfg.Provider)
	v.Set("schema_name", cfg.SchemaName)
	v.Set("data_dir", cfg.DataDir)
	v.Set("datamodel_path", cfg.DatamodelPath)
	v.Set("driver", cfg.Driver)

	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(home, ".config", "prisma-engines")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v.SetFs(AppFs)
	return v.WriteConfigAs(filepath.Join(configPath, configName+".yaml"))
}
