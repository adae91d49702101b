// Package commands implements the prisma-engines command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engines-go/cli/internal/version"
	"github.com/satishbabariya/prisma-engines-go/internal/config"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate"
	"github.com/satishbabariya/prisma-engines-go/runtime/client"
)

var (
	outputFormat string
	debugLogs    bool
)

var rootCmd = &cobra.Command{
	Use:           "prisma-engines",
	Short:         "Migration and query engines for SQL databases",
	Long:          "prisma-engines migrates SQLite, PostgreSQL and MySQL databases to a JSON datamodel and keeps a migration log in the _Migration table.",
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unsupported output format %q (want text, json or yaml)", outputFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Log engine activity to stderr")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// session is an open connection plus the migration engine on top of it.
type session struct {
	cfg    *config.Config
	client *client.Client
	engine *migrate.Engine
}

// openSession loads the configuration, connects and prepares the
// migration log.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	debug.Init(debugLogs || cfg.Debug)

	c, err := client.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	engine, err := migrate.NewEngineFromConfig(c.DB(), cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := engine.Init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return &session{cfg: cfg, client: c, engine: engine}, nil
}

func (s *session) Close() error {
	return s.client.Close()
}
