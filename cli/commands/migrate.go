package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engines-go/cli/internal/ui"
	"github.com/satishbabariya/prisma-engines-go/cli/internal/watch"
	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/internal/config"
	"github.com/satishbabariya/prisma-engines-go/internal/debug"
	"github.com/satishbabariya/prisma-engines-go/migrate"
	"github.com/satishbabariya/prisma-engines-go/migrate/history"
	"github.com/satishbabariya/prisma-engines-go/migrate/steps"
)

var (
	migrationName string
	stepsFile     string
	datamodelFile string
	forceApply    bool
	dryRun        bool
	assumeYes     bool
	finalizeName  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply, roll back and inspect migrations",
}

var migrateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a migration",
	Long: `Apply a migration given either as a JSON list of datamodel steps (--steps)
or as a target datamodel (--datamodel) from which the steps are inferred.`,
	RunE: runMigrateApply,
}

var migrateUnapplyCmd = &cobra.Command{
	Use:   "unapply",
	Short: "Roll back the last migration",
	RunE:  runMigrateUnapply,
}

var migrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded migrations",
	RunE:  runMigrateList,
}

var migrateProgressCmd = &cobra.Command{
	Use:   "progress NAME",
	Short: "Show the progress of a migration",
	Args:  cobra.ExactArgs(1),
	RunE:  runMigrateProgress,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every table and clear the migration log",
	RunE:  runMigrateReset,
}

var migrateInferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer the steps leading to a datamodel without applying them",
	RunE:  runMigrateInfer,
}

var migrateWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Apply datamodel changes as watch migrations while the file is edited",
	Long: `Watch the datamodel file and apply every change as a watch migration.
With --finalize the watch migrations applied so far are collapsed into one
named migration instead.`,
	RunE: runMigrateWatch,
}

func init() {
	migrateApplyCmd.Flags().StringVarP(&migrationName, "name", "n", "", "Migration name")
	migrateApplyCmd.Flags().StringVar(&stepsFile, "steps", "", "JSON file with datamodel steps")
	migrateApplyCmd.Flags().StringVar(&datamodelFile, "datamodel", "", "Target datamodel file")
	migrateApplyCmd.Flags().BoolVar(&forceApply, "force", false, "Apply despite destructive change warnings")
	migrateApplyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the migration without applying it")
	_ = migrateApplyCmd.MarkFlagRequired("name")
	migrateApplyCmd.MarkFlagsMutuallyExclusive("steps", "datamodel")

	migrateInferCmd.Flags().StringVar(&datamodelFile, "datamodel", "", "Target datamodel file (defaults to datamodel_path)")
	migrateInferCmd.Flags().StringVarP(&migrationName, "name", "n", "inferred", "Migration name")

	migrateResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	migrateWatchCmd.Flags().StringVar(&datamodelFile, "datamodel", "", "Datamodel file to watch (defaults to datamodel_path)")
	migrateWatchCmd.Flags().StringVar(&finalizeName, "finalize", "", "Collapse the watch migrations into a migration with this name")

	migrateCmd.AddCommand(migrateApplyCmd, migrateUnapplyCmd, migrateListCmd, migrateProgressCmd,
		migrateResetCmd, migrateInferCmd, migrateWatchCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateApply(cmd *cobra.Command, args []string) error {
	if stepsFile == "" && datamodelFile == "" {
		return errors.New("either --steps or --datamodel is required")
	}
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var list []steps.MigrationStep
	if stepsFile != "" {
		list, err = readSteps(stepsFile)
	} else {
		list, err = inferFrom(ctx, s.engine, migrationName, datamodelFile)
	}
	if err != nil {
		return err
	}

	out, err := s.engine.ApplyMigration(ctx, migrate.ApplyMigrationInput{
		MigrationID: migrationName,
		Steps:       list,
		Force:       forceApply,
		DryRun:      dryRun,
	})
	if rerr := printMigration(cmd, "Migration "+migrationName, out); rerr != nil {
		return rerr
	}
	if errors.Is(err, migrate.ErrDestructiveChanges) {
		return fmt.Errorf("%w: rerun with --force to apply", err)
	}
	return err
}

func runMigrateUnapply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.engine.UnapplyMigration(ctx)
	if rerr := printMigration(cmd, "Rolled back", out); rerr != nil {
		return rerr
	}
	return err
}

func runMigrateList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.engine.ListMigrations(ctx)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFormat, list, func() error {
		if len(list) == 0 {
			ui.PrintInfo("No migrations recorded")
			return nil
		}
		rows := make([][]string, 0, len(list))
		for _, m := range list {
			finished := "-"
			if m.FinishedAt != nil {
				finished = m.FinishedAt.Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{
				strconv.Itoa(m.Revision),
				m.Name,
				ui.StatusColor(m.Status),
				fmt.Sprintf("%d/%d", m.Applied, m.DatabaseSteps),
				finished,
			})
		}
		return ui.PrintTable([]string{"Revision", "Name", "Status", "Applied", "Finished"}, rows)
	})
}

func runMigrateProgress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.engine.MigrationProgress(ctx, args[0])
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFormat, p, func() error {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d of %d steps applied, %d rolled back\n",
			args[0], ui.StatusColor(p.Status), p.Applied, p.Steps, p.RolledBack)
		for _, e := range p.Errors {
			ui.PrintError("%s", e)
		}
		return nil
	})
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	if !assumeYes {
		ok := false
		prompt := &survey.Confirm{
			Message: "Drop every table of the database and clear the migration log?",
		}
		if err := survey.AskOne(prompt, &ok); err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !ok {
			ui.PrintInfo("Reset cancelled")
			return nil
		}
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Reset(ctx); err != nil {
		return err
	}
	if outputFormat == "text" {
		ui.PrintSuccess("Database reset")
	}
	return nil
}

func runMigrateInfer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	path := datamodelFile
	if path == "" {
		path = s.cfg.DatamodelPath
	}
	dm, err := readDatamodel(path)
	if err != nil {
		return err
	}
	out, err := s.engine.InferMigrationSteps(ctx, migrate.InferInput{MigrationID: migrationName, Datamodel: dm})
	if err != nil {
		return err
	}
	return printMigration(cmd, "Inferred steps", out)
}

func runMigrateWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if finalizeName != "" {
		return finalizeWatch(ctx, cmd, s, finalizeName)
	}

	path := datamodelFile
	if path == "" {
		path = s.cfg.DatamodelPath
	}
	w, err := watch.NewWatcher(path, watch.DefaultDebounce, func(ctx context.Context) error {
		return applyWatchStep(ctx, cmd, s, path)
	})
	if err != nil {
		return err
	}
	if outputFormat == "text" {
		ui.PrintInfo("Watching %s, press Ctrl+C to stop", path)
	}
	return w.Run(ctx)
}

// applyWatchStep infers the steps from the pending watch migrations to the
// datamodel in path and applies them as a new watch migration.
func applyWatchStep(ctx context.Context, cmd *cobra.Command, s *session, path string) error {
	name := watchName()
	list, err := inferFrom(ctx, s.engine, name, path)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		debug.Debug("Datamodel unchanged", "file", path)
		return nil
	}
	out, err := s.engine.ApplyMigration(ctx, migrate.ApplyMigrationInput{MigrationID: name, Steps: list, Force: true})
	if rerr := printMigration(cmd, "Watch migration "+name, out); rerr != nil {
		return rerr
	}
	return err
}

func finalizeWatch(ctx context.Context, cmd *cobra.Command, s *session, name string) error {
	list, err := s.engine.History().LoadAllDatamodelStepsFromAllCurrentWatchMigrations(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.New("there are no watch migrations to finalize")
	}
	out, err := s.engine.ApplyMigration(ctx, migrate.ApplyMigrationInput{MigrationID: name, Steps: list})
	if rerr := printMigration(cmd, "Finalized "+name, out); rerr != nil {
		return rerr
	}
	return err
}

func watchName() string {
	return history.WatchPrefix + "-" + ksuid.New().String()
}

func inferFrom(ctx context.Context, engine *migrate.Engine, name, path string) ([]steps.MigrationStep, error) {
	dm, err := readDatamodel(path)
	if err != nil {
		return nil, err
	}
	out, err := engine.InferMigrationSteps(ctx, migrate.InferInput{MigrationID: name, Datamodel: dm})
	if err != nil {
		return nil, err
	}
	return out.DatamodelSteps, nil
}

func readDatamodel(path string) (*datamodel.Datamodel, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datamodel: %w", err)
	}
	dm, err := datamodel.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse datamodel %s: %w", path, err)
	}
	return dm, nil
}

func readSteps(path string) ([]steps.MigrationStep, error) {
	data, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}
	list, err := steps.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse steps %s: %w", path, err)
	}
	return list, nil
}

func printMigration(cmd *cobra.Command, title string, out *migrate.MigrationOutput) error {
	if out == nil {
		return nil
	}
	return render(cmd.OutOrStdout(), outputFormat, out, func() error {
		return ui.PrintMigration(title, out)
	})
}
