package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-engines-go/cli/internal/ui"
	"github.com/satishbabariya/prisma-engines-go/cli/internal/version"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the database",
}

var dbIntrospectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Print the schema of the connected database",
	RunE:  runDBIntrospect,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		return render(cmd.OutOrStdout(), outputFormat, info, func() error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
			return err
		})
	},
}

func init() {
	dbCmd.AddCommand(dbIntrospectCmd)
	rootCmd.AddCommand(dbCmd, versionCmd)
}

func runDBIntrospect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	schema, err := s.engine.Introspect(ctx)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFormat, schema, func() error {
		if len(schema.Tables) == 0 {
			ui.PrintInfo("The database has no tables")
			return nil
		}
		return ui.PrintTable([]string{"Table", "Column", "Type", "Arity", "Key"}, schemaRows(schema))
	})
}

// schemaRows lists one row per column, marking primary and foreign key
// columns.
func schemaRows(schema *introspect.DatabaseSchema) [][]string {
	var rows [][]string
	for _, t := range schema.Tables {
		pk := map[string]bool{}
		if t.PrimaryKey != nil {
			for _, c := range t.PrimaryKey.Columns {
				pk[c] = true
			}
		}
		fks := map[string]string{}
		for _, fk := range t.ForeignKeys {
			for i, c := range fk.Columns {
				ref := fk.ReferencedTable
				if i < len(fk.ReferencedColumns) {
					ref += "." + fk.ReferencedColumns[i]
				}
				fks[c] = ref
			}
		}
		for _, c := range t.Columns {
			var key []string
			if pk[c.Name] {
				key = append(key, "PK")
			}
			if ref, ok := fks[c.Name]; ok {
				key = append(key, "FK "+ref)
			}
			rows = append(rows, []string{t.Name, c.Name, columnType(c.Type), string(c.Arity), strings.Join(key, ", ")})
		}
	}
	return rows
}

func columnType(t introspect.ColumnType) string {
	if t.Raw != "" {
		return t.Raw
	}
	return string(t.Family)
}
