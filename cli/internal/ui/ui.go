package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/prisma-engines-go/migrate"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	fmt.Println(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	fmt.Println(WarningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	fmt.Println(InfoStyle.Render("ℹ " + fmt.Sprintf(format, args...)))
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// StatusColor colours a migration status.
func StatusColor(status string) string {
	var c *color.Color
	switch status {
	case "Success", "RollbackSuccess":
		c = color.New(color.FgGreen, color.Bold)
	case "RollbackFailure":
		c = color.New(color.FgRed, color.Bold)
	case "InProgress", "RollingBack", "Pending":
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}
	return c.Sprint(status)
}

// MigrationMarkdown describes a migration envelope as markdown.
func MigrationMarkdown(title string, out *migrate.MigrationOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d datamodel steps, %d database steps.\n\n", len(out.DatamodelSteps), len(out.DatabaseMigration))
	if out.DatabaseSteps != "" {
		b.WriteString("```sql\n")
		b.WriteString(strings.TrimSpace(out.DatabaseSteps))
		b.WriteString("\n```\n\n")
	}
	section := func(name string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	section("Warnings", out.Warnings)
	section("Errors", out.Errors)
	section("General errors", out.GeneralErrors)
	return b.String()
}

// PrintMigration renders a migration envelope.
func PrintMigration(title string, out *migrate.MigrationOutput) error {
	return PrintMarkdown(MigrationMarkdown(title, out))
}
