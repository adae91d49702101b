package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff"
)

// Statements renders every step in order.
func Statements(r Renderer, steps []diff.Step) ([]string, error) {
	var stmts []string
	for i, step := range steps {
		rendered, err := r.Render(step)
		if err != nil {
			return nil, fmt.Errorf("failed to render step %d (%s): %w", i, step.StepType(), err)
		}
		stmts = append(stmts, rendered...)
	}
	return stmts, nil
}

// Pretty renders steps as a script with one terminated statement per line
// group, as shown to users before and after applying a migration.
func Pretty(r Renderer, steps []diff.Step) (string, error) {
	stmts, err := Statements(r, steps)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, stmt := range stmts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
		b.WriteString(";")
	}
	return b.String(), nil
}
