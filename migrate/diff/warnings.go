package diff

import (
	"fmt"

	"github.com/satishbabariya/prisma-engines-go/migrate/diff/flavour"
	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// Warnings describes the destructive parts of steps computed against
// previous.
func Warnings(steps []Step, previous *introspect.DatabaseSchema, f flavour.DifferFlavour) []string {
	var warnings []string
	for _, step := range steps {
		switch s := step.(type) {
		case DropTable:
			warnings = append(warnings, fmt.Sprintf("You are about to drop the table `%s`. All the data in it will be lost.", s.Name))
		case AlterTable:
			table := previous.Table(s.Table)
			for _, change := range s.Changes {
				switch c := change.(type) {
				case DropColumn:
					warnings = append(warnings, fmt.Sprintf("You are about to drop the column `%s` on the `%s` table. All the data in the column will be lost.", c.Name, s.Table))
				case AlterColumn:
					if table == nil {
						continue
					}
					prev := table.Column(c.Name)
					if prev == nil {
						continue
					}
					if tc := f.ColumnTypeChange(prev, &c.Column); tc != nil && !tc.IsSafe {
						warnings = append(warnings, fmt.Sprintf("The type of column `%s` on the `%s` table changes from %s to %s. Existing values may fail to convert.", c.Name, s.Table, tc.From, tc.To))
					}
				}
			}
		}
	}
	return warnings
}

// IDColumnTypeChanges returns the tables whose primary key columns change
// type family, in step order.
func IDColumnTypeChanges(steps []Step, previous *introspect.DatabaseSchema) []string {
	var tables []string
	for _, step := range steps {
		alter, ok := step.(AlterTable)
		if !ok {
			continue
		}
		table := previous.Table(alter.Table)
		if table == nil {
			continue
		}
		for _, change := range alter.Changes {
			c, ok := change.(AlterColumn)
			if !ok || !table.IsPrimaryColumn(c.Name) {
				continue
			}
			if prev := table.Column(c.Name); prev != nil && prev.Type.Family != c.Column.Type.Family {
				tables = append(tables, alter.Table)
				break
			}
		}
	}
	return tables
}
