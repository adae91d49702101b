package diff

import (
	"sort"

	"github.com/satishbabariya/prisma-engines-go/migrate/introspect"
)

// orderCreates sorts CreateTable steps so that every table referenced by a
// foreign key is created before the tables referencing it. Ties are broken by
// table name. Self references are ignored and tables caught in a reference
// cycle are appended in name order.
func orderCreates(creates []CreateTable) []CreateTable {
	if len(creates) < 2 {
		return creates
	}

	index := make(map[string]int, len(creates))
	for i, c := range creates {
		index[c.Name] = i
	}

	inDegree := make([]int, len(creates))
	graph := make([][]int, len(creates)) // referenced table -> referencing tables
	for i, c := range creates {
		seen := make(map[int]bool)
		for _, fk := range c.ForeignKeys {
			j, ok := index[fk.ReferencedTable]
			if !ok || j == i || seen[j] {
				continue
			}
			seen[j] = true
			graph[j] = append(graph[j], i)
			inDegree[i]++
		}
	}

	byName := func(queue []int) {
		sort.Slice(queue, func(a, b int) bool { return creates[queue[a]].Name < creates[queue[b]].Name })
	}

	// Kahn's algorithm
	var queue []int
	for i := range creates {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	result := make([]CreateTable, 0, len(creates))
	added := make([]bool, len(creates))
	for len(queue) > 0 {
		byName(queue)
		current := queue[0]
		queue = queue[1:]

		result = append(result, creates[current])
		added[current] = true

		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	var rest []int
	for i := range creates {
		if !added[i] {
			rest = append(rest, i)
		}
	}
	byName(rest)
	for _, i := range rest {
		result = append(result, creates[i])
	}
	return result
}

// DropAll returns DropTable steps for every table of schema, referencing
// tables before the tables they reference.
func DropAll(schema *introspect.DatabaseSchema) []Step {
	creates := make([]CreateTable, 0, len(schema.Tables))
	for i := range schema.Tables {
		creates = append(creates, createTableStep(&schema.Tables[i]))
	}
	ordered := orderCreates(creates)
	steps := make([]Step, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		steps = append(steps, DropTable{Name: ordered[i].Name})
	}
	return steps
}
