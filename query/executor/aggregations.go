package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/satishbabariya/prisma-engines-go/query/filter"
	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/query/sqlgen"
)

// Count returns the number of records of model matching f.
func (e *Executor) Count(ctx context.Context, model *models.Model, f filter.Filter) (int64, error) {
	values, err := e.conn(e.db).values(ctx, &sqlgen.Select{
		Table: model.Table(),
		Alias: filter.Root.String(),
		Count: true,
		Where: filter.Compile(f, filter.Root),
	})
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("failed to count %s: got %d rows", model.Name, len(values))
	}
	switch n := values[0].(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("failed to count %s: unexpected %T", model.Name, values[0])
}
