package database

import (
	"context"
	"fmt"
)

// ListTables returns all user-defined table names, via the dialect's
// catalog query. Runs through the normal statement path, so inside an open
// transaction it sees the task's reserved connection.
func (h *Handle) ListTables(ctx context.Context) ([]string, error) {
	cur, err := h.ExecuteStatement(ctx, h.dialect.ListTablesSQL(), nil)
	if err != nil {
		return nil, err
	}
	defer cur.Release(ctx)

	var tables []string
	for {
		row, err := cur.FetchOne()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return tables, nil
		}
		name, ok := row[0].(string)
		if !ok {
			name = fmt.Sprintf("%v", row[0])
		}
		tables = append(tables, name)
	}
}

// TableExists reports whether a table with the given name exists.
func (h *Handle) TableExists(ctx context.Context, table string) (bool, error) {
	cur, err := h.ExecuteStatement(ctx, h.dialect.TableExistsSQL(), []any{table})
	if err != nil {
		return false, err
	}
	defer cur.Release(ctx)

	row, err := cur.FetchOne()
	if err != nil {
		return false, err
	}
	return row != nil, nil
}
