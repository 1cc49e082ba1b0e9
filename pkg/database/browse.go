package database

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnknownColumn indicates a filter names a column the table does not have.
var ErrUnknownColumn = errors.New("unknown column")

// TablePage is one page of rows of a data source table.
type TablePage struct {
	Columns []string
	Rows    []map[string]any
	Total   int // rows matching the filters, ignoring limit and offset
}

// DataTables lists the data source tables.
func (c *Client) DataTables(ctx context.Context) ([]string, error) {
	return c.dialect.ListTables(ctx, c.data)
}

// ReadTablePage reads up to limit rows of table starting at offset, keeping
// rows whose columns equal the filter values. The table and the filter
// columns are resolved through the catalog before they are quoted into the
// statement; values are always bound.
func (c *Client) ReadTablePage(ctx context.Context, table string, limit, offset int, filters map[string]any) (*TablePage, error) {
	cols, err := c.dialect.TableColumns(ctx, c.data, table)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cols))
	for _, col := range cols {
		known[col.Name] = true
	}

	var (
		where []string
		args  []any
	)
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		args = append(args, filters[name])
		where = append(where, quoteIdent(name)+" = "+c.dialect.Placeholder(len(args)))
	}
	from := " FROM " + quoteIdent(table)
	if len(where) > 0 {
		from += " WHERE " + strings.Join(where, " AND ")
	}

	page := &TablePage{Rows: []map[string]any{}}
	if err := c.data.QueryRowContext(ctx, "SELECT COUNT(*)"+from, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", table, err)
	}

	query := "SELECT *" + from +
		" LIMIT " + c.dialect.Placeholder(len(args)+1) +
		" OFFSET " + c.dialect.Placeholder(len(args)+2)
	rs, err := QueryRows(ctx, c.data, 0, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", table, err)
	}

	page.Columns = rs.Columns
	for _, values := range rs.Rows {
		row := make(map[string]any, len(values))
		for i, name := range rs.Columns {
			row[name] = values[i]
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}
