package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"
)

// ResultSet holds the rows of an ad-hoc query with driver values
// normalized for JSON encoding.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// QueryRows runs query on db and reads at most maxRows rows (all rows when
// maxRows <= 0). Byte slices become strings and times become RFC 3339 text.
func QueryRows(ctx context.Context, db *stdsql.DB, maxRows int, query string, args ...any) (*ResultSet, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		if maxRows > 0 && len(rs.Rows) == maxRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
