package sqltools

import (
	"context"
	"errors"
	"strings"

	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

// Column describes one result column. Types are inferred from the first
// row, so every column is reported nullable.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// QueryResult is the payload of a successful ExecuteSQL call.
type QueryResult struct {
	Success   bool     `json:"success"`
	Columns   []Column `json:"columns"`
	Data      [][]any  `json:"data"`
	TotalRows int      `json:"totalRows"`
}

func (t *Tools) executeSQL(ctx context.Context, args tools.Arguments) (string, error) {
	query := strings.TrimSpace(args.String("sql"))
	if query == "" {
		return failure(errors.New("sql must not be empty")), nil
	}

	rs, err := database.QueryRows(ctx, t.client.Data(), t.fetchLimit, query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return failure(err), nil
	}

	result := QueryResult{
		Success:   true,
		Columns:   []Column{},
		Data:      [][]any{},
		TotalRows: len(rs.Rows),
	}
	if len(rs.Rows) > 0 {
		for i, name := range rs.Columns {
			result.Columns = append(result.Columns, Column{
				Name:     name,
				Type:     inferType(rs.Rows[0][i]),
				Nullable: true,
			})
		}
		result.Data = rs.Rows
	}
	return encode(result), nil
}

func inferType(v any) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case bool:
		return "BOOLEAN"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	default:
		return "TEXT"
	}
}
