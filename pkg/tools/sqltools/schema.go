package sqltools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

const schemaErrorPrefix = "-- error: "

// tableTypeDescriptions explains the documented table kinds.
var tableTypeDescriptions = map[string]string{
	"fact":   "event table, dt is the date the event happened",
	"dim":    "dimension table, rarely changes",
	"dim_dt": "date-partitioned dimension table, dt holds the full snapshot taken that day",
}

func (t *Tools) getTableSchema(ctx context.Context, args tools.Arguments) (string, error) {
	ddl, err := t.tableDDL(ctx, args.String("table_name"))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return schemaErrorPrefix + err.Error(), nil
	}
	return ddl, nil
}

// tableDDL renders the data source columns of table as a CREATE TABLE
// statement annotated with the effective metadata descriptions.
func (t *Tools) tableDDL(ctx context.Context, table string) (string, error) {
	cols, err := t.client.Dialect().TableColumns(ctx, t.client.Data(), table)
	if errors.Is(err, database.ErrTableNotFound) {
		return "", fmt.Errorf("table %s does not exist or has no columns", table)
	}
	if err != nil {
		return "", err
	}

	meta, found, err := t.store.Table(ctx, table)
	if err != nil {
		return "", err
	}
	var colMeta map[string]database.ColumnMeta
	if found {
		if colMeta, err = t.store.Columns(ctx, meta.ID); err != nil {
			return "", err
		}
	}

	return renderDDL(table, cols, meta, colMeta), nil
}

func renderDDL(table string, cols []database.ColumnInfo, meta database.TableMeta, colMeta map[string]database.ColumnMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", table)
	for i, col := range cols {
		cm := colMeta[col.Name]
		colType := col.Type
		description := cm.Description

		if cm.Type == "ENUM" && len(cm.EnumValues) > 0 {
			quoted := make([]string, len(cm.EnumValues))
			var documented []string
			for j, v := range cm.EnumValues {
				quoted[j] = "'" + v.Value + "'"
				if v.Description != "" {
					documented = append(documented, v.Value+": "+v.Description)
				}
			}
			colType = "ENUM(" + strings.Join(quoted, ", ") + ")"
			if description != "" && len(documented) > 0 {
				description += " [" + strings.Join(documented, ", ") + "]"
			}
		}

		fmt.Fprintf(&b, "    %s %s", col.Name, colType)
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if col.NotNull {
			b.WriteString(" NOT NULL")
		}
		if col.Default != nil {
			b.WriteString(" DEFAULT " + *col.Default)
		}
		if description != "" {
			b.WriteString(" COMMENT '" + escapeQuotes(description) + "'")
		}
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")

	var comment []string
	if meta.Description != "" {
		comment = append(comment, meta.Description)
	}
	if typeDesc, ok := tableTypeDescriptions[meta.Type]; ok {
		comment = append(comment, fmt.Sprintf("type: %s (%s)", meta.Type, typeDesc))
	}
	if len(comment) > 0 {
		b.WriteString(" COMMENT = '" + escapeQuotes(strings.Join(comment, " | ")) + "'")
	}
	b.WriteString(";")
	return b.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (t *Tools) getAllTables(ctx context.Context, _ tools.Arguments) (string, error) {
	names, err := t.client.Dialect().ListTables(ctx, t.client.Data())
	if err == nil && len(names) == 0 {
		return "", nil
	}
	var descs map[string]string
	if err == nil {
		descs, err = t.store.TableDescriptions(ctx, names)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return schemaErrorPrefix + err.Error(), nil
	}

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = name + ": " + descs[name]
	}
	return strings.Join(lines, "\n"), nil
}
