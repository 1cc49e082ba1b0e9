package database

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTableNotFound indicates the data source has no table with the given name.
var ErrTableNotFound = errors.New("table not found")

// ColumnInfo describes one column of a data source table.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey bool
}

// Dialect abstracts the catalog queries that differ between engines.
type Dialect interface {
	Name() Driver
	// Placeholder returns the bind parameter marker for the n-th (1-based)
	// argument of a statement.
	Placeholder(n int) string
	ListTables(ctx context.Context, db *stdsql.DB) ([]string, error)
	TableColumns(ctx context.Context, db *stdsql.DB, table string) ([]ColumnInfo, error)
}

// DialectFor returns the dialect for a driver.
func DialectFor(d Driver) Dialect {
	if d == DriverPostgres {
		return postgresDialect{}
	}
	return sqliteDialect{}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() Driver { return DriverSQLite }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ListTables(ctx context.Context, db *stdsql.DB) ([]string, error) {
	return queryStrings(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
}

func (sqliteDialect) TableColumns(ctx context.Context, db *stdsql.DB, table string) ([]ColumnInfo, error) {
	// PRAGMA takes no bind parameters; only names present in the catalog are
	// interpolated, and they are quoted.
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table).Scan(&name)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid     int
			col     ColumnInfo
			notNull int
			dflt    stdsql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col.NotNull = notNull == 1
		col.PrimaryKey = pk > 0
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

type postgresDialect struct{}

func (postgresDialect) Name() Driver { return DriverPostgres }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) ListTables(ctx context.Context, db *stdsql.DB) ([]string, error) {
	return queryStrings(ctx, db,
		`SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

const postgresColumnsQuery = `SELECT c.column_name,
       c.data_type,
       c.is_nullable = 'NO',
       c.column_default,
       EXISTS (
           SELECT 1
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage k
             ON k.constraint_name = tc.constraint_name
            AND k.table_schema = tc.table_schema
            AND k.table_name = tc.table_name
           WHERE tc.constraint_type = 'PRIMARY KEY'
             AND tc.table_schema = c.table_schema
             AND tc.table_name = c.table_name
             AND k.column_name = c.column_name
       )
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

func (postgresDialect) TableColumns(ctx context.Context, db *stdsql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, postgresColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			col  ColumnInfo
			dflt stdsql.NullString
		)
		if err := rows.Scan(&col.Name, &col.Type, &col.NotNull, &dflt, &col.PrimaryKey); err != nil {
			return nil, err
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return cols, nil
}

func queryStrings(ctx context.Context, db *stdsql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
