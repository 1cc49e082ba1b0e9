package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
)

// DatabaseMeta is one documented database.
type DatabaseMeta struct {
	ID          string
	Name        string
	Description string
}

// ListDatabases returns the documented databases in the order they were
// recorded.
func (s *MetadataStore) ListDatabases(ctx context.Context) ([]DatabaseMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM dbs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query databases: %w", err)
	}
	defer rows.Close()

	var out []DatabaseMeta
	for rows.Next() {
		var (
			d     DatabaseMeta
			descr stdsql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &descr); err != nil {
			return nil, err
		}
		d.Description = descr.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListTables returns the tables of a database with their effective
// descriptions. An unknown database yields no tables.
func (s *MetadataStore) ListTables(ctx context.Context, dbID string) ([]TableMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, type FROM tables_view WHERE db_id = ? ORDER BY position`, dbID)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var out []TableMeta
	for rows.Next() {
		var (
			t          TableMeta
			descr, typ stdsql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &descr, &typ); err != nil {
			return nil, err
		}
		t.Description = descr.String
		t.Type = typ.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListColumns returns the columns of a table in declaration order, with
// effective descriptions. ENUM columns carry their documented values.
func (s *MetadataStore) ListColumns(ctx context.Context, tableID string) ([]ColumnMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, description, is_primary FROM columns_view WHERE table_id = ? ORDER BY position`,
		tableID)
	if err != nil {
		return nil, fmt.Errorf("query column metadata: %w", err)
	}

	var out []ColumnMeta
	for rows.Next() {
		var (
			c          ColumnMeta
			typ, descr stdsql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &descr, &c.IsPrimary); err != nil {
			rows.Close()
			return nil, err
		}
		c.Type = typ.String
		c.Description = descr.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The metadata store has a single connection; release it before the
	// enum value queries.
	rows.Close()

	for i := range out {
		if out[i].Type != "ENUM" {
			continue
		}
		if out[i].EnumValues, err = s.EnumValues(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EnumValues returns the documented values of a column ordered by value,
// with effective descriptions.
func (s *MetadataStore) EnumValues(ctx context.Context, columnID string) ([]EnumValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value, description FROM enum_values_view WHERE column_id = ? ORDER BY value`, columnID)
	if err != nil {
		return nil, fmt.Errorf("query enum values: %w", err)
	}
	defer rows.Close()

	var out []EnumValue
	for rows.Next() {
		var (
			v     EnumValue
			descr stdsql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Value, &descr); err != nil {
			return nil, err
		}
		v.Description = descr.String
		out = append(out, v)
	}
	return out, rows.Err()
}
