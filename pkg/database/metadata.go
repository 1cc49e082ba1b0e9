package database

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
)

// TermKind selects the liked-item table.
type TermKind string

const (
	TermKindFreeshot TermKind = "freeshot"
	TermKindTerm     TermKind = "term"
)

// Valid reports whether k is a known kind.
func (k TermKind) Valid() bool {
	return k == TermKindFreeshot || k == TermKindTerm
}

func (k TermKind) table() string {
	if k == TermKindFreeshot {
		return "freeshots"
	}
	return "terms"
}

// ErrTermNotFound indicates no freeshot or term has the given name.
var ErrTermNotFound = errors.New("term not found")

// TableMeta is the effective description of a table (user override first).
type TableMeta struct {
	ID          string
	Name        string
	Description string
	Type        string
}

// EnumValue is one documented value of an ENUM column.
type EnumValue struct {
	ID          string `json:"id,omitempty"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// ColumnMeta is the effective description of a column.
type ColumnMeta struct {
	ID          string
	Name        string
	Type        string
	Description string
	IsPrimary   bool
	EnumValues  []EnumValue
}

// MetadataStore reads and updates the metadata store.
type MetadataStore struct {
	db *stdsql.DB
}

// NewMetadataStore creates a store over an opened, migrated metadata DB.
func NewMetadataStore(db *stdsql.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Table returns the metadata of a table by name. found is false when the
// table is not documented.
func (s *MetadataStore) Table(ctx context.Context, name string) (meta TableMeta, found bool, err error) {
	var desc, typ stdsql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, description, type FROM tables_view WHERE name = ? LIMIT 1`, name).
		Scan(&meta.ID, &meta.Name, &desc, &typ)
	if errors.Is(err, stdsql.ErrNoRows) {
		return TableMeta{}, false, nil
	}
	if err != nil {
		return TableMeta{}, false, fmt.Errorf("query table metadata: %w", err)
	}
	meta.Description = desc.String
	meta.Type = typ.String
	return meta, true, nil
}

// Columns returns the documented columns of a table keyed by column name.
// ENUM columns carry their documented values.
func (s *MetadataStore) Columns(ctx context.Context, tableID string) (map[string]ColumnMeta, error) {
	cols, err := s.ListColumns(ctx, tableID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ColumnMeta, len(cols))
	for _, c := range cols {
		out[c.Name] = c
	}
	return out, nil
}

// TableDescriptions returns the effective description of each named table;
// undocumented tables map to "".
func (s *MetadataStore) TableDescriptions(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		meta, _, err := s.Table(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = meta.Description
	}
	return out, nil
}

// SetTableDescription records a user override for a table description.
func (s *MetadataStore) SetTableDescription(ctx context.Context, table, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_tables (table_name, description) VALUES (?, ?)`,
		table, description)
	return err
}

// SetColumnDescription records a user override for a column description.
func (s *MetadataStore) SetColumnDescription(ctx context.Context, table, column, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_columns (table_name, column_name, description) VALUES (?, ?, ?)`,
		table, column, description)
	return err
}

// SetEnumValueDescription records a user override for an enum value description.
func (s *MetadataStore) SetEnumValueDescription(ctx context.Context, table, column, value, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_enum_values (table_name, column_name, enum_value, description) VALUES (?, ?, ?, ?)`,
		table, column, value, description)
	return err
}

// IncrementLikes adds one like to the named freeshot or term and returns
// the new count. ErrTermNotFound is returned when no row matches.
func (s *MetadataStore) IncrementLikes(ctx context.Context, kind TermKind, name string) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("invalid term kind %q", kind)
	}
	var likes int
	err := s.db.QueryRowContext(ctx,
		`UPDATE `+kind.table()+` SET likes = likes + 1 WHERE name = ? RETURNING likes`, name).Scan(&likes)
	if errors.Is(err, stdsql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrTermNotFound, name)
	}
	if err != nil {
		return 0, err
	}
	return likes, nil
}
