package database

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"os"
)

// Seed is the initial content of the metadata store.
type Seed struct {
	Databases []SeedDatabase `json:"databases"`
	Freeshots []SeedTerm     `json:"freeshots"`
	Terms     []SeedTerm     `json:"terms"`
}

type SeedDatabase struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Tables      []SeedTable `json:"tables"`
}

type SeedTable struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"` // fact, dim or dim_dt
	Columns     []SeedColumn `json:"columns"`
}

type SeedColumn struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	IsPrimary   bool        `json:"is_primary"`
	Values      []EnumValue `json:"values"`
}

type SeedTerm struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Likes   int    `json:"likes"`
}

// LoadSeedFile reads a seed from a JSON file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed inserts the seed into an empty metadata store. It is a no-op
// (applied=false) when the store already holds databases.
func ApplySeed(ctx context.Context, db *stdsql.DB, seed *Seed) (applied bool, err error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dbs`).Scan(&count); err != nil {
		return false, fmt.Errorf("count databases: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, d := range seed.Databases {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO dbs (id, name, description) VALUES (?, ?, ?)`,
			d.Name, d.Name, d.Description); err != nil {
			return false, fmt.Errorf("insert database %s: %w", d.Name, err)
		}
		for _, t := range d.Tables {
			tableID := fmt.Sprintf("table_id_%s_%s", d.Name, t.Name)
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO tables (id, db_id, name, description, type) VALUES (?, ?, ?, ?, ?)`,
				tableID, d.Name, t.Name, t.Description, t.Type); err != nil {
				return false, fmt.Errorf("insert table %s: %w", t.Name, err)
			}
			for _, c := range t.Columns {
				columnID := fmt.Sprintf("column_id_%s_%s_%s", d.Name, t.Name, c.Name)
				if _, err = tx.ExecContext(ctx,
					`INSERT INTO columns (id, table_id, name, type, description, is_primary) VALUES (?, ?, ?, ?, ?, ?)`,
					columnID, tableID, c.Name, c.Type, c.Description, c.IsPrimary); err != nil {
					return false, fmt.Errorf("insert column %s.%s: %w", t.Name, c.Name, err)
				}
				for _, v := range c.Values {
					if _, err = tx.ExecContext(ctx,
						`INSERT INTO enum_values (id, column_id, value, description) VALUES (?, ?, ?, ?)`,
						columnID+"_"+v.Value, columnID, v.Value, v.Description); err != nil {
						return false, fmt.Errorf("insert enum value %s.%s=%s: %w", t.Name, c.Name, v.Value, err)
					}
				}
			}
		}
	}

	for _, group := range []struct {
		table string
		items []SeedTerm
	}{{"freeshots", seed.Freeshots}, {"terms", seed.Terms}} {
		for _, item := range group.items {
			id := item.ID
			if id == "" {
				id = group.table + "_" + item.Name
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO `+group.table+` (id, name, content, likes) VALUES (?, ?, ?, ?)`,
				id, item.Name, item.Content, item.Likes); err != nil {
				return false, fmt.Errorf("insert %s %s: %w", group.table, item.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
