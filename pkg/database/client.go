// Package database opens the two stores the agent tools work against: the
// data source that generated SQL runs on, and the SQLite metadata store
// holding table descriptions, user overrides, query examples and terms.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	_ "modernc.org/sqlite"             // Register sqlite driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Client bundles the data source and the metadata store.
type Client struct {
	data     *stdsql.DB
	metadata *stdsql.DB
	dialect  Dialect
}

// Data returns the data source connection.
func (c *Client) Data() *stdsql.DB {
	return c.data
}

// Metadata returns the metadata store connection.
func (c *Client) Metadata() *stdsql.DB {
	return c.metadata
}

// Dialect returns the catalog dialect of the data source.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// NewClientFromDB wraps existing connections (useful for testing).
func NewClientFromDB(data, metadata *stdsql.DB, dialect Dialect) *Client {
	return &Client{data: data, metadata: metadata, dialect: dialect}
}

// NewClient opens both stores and applies pending metadata migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataDSN := cfg.DataDSN
	if cfg.DataDriver == DriverSQLite && !strings.HasPrefix(dataDSN, "file:") {
		dataDSN = sqliteDSN(dataDSN)
	}

	data, err := stdsql.Open(cfg.DataDriver.sqlDriverName(), dataDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		data.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		data.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	data.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	data.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := data.PingContext(ctx); err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("failed to ping data source: %w", err)
	}

	metadata, err := OpenMetadata(ctx, cfg.MetadataPath)
	if err != nil {
		_ = data.Close()
		return nil, err
	}

	return &Client{
		data:     data,
		metadata: metadata,
		dialect:  DialectFor(cfg.DataDriver),
	}, nil
}

// OpenMetadata opens the SQLite metadata store at path and migrates it.
// Writes are serialized through a single connection.
func OpenMetadata(ctx context.Context, path string) (*stdsql.DB, error) {
	db, err := stdsql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping metadata store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close closes both stores.
func (c *Client) Close() error {
	var errs []error
	if c.data != nil {
		errs = append(errs, c.data.Close())
	}
	if c.metadata != nil && c.metadata != c.data {
		errs = append(errs, c.metadata.Close())
	}
	return errors.Join(errs...)
}

// runMigrations applies the embedded metadata migrations with golang-migrate.
func runMigrations(db *stdsql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found, binary may be built incorrectly")
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "metadata", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source. m.Close() would also close the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// hasEmbeddedMigrations checks if the embedded FS contains any .sql migration files
func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}
