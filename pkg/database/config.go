package database

import (
	"fmt"
	"time"
)

// Driver selects the engine of the data source the SQL tools query.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config holds database configuration. The metadata store is always a
// SQLite file; the data source is SQLite or PostgreSQL.
type Config struct {
	DataDriver   Driver
	DataDSN      string
	MetadataPath string

	// Connection pool settings for the data source
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Validate checks that the configuration can be opened.
func (c Config) Validate() error {
	switch c.DataDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported data driver %q (want %q or %q)", c.DataDriver, DriverSQLite, DriverPostgres)
	}
	if c.DataDSN == "" {
		return fmt.Errorf("data DSN is required")
	}
	if c.MetadataPath == "" {
		return fmt.Errorf("metadata path is required")
	}
	return nil
}

// sqlDriverName maps Driver to the database/sql driver registered by the
// imported driver packages.
func (d Driver) sqlDriverName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

// sqliteDSN turns a file path into a modernc DSN with a busy timeout so
// concurrent writers wait instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
