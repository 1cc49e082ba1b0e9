// Package util provides test utilities and helper functions for database testing.
package util

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yuy4o/ChatBI/pkg/database"
)

var (
	// Shared connection string for all tests in local dev
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SampleDataDDL creates the data source tables described by SampleSeed.
var SampleDataDDL = []string{
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer TEXT NOT NULL,
		amount REAL DEFAULT 0,
		status TEXT,
		paid BOOLEAN
	)`,
	`CREATE TABLE customers (
		name TEXT PRIMARY KEY,
		region TEXT
	)`,
	`INSERT INTO orders (id, customer, amount, status, paid) VALUES
		(1, 'alice', 12.5, 'open', 1),
		(2, 'bob', 30, 'closed', 0),
		(3, 'alice', 7.25, 'closed', 1)`,
	`INSERT INTO customers (name, region) VALUES ('alice', 'north'), ('bob', 'south')`,
}

// SampleSeed returns a metadata seed documenting the SampleDataDDL tables.
func SampleSeed() *database.Seed {
	return &database.Seed{
		Databases: []database.SeedDatabase{{
			Name:        "shop",
			Description: "Web shop",
			Tables: []database.SeedTable{
				{
					Name:        "orders",
					Description: "Customer orders",
					Type:        "fact",
					Columns: []database.SeedColumn{
						{Name: "id", Type: "INTEGER", Description: "Order id", IsPrimary: true},
						{Name: "customer", Type: "TEXT", Description: "Customer name"},
						{Name: "amount", Type: "REAL", Description: "Order total"},
						{Name: "status", Type: "ENUM", Description: "Order status", Values: []database.EnumValue{
							{Value: "open", Description: "Awaiting payment"},
							{Value: "closed", Description: "Paid and shipped"},
						}},
					},
				},
				{
					Name:        "customers",
					Description: "Customer registry",
					Type:        "dim",
					Columns: []database.SeedColumn{
						{Name: "name", Type: "TEXT", Description: "Customer name", IsPrimary: true},
						{Name: "region", Type: "TEXT", Description: "Sales region"},
					},
				},
			},
		}},
		Freeshots: []database.SeedTerm{
			{Name: "orders per customer", Content: "SELECT customer, COUNT(*) FROM orders GROUP BY customer"},
		},
		Terms: []database.SeedTerm{
			{Name: "GMV", Content: "Sum of order amounts"},
		},
	}
}

// NewSQLiteClient creates a client over temporary SQLite files: a data
// source initialized with dataDDL and a migrated metadata store loaded
// with seed (when non-nil). Both are closed when the test completes.
func NewSQLiteClient(t *testing.T, seed *database.Seed, dataDDL ...string) *database.Client {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	client, err := database.NewClient(ctx, database.Config{
		DataDriver:   database.DriverSQLite,
		DataDSN:      filepath.Join(dir, "data.db"),
		MetadataPath: filepath.Join(dir, "metadata.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	for _, stmt := range dataDDL {
		_, err := client.Data().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	if seed != nil {
		applied, err := database.ApplySeed(ctx, client.Metadata(), seed)
		require.NoError(t, err)
		require.True(t, applied)
	}
	return client
}

// SetupPostgresData returns a connection to a fresh per-test PostgreSQL
// schema, used as a data source.
// - CI: Connects to external PostgreSQL service container (CI_DATABASE_URL)
// - Local: Uses a shared testcontainer (started once per package), skipping
// the test when no container provider is available
func SetupPostgresData(t *testing.T) *stdsql.DB {
	t.Helper()
	ctx := context.Background()

	connStr := getOrCreateSharedDatabase(t)
	schemaName := GenerateSchemaName(t)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	t.Logf("Created test schema: %s", schemaName)
	_ = db.Close()

	// Reconnect with search_path set in connection string for all pooled connections
	db, err = stdsql.Open("pgx", AddSearchPathToConnString(connStr, schemaName))
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Cleanup(func() {
		_, err := db.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if err != nil {
			t.Logf("Warning: failed to drop schema %s: %v", schemaName, err)
		}
		_ = db.Close()
	})
	return db
}

// getOrCreateSharedDatabase returns a connection string to the shared database.
// In CI, uses CI_DATABASE_URL. In local dev, creates a shared testcontainer once.
func getOrCreateSharedDatabase(t *testing.T) string {
	if ciDatabaseURL := os.Getenv("CI_DATABASE_URL"); ciDatabaseURL != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		return ciDatabaseURL
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("Starting shared PostgreSQL testcontainer for all tests")

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("failed to get connection string: %w", err)
			return
		}

		sharedConnStr = connStr
		t.Logf("Shared container ready: %s", sharedConnStr)
	})

	require.NoError(t, containerErr, "Failed to setup shared test container")
	return sharedConnStr
}

// GenerateSchemaName creates a unique, PostgreSQL-safe schema name for the test.
// Format: test_<sanitized_test_name>_<random_hex>
func GenerateSchemaName(t *testing.T) string {
	testName := strings.ToLower(t.Name())
	testName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)

	// PostgreSQL identifiers are limited to 63 chars
	if len(testName) > 40 {
		testName = testName[:40]
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("failed to generate random bytes for schema name: %v", err)
	}

	return fmt.Sprintf("test_%s_%s", testName, hex.EncodeToString(randomBytes))
}

// AddSearchPathToConnString appends search_path parameter to a PostgreSQL connection string.
func AddSearchPathToConnString(connStr, schemaName string) string {
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssearch_path=%s", connStr, separator, schemaName)
}
