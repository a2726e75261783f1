// Package dbtest opens a migrated PostgreSQL database for tests
package dbtest

import (
	"os"
	"testing"

	"github.com/alexbotov/arcade/internal/database"
)

// DSNEnv names the variable that enables PostgreSQL-backed tests
const DSNEnv = "ARCADE_TEST_DSN"

// Open connects to the database named by ARCADE_TEST_DSN, migrates it and
// truncates every table. The test is skipped when the variable is unset.
func Open(t testing.TB) *database.DB {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping PostgreSQL test", DSNEnv)
	}

	db, err := database.New(dsn)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	t.Cleanup(func() {
		db.CleanData()
		db.Close()
	})

	return db
}
