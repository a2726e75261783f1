package database_test

import (
	"testing"

	"github.com/alexbotov/arcade/internal/database/dbtest"
)

func TestMigrateAgainstPostgres(t *testing.T) {
	db := dbtest.Open(t)

	// second run must be a no-op
	if err := db.Migrate(); err != nil {
		t.Fatalf("Expected idempotent migration, got %v", err)
	}
}
