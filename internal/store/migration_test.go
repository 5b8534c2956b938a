package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrationIdempotency(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Failed to migrate (pass %d): %v", i+1, err)
		}
	}

	// The schema must still be usable after repeated migrations.
	if _, err := db.AddFreeSpins(context.Background(), "migration-test", 2); err != nil {
		t.Fatalf("Failed to use database after multiple migrations: %v", err)
	}
	n, err := db.FreeSpins(context.Background(), "migration-test")
	if err != nil || n != 2 {
		t.Errorf("FreeSpins = %d, %v; want 2", n, err)
	}
}

func TestMemoryDatabase(t *testing.T) {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Error(err)
	}
}
