package database

import (
	"testing"
)

func TestNew(t *testing.T) {
	connStr, cleanup := setupTestDB(t, "new")
	defer cleanup()

	db, err := New(connStr)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer db.Close()

	if db.conn == nil {
		t.Error("Expected database connection but got nil")
	}
}

func TestNewWithInvalidConnString(t *testing.T) {
	db, err := New("host=nowhere.invalid port=1 connect_timeout=1 sslmode=disable")
	if err == nil {
		db.Close()
		t.Error("Expected error when connecting to an unreachable server")
	}
}

func TestClose(t *testing.T) {
	connStr, cleanup := setupTestDB(t, "close")
	defer cleanup()

	db, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}

func TestMigrationsCreateSchema(t *testing.T) {
	db, cleanup := setupTestDatabase(t, "migrations")
	defer cleanup()

	for _, table := range []string{"denuncias", "alertas", "exports", "schema_version"} {
		var exists bool
		err := db.conn.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Expected table %s to exist after migrations", table)
		}
	}

	var version int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("Expected schema version %d, got %d", len(migrations), version)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDatabase(t, "remigrate")
	defer cleanup()

	// New already ran the migrations once.
	if err := db.Migrate(); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatalf("Failed to count applied migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("Expected %d applied migrations, got %d", len(migrations), count)
	}
}

func TestConcurrentAccess(t *testing.T) {
	db, cleanup := setupTestDatabase(t, "concurrent")
	defer cleanup()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			var result int
			err := db.conn.QueryRow("SELECT $1::int", id).Scan(&result)
			if err != nil {
				t.Errorf("Concurrent query %d failed: %v", id, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
