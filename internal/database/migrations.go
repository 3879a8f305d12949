package database

import (
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations contains all PostgreSQL database migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_denuncias_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS denuncias (
				folio TEXT PRIMARY KEY,
				categoria TEXT NOT NULL,
				mensaje TEXT NOT NULL,
				estado TEXT NOT NULL DEFAULT 'nueva',
				firma TEXT,
				analisis JSONB,
				filtrado JSONB,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				updated_at TIMESTAMPTZ DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_denuncias_created_at ON denuncias(created_at);
			CREATE INDEX IF NOT EXISTS idx_denuncias_categoria ON denuncias(categoria);
			CREATE INDEX IF NOT EXISTS idx_denuncias_estado ON denuncias(estado);
		`,
	},
	{
		Version: 2,
		Name:    "create_alertas_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS alertas (
				id SERIAL PRIMARY KEY,
				folio TEXT NOT NULL,
				tipo TEXT NOT NULL,
				mensaje TEXT NOT NULL,
				prioridad TEXT NOT NULL,
				accion_sugerida TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				FOREIGN KEY (folio) REFERENCES denuncias(folio) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_alertas_folio ON alertas(folio);
			CREATE INDEX IF NOT EXISTS idx_alertas_prioridad ON alertas(prioridad);
			CREATE INDEX IF NOT EXISTS idx_alertas_created_at ON alertas(created_at);
		`,
	},
	{
		Version: 3,
		Name:    "create_schema_version_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			);
		`,
	},
	{
		Version: 4,
		Name:    "create_exports_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS exports (
				id TEXT PRIMARY KEY,
				formato TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'queued',
				filtros JSONB,
				file_path TEXT,
				last_error TEXT,
				created_at TIMESTAMPTZ DEFAULT NOW(),
				completed_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
			CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);
		`,
	},
	{
		Version: 5,
		Name:    "add_processing_columns",
		SQL: `
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS processing_stage TEXT DEFAULT 'recibida';
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS enqueued_at TIMESTAMPTZ;
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS analyzed_at TIMESTAMPTZ;
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS retry_count INTEGER DEFAULT 0;
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS last_error TEXT;
			CREATE INDEX IF NOT EXISTS idx_denuncias_processing_stage ON denuncias(processing_stage);
		`,
	},
	{
		Version: 6,
		Name:    "add_urgencia_column",
		SQL: `
			ALTER TABLE denuncias ADD COLUMN IF NOT EXISTS urgencia TEXT;
			CREATE INDEX IF NOT EXISTS idx_denuncias_urgencia ON denuncias(urgencia);
		`,
	},
}

// Migrate runs all pending PostgreSQL migrations
func (db *DB) Migrate() error {
	log.Println("Creating schema_version table...")
	// Ensure schema_version table exists
	if _, err := db.conn.Exec(migrations[2].SQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	log.Println("Checking current schema version...")
	// Get current version
	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	log.Printf("Current schema version: %d", currentVersion)

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			log.Printf("Skipping migration %d (already applied)", migration.Version)
			continue
		}

		log.Printf("Applying migration %d: %s", migration.Version, migration.Name)
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Printf("Applied migration %d: %s", migration.Version, migration.Name)
	}

	log.Println("All migrations complete")
	return nil
}
