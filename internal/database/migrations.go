package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				id SERIAL PRIMARY KEY,
				full_name TEXT,
				phone VARCHAR(256)
			);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			DO $$ BEGIN
				CREATE TYPE debate_status AS ENUM ('draft', 'published');
			EXCEPTION WHEN duplicate_object THEN NULL;
			END $$;

			DO $$ BEGIN
				CREATE TYPE faction AS ENUM ('idubu', 'akagara');
			EXCEPTION WHEN duplicate_object THEN NULL;
			END $$;
		`,
		Down: `
			DROP TYPE IF EXISTS faction;
			DROP TYPE IF EXISTS debate_status;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS debates (
				id SERIAL PRIMARY KEY,
				title VARCHAR(500) NOT NULL,
				slug VARCHAR(500) NOT NULL UNIQUE,
				topic TEXT NOT NULL,
				summary TEXT,
				verdict TEXT NOT NULL,
				youtube_video_id VARCHAR(50),
				youtube_video_title VARCHAR(500),
				main_image_url TEXT,
				author_name VARCHAR(255) NOT NULL DEFAULT 'Imuhira Staff',
				status debate_status NOT NULL DEFAULT 'draft',
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
				published_at TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_debates_published ON debates(published_at DESC) WHERE status = 'published';
		`,
		Down: `
			DROP TABLE IF EXISTS debates;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS debate_arguments (
				id SERIAL PRIMARY KEY,
				debate_id INTEGER NOT NULL REFERENCES debates(id) ON DELETE CASCADE,
				faction faction NOT NULL,
				speaker_name VARCHAR(255),
				argument TEXT NOT NULL,
				order_index INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_debate_arguments_debate ON debate_arguments(debate_id, faction, order_index);
		`,
		Down: `
			DROP TABLE IF EXISTS debate_arguments;
		`,
	},
}

// AppliedMigration is one row of schema_migrations
type AppliedMigration struct {
	Version   int
	AppliedAt time.Time
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range sortedMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// RollbackMigrations reverts the newest applied migrations, at most steps of
// them. It returns the versions that were rolled back, newest first.
func RollbackMigrations(db *sql.DB, steps int) ([]int, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}

	applied, err := AppliedMigrations(db)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]Migration, len(Migrations))
	for _, m := range Migrations {
		byVersion[m.Version] = m
	}

	var reverted []int
	for i := len(applied) - 1; i >= 0 && len(reverted) < steps; i-- {
		version := applied[i].Version
		migration, ok := byVersion[version]
		if !ok {
			return reverted, fmt.Errorf("no migration registered for applied version %d", version)
		}

		tx, err := db.Begin()
		if err != nil {
			return reverted, fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Down); err != nil {
			tx.Rollback()
			return reverted, fmt.Errorf("failed to roll back migration %d: %w", version, err)
		}

		if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", version); err != nil {
			tx.Rollback()
			return reverted, fmt.Errorf("failed to unrecord migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return reverted, fmt.Errorf("failed to commit rollback %d: %w", version, err)
		}
		reverted = append(reverted, version)
	}

	return reverted, nil
}

// AppliedMigrations lists applied migrations in ascending version order
func AppliedMigrations(db *sql.DB) ([]AppliedMigration, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied = append(applied, m)
	}
	return applied, rows.Err()
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
