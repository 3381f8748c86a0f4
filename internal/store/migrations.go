package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Migration is one step of the usage database schema. The applied
// version is kept in SQLite's user_version header field.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "candidate usage counts",
		Up: `
CREATE TABLE IF NOT EXISTS candidate_usage (
    reading       TEXT NOT NULL,
    candidate     TEXT NOT NULL,
    count         INTEGER NOT NULL DEFAULT 0,
    last_used_ns  INTEGER NOT NULL,
    PRIMARY KEY (reading, candidate)
);`,
		Down: `DROP TABLE IF EXISTS candidate_usage;`,
	},
	{
		Version:     2,
		Description: "index usage by recency for pruning",
		Up:          `CREATE INDEX IF NOT EXISTS idx_usage_last_used ON candidate_usage(last_used_ns);`,
		Down:        `DROP INDEX IF EXISTS idx_usage_last_used;`,
	},
}

// ErrNoMigration is returned by RollbackMigration on an empty schema.
var ErrNoMigration = errors.New("no migration to roll back")

// LatestVersion is the schema version Open migrates to.
func LatestVersion() int { return migrations[len(migrations)-1].Version }

// MigrateDB applies every migration newer than the database.
func MigrateDB(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > LatestVersion() {
		return fmt.Errorf("usage database schema %d is newer than %d", current, LatestVersion())
	}
	for _, m := range migrations[current:] {
		if err := step(db, m.Up, m.Version); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current == 0 {
		return ErrNoMigration
	}
	m := migrations[current-1]
	if err := step(db, m.Down, current-1); err != nil {
		return fmt.Errorf("roll back migration %d: %w", current, err)
	}
	return nil
}

// step runs script and records version in one transaction.
func step(db *sql.DB, script string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(script); err != nil {
		tx.Rollback()
		return err
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, 0 if none.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
