package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
)

// A migration is one additive schema step. Versions are applied strictly in
// ascending order; each step runs in its own transaction together with the
// version bump, so a failure leaves the schema at the previous version.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "measurements",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS metadata (
				key   TEXT PRIMARY KEY,
				value TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS measurements (
				id                  INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp           INTEGER NOT NULL,
				co2_ppm             INTEGER NOT NULL,
				temperature_celsius REAL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_measurements_timestamp
				ON measurements(timestamp)`,
		},
	},
	{
		version: 2,
		name:    "hourly and daily rollups",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS hourly_stats (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				hour_start  INTEGER NOT NULL UNIQUE,
				co2_min     INTEGER NOT NULL,
				co2_max     INTEGER NOT NULL,
				co2_avg     REAL    NOT NULL,
				co2_count   INTEGER NOT NULL,
				temp_min    REAL,
				temp_max    REAL,
				temp_avg    REAL,
				is_workday  INTEGER NOT NULL,
				is_daytime  INTEGER NOT NULL,
				hour_of_day INTEGER NOT NULL,
				day_of_week INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_hourly_hour_of_day
				ON hourly_stats(hour_of_day)`,
			`CREATE INDEX IF NOT EXISTS idx_hourly_day_of_week
				ON hourly_stats(day_of_week)`,
			`CREATE TABLE IF NOT EXISTS daily_stats (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				date              INTEGER NOT NULL UNIQUE,
				co2_min           INTEGER NOT NULL,
				co2_max           INTEGER NOT NULL,
				co2_avg           REAL    NOT NULL,
				co2_day_avg       REAL,
				co2_night_avg     REAL,
				temp_min          REAL,
				temp_max          REAL,
				temp_avg          REAL,
				measurement_count INTEGER NOT NULL,
				is_weekend        INTEGER NOT NULL
			)`,
		},
	},
	{
		version: 3,
		name:    "minute rollups",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS minute_stats (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				interval_start   INTEGER NOT NULL,
				interval_minutes INTEGER NOT NULL,
				co2_min          INTEGER NOT NULL,
				co2_max          INTEGER NOT NULL,
				co2_avg          REAL    NOT NULL,
				co2_count        INTEGER NOT NULL,
				temp_min         REAL,
				temp_max         REAL,
				temp_avg         REAL,
				UNIQUE(interval_start, interval_minutes)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_minute_interval_start
				ON minute_stats(interval_start)`,
		},
	},
}

// migrate brings the schema up to the latest version. Safe to run on every
// startup.
func (s *Store) migrate() error {
	// The metadata table must exist before the version can be read; creating
	// it here keeps version detection independent of the migration list.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("creating metadata table: %w", err)
	}

	current, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration v%d (%s): %w", m.version, m.name, err)
		}
		slog.Info("applied schema migration", "version", m.version, "name", m.name)
	}
	return nil
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(m.version),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// schemaVersion returns the stored schema version, or 0 for a fresh database.
func (s *Store) schemaVersion() (int, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", value, err)
	}
	return v, nil
}
