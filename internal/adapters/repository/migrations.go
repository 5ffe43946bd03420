package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/benchmarks/pkg/logger"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// Timestamps are unix nanoseconds. Stratum columns hold '' for the whole
// cohort so the unique key treats it as a value.
var migrations = []migration{ //nolint:gochecknoglobals // ordered schema history
	{
		Version:     1,
		Description: "templates, cohorts and entries",
		SQL: `
CREATE TABLE IF NOT EXISTS cohorts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    roster TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    parameters TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    cohort_id TEXT NOT NULL,
    batch_id TEXT NOT NULL DEFAULT '',
    assessment_id TEXT NOT NULL,
    athlete_id TEXT NOT NULL DEFAULT '',
    attempt INTEGER NOT NULL DEFAULT 0,
    age INTEGER,
    age_group TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_scope ON entries(cohort_id, assessment_id);

CREATE TABLE IF NOT EXISTS observations (
    entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    parameter_id TEXT NOT NULL,
    raw_value TEXT NOT NULL DEFAULT '',
    value TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    z_score REAL,
    percentile REAL,
    band TEXT,
    performance_z REAL,
    PRIMARY KEY (entry_id, position)
);

CREATE INDEX IF NOT EXISTS idx_observations_parameter ON observations(parameter_id);
`,
	},
	{
		Version:     2,
		Description: "benchmarks",
		SQL: `
CREATE TABLE IF NOT EXISTS benchmarks (
    id TEXT NOT NULL,
    cohort_id TEXT NOT NULL,
    assessment_id TEXT NOT NULL,
    parameter_id TEXT NOT NULL,
    age_group TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    parameter_name TEXT NOT NULL DEFAULT '',
    unit TEXT NOT NULL DEFAULT '',
    sample_count INTEGER NOT NULL,
    min_value REAL NOT NULL,
    max_value REAL NOT NULL,
    mean_value REAL NOT NULL,
    std_dev REAL NOT NULL,
    percentiles TEXT NOT NULL DEFAULT '[]',
    calculated_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (cohort_id, assessment_id, parameter_id, age_group, gender)
);
`,
	},
}

// Migrate applies pending schema migrations in version order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at INTEGER
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		s.log.Info(ctx, "applying migration", logger.Int("version", m.Version), logger.String("description", m.Description))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC().UnixNano(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
