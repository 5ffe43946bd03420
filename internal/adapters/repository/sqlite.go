package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

// SQLiteStore is a Store on an SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	cfg storeConfig
	log logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies migrations.
// An empty path or ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, log logger.Logger, opts ...Option) (*SQLiteStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	memory := path == "" || path == ":memory:"
	dsn := ":memory:"
	if !memory {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &SQLiteStore{db: db, cfg: defaultConfig(opts), log: log.Named("repository")}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// retry runs fn until it succeeds, fails with something other than a busy
// database, or the retry budget runs out.
func (s *SQLiteStore) retry(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isBusy(err) {
			metrics.RecordRepositoryRetry()
			s.log.Debug(ctx, "database busy, retrying", logger.String("op", op))
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(operation, backoff.WithContext(s.cfg.backOff(), ctx))
	metrics.RecordRepositoryLatency(op, msSince(start))
	if err != nil {
		metrics.RecordRepositoryError(op)
	}
	return err
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const benchmarkColumns = `id, cohort_id, assessment_id, parameter_id, age_group, gender,
	parameter_name, unit, sample_count, min_value, max_value, mean_value, std_dev,
	percentiles, calculated_at, created_at, updated_at`

// UpsertBenchmark implements BenchmarkStore. The single statement keeps the
// one-record-per-key guarantee under concurrent writers; last writer wins.
func (s *SQLiteStore) UpsertBenchmark(ctx context.Context, b model.Benchmark) (model.Benchmark, error) {
	pcts, err := json.Marshal(b.Percentiles)
	if err != nil {
		return model.Benchmark{}, fmt.Errorf("encode percentiles: %w", err)
	}
	now := s.cfg.now()
	id := s.cfg.newID()

	var created, updated int64
	err = s.retry(ctx, "upsert_benchmark", func() error {
		return s.db.QueryRowContext(ctx, `
			INSERT INTO benchmarks (`+benchmarkColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(cohort_id, assessment_id, parameter_id, age_group, gender) DO UPDATE SET
				parameter_name = excluded.parameter_name,
				unit = excluded.unit,
				sample_count = excluded.sample_count,
				min_value = excluded.min_value,
				max_value = excluded.max_value,
				mean_value = excluded.mean_value,
				std_dev = excluded.std_dev,
				percentiles = excluded.percentiles,
				calculated_at = excluded.calculated_at,
				updated_at = MAX(excluded.updated_at, benchmarks.created_at + 1)
			RETURNING id, created_at, updated_at
		`,
			id, b.Key.CohortID, b.Key.AssessmentID, b.Key.ParameterID,
			fromStratum(b.Key.AgeGroup), fromStratum(b.Key.Gender),
			b.ParameterName, b.Unit, b.Count, b.Min, b.Max, b.Mean, b.StdDev,
			string(pcts), b.CalculatedAt.UnixNano(), now.UnixNano(), now.UnixNano(),
		).Scan(&b.ID, &created, &updated)
	})
	if err != nil {
		return model.Benchmark{}, fmt.Errorf("upsert benchmark %s: %w", b.Key, err)
	}
	b.CreatedAt = fromNanos(created)
	b.UpdatedAt = fromNanos(updated)
	if created == updated {
		s.refreshStoredGauge(ctx)
	}
	return b, nil
}

// GetBenchmark implements BenchmarkStore.
func (s *SQLiteStore) GetBenchmark(ctx context.Context, key model.BenchmarkKey) (model.Benchmark, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+benchmarkColumns+` FROM benchmarks
		WHERE cohort_id = ? AND assessment_id = ? AND parameter_id = ? AND age_group = ? AND gender = ?`,
		key.CohortID, key.AssessmentID, key.ParameterID, fromStratum(key.AgeGroup), fromStratum(key.Gender))
	b, err := scanBenchmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Benchmark{}, fmt.Errorf("benchmark %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return model.Benchmark{}, fmt.Errorf("get benchmark %s: %w", key, err)
	}
	return b, nil
}

// ListBenchmarks implements BenchmarkStore.
func (s *SQLiteStore) ListBenchmarks(ctx context.Context, f model.BenchmarkFilter) ([]model.Benchmark, error) {
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	where, args := benchmarkWhere(f)
	q := `SELECT ` + benchmarkColumns + ` FROM benchmarks` + where +
		` ORDER BY cohort_id, assessment_id, parameter_id, age_group, gender`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("list_benchmarks", msSince(start)) }()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordRepositoryError("list_benchmarks")
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	defer rows.Close()

	var out []model.Benchmark
	for rows.Next() {
		b, err := scanBenchmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBenchmarks implements BenchmarkStore.
func (s *SQLiteStore) DeleteBenchmarks(ctx context.Context, f model.BenchmarkFilter) (int, error) {
	where, args := benchmarkWhere(f)
	var n int64
	err := s.retry(ctx, "delete_benchmarks", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM benchmarks`+where, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete benchmarks: %w", err)
	}
	s.refreshStoredGauge(ctx)
	return int(n), nil
}

// DeleteBenchmark implements BenchmarkStore.
func (s *SQLiteStore) DeleteBenchmark(ctx context.Context, key model.BenchmarkKey) (bool, error) {
	var n int64
	err := s.retry(ctx, "delete_benchmark", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM benchmarks
			WHERE cohort_id = ? AND assessment_id = ? AND parameter_id = ? AND age_group = ? AND gender = ?`,
			key.CohortID, key.AssessmentID, key.ParameterID, fromStratum(key.AgeGroup), fromStratum(key.Gender))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete benchmark %s: %w", key, err)
	}
	if n > 0 {
		s.refreshStoredGauge(ctx)
	}
	return n > 0, nil
}

func benchmarkWhere(f model.BenchmarkFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.CohortID != "" {
		add("cohort_id = ?", f.CohortID)
	}
	if f.AssessmentID != "" {
		add("assessment_id = ?", f.AssessmentID)
	}
	if f.ParameterID != "" {
		add("parameter_id = ?", f.ParameterID)
	}
	if f.AgeGroup.Set {
		add("age_group = ?", fromStratum(f.AgeGroup.Value))
	}
	if f.Gender.Set {
		add("gender = ?", fromStratum(f.Gender.Value))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanBenchmark(r rowScanner) (model.Benchmark, error) {
	var (
		b                           model.Benchmark
		ageGroup, gender, pcts      string
		calculated, created, update int64
	)
	if err := r.Scan(&b.ID, &b.Key.CohortID, &b.Key.AssessmentID, &b.Key.ParameterID, &ageGroup, &gender,
		&b.ParameterName, &b.Unit, &b.Count, &b.Min, &b.Max, &b.Mean, &b.StdDev,
		&pcts, &calculated, &created, &update); err != nil {
		return model.Benchmark{}, err
	}
	if err := json.Unmarshal([]byte(pcts), &b.Percentiles); err != nil {
		return model.Benchmark{}, fmt.Errorf("decode percentiles: %w", err)
	}
	b.Key.AgeGroup = toStratum(ageGroup)
	b.Key.Gender = toStratum(gender)
	b.CalculatedAt = fromNanos(calculated)
	b.CreatedAt = fromNanos(created)
	b.UpdatedAt = fromNanos(update)
	return b, nil
}

func (s *SQLiteStore) refreshStoredGauge(ctx context.Context) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM benchmarks").Scan(&n); err == nil {
		metrics.UpdateBenchmarksStored(n)
	}
}

// SaveCohort implements CohortStore.
func (s *SQLiteStore) SaveCohort(ctx context.Context, c model.Cohort) error {
	if c.ID == "" {
		return fmt.Errorf("cohort without id: %w", ErrInvalidRecord)
	}
	roster, err := json.Marshal(c.Roster)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	return s.retry(ctx, "save_cohort", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cohorts (id, name, roster, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, roster = excluded.roster
		`, c.ID, c.Name, string(roster), c.CreatedAt.UnixNano())
		return err
	})
}

// GetCohort implements CohortStore.
func (s *SQLiteStore) GetCohort(ctx context.Context, id string) (model.Cohort, error) {
	var (
		c       model.Cohort
		roster  string
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, roster, created_at FROM cohorts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &roster, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cohort{}, fmt.Errorf("cohort %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Cohort{}, fmt.Errorf("get cohort %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(roster), &c.Roster); err != nil {
		return model.Cohort{}, fmt.Errorf("decode roster: %w", err)
	}
	c.CreatedAt = fromNanos(created)
	return c, nil
}

// SaveAssessment implements AssessmentStore.
func (s *SQLiteStore) SaveAssessment(ctx context.Context, a model.Assessment) error {
	if a.ID == "" {
		return fmt.Errorf("assessment without id: %w", ErrInvalidRecord)
	}
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	return s.retry(ctx, "save_assessment", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO assessments (id, name, parameters, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				parameters = excluded.parameters,
				updated_at = excluded.updated_at
		`, a.ID, a.Name, string(params), a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano())
		return err
	})
}

// GetAssessment implements AssessmentStore.
func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (model.Assessment, error) {
	var (
		a                model.Assessment
		params           string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, parameters, created_at, updated_at FROM assessments WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &params, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Assessment{}, fmt.Errorf("assessment %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Assessment{}, fmt.Errorf("get assessment %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &a.Parameters); err != nil {
		return model.Assessment{}, fmt.Errorf("decode parameters: %w", err)
	}
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return a, nil
}

// SaveEntry implements EntryStore.
func (s *SQLiteStore) SaveEntry(ctx context.Context, e model.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry without id: %w", ErrInvalidRecord)
	}
	return s.retry(ctx, "save_entry", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var age sql.NullInt64
			if e.Age != nil {
				age = sql.NullInt64{Int64: int64(*e.Age), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entries (id, seq, cohort_id, batch_id, assessment_id, athlete_id, attempt, age, age_group, gender, created_at, updated_at)
				VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					cohort_id = excluded.cohort_id,
					batch_id = excluded.batch_id,
					assessment_id = excluded.assessment_id,
					athlete_id = excluded.athlete_id,
					attempt = excluded.attempt,
					age = excluded.age,
					age_group = excluded.age_group,
					gender = excluded.gender,
					updated_at = excluded.updated_at
			`, e.ID, e.CohortID, e.BatchID, e.AssessmentID, e.AthleteID, e.Attempt, age,
				e.AgeGroup, e.Gender, e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano()); err != nil {
				return fmt.Errorf("write entry: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE entry_id = ?`, e.ID); err != nil {
				return fmt.Errorf("clear observations: %w", err)
			}
			for i, o := range e.Observations {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO observations (entry_id, position, parameter_id, raw_value, value, note, z_score, percentile, band, performance_z)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, e.ID, i, o.ParameterID, o.Raw.Encode(), o.Value.Encode(), o.Note,
					nullFloat(o.ZScore), nullFloat(o.Percentile), nullString(o.Band), nullFloat(o.PerformanceZ)); err != nil {
					return fmt.Errorf("write observation %d: %w", i, err)
				}
			}
			return nil
		})
	})
}

// GetEntry implements EntryStore.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (model.Entry, error) {
	var (
		e                model.Entry
		age              sql.NullInt64
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cohort_id, batch_id, assessment_id, athlete_id, attempt, age, age_group, gender, created_at, updated_at
		FROM entries WHERE id = ?`, id).
		Scan(&e.ID, &e.CohortID, &e.BatchID, &e.AssessmentID, &e.AthleteID, &e.Attempt, &age,
			&e.AgeGroup, &e.Gender, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, fmt.Errorf("entry %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Entry{}, fmt.Errorf("get entry %q: %w", id, err)
	}
	if age.Valid {
		a := int(age.Int64)
		e.Age = &a
	}
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT parameter_id, raw_value, value, note, z_score, percentile, band, performance_z
		FROM observations WHERE entry_id = ? ORDER BY position`, id)
	if err != nil {
		return model.Entry{}, fmt.Errorf("get observations %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o          model.Observation
			raw, value string
			z, pct, pz sql.NullFloat64
			band       sql.NullString
		)
		if err := rows.Scan(&o.ParameterID, &raw, &value, &o.Note, &z, &pct, &band, &pz); err != nil {
			return model.Entry{}, fmt.Errorf("scan observation: %w", err)
		}
		if o.Raw, err = model.DecodeValue(raw); err != nil {
			return model.Entry{}, err
		}
		if o.Value, err = model.DecodeValue(value); err != nil {
			return model.Entry{}, err
		}
		o.ZScore = floatPtr(z)
		o.Percentile = floatPtr(pct)
		o.PerformanceZ = floatPtr(pz)
		if band.Valid {
			b := band.String
			o.Band = &b
		}
		e.Observations = append(e.Observations, o)
	}
	return e, rows.Err()
}

// AssessmentsWithEntries implements EntryStore.
func (s *SQLiteStore) AssessmentsWithEntries(ctx context.Context, cohortID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT assessment_id FROM entries WHERE cohort_id = ? ORDER BY assessment_id`, cohortID)
	if err != nil {
		return nil, fmt.Errorf("list assessments for cohort %q: %w", cohortID, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ObservationValues implements EntryStore.
func (s *SQLiteStore) ObservationValues(ctx context.Context, q model.ObservationQuery) ([]model.Value, error) {
	query := `
		SELECT o.value FROM observations o JOIN entries e ON e.id = o.entry_id
		WHERE e.cohort_id = ? AND e.assessment_id = ? AND o.parameter_id = ? AND o.value <> ''`
	args := []any{q.CohortID, q.AssessmentID, q.ParameterID}
	if q.AgeGroup != "" {
		query += ` AND e.age_group = ?`
		args = append(args, q.AgeGroup)
	}
	if q.Gender != "" {
		query += ` AND e.gender = ?`
		args = append(args, q.Gender)
	}
	query += ` ORDER BY e.seq, o.position`

	start := time.Now()
	defer func() { metrics.RecordRepositoryLatency("observation_values", msSince(start)) }()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordRepositoryError("observation_values")
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()
	var out []model.Value
	for rows.Next() {
		var enc string
		if err := rows.Scan(&enc); err != nil {
			return nil, err
		}
		v, err := model.DecodeValue(enc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveScores implements EntryStore.
func (s *SQLiteStore) SaveScores(ctx context.Context, entryID string, obs []model.Observation) error {
	return s.retry(ctx, "save_scores", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE id = ?`, entryID).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("entry %q: %w", entryID, ErrNotFound)
			}
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE entry_id = ?`, entryID).Scan(&n); err != nil {
				return err
			}
			if n != len(obs) {
				return fmt.Errorf("entry %q: %w", entryID, ErrStale)
			}
			for i, o := range obs {
				res, err := tx.ExecContext(ctx, `
					UPDATE observations SET z_score = ?, percentile = ?, band = ?, performance_z = ?
					WHERE entry_id = ? AND position = ? AND parameter_id = ? AND value = ?
				`, nullFloat(o.ZScore), nullFloat(o.Percentile), nullString(o.Band), nullFloat(o.PerformanceZ),
					entryID, i, o.ParameterID, o.Value.Encode())
				if err != nil {
					return err
				}
				if affected, err := res.RowsAffected(); err != nil || affected == 0 {
					return fmt.Errorf("entry %q observation %d: %w", entryID, i, ErrStale)
				}
			}
			return nil
		})
	})
}

// Counts implements Store.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"cohorts", &c.Cohorts},
		{"assessments", &c.Assessments},
		{"entries", &c.Entries},
		{"benchmarks", &c.Benchmarks},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func fromStratum(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toStratum(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
