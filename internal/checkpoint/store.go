// Package checkpoint persists per-candidate travel times so an interrupted
// run can resume without re-querying the routing service.
package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Store holds run state and candidate travel times in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "checkpoint: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	region     TEXT NOT NULL,
	departure  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidate_times (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	geoid    TEXT NOT NULL,
	ordinal  INTEGER NOT NULL,
	coord    TEXT NOT NULL,
	minutes  REAL,
	PRIMARY KEY (run_id, geoid, ordinal)
);

CREATE TABLE IF NOT EXISTS demographics (
	geoid        TEXT PRIMARY KEY,
	total_pop    INTEGER NOT NULL,
	subgroup_pop INTEGER NOT NULL,
	fetched_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_region ON runs(region);
CREATE INDEX IF NOT EXISTS idx_candidate_times_run ON candidate_times(run_id);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "checkpoint: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one pipeline execution.
type Run struct {
	ID        string
	Region    string
	Departure time.Time
	Status    string
}

// CreateRun inserts a new running run and returns its id.
func (s *Store) CreateRun(ctx context.Context, region string, departure time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, region, departure) VALUES (?, ?, ?)`,
		id, region, departure.Format(time.RFC3339),
	)
	if err != nil {
		return "", eris.Wrap(err, "checkpoint: create run")
	}
	return id, nil
}

// LatestRun returns the most recent run for a region, or nil if none exists.
func (s *Store) LatestRun(ctx context.Context, region string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, region, departure, status FROM runs WHERE region = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		region,
	)

	var r Run
	var departure string
	if err := row.Scan(&r.ID, &r.Region, &departure, &r.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "checkpoint: latest run")
	}

	t, err := time.Parse(time.RFC3339, departure)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: parse run departure")
	}
	r.Departure = t
	return &r, nil
}

// MarkRunComplete flips a run's status to complete.
func (s *Store) MarkRunComplete(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'complete', updated_at = datetime('now') WHERE id = ?`,
		runID,
	)
	return eris.Wrap(err, "checkpoint: mark run complete")
}

// SaveCandidateTimes records one centroid's per-candidate minute values.
// A nil entry marks a failed candidate and round-trips as NULL.
func (s *Store) SaveCandidateTimes(ctx context.Context, runID, geoid, coord string, minutes []*float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "checkpoint: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candidate_times WHERE run_id = ? AND geoid = ?`, runID, geoid,
	); err != nil {
		return eris.Wrap(err, "checkpoint: clear centroid")
	}

	for i, m := range minutes {
		var val sql.NullFloat64
		if m != nil {
			val = sql.NullFloat64{Float64: *m, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO candidate_times (run_id, geoid, ordinal, coord, minutes) VALUES (?, ?, ?, ?, ?)`,
			runID, geoid, i, coord, val,
		); err != nil {
			return eris.Wrapf(err, "checkpoint: insert candidate %d for %s", i, geoid)
		}
	}

	return eris.Wrap(tx.Commit(), "checkpoint: commit")
}

// CandidateTimes holds one centroid's persisted candidate minutes.
type CandidateTimes struct {
	GEOID   string
	Coord   string
	Minutes []*float64
}

// LoadCandidateTimes returns all persisted candidate times for a run,
// keyed by GEOID, candidate ordinals in order.
func (s *Store) LoadCandidateTimes(ctx context.Context, runID string) (map[string]CandidateTimes, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid, coord, minutes FROM candidate_times WHERE run_id = ? ORDER BY geoid, ordinal`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: load candidate times")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]CandidateTimes)
	for rows.Next() {
		var geoid, coord string
		var minutes sql.NullFloat64
		if err := rows.Scan(&geoid, &coord, &minutes); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan candidate time")
		}

		entry := out[geoid]
		entry.GEOID = geoid
		entry.Coord = coord
		if minutes.Valid {
			v := minutes.Float64
			entry.Minutes = append(entry.Minutes, &v)
		} else {
			entry.Minutes = append(entry.Minutes, nil)
		}
		out[geoid] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "checkpoint: iterate candidate times")
	}
	return out, nil
}

// ResolvedGEOIDs returns the set of centroids already persisted for a run.
func (s *Store) ResolvedGEOIDs(ctx context.Context, runID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT geoid FROM candidate_times WHERE run_id = ?`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: resolved geoids")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]bool)
	for rows.Next() {
		var geoid string
		if err := rows.Scan(&geoid); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan geoid")
		}
		out[geoid] = true
	}
	return out, eris.Wrap(rows.Err(), "checkpoint: iterate geoids")
}

// Counts returns resolved and unavailable centroid counts for a run. A
// centroid is unavailable when none of its candidates has a minute value.
func (s *Store) Counts(ctx context.Context, runID string) (resolved, unavailable int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0)
		FROM (
			SELECT geoid, MAX(minutes IS NOT NULL) AS ok
			FROM candidate_times WHERE run_id = ? GROUP BY geoid
		)`, runID)
	if err := row.Scan(&resolved, &unavailable); err != nil {
		return 0, 0, eris.Wrap(err, "checkpoint: counts")
	}
	return resolved, unavailable, nil
}
