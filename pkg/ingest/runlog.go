package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/aadhaar-pulse/pkg/store"
)

// Run is one row of the ingest_runs table.
type Run struct {
	RunID       string
	Category    string
	Files       int
	FilesFailed int
	Records     int
	Batches     int
	StartedAt   int64
	FinishedAt  int64
}

// RunLog records per-category ingestion outcomes next to the data.
// Unlike the record tables it is never wiped.
type RunLog struct {
	s *store.Store
}

// OpenRunLog ensures the ingest_runs table exists in s.
func OpenRunLog(ctx context.Context, s *store.Store) (*RunLog, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id        TEXT NOT NULL,
		category      TEXT NOT NULL,
		files         INTEGER NOT NULL,
		files_failed  INTEGER NOT NULL,
		records       INTEGER NOT NULL,
		batches       INTEGER NOT NULL,
		started_at    BIGINT NOT NULL,
		finished_at   BIGINT NOT NULL,
		PRIMARY KEY (run_id, category)
	)`
	if _, err := s.DB().ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create ingest_runs table: %w", err)
	}
	return &RunLog{s: s}, nil
}

// Record persists the outcome of one category of run runID.
func (l *RunLog) Record(ctx context.Context, runID string, cr CategoryReport) error {
	q := l.s.Rebind(`INSERT INTO ingest_runs
		(run_id, category, files, files_failed, records, batches, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	finished := cr.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := l.s.DB().ExecContext(ctx, q,
		runID, cr.Category, cr.Files, cr.FilesFailed, cr.Records, cr.Batches,
		cr.StartedAt.Unix(), finished.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record run %s/%s: %w", runID, cr.Category, err)
	}
	return nil
}

// List returns the most recent rows, newest first. limit <= 0 means 20.
func (l *RunLog) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := l.s.Rebind(`SELECT run_id, category, files, files_failed, records, batches, started_at, finished_at
		FROM ingest_runs ORDER BY started_at DESC, run_id, category LIMIT ?`)
	rows, err := l.s.DB().QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Category, &r.Files, &r.FilesFailed, &r.Records, &r.Batches, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
