// Package runlog keeps append-only accounting of pipeline executions: one
// RunRecord per run with classification and write counters. It holds no
// pipeline logic of its own; the record is the audit trail for the
// idempotency claims of the other components (a re-run against unchanged
// upstream state must report new=0, updated=0).
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed-width so ORDER BY started_at over the stored TEXT
// matches temporal order; RFC3339Nano trims trailing fractional zeros and
// breaks that.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Outcome is one countable per-entity result inside a run.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeFailed
	OutcomeWithContent
)

// RunRecord is a snapshot of one run's accounting.
type RunRecord struct {
	RunID        string
	Source       string
	StartedAt    time.Time
	CompletedAt  time.Time // zero while running
	Status       Status
	Found        int
	New          int
	Updated      int
	Unchanged    int
	Failed       int
	WithContent  int
	ErrorMessage string
}

// Tracker persists run records. It shares the ledger's database file and
// owns only the runs table.
type Tracker struct {
	db *sql.DB
}

// NewTracker prepares the runs table (idempotently) and returns a tracker.
func NewTracker(db *sql.DB) (*Tracker, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &Tracker{db: db}, nil
}

// Start records a new run and returns its live handle. The run id must be
// unique across all runs.
func (t *Tracker) Start(ctx context.Context, runID, source string, found int) (*Run, error) {
	started := time.Now().UTC()
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, source, started_at, status, found)
		VALUES (?, ?, ?, ?, ?)
	`, runID, source, started.Format(timeLayout), StatusRunning, found)
	if err != nil {
		return nil, fmt.Errorf("runlog: start run %s: %w", runID, err)
	}

	return &Run{
		tracker: t,
		record: RunRecord{
			RunID:     runID,
			Source:    source,
			StartedAt: started,
			Status:    StatusRunning,
			Found:     found,
		},
	}, nil
}

// List returns the most recent runs, newest first. An empty source matches
// all sources.
func (t *Tracker) List(ctx context.Context, source string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx, `
		SELECT run_id, source, started_at, completed_at, status,
		       found, "new", updated, unchanged, failed, with_content, error_message
		FROM runs
		WHERE (? = '' OR source = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: list runs: %w", err)
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var (
			rec          RunRecord
			startedStr   string
			completedStr sql.NullString
			errMsg       sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.Source, &startedStr, &completedStr, &rec.Status,
			&rec.Found, &rec.New, &rec.Updated, &rec.Unchanged, &rec.Failed, &rec.WithContent, &errMsg); err != nil {
			return nil, fmt.Errorf("runlog: scan run: %w", err)
		}
		rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedStr)
		if err != nil {
			return nil, fmt.Errorf("runlog: run %s has unparseable started_at %q: %w", rec.RunID, startedStr, err)
		}
		if completedStr.Valid {
			rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedStr.String)
			if err != nil {
				return nil, fmt.Errorf("runlog: run %s has unparseable completed_at %q: %w", rec.RunID, completedStr.String, err)
			}
		}
		rec.ErrorMessage = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterate runs: %w", err)
	}
	return records, nil
}

// Run is the mutable handle for the one in-flight run that owns its record.
// Counters accumulate in memory and reach the database on Checkpoint and
// Finish. Safe for concurrent Record calls from pipeline workers.
type Run struct {
	tracker *Tracker

	mu       sync.Mutex
	record   RunRecord
	finished bool
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.record.RunID
}

// Record increments the counter for one per-entity outcome. Calls after
// Finish are dropped: a finished record is immutable.
func (r *Run) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		slog.Warn("outcome recorded after run finish, dropping", "run_id", r.record.RunID)
		return
	}
	switch o {
	case OutcomeNew:
		r.record.New++
	case OutcomeUpdated:
		r.record.Updated++
	case OutcomeUnchanged:
		r.record.Unchanged++
	case OutcomeFailed:
		r.record.Failed++
	case OutcomeWithContent:
		r.record.WithContent++
	}
}

// SetFound updates the number of upstream entities observed by the run.
func (r *Run) SetFound(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finished {
		r.record.Found = n
	}
}

// Snapshot returns a copy of the current accounting state.
func (r *Run) Snapshot() RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// Checkpoint flushes the in-memory counters to the database without closing
// the run, so a crashed run still reports partial progress.
func (r *Run) Checkpoint(ctx context.Context) error {
	r.mu.Lock()
	rec := r.record
	finished := r.finished
	r.mu.Unlock()

	if finished {
		return nil
	}
	return r.tracker.updateCounters(ctx, rec)
}

// Finish closes the run with a terminal status. The record is immutable
// afterwards; a second Finish is an error.
func (r *Run) Finish(ctx context.Context, status Status, errMsg string) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return fmt.Errorf("runlog: run %s already finished", r.record.RunID)
	}
	r.finished = true
	r.record.Status = status
	r.record.CompletedAt = time.Now().UTC()
	r.record.ErrorMessage = errMsg
	rec := r.record
	r.mu.Unlock()

	_, err := r.tracker.db.ExecContext(ctx, `
		UPDATE runs
		SET completed_at = ?, status = ?, found = ?, "new" = ?, updated = ?,
		    unchanged = ?, failed = ?, with_content = ?, error_message = ?
		WHERE run_id = ?
	`, rec.CompletedAt.Format(timeLayout), rec.Status, rec.Found, rec.New,
		rec.Updated, rec.Unchanged, rec.Failed, rec.WithContent, nullIfEmpty(rec.ErrorMessage), rec.RunID)
	if err != nil {
		return fmt.Errorf("runlog: finish run %s: %w", rec.RunID, err)
	}
	return nil
}

func (t *Tracker) updateCounters(ctx context.Context, rec RunRecord) error {
	_, err := t.db.ExecContext(ctx, `
		UPDATE runs
		SET found = ?, "new" = ?, updated = ?, unchanged = ?, failed = ?, with_content = ?
		WHERE run_id = ? AND completed_at IS NULL
	`, rec.Found, rec.New, rec.Updated, rec.Unchanged, rec.Failed, rec.WithContent, rec.RunID)
	if err != nil {
		return fmt.Errorf("runlog: checkpoint run %s: %w", rec.RunID, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
