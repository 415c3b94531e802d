// Package index records the outcome of every event of every run in a sqlite
// database so past runs can be queried.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/wavecut/internal/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT,
	total INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	event_key TEXT NOT NULL,
	day TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	artifact TEXT NOT NULL DEFAULT '',
	traces INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_outcomes_event ON outcomes(event_key);
`

// Status is the terminal state of one event.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is one indexed event result.
type Outcome struct {
	RunID      string
	Seq        int // row position in the input table
	EventKey   string
	Day        string
	Year       int
	Status     Status
	Artifact   string
	Traces     int
	Reason     string
	RecordedAt time.Time
}

// Run is one indexed invocation.
type Run struct {
	ID         string
	Input      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
}

// Index is a handle on the outcome database.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	log.Debug(log.CatIndex, "Opening index", "path", path)
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		log.ErrorErr(log.CatIndex, "Failed to open index", err, "path", path)
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	log.Info(log.CatIndex, "Index ready", "path", path)
	return &Index{db: db, path: path}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path is the database file.
func (ix *Index) Path() string { return ix.path }

// BeginRun inserts a run row.
func (ix *Index) BeginRun(ctx context.Context, id, input string, started time.Time) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, started_at) VALUES (?, ?, ?)`,
		id, input, formatTime(started))
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (ix *Index) FinishRun(ctx context.Context, r Run) error {
	_, err := ix.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ?, skipped = ? WHERE id = ?`,
		formatTime(r.FinishedAt), r.Total, r.Succeeded, r.Failed, r.Skipped, r.ID)
	if err != nil {
		return fmt.Errorf("recording run end: %w", err)
	}
	return nil
}

// Record inserts one event outcome.
func (ix *Index) Record(ctx context.Context, o Outcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, seq, event_key, day, year, status, artifact, traces, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Seq, o.EventKey, o.Day, o.Year, string(o.Status), o.Artifact, o.Traces, o.Reason, formatTime(o.RecordedAt))
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.EventKey, err)
	}
	return nil
}

// Outcomes lists the outcomes of one run in input order.
func (ix *Index) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT run_id, seq, event_key, day, year, status, artifact, traces, reason, recorded_at
		 FROM outcomes WHERE run_id = ? ORDER BY seq, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Outcome
	for rows.Next() {
		var (
			o        Outcome
			status   string
			recorded string
		)
		if err := rows.Scan(&o.RunID, &o.Seq, &o.EventKey, &o.Day, &o.Year, &status, &o.Artifact, &o.Traces, &o.Reason, &recorded); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = Status(status)
		o.RecordedAt = parseTime(recorded)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Runs lists runs, most recent first, at most limit of them (0 = all).
func (ix *Index) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input, started_at, COALESCE(finished_at, ''), total, succeeded, failed, skipped
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Input, &started, &finished, &r.Total, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastSaved returns the artifact path most recently saved for eventKey.
func (ix *Index) LastSaved(ctx context.Context, eventKey string) (string, bool, error) {
	var artifact string
	err := ix.db.QueryRowContext(ctx,
		`SELECT artifact FROM outcomes WHERE event_key = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		eventKey, string(StatusSaved)).Scan(&artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying last artifact: %w", err)
	}
	return artifact, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
