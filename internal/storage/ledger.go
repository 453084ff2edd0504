package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one invocation of the conversion pipeline.
type Run struct {
	ID           string
	Participant  string
	Session      string
	ConfigPath   string
	OutputDir    string
	ToolVersion  string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Acquisitions int
	Failures     int
}

// MovedFile is one file placed into the BIDS tree by a run.
type MovedFile struct {
	RunID       string
	Acquisition string
	Src         string
	Dst         string
	// Action is how the file was placed: "rename", "copy", "write" or "gzip".
	Action  string
	MovedAt time.Time
}

// Ledger provides CRUD operations for the runs and moved_files tables
type Ledger struct {
	db  *DB
	now func() time.Time
}

// NewLedger creates a ledger on an open database.
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// StartRun inserts run with a fresh ID and the running status, and returns
// the ID.
func (l *Ledger) StartRun(run *Run) (string, error) {
	run.ID = uuid.NewString()
	run.StartedAt = l.now().UTC()
	run.Status = RunStatusRunning

	_, err := l.db.Exec(`
		INSERT INTO runs (
			id, participant, session, config_path, output_dir, tool_version,
			started_at, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Participant,
		run.Session,
		run.ConfigPath,
		run.OutputDir,
		run.ToolVersion,
		run.StartedAt.Format(time.RFC3339Nano),
		run.Status,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}

	return run.ID, nil
}

// FinishRun closes a run. It fails when failures > 0.
func (l *Ledger) FinishRun(runID string, acquisitions, failures int) error {
	status := RunStatusSucceeded
	if failures > 0 {
		status = RunStatusFailed
	}

	res, err := l.db.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, acquisitions = ?, failures = ?
		WHERE id = ?
	`, l.now().UTC().Format(time.RFC3339Nano), status, acquisitions, failures, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordFile appends a moved file to its run.
func (l *Ledger) RecordFile(f MovedFile) error {
	if f.MovedAt.IsZero() {
		f.MovedAt = l.now()
	}

	_, err := l.db.Exec(`
		INSERT INTO moved_files (run_id, acquisition, src, dst, action, moved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.RunID, f.Acquisition, f.Src, f.Dst, f.Action, f.MovedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (l *Ledger) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, participant, session, config_path, output_dir, tool_version,
		       started_at, finished_at, status, acquisitions, failures
		FROM runs
		ORDER BY started_at DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(
			&r.ID, &r.Participant, &r.Session, &r.ConfigPath, &r.OutputDir, &r.ToolVersion,
			&startedAt, &finishedAt, &r.Status, &r.Acquisitions, &r.Failures,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("invalid started_at format: %w", err)
		}
		if finishedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("invalid finished_at format: %w", err)
			}
			r.FinishedAt = &t
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ListFiles returns the files moved by a run, in insertion order.
func (l *Ledger) ListFiles(runID string) ([]MovedFile, error) {
	rows, err := l.db.Query(`
		SELECT run_id, acquisition, src, dst, action, moved_at
		FROM moved_files
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []MovedFile
	for rows.Next() {
		var f MovedFile
		var movedAt string
		if err := rows.Scan(&f.RunID, &f.Acquisition, &f.Src, &f.Dst, &f.Action, &movedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if f.MovedAt, err = time.Parse(time.RFC3339Nano, movedAt); err != nil {
			return nil, fmt.Errorf("invalid moved_at format: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// RunRecorder records the moves of a single run.
type RunRecorder struct {
	ledger *Ledger
	runID  string
}

// Recorder binds the ledger to runID.
func (l *Ledger) Recorder(runID string) *RunRecorder {
	return &RunRecorder{ledger: l, runID: runID}
}

// RecordMove implements the organizer's recorder.
func (r *RunRecorder) RecordMove(acquisition, src, dst, action string) error {
	return r.ledger.RecordFile(MovedFile{
		RunID:       r.runID,
		Acquisition: acquisition,
		Src:         src,
		Dst:         dst,
		Action:      action,
	})
}
