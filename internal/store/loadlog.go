package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// LoadRun is one LOAD_LOG row.
type LoadRun struct {
	RunID      string     `db:"run_id" json:"run_id"`
	Table      string     `db:"table_name" json:"table"`
	Source     string     `db:"source" json:"source"`
	Status     string     `db:"status" json:"status"`
	Inserted   int        `db:"inserted" json:"inserted"`
	Failed     int        `db:"failed" json:"failed"`
	Error      string     `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Load run statuses.
const (
	LoadRunning  = "running"
	LoadComplete = "complete"
	LoadFailed   = "failed"
)

// StartLoad records the beginning of a bulk load and returns its run.
func (s *SQLiteStore) StartLoad(ctx context.Context, table, source string) (*LoadRun, error) {
	run := &LoadRun{
		RunID:     uuid.New().String(),
		Table:     table,
		Source:    source,
		Status:    LoadRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO LOAD_LOG (run_id, table_name, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Table, run.Source, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "loadlog: start %s", table)
	}
	return run, nil
}

// FinishLoad records the outcome of a bulk load. A nil result or a non-empty
// loadErr marks the run failed.
func (s *SQLiteStore) FinishLoad(ctx context.Context, run *LoadRun, result *LoadResult, loadErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = LoadComplete
	if result != nil {
		run.Inserted = result.Inserted
		run.Failed = result.Failed()
	}
	if loadErr != nil || result == nil {
		run.Status = LoadFailed
	}
	if loadErr != nil {
		run.Error = loadErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE LOAD_LOG SET status = ?, inserted = ?, failed = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		run.Status, run.Inserted, run.Failed, run.Error, now, run.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "loadlog: finish %s", run.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("load run not found: %s", run.RunID)
	}
	return nil
}

// ListLoads returns the most recent load runs, newest first.
func (s *SQLiteStore) ListLoads(ctx context.Context, limit int) ([]LoadRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []LoadRun
	err := s.db.SelectContext(ctx, &runs,
		`SELECT run_id, table_name, source, status, inserted, failed, error, started_at, finished_at
		 FROM LOAD_LOG ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "loadlog: list")
	}
	return runs, nil
}
