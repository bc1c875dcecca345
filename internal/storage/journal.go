package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docsummarizer/internal/models"
)

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 200
)

// Journal is the append-only record of pipeline runs.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// RecordRun inserts run and sets its ID.
func (j *Journal) RecordRun(ctx context.Context, run *models.Run) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (object_key, declared_type, size, existed, stage, outcome, failure_kind, error_message, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ObjectKey, run.DeclaredType, run.Size, run.Existed, run.Stage, string(run.Outcome),
		run.FailureKind, run.ErrorMessage, run.Summary, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs first. limit is clamped to
// [1, MaxRunsLimit]; zero or less means DefaultRunsLimit.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	switch {
	case limit <= 0:
		limit = DefaultRunsLimit
	case limit > MaxRunsLimit:
		limit = MaxRunsLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, object_key, declared_type, size, existed, stage, outcome, failure_kind, error_message, summary, created_at
		FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.Run, 0, limit)
	for rows.Next() {
		var (
			r       models.Run
			outcome string
		)
		if err := rows.Scan(&r.ID, &r.ObjectKey, &r.DeclaredType, &r.Size, &r.Existed, &r.Stage,
			&outcome, &r.FailureKind, &r.ErrorMessage, &r.Summary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Outcome = models.RunOutcome(outcome)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneRuns deletes runs created before the cutoff and reports how many went.
func (j *Journal) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruned rows: %w", err)
	}
	return n, nil
}
