package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dupctl/dupctl/models"
)

// RetryStore persists per-job retry bookkeeping for the Job Server's retry
// policy (spec.md §3 RetryEntry, §4.1).
type RetryStore struct {
	db DB
}

func NewRetryStore(db DB) *RetryStore {
	return &RetryStore{db: db}
}

type retryRow struct {
	JobID        string `db:"job_id"`
	Attempts     int    `db:"attempts"`
	LastAttempt  string `db:"last_attempt"`
	MaxAttempts  int    `db:"max_attempts"`
	DelaySeconds int    `db:"delay_seconds"`
}

// Put upserts the retry entry for a job.
func (s *RetryStore) Put(ctx context.Context, entry models.RetryEntry) error {
	err := s.db.Upsert(ctx, "retry_entries", retryRow{
		JobID:        entry.JobID,
		Attempts:     entry.Attempts,
		LastAttempt:  entry.LastAttempt.Format(timeLayout),
		MaxAttempts:  entry.MaxAttempts,
		DelaySeconds: int(entry.Delay.Seconds()),
	}, []string{"job_id"})
	if err != nil {
		return fmt.Errorf("recording retry entry for %s: %w", entry.JobID, err)
	}
	return nil
}

// Get fetches the retry entry for a job. Returns (nil, nil) if none exists.
func (s *RetryStore) Get(ctx context.Context, jobID string) (*models.RetryEntry, error) {
	var row retryRow
	err := s.db.Get(ctx, &row, `SELECT job_id, attempts, last_attempt, max_attempts,
		delay_seconds FROM retry_entries WHERE job_id = ?`, jobID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading retry entry: %w", err)
	}
	last, err := time.Parse(timeLayout, row.LastAttempt)
	if err != nil {
		return nil, fmt.Errorf("parsing last_attempt: %w", err)
	}
	return &models.RetryEntry{
		JobID:       row.JobID,
		Attempts:    row.Attempts,
		LastAttempt: last,
		MaxAttempts: row.MaxAttempts,
		Delay:       time.Duration(row.DelaySeconds) * time.Second,
	}, nil
}

// Delete removes a job's retry entry once it either succeeds or is exhausted.
func (s *RetryStore) Delete(ctx context.Context, jobID string) error {
	return s.db.Exec(ctx, `DELETE FROM retry_entries WHERE job_id = ?`, jobID)
}

// All returns every active retry entry, for the job server's getRetryMetrics.
func (s *RetryStore) All(ctx context.Context) ([]models.RetryEntry, error) {
	var rows []retryRow
	if err := s.db.Select(ctx, &rows, `SELECT job_id, attempts, last_attempt,
		max_attempts, delay_seconds FROM retry_entries`); err != nil {
		return nil, fmt.Errorf("listing retry entries: %w", err)
	}
	out := make([]models.RetryEntry, 0, len(rows))
	for _, r := range rows {
		last, err := time.Parse(timeLayout, r.LastAttempt)
		if err != nil {
			continue
		}
		out = append(out, models.RetryEntry{
			JobID:       r.JobID,
			Attempts:    r.Attempts,
			LastAttempt: last,
			MaxAttempts: r.MaxAttempts,
			Delay:       time.Duration(r.DelaySeconds) * time.Second,
		})
	}
	return out, nil
}
