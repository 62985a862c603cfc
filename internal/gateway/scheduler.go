package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/store"
)

// Scheduler loads schedules from the Job Store and registers them with
// robfig/cron. On fire it calls jobserver.Server.CreateJob with a derived job
// id (SPEC_FULL §12.1), rather than the agent orchestrator the teacher's
// scheduler used to wake.
type Scheduler struct {
	db        store.DB
	jobs      *jobserver.Server
	cron      *cron.Cron
	broadcast func(SSEEvent)

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func newScheduler(db store.DB, jobs *jobserver.Server, broadcast func(SSEEvent)) *Scheduler {
	return &Scheduler{
		db:        db,
		jobs:      jobs,
		cron:      cron.New(),
		broadcast: broadcast,
		entries:   make(map[string]cron.EntryID),
	}
}

// Start loads all enabled schedules from the DB and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	var rows []scheduleRow
	if err := s.db.Select(ctx, &rows,
		`SELECT id, cron_expr, job_type, repo_path, enabled, created_at, last_run_at
		 FROM schedules WHERE enabled = 1`,
	); err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	for _, row := range rows {
		sched := fromRow(row)
		if err := s.register(sched); err != nil {
			slog.Warn("scheduler: skipping schedule with invalid expression",
				"id", sched.ID, "expr", sched.CronExpr, "error", err)
		}
	}

	s.cron.Start()
	slog.Info("gateway scheduler started", "schedules_loaded", len(rows))
	return nil
}

// Stop halts the cron runner gracefully.
func (s *Scheduler) Stop() { s.cron.Stop() }

func (s *Scheduler) register(sched Schedule) error {
	entryID, err := s.cron.AddFunc(sched.CronExpr, func() {
		if err := s.runSchedule(context.Background(), sched); err != nil {
			slog.Warn("scheduler: firing schedule failed", "id", sched.ID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sched.CronExpr, err)
	}
	s.mu.Lock()
	s.entries[sched.ID] = entryID
	s.mu.Unlock()
	return nil
}

// validateCronExpr checks that expr is parseable by robfig/cron without
// adding it permanently to any runner.
func validateCronExpr(expr string) error {
	tmp := cron.New()
	id, err := tmp.AddFunc(expr, func() {})
	if err != nil {
		return err
	}
	tmp.Remove(id)
	return nil
}

// Add validates, persists, and registers a new schedule.
func (s *Scheduler) Add(ctx context.Context, sched Schedule) (Schedule, error) {
	if err := validateCronExpr(sched.CronExpr); err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule expression %q: %w", sched.CronExpr, err)
	}
	if sched.JobType == "" {
		return Schedule{}, fmt.Errorf("jobType is required")
	}
	if sched.RepoPath == "" {
		return Schedule{}, fmt.Errorf("repoPath is required")
	}
	sched.ID = uuid.NewString()
	sched.CreatedAt = time.Now().UTC()

	if _, err := s.db.Insert(ctx, "schedules", toRow(sched)); err != nil {
		return Schedule{}, err
	}
	if sched.Enabled {
		if err := s.register(sched); err != nil {
			slog.Warn("scheduler: persisted but could not register schedule", "id", sched.ID, "error", err)
		}
	}
	return sched, nil
}

// Update validates, persists, and re-registers an existing schedule.
func (s *Scheduler) Update(ctx context.Context, id string, sched Schedule) (Schedule, error) {
	if err := validateCronExpr(sched.CronExpr); err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule expression %q: %w", sched.CronExpr, err)
	}

	var existing scheduleRow
	if err := s.db.Get(ctx, &existing,
		`SELECT id, cron_expr, job_type, repo_path, enabled, created_at, last_run_at FROM schedules WHERE id = ?`, id,
	); err != nil {
		return Schedule{}, fmt.Errorf("loading schedule %s: %w", id, err)
	}

	sched.ID = id
	sched.CreatedAt = fromRow(existing).CreatedAt
	if err := s.db.Update(ctx, "schedules", toRow(sched), "id = ?", id); err != nil {
		return Schedule{}, err
	}

	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if sched.Enabled {
		if err := s.register(sched); err != nil {
			return Schedule{}, err
		}
	}
	return sched, nil
}

// Delete removes a schedule from cron and the DB.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()
	return s.db.Exec(ctx, "DELETE FROM schedules WHERE id = ?", id)
}

// List returns all schedules ordered by creation time.
func (s *Scheduler) List(ctx context.Context) ([]Schedule, error) {
	var rows []scheduleRow
	if err := s.db.Select(ctx, &rows,
		`SELECT id, cron_expr, job_type, repo_path, enabled, created_at, last_run_at FROM schedules ORDER BY created_at`,
	); err != nil {
		return nil, err
	}
	out := make([]Schedule, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// TriggerNow fires the schedule immediately, recording last_run_at.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) error {
	var row scheduleRow
	if err := s.db.Get(ctx, &row,
		`SELECT id, cron_expr, job_type, repo_path, enabled, created_at, last_run_at FROM schedules WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("loading schedule %s: %w", id, err)
	}
	return s.runSchedule(ctx, fromRow(row))
}

func (s *Scheduler) runSchedule(ctx context.Context, sched Schedule) error {
	now := time.Now().UTC()
	if err := s.db.Exec(ctx, "UPDATE schedules SET last_run_at = ? WHERE id = ?",
		now.Format(timeLayout), sched.ID); err != nil {
		return err
	}

	jobID := fmt.Sprintf("sched-%s-%d", sched.ID, now.UnixMilli())
	if _, err := s.jobs.CreateJob(ctx, jobID, sched.JobType, sched.ID, map[string]any{
		"repoPath": sched.RepoPath,
	}); err != nil {
		return fmt.Errorf("creating scheduled job: %w", err)
	}

	s.broadcast(SSEEvent{Type: "schedule.fired", Payload: map[string]any{
		"scheduleId": sched.ID, "jobId": jobID,
	}})
	return nil
}

const timeLayout = time.RFC3339Nano

func toRow(sched Schedule) scheduleRow {
	row := scheduleRow{
		ID:        sched.ID,
		CronExpr:  sched.CronExpr,
		JobType:   sched.JobType,
		RepoPath:  sched.RepoPath,
		CreatedAt: sched.CreatedAt.Format(timeLayout),
	}
	if sched.Enabled {
		row.Enabled = 1
	}
	if sched.LastRunAt != nil {
		v := sched.LastRunAt.Format(timeLayout)
		row.LastRunAt = &v
	}
	return row
}

func fromRow(row scheduleRow) Schedule {
	sched := Schedule{
		ID:       row.ID,
		CronExpr: row.CronExpr,
		JobType:  row.JobType,
		RepoPath: row.RepoPath,
		Enabled:  row.Enabled != 0,
	}
	if t, err := time.Parse(timeLayout, row.CreatedAt); err == nil {
		sched.CreatedAt = t
	}
	if row.LastRunAt != nil {
		if t, err := time.Parse(timeLayout, *row.LastRunAt); err == nil {
			sched.LastRunAt = &t
		}
	}
	return sched
}
