// Package jobserver implements the Job Server [MODULE] of spec.md §4.1: an
// in-memory queue and concurrency gate over durable job records, a typed
// lifecycle state machine, and a synchronous, best-effort event bus.
package jobserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

// WorkflowRunner wraps a handler invocation in the Git Workflow Manager's
// branch->commit->push->PR->cleanup transaction (spec.md §4.6). It is an
// optional collaborator: jobs whose type has no registered workflow run
// their handler directly. Kept as an interface here so jobserver never
// imports internal/gitops.
type WorkflowRunner interface {
	Wrap(ctx context.Context, job *models.Job, run func(context.Context) (map[string]any, error)) (map[string]any, *models.GitMetadata, error)
}

// Options configures a Server's policy knobs (SPEC_FULL §10.3 Jobs config).
type Options struct {
	MaxConcurrent    int
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

// Server is the Job Server: it owns the in-memory jobs map and FIFO queue,
// enforces the concurrency cap, drives the lifecycle state machine, and
// fans out events. All mutations to the map/queue/activeCount pass through
// the single mutex, matching spec.md §5's "single logical writer" contract.
type Server struct {
	store      *store.JobStore
	retryStore *store.RetryStore
	bus        *bus

	handlers map[string]Handler
	workflow map[string]WorkflowRunner

	opts Options

	mu            sync.Mutex
	jobs          map[string]*models.Job
	queue         []string
	activeCount   int
	runningCancel map[string]context.CancelFunc

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Server. Call RegisterHandler for every job type the
// server should accept before calling Start.
func New(jobStore *store.JobStore, retryStore *store.RetryStore, opts Options) *Server {
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 5 * time.Second
	}
	return &Server{
		store:         jobStore,
		retryStore:    retryStore,
		bus:           newBus(),
		handlers:      make(map[string]Handler),
		workflow:      make(map[string]WorkflowRunner),
		opts:          opts,
		jobs:          make(map[string]*models.Job),
		queue:         make([]string, 0),
		runningCancel: make(map[string]context.CancelFunc),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
}

// RegisterHandler associates a Handler with the job type it declares.
func (s *Server) RegisterHandler(h Handler) {
	s.handlers[h.JobType()] = h
}

// RegisterWorkflow opts a job type into the Git Workflow Manager transaction.
func (s *Server) RegisterWorkflow(jobType string, w WorkflowRunner) {
	s.workflow[jobType] = w
}

// Subscribe registers fn against typ; see bus.Subscribe for ordering rules.
func (s *Server) Subscribe(typ EventType, fn Listener) {
	s.bus.Subscribe(typ, fn)
}

// CreateJob validates id, persists a new queued job, enqueues it, and emits
// job:created. Re-using an existing id is rejected (spec.md §3 identity).
func (s *Server) CreateJob(ctx context.Context, id, jobType, pipelineID string, data map[string]any) (*models.Job, error) {
	if !ValidJobID(id) {
		return nil, fmt.Errorf("invalid job id %q: must match %s", id, jobIDPattern.String())
	}
	if jobType == "" {
		jobType = "job"
	}
	if pipelineID == "" {
		pipelineID = "unknown"
	}

	s.mu.Lock()
	if _, exists := s.jobs[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("job %q already exists", id)
	}

	job := &models.Job{
		ID:         id,
		PipelineID: pipelineID,
		JobType:    jobType,
		Status:     models.JobQueued,
		CreatedAt:  time.Now().UTC(),
		Data:       data,
	}
	s.jobs[id] = job
	s.queue = append(s.queue, id)
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.Create(ctx, job); err != nil {
		slog.Error("jobserver: failed to persist new job", "id", id, "error", err)
	}

	s.bus.emit(Event{Type: EventCreated, Job: snapshot})
	s.wakeScheduler()
	return snapshot, nil
}

// GetJob returns a cloned snapshot of job id, or nil if unknown.
func (s *Server) GetJob(id string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	return j.Clone()
}

// JobFilter narrows GetAllJobs.
type JobFilter struct {
	PipelineID string
	Status     models.JobStatus
}

// GetAllJobs returns cloned snapshots of every in-memory job matching filter.
func (s *Server) GetAllJobs(filter JobFilter) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.PipelineID != "" && j.PipelineID != filter.PipelineID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, j.Clone())
	}
	return out
}

// GetStats reports the server's current population by status and its
// concurrency configuration (spec.md §4.1 getStats).
func (s *Server) GetStats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.Stats{MaxConcurrent: s.opts.MaxConcurrent, ActiveCount: s.activeCount}
	for _, j := range s.jobs {
		switch j.Status {
		case models.JobQueued:
			stats.QueuedCount++
		case models.JobRunning:
			stats.RunningCount++
		case models.JobCompleted:
			stats.CompletedCount++
		case models.JobFailed:
			stats.FailedCount++
		case models.JobPaused:
			stats.PausedCount++
		case models.JobCancelled:
			stats.CancelledCount++
		}
	}
	return stats
}

// CancelJob cancels id from queued, paused, or (best-effort) running, per
// spec.md §4.1's cancellation rules. Returns {success:false} without
// mutation for an unknown id or an illegal transition.
func (s *Server) CancelJob(ctx context.Context, id string) models.OpResult {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: "job not found"}
	}

	switch job.Status {
	case models.JobQueued, models.JobPaused:
		s.removeFromQueue(id)
		now := time.Now().UTC()
		job.Status = models.JobCancelled
		job.CompletedAt = &now
		job.Error = &models.JobError{Cancelled: true, Message: "cancelled by user"}
		snapshot := job.Clone()
		s.mu.Unlock()

		if err := s.store.Update(ctx, job); err != nil {
			slog.Error("jobserver: failed to persist cancellation", "id", id, "error", err)
		}
		s.bus.emit(Event{Type: EventCancelled, Job: snapshot})
		return models.OpResult{Success: true}

	case models.JobRunning:
		cancel := s.runningCancel[id]
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return models.OpResult{Success: true, Message: "cancellation requested; job is running and will stop at its next checkpoint"}

	default:
		msg := fmt.Sprintf("cannot cancel job in status %q", job.Status)
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: msg}
	}
}

// PauseJob atomically removes a queued job from the queue and marks it
// paused. Only legal from queued (spec.md §4.1 state machine).
func (s *Server) PauseJob(ctx context.Context, id string) models.OpResult {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: "job not found"}
	}
	if job.Status != models.JobQueued {
		msg := fmt.Sprintf("cannot pause job in status %q", job.Status)
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: msg}
	}

	s.removeFromQueue(id)
	now := time.Now().UTC()
	job.Status = models.JobPaused
	job.PausedAt = &now
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.Update(ctx, job); err != nil {
		slog.Error("jobserver: failed to persist pause", "id", id, "error", err)
	}
	s.bus.emit(Event{Type: EventPaused, Job: snapshot})
	return models.OpResult{Success: true}
}

// ResumeJob atomically re-enqueues a paused job at the tail of the queue.
// Only legal from paused.
func (s *Server) ResumeJob(ctx context.Context, id string) models.OpResult {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: "job not found"}
	}
	if job.Status != models.JobPaused {
		msg := fmt.Sprintf("cannot resume job in status %q", job.Status)
		s.mu.Unlock()
		return models.OpResult{Success: false, Message: msg}
	}

	now := time.Now().UTC()
	job.Status = models.JobQueued
	job.PausedAt = nil
	job.ResumedAt = &now
	s.queue = append(s.queue, id)
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.Update(ctx, job); err != nil {
		slog.Error("jobserver: failed to persist resume", "id", id, "error", err)
	}
	s.bus.emit(Event{Type: EventResumed, Job: snapshot})
	s.wakeScheduler()
	return models.OpResult{Success: true}
}

// GetRetryMetrics reports the retry subsystem's current state (spec.md §4.1).
func (s *Server) GetRetryMetrics(ctx context.Context) (models.RetryMetrics, error) {
	entries, err := s.retryStore.All(ctx)
	if err != nil {
		return models.RetryMetrics{}, err
	}
	m := models.RetryMetrics{}
	for _, e := range entries {
		m.ActiveRetries++
		m.TotalRetryAttempts += e.Attempts
		m.JobsBeingRetried = append(m.JobsBeingRetried, e.JobID)
		switch {
		case e.NearingLimit():
			m.RetryDistribution.NearingLimit++
		case e.Attempts <= 1:
			m.RetryDistribution.Attempt1++
		case e.Attempts == 2:
			m.RetryDistribution.Attempt2++
		default:
			m.RetryDistribution.Attempt3Plus++
		}
	}
	return m, nil
}

// removeFromQueue deletes id from the FIFO queue slice. Caller must hold mu.
func (s *Server) removeFromQueue(id string) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Server) wakeScheduler() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
