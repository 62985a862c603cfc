package jobserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dupctl/dupctl/models"
)

// Start launches the drain loop as a background goroutine. The loop attempts
// to launch queued jobs whenever activeCount < maxConcurrent (spec.md §4.1
// Scheduler), waking on CreateJob/ResumeJob/job-completion and otherwise
// polling on a 500ms ticker. Call Stop to shut it down; Start returns immediately.
func (s *Server) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the drain loop to exit and waits for it to do so. Jobs
// already running continue to completion; no new launches occur after Stop.
func (s *Server) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Server) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.drain(ctx)
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// drain launches as many queued jobs as the concurrency cap allows. maxConcurrent
// of 0 is a legal "pause all launches" configuration (spec.md §4.1).
func (s *Server) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.activeCount >= s.opts.MaxConcurrent {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		id := s.queue[0]
		s.queue = s.queue[1:]
		job, ok := s.jobs[id]
		if !ok {
			s.mu.Unlock()
			continue
		}

		now := time.Now().UTC()
		job.Status = models.JobRunning
		job.StartedAt = &now
		s.activeCount++

		jobCtx, cancel := context.WithCancel(ctx)
		s.runningCancel[id] = cancel
		snapshot := job.Clone()
		s.mu.Unlock()

		if err := s.store.Update(ctx, job); err != nil {
			slog.Error("jobserver: failed to persist job start", "id", id, "error", err)
		}
		s.bus.emit(Event{Type: EventStarted, Job: snapshot})

		s.wg.Add(1)
		go s.launch(jobCtx, cancel, id)
	}
}

// launch runs a single job's handler (optionally wrapped by its registered
// Git Workflow Manager) and routes the outcome through the lifecycle
// transition to completed or failed.
func (s *Server) launch(ctx context.Context, cancel context.CancelFunc, id string) {
	defer s.wg.Done()
	defer cancel()

	s.mu.Lock()
	job := s.jobs[id]
	handler := s.handlers[job.JobType]
	workflow := s.workflow[job.JobType]
	s.mu.Unlock()

	var result map[string]any
	var git *models.GitMetadata
	var err error

	if handler == nil {
		err = NewHandledError("PROGRAMMER", "no handler registered for job type "+job.JobType)
	} else if workflow != nil {
		annotateGitHooks(job, handler)
		result, git, err = workflow.Wrap(ctx, job, func(c context.Context) (map[string]any, error) {
			return handler.Run(c, job)
		})
	} else {
		result, err = handler.Run(ctx, job)
	}

	s.mu.Lock()
	s.activeCount--
	delete(s.runningCancel, id)
	s.mu.Unlock()
	s.wakeScheduler()

	if err != nil {
		s.handleFailure(context.Background(), id, git, err)
		return
	}
	s.handleSuccess(context.Background(), id, result, git)
}

// gitHook* are the reserved job.Data keys the Git Workflow Manager reads to
// pick up a handler's CommitMessageProvider/PRContextProvider hooks, without
// internal/gitops importing the Handler type that declares them.
const (
	gitHookCommitTitle = "_gitCommitTitle"
	gitHookCommitBody  = "_gitCommitBody"
	gitHookPRBranch    = "_gitPRBranch"
	gitHookPRTitle     = "_gitPRTitle"
	gitHookPRBody      = "_gitPRBody"
	gitHookPRLabels    = "_gitPRLabels"
)

// annotateGitHooks copies a handler's optional commit-message/PR-context
// hooks into the job's data map ahead of a Git Workflow Manager wrap.
func annotateGitHooks(job *models.Job, handler Handler) {
	if job.Data == nil {
		job.Data = make(map[string]any)
	}
	if cp, ok := handler.(CommitMessageProvider); ok {
		title, body := cp.CommitMessage(job)
		job.Data[gitHookCommitTitle] = title
		job.Data[gitHookCommitBody] = body
	}
	if pp, ok := handler.(PRContextProvider); ok {
		branch, title, body, labels := pp.PRContext(job)
		job.Data[gitHookPRBranch] = branch
		job.Data[gitHookPRTitle] = title
		job.Data[gitHookPRBody] = body
		job.Data[gitHookPRLabels] = labels
	}
}

func (s *Server) handleSuccess(ctx context.Context, id string, result map[string]any, git *models.GitMetadata) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.Status = models.JobCompleted
	job.CompletedAt = &now
	job.Result = result
	if git != nil {
		job.Git = git
	}
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.Update(ctx, job); err != nil {
		slog.Error("jobserver: failed to persist completion", "id", id, "error", err)
	}
	if err := s.retryStore.Delete(ctx, originalJobID(id)); err != nil {
		slog.Warn("jobserver: failed to clear retry entry after success", "id", id, "error", err)
	}
	s.bus.emit(Event{Type: EventCompleted, Job: snapshot})
}

func (s *Server) handleFailure(ctx context.Context, id string, git *models.GitMetadata, cause error) {
	code := ""
	if he, ok := cause.(*HandledError); ok {
		code = he.Code
	}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	job.Status = models.JobFailed
	job.CompletedAt = &now
	job.Error = &models.JobError{Message: cause.Error(), Code: code}
	if git != nil {
		job.Git = git
	}
	snapshot := job.Clone()
	s.mu.Unlock()

	if err := s.store.Update(ctx, job); err != nil {
		slog.Error("jobserver: failed to persist failure", "id", id, "error", err)
	}
	s.bus.emit(Event{Type: EventFailed, Job: snapshot})

	if isRetriable(code) {
		s.scheduleRetry(ctx, snapshot)
	}
}

// scheduleRetry advances or creates a RetryEntry for the original job id and,
// if attempts remain, re-enqueues a new job under a "-retry<N>" suffixed id
// after the computed backoff delay (spec.md §4.1 Retry policy).
func (s *Server) scheduleRetry(ctx context.Context, failedJob *models.Job) {
	origID := originalJobID(failedJob.ID)

	entry, err := s.retryStore.Get(ctx, origID)
	if err != nil {
		slog.Error("jobserver: failed to load retry entry", "id", origID, "error", err)
		return
	}
	if entry == nil {
		entry = &models.RetryEntry{JobID: origID, MaxAttempts: s.opts.RetryMaxAttempts}
	}
	entry.Attempts++
	entry.LastAttempt = time.Now().UTC()

	if entry.Attempts >= entry.MaxAttempts {
		if err := s.retryStore.Delete(ctx, origID); err != nil {
			slog.Warn("jobserver: failed to clear exhausted retry entry", "id", origID, "error", err)
		}
		slog.Warn("jobserver: retry attempts exhausted, leaving job failed", "id", origID, "attempts", entry.Attempts)
		return
	}

	entry.Delay = retryBackoff(s.opts.RetryBaseDelay, entry.Attempts)
	if err := s.retryStore.Put(ctx, *entry); err != nil {
		slog.Error("jobserver: failed to persist retry entry", "id", origID, "error", err)
		return
	}

	retryID := fmt.Sprintf("%s-retry%d", origID, entry.Attempts)
	delay := entry.Delay
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stop:
			return
		}
		if _, err := s.CreateJob(context.Background(), retryID, failedJob.JobType, failedJob.PipelineID, failedJob.Data); err != nil {
			slog.Error("jobserver: failed to re-enqueue retry", "id", retryID, "error", err)
		}
	}()
}
