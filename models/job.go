package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a Job. Transitions are constrained by
// the state machine owned by the job server; see internal/jobserver.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobPaused    JobStatus = "paused"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether status is one from which no further transition
// is legal.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobError is the structured failure recorded on a job, distinct from a Go
// error: it crosses the persistence and HTTP boundary as plain data.
type JobError struct {
	Message   string `json:"message"               db:"error_message"`
	Code      string `json:"code,omitempty"        db:"error_code"`
	Cancelled bool   `json:"cancelled,omitempty"   db:"error_cancelled"`
}

// GitMetadata is populated by the Git Workflow Manager as it progresses a
// job through branch -> commit -> push -> PR -> cleanup.
type GitMetadata struct {
	BranchName     string   `json:"branch_name,omitempty"     db:"git_branch_name"`
	OriginalBranch string   `json:"original_branch,omitempty" db:"git_original_branch"`
	CommitSHA      string   `json:"commit_sha,omitempty"      db:"git_commit_sha"`
	PRUrl          string   `json:"pr_url,omitempty"          db:"git_pr_url"`
	ChangedFiles   []string `json:"changed_files,omitempty"   db:"-"`
}

// Job is the unit of work scheduled, persisted, and tracked by the job
// server. Field shapes mirror the persisted-record contract of spec.md §6:
// Data/Result/Error/Git travel as opaque JSON both in memory and on disk.
type Job struct {
	ID         string    `json:"id"          db:"id"`
	PipelineID string    `json:"pipelineId"  db:"pipeline_id"`
	JobType    string    `json:"jobType"     db:"job_type"`
	Status     JobStatus `json:"status"      db:"status"`

	CreatedAt   time.Time  `json:"createdAt"             db:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty"   db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"    db:"paused_at"`
	ResumedAt   *time.Time `json:"resumedAt,omitempty"   db:"resumed_at"`

	Data   map[string]any `json:"data,omitempty"   db:"-"`
	Result map[string]any `json:"result,omitempty" db:"-"`
	Error  *JobError      `json:"error,omitempty"  db:"-"`
	Git    *GitMetadata   `json:"git,omitempty"    db:"-"`
}

// Clone returns a deep-enough copy suitable for handing to external callers
// without aliasing the job server's owned maps (spec.md §9 "In-process
// jobs map" design note: external reads return cloned snapshots).
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.PausedAt != nil {
		t := *j.PausedAt
		cp.PausedAt = &t
	}
	if j.ResumedAt != nil {
		t := *j.ResumedAt
		cp.ResumedAt = &t
	}
	if j.Data != nil {
		cp.Data = cloneMap(j.Data)
	}
	if j.Result != nil {
		cp.Result = cloneMap(j.Result)
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Git != nil {
		g := *j.Git
		g.ChangedFiles = append([]string(nil), j.Git.ChangedFiles...)
		cp.Git = &g
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// JobRecord is the wire/storage shape of a persisted job record (spec.md §6):
// Data/Result/Error/Git travel as stringified JSON so both snake_case and
// camelCase bulk-import payloads can be normalised at the ingress boundary.
type JobRecord struct {
	ID          string  `json:"id"                     db:"id"`
	PipelineID  string  `json:"pipelineId"             db:"pipeline_id"`
	JobType     string  `json:"jobType"                db:"job_type"`
	Status      string  `json:"status"                 db:"status"`
	CreatedAt   string  `json:"createdAt"              db:"created_at"`
	StartedAt   *string `json:"startedAt,omitempty"    db:"started_at"`
	CompletedAt *string `json:"completedAt,omitempty"  db:"completed_at"`
	PausedAt    *string `json:"pausedAt,omitempty"     db:"paused_at"`
	ResumedAt   *string `json:"resumedAt,omitempty"    db:"resumed_at"`
	DataJSON    string  `json:"data,omitempty"         db:"data_json"`
	ResultJSON  string  `json:"result,omitempty"       db:"result_json"`
	ErrorJSON   string  `json:"error,omitempty"        db:"error_json"`
	GitJSON     string  `json:"git,omitempty"          db:"git_json"`
}

// UnmarshalJSON accepts either camelCase or snake_case field spellings
// (spec.md §4.2/§6 "accepts either snake_case or camelCase field names for
// compatibility with exported dumps"), normalising both onto the canonical
// camelCase model. camelCase wins when a record carries both.
func (r *JobRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					return s
				}
			}
		}
		return ""
	}
	strPtr := func(keys ...string) *string {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					if s == "" {
						return nil
					}
					return &s
				}
			}
		}
		return nil
	}

	*r = JobRecord{
		ID:          str("id"),
		PipelineID:  str("pipelineId", "pipeline_id"),
		JobType:     str("jobType", "job_type"),
		Status:      str("status"),
		CreatedAt:   str("createdAt", "created_at"),
		StartedAt:   strPtr("startedAt", "started_at"),
		CompletedAt: strPtr("completedAt", "completed_at"),
		PausedAt:    strPtr("pausedAt", "paused_at"),
		ResumedAt:   strPtr("resumedAt", "resumed_at"),
		DataJSON:    str("data", "data_json"),
		ResultJSON:  str("result", "result_json"),
		ErrorJSON:   str("error", "error_json"),
		GitJSON:     str("git", "git_json"),
	}
	return nil
}

// BulkImportResult reports the outcome of a bulk import (spec.md §4.2, §8.4).
type BulkImportResult struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []BulkImportError `json:"errors,omitempty"`
}

// BulkImportError names the record (by best-effort id) and the reason it
// could not be imported; a single bad record never aborts the batch.
type BulkImportError struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// RetryEntry tracks the retry state for a job that failed with a retriable
// error (spec.md §3 RetryEntry, §4.1 retry policy).
type RetryEntry struct {
	JobID       string    `json:"jobId"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"lastAttempt"`
	MaxAttempts int       `json:"maxAttempts"`
	Delay       time.Duration `json:"delay"`
}

// NearingLimit matches spec.md §3's "nearing limit" metrics classification.
func (r RetryEntry) NearingLimit() bool {
	return r.Attempts >= r.MaxAttempts-1
}

// RetryMetrics is the shape returned by JobServer.GetRetryMetrics (spec.md §4.1).
type RetryMetrics struct {
	ActiveRetries      int              `json:"activeRetries"`
	TotalRetryAttempts int              `json:"totalRetryAttempts"`
	JobsBeingRetried   []string         `json:"jobsBeingRetried"`
	RetryDistribution  RetryDistribution `json:"retryDistribution"`
}

// RetryDistribution buckets active retries by attempt count.
type RetryDistribution struct {
	Attempt1      int `json:"attempt1"`
	Attempt2      int `json:"attempt2"`
	Attempt3Plus  int `json:"attempt3Plus"`
	NearingLimit  int `json:"nearingLimit"`
}

// Stats summarizes the job server's current state (spec.md §4.1 getStats).
type Stats struct {
	QueuedCount    int `json:"queuedCount"`
	RunningCount   int `json:"runningCount"`
	CompletedCount int `json:"completedCount"`
	FailedCount    int `json:"failedCount"`
	PausedCount    int `json:"pausedCount"`
	CancelledCount int `json:"cancelledCount"`
	ActiveCount    int `json:"activeCount"`
	MaxConcurrent  int `json:"maxConcurrent"`
}

// OpResult is the conservative, never-throw result of a lifecycle operation
// (spec.md §4.1 "requests violating the machine return a structured failure
// without mutation"; §7 NotFound/InvalidTransition policy).
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
