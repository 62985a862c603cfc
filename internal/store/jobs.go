package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dupctl/dupctl/models"
)

// JobStore is the Job Store [MODULE]: durable persistence for jobs, keyed by
// their externally supplied id (spec.md §3/§6). It is a thin typed layer over
// DB, marshalling Data/Result/Error/Git to and from JSON columns.
type JobStore struct {
	db DB
}

// NewJobStore wraps db with the job-specific persistence operations.
func NewJobStore(db DB) *JobStore {
	return &JobStore{db: db}
}

const timeLayout = time.RFC3339Nano

// Create persists a new job row. Callers are expected to have already
// validated id uniqueness against the in-memory job server state.
func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	rec, err := toRecord(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	_, err = s.db.Insert(ctx, "jobs", rec)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// Update persists the full current state of job, overwriting the existing row.
func (s *JobStore) Update(ctx context.Context, job *models.Job) error {
	rec, err := toRecord(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if err := s.db.Update(ctx, "jobs", rec, "id = ?", job.ID); err != nil {
		return fmt.Errorf("updating job %s: %w", job.ID, err)
	}
	return nil
}

// Get fetches a single job by id. Returns (nil, nil) if not found.
func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var rec models.JobRecord
	err := s.db.Get(ctx, &rec, `SELECT id, pipeline_id, job_type, status, created_at,
		started_at, completed_at, paused_at, resumed_at, data_json, result_json,
		error_json, git_json FROM jobs WHERE id = ?`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching job %s: %w", id, err)
	}
	return fromRecord(&rec)
}

// JobFilter narrows List; zero-value fields are ignored.
type JobFilter struct {
	PipelineID string
	Status     models.JobStatus
	Limit      int
	Offset     int
}

// List returns jobs matching filter, newest first, with limit/offset clamped
// to sane bounds per spec.md §6 pagination rules.
func (s *JobStore) List(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	query := `SELECT id, pipeline_id, job_type, status, created_at, started_at,
		completed_at, paused_at, resumed_at, data_json, result_json, error_json,
		git_json FROM jobs WHERE 1=1`
	var args []interface{}
	if filter.PipelineID != "" {
		query += " AND pipeline_id = ?"
		args = append(args, filter.PipelineID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var recs []models.JobRecord
	if err := s.db.Select(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(recs))
	for i := range recs {
		j, err := fromRecord(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("decoding job %s: %w", recs[i].ID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Delete removes a job row by id.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	return s.db.Exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
}

// ExportJobs returns the full raw record set for a pipeline, for the
// export/import round trip of spec.md §12.6. An empty pipelineID exports all jobs.
func (s *JobStore) ExportJobs(ctx context.Context, pipelineID string) ([]models.JobRecord, error) {
	query := `SELECT id, pipeline_id, job_type, status, created_at, started_at,
		completed_at, paused_at, resumed_at, data_json, result_json, error_json,
		git_json FROM jobs`
	var args []interface{}
	if pipelineID != "" {
		query += " WHERE pipeline_id = ?"
		args = append(args, pipelineID)
	}
	query += " ORDER BY created_at ASC"

	var recs []models.JobRecord
	if err := s.db.Select(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("exporting jobs: %w", err)
	}
	return recs, nil
}

// BulkImport idempotently imports records (spec.md §4.2): a record whose id
// already exists is skipped, not overwritten; a single malformed record is
// recorded as an error without aborting the batch.
func (s *JobStore) BulkImport(ctx context.Context, records []models.JobRecord) (*models.BulkImportResult, error) {
	result := &models.BulkImportResult{}
	for _, rec := range records {
		if rec.ID == "" {
			result.Skipped++
			result.Errors = append(result.Errors, models.BulkImportError{Message: "record missing id"})
			continue
		}
		if rec.PipelineID == "" {
			rec.PipelineID = "unknown"
		}

		existing, err := s.Get(ctx, rec.ID)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.BulkImportError{ID: rec.ID, Message: err.Error()})
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if _, err := s.db.Insert(ctx, "jobs", rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.BulkImportError{ID: rec.ID, Message: err.Error()})
			continue
		}
		result.Imported++
	}
	return result, nil
}

func toRecord(j *models.Job) (models.JobRecord, error) {
	dataJSON, err := json.Marshal(nonNilMap(j.Data))
	if err != nil {
		return models.JobRecord{}, err
	}
	resultJSON, err := json.Marshal(nonNilMap(j.Result))
	if err != nil {
		return models.JobRecord{}, err
	}
	errJSON := ""
	if j.Error != nil {
		b, err := json.Marshal(j.Error)
		if err != nil {
			return models.JobRecord{}, err
		}
		errJSON = string(b)
	}
	gitJSON := ""
	if j.Git != nil {
		b, err := json.Marshal(j.Git)
		if err != nil {
			return models.JobRecord{}, err
		}
		gitJSON = string(b)
	}

	return models.JobRecord{
		ID:          j.ID,
		PipelineID:  j.PipelineID,
		JobType:     j.JobType,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt.Format(timeLayout),
		StartedAt:   formatPtrTime(j.StartedAt),
		CompletedAt: formatPtrTime(j.CompletedAt),
		PausedAt:    formatPtrTime(j.PausedAt),
		ResumedAt:   formatPtrTime(j.ResumedAt),
		DataJSON:    string(dataJSON),
		ResultJSON:  string(resultJSON),
		ErrorJSON:   errJSON,
		GitJSON:     gitJSON,
	}, nil
}

func fromRecord(rec *models.JobRecord) (*models.Job, error) {
	createdAt, err := time.Parse(timeLayout, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	job := &models.Job{
		ID:         rec.ID,
		PipelineID: rec.PipelineID,
		JobType:    rec.JobType,
		Status:     models.JobStatus(rec.Status),
		CreatedAt:  createdAt,
	}

	job.StartedAt, err = parsePtrTime(rec.StartedAt)
	if err != nil {
		return nil, err
	}
	job.CompletedAt, err = parsePtrTime(rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.PausedAt, err = parsePtrTime(rec.PausedAt)
	if err != nil {
		return nil, err
	}
	job.ResumedAt, err = parsePtrTime(rec.ResumedAt)
	if err != nil {
		return nil, err
	}

	if rec.DataJSON != "" {
		if err := json.Unmarshal([]byte(rec.DataJSON), &job.Data); err != nil {
			return nil, fmt.Errorf("decoding data: %w", err)
		}
	}
	if rec.ResultJSON != "" {
		if err := json.Unmarshal([]byte(rec.ResultJSON), &job.Result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
	}
	if rec.ErrorJSON != "" {
		job.Error = &models.JobError{}
		if err := json.Unmarshal([]byte(rec.ErrorJSON), job.Error); err != nil {
			return nil, fmt.Errorf("decoding error: %w", err)
		}
	}
	if rec.GitJSON != "" {
		job.Git = &models.GitMetadata{}
		if err := json.Unmarshal([]byte(rec.GitJSON), job.Git); err != nil {
			return nil, fmt.Errorf("decoding git metadata: %w", err)
		}
	}

	return job, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func formatPtrTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func parsePtrTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", *s, err)
	}
	return &t, nil
}

// clampPage applies spec.md §6's pagination sanitisation: limit defaults to
// 50 and is clamped to [1, 200]; offset defaults to 0 and never goes negative.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isNoRows(err error) bool {
	return err != nil && err.Error() == "sql: no rows in result set"
}
