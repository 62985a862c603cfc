package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/models"
)

// createJobRequest is the POST /api/jobs body.
type createJobRequest struct {
	ID         string         `json:"id"`
	JobType    string         `json:"jobType"`
	PipelineID string         `json:"pipelineId"`
	Data       map[string]any `json:"data,omitempty"`
}

func (gw *Gateway) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		req.ID = newJobID()
	}
	if !jobserver.ValidJobID(req.ID) {
		writeValidationError(w, "invalid job id", validationIssue{
			Field: "id", Message: "must match ^[A-Za-z0-9_-]{1,100}$", Code: "pattern",
		})
		return
	}

	job, err := gw.jobs.CreateJob(r.Context(), req.ID, req.JobType, req.PipelineID, req.Data)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	gw.activity.record(ActivityEntry{At: time.Now().UTC(), Type: "job:created", Payload: job})
	writeJSON(w, http.StatusCreated, job)
}

func (gw *Gateway) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobserver.JobFilter{
		PipelineID: q.Get("pipelineId"),
		Status:     models.JobStatus(q.Get("status")),
	}
	jobs := gw.jobs.GetAllJobs(filter)
	total := len(jobs)

	pg := parsePaginationParams(r, 50, 200)
	jobs = pageSlice(jobs, pg)
	writeJSON(w, http.StatusOK, map[string]any{"items": jobs, "total": total})
}

func (gw *Gateway) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job := gw.jobs.GetJob(id)
	if job == nil {
		writeNotFound(w, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (gw *Gateway) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result := gw.jobs.CancelJob(r.Context(), id)
	writeJSON(w, statusForResult(result), result)
}

func (gw *Gateway) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result := gw.jobs.PauseJob(r.Context(), id)
	writeJSON(w, statusForResult(result), result)
}

func (gw *Gateway) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result := gw.jobs.ResumeJob(r.Context(), id)
	writeJSON(w, statusForResult(result), result)
}

func (gw *Gateway) handleJobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.jobs.GetStats())
}

func (gw *Gateway) handleRetryMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := gw.jobs.GetRetryMetrics(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// statusForResult maps an OpResult to the HTTP status spec.md §7 implies:
// illegal transitions and unknown ids never mutate state, so they're a
// client error (409), not a server failure.
func statusForResult(result models.OpResult) int {
	if result.Success {
		return http.StatusOK
	}
	return http.StatusConflict
}

func newJobID() string {
	return "job-" + uuid.NewString()
}

func pageSlice(jobs []*models.Job, pg paginationParams) []*models.Job {
	if pg.Offset >= len(jobs) {
		return []*models.Job{}
	}
	end := pg.Offset + pg.Limit
	if end > len(jobs) {
		end = len(jobs)
	}
	return jobs[pg.Offset:end]
}
