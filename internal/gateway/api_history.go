package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/dupctl/dupctl/models"
)

// handleBulkImport implements the idempotent bulk import of spec.md §4.2:
// a record whose id already exists is skipped, not overwritten, and a single
// malformed record never aborts the batch.
func (gw *Gateway) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	if gw.jobStore == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "Not Implemented", Message: "job store not configured"})
		return
	}
	var body struct {
		Records []models.JobRecord `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeValidationError(w, "invalid JSON body")
		return
	}
	result, err := gw.jobStore.BulkImport(r.Context(), body.Records)
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExportJobs implements SPEC_FULL §12.6's export side of the
// export/import round trip.
func (gw *Gateway) handleExportJobs(w http.ResponseWriter, r *http.Request) {
	if gw.jobStore == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "Not Implemented", Message: "job store not configured"})
		return
	}
	pipelineID := r.URL.Query().Get("pipelineId")
	records, err := gw.jobStore.ExportJobs(r.Context(), pipelineID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleCacheStatus reports the Cached Scanner's cache-vs-compute status for
// a repository (spec.md §4.4 getCacheStatus).
func (gw *Gateway) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	if gw.scanner == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "Not Implemented", Message: "scanner not configured"})
		return
	}
	repoPath := r.URL.Query().Get("repoPath")
	if repoPath == "" {
		writeValidationError(w, "repoPath is required")
		return
	}
	writeJSON(w, http.StatusOK, gw.scanner.GetCacheStatus(r.Context(), repoPath))
}

func (gw *Gateway) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if gw.scanner == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "Not Implemented", Message: "scanner not configured"})
		return
	}
	var body struct {
		RepoPath string `json:"repoPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RepoPath == "" {
		writeValidationError(w, "repoPath is required")
		return
	}
	if err := gw.scanner.InvalidateCache(r.Context(), body.RepoPath); err != nil {
		writeServerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
