package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// scanRequestBody mirrors spec.md §4.8's scan request schema. Options is
// validated field-by-field so unknown keys or the wrong type surface as a
// structured validation error rather than a silent zero value.
type scanRequestBody struct {
	RepositoryPath string `json:"repositoryPath"`
	Options        *struct {
		ForceRefresh *bool `json:"forceRefresh"`
		IncludeTests *bool `json:"includeTests"`
		CacheEnabled *bool `json:"cacheEnabled"`
		MaxDepth     *int  `json:"maxDepth"`
	} `json:"options"`
}

// handleTriggerScan is sugar over POST /api/jobs for the common case:
// create a "scan" job against a repository path. Grounded on the teacher's
// dedicated POST /api/scan trigger, validated per spec.md §4.8's scan
// request schema.
func (gw *Gateway) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequestBody
	raw := json.NewDecoder(r.Body)
	raw.DisallowUnknownFields()
	if err := raw.Decode(&body); err != nil {
		writeValidationError(w, "invalid scan request: "+err.Error())
		return
	}
	if body.RepositoryPath == "" {
		writeValidationError(w, "repositoryPath is required", validationIssue{
			Field: "repositoryPath", Message: "must be a non-empty string", Code: "required",
		})
		return
	}

	data := map[string]any{"repoPath": body.RepositoryPath}
	if body.Options != nil {
		if body.Options.MaxDepth != nil && *body.Options.MaxDepth < 0 {
			writeValidationError(w, "options.maxDepth must be >= 0", validationIssue{
				Field: "options.maxDepth", Message: "must be a non-negative integer", Code: "range",
			})
			return
		}
		if body.Options.ForceRefresh != nil {
			data["forceRefresh"] = *body.Options.ForceRefresh
		}
		if body.Options.IncludeTests != nil {
			data["includeTests"] = *body.Options.IncludeTests
		}
		if body.Options.CacheEnabled != nil {
			data["cacheEnabled"] = *body.Options.CacheEnabled
		}
		if body.Options.MaxDepth != nil {
			data["maxDepth"] = *body.Options.MaxDepth
		}
	}

	jobID := "scan-" + uuid.NewString()
	job, err := gw.jobs.CreateJob(r.Context(), jobID, "scan", "ad-hoc", data)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, job)
}
