package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dupctl/dupctl/internal/jobserver"
)

// --- HTTP response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeValidationError(w http.ResponseWriter, message string, issues ...validationIssue) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "Bad Request",
		Message:   message,
		Status:    http.StatusBadRequest,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Errors:    issues,
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:     "Not Found",
		Message:   message,
		Status:    http.StatusNotFound,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeServerError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     "Internal Server Error",
		Message:   err.Error(),
		Status:    http.StatusInternalServerError,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Pagination (spec.md §4.8: limit/offset parsed as int, clamped, default
// on NaN) ---

type paginationParams struct {
	Limit  int
	Offset int
}

func parsePaginationParams(r *http.Request, _, maxLimit int) paginationParams {
	q := r.URL.Query()
	limit, offset := 0, 0
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := strings.TrimSpace(q.Get("offset")); v != "" {
		offset, _ = strconv.Atoi(v)
	}
	limit, offset = jobserver.ClampPage(limit, offset, maxLimit)
	return paginationParams{Limit: limit, Offset: offset}
}
