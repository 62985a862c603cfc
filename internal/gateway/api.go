package gateway

import "net/http"

// buildHandler wires all REST and SSE routes onto a new ServeMux, using
// Go 1.22+ method-prefixed patterns. Every route except /health and
// /api/events passes through the normal rate limiter, which exempts
// dashboard GET reads (spec.md §4.8); scan and bulk-import initiation get
// their own stricter limiters.
func (gw *Gateway) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", rateLimitMiddleware(gw.normalLimit, gw.handleStatus))
	mux.HandleFunc("GET /api/activity", rateLimitMiddleware(gw.normalLimit, gw.handleActivity))
	mux.HandleFunc("GET /api/events", gw.handleEvents)

	mux.HandleFunc("POST /api/jobs", rateLimitMiddleware(gw.normalLimit, gw.handleCreateJob))
	mux.HandleFunc("GET /api/jobs", rateLimitMiddleware(gw.normalLimit, gw.handleListJobs))
	mux.HandleFunc("GET /api/jobs/{id}", rateLimitMiddleware(gw.normalLimit, gw.handleGetJob))
	mux.HandleFunc("POST /api/jobs/{id}/cancel", rateLimitMiddleware(gw.normalLimit, gw.handleCancelJob))
	mux.HandleFunc("POST /api/jobs/{id}/pause", rateLimitMiddleware(gw.normalLimit, gw.handlePauseJob))
	mux.HandleFunc("POST /api/jobs/{id}/resume", rateLimitMiddleware(gw.normalLimit, gw.handleResumeJob))
	mux.HandleFunc("GET /api/jobs-stats", rateLimitMiddleware(gw.normalLimit, gw.handleJobStats))
	mux.HandleFunc("GET /api/jobs/retry-metrics", rateLimitMiddleware(gw.normalLimit, gw.handleRetryMetrics))

	mux.HandleFunc("POST /api/scan", rateLimitMiddleware(gw.scanLimit, gw.handleTriggerScan))

	mux.HandleFunc("GET /api/schedules", rateLimitMiddleware(gw.normalLimit, gw.handleListSchedules))
	mux.HandleFunc("POST /api/schedules", rateLimitMiddleware(gw.normalLimit, gw.handleCreateSchedule))
	mux.HandleFunc("PUT /api/schedules/{id}", rateLimitMiddleware(gw.normalLimit, gw.handleUpdateSchedule))
	mux.HandleFunc("DELETE /api/schedules/{id}", rateLimitMiddleware(gw.normalLimit, gw.handleDeleteSchedule))
	mux.HandleFunc("POST /api/schedules/{id}/trigger", rateLimitMiddleware(gw.normalLimit, gw.handleTriggerSchedule))

	mux.HandleFunc("POST /api/jobs/bulk-import", rateLimitMiddleware(gw.bulkLimit, gw.handleBulkImport))
	mux.HandleFunc("GET /api/jobs/export", rateLimitMiddleware(gw.normalLimit, gw.handleExportJobs))
	mux.HandleFunc("GET /api/cache/status", rateLimitMiddleware(gw.normalLimit, gw.handleCacheStatus))
	mux.HandleFunc("POST /api/cache/invalidate", rateLimitMiddleware(gw.normalLimit, gw.handleCacheInvalidate))

	return mux
}
