// Package gateway implements the thin HTTP/SSE control surface of SPEC_FULL
// §12.2: a consumer of the Job Server's public operations, never an
// orchestration layer of its own. It also carries the Scheduler (§12.1) and
// the bounded activity-feed ring buffer (§12.3).
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dupctl/dupctl/internal/cache"
	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/store"
)

// Gateway is the long-running daemon combining the Job Server, the cron
// Scheduler, the SSE Broadcaster, and the REST control surface.
type Gateway struct {
	cfg         config.GatewayConfig
	jobs        *jobserver.Server
	jobStore    *store.JobStore
	scanner     *cache.Scanner
	scheduler   *Scheduler
	broadcaster *Broadcaster
	activity    *activityFeed

	normalLimit *rateLimiter
	scanLimit   *rateLimiter
	bulkLimit   *rateLimiter

	startedAt time.Time
}

// Deps bundles the Gateway's optional collaborators beyond the Job Server:
// JobStore backs bulk import/export (§12.6), Scanner backs the cache status
// endpoints (§4.4). Both are nil-safe — the corresponding routes 501 when
// absent, e.g. in tests that only exercise the job-lifecycle surface.
type Deps struct {
	JobStore *store.JobStore
	Scanner  *cache.Scanner
}

// New wires a Gateway around an already-constructed Job Server. Call Start
// to begin serving.
func New(cfg config.GatewayConfig, db store.DB, jobs *jobserver.Server, deps Deps) *Gateway {
	b := newBroadcaster()
	feed := newActivityFeed(cfg.ActivityHistorySize)

	gw := &Gateway{
		cfg:         cfg,
		jobs:        jobs,
		jobStore:    deps.JobStore,
		scanner:     deps.Scanner,
		broadcaster: b,
		activity:    feed,
		normalLimit: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		scanLimit:   newRateLimiter(cfg.RateLimitPerSecond/4, max1(cfg.RateLimitBurst/4)),
		bulkLimit:   newRateLimiter(cfg.RateLimitPerSecond/10, max1(cfg.RateLimitBurst/10)),
		startedAt:   time.Now(),
	}
	gw.scheduler = newScheduler(db, jobs, b.send)

	for _, typ := range []jobserver.EventType{
		jobserver.EventCreated, jobserver.EventStarted, jobserver.EventCompleted,
		jobserver.EventFailed, jobserver.EventCancelled, jobserver.EventPaused,
		jobserver.EventResumed, jobserver.EventMetrics,
	} {
		jobs.Subscribe(typ, gw.onJobEvent)
	}

	return gw
}

// onJobEvent relays a Job Server event onto the SSE broadcast channel and
// records it in the activity feed, preserving arrival order on both
// (spec.md §5 "Broadcasts on channels activity and jobs preserve the order
// in which events were received from the worker").
func (gw *Gateway) onJobEvent(evt jobserver.Event) {
	sse := SSEEvent{Type: string(evt.Type), Payload: evt.Job}
	gw.broadcaster.send(sse)
	gw.activity.record(ActivityEntry{At: time.Now().UTC(), Type: string(evt.Type), Payload: evt.Job})
}

// Start runs the gateway until ctx is cancelled: it starts the scheduler,
// then binds the HTTP server and blocks until shutdown.
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Port
	if port == 0 {
		port = 7070
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	gw.jobs.Start(ctx)

	if err := gw.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: gw.buildHandler(),
	}

	go func() {
		<-ctx.Done()
		gw.scheduler.Stop()
		gw.jobs.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{Type: "gateway.started", Payload: map[string]string{"addr": "http://" + addr}})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
