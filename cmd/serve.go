package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dupctl/dupctl/internal/cache"
	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/gateway"
	"github.com/dupctl/dupctl/internal/gitops"
	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/scanner"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dupctl gateway daemon",
	Long: `Starts the dupctl gateway: a long-running daemon combining the Job
Server with a REST + SSE control plane.

The gateway runs the job queue continuously and exposes a local HTTP API
(default: http://127.0.0.1:7070) so you can:

  • Create and track scan jobs
  • Cancel jobs, and pause and resume queued jobs
  • Create cron schedules that trigger scans automatically
  • Stream live events via GET /api/events (Server-Sent Events)
  • Export and bulk-import job history

Quick API reference:
  GET  /health                         liveness check
  GET  /api/status                     job server stats snapshot
  GET  /api/jobs                       list jobs (?pipelineId=&status=&limit=&offset=)
  POST /api/jobs                       create a job
  GET  /api/jobs/{id}                  fetch a job
  POST /api/jobs/{id}/cancel           cancel a job
  POST /api/jobs/{id}/pause            pause a job
  POST /api/jobs/{id}/resume           resume a paused job
  POST /api/scan                       trigger a scan job (body: {"repositoryPath":"..."})
  GET  /api/schedules                  list cron schedules
  POST /api/schedules                  create a schedule
  GET  /api/events                     SSE stream of live job events
  GET  /api/activity                   recent activity history (bounded)

Press Ctrl+C to stop gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 7070, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort > 0 {
		cfg.Gateway.Port = servePort
	}

	db, jobStore, retryStore, scanScanner, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := jobserver.New(jobStore, retryStore, jobserver.Options{
		MaxConcurrent:    cfg.Jobs.MaxConcurrent,
		RetryMaxAttempts: cfg.Jobs.RetryMaxAttempts,
	})
	srv.RegisterHandler(scanJobHandler(scanScanner))

	gw := gateway.New(cfg.Gateway, db, srv, gateway.Deps{
		JobStore: jobStore,
		Scanner:  scanScanner,
	})

	fmt.Printf("dupctl gateway starting\n")
	fmt.Printf("  Max concurrent : %d\n", cfg.Jobs.MaxConcurrent)
	fmt.Printf("  API            : http://127.0.0.1:%d\n", cfg.Gateway.Port)
	fmt.Printf("  Events         : http://127.0.0.1:%d/api/events\n\n", cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop gracefully.")

	slog.Info("gateway starting", "port", cfg.Gateway.Port, "maxConcurrent", cfg.Jobs.MaxConcurrent)
	return gw.Start(ctx)
}

// buildRuntime wires the storage and scanning collaborators shared by both
// the gateway daemon and the TUI/CLI's direct job-server usage.
func buildRuntime(ctx context.Context, cfg *config.Config) (store.DB, *store.JobStore, *store.RetryStore, *cache.Scanner, error) {
	db, err := store.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	jobStore := store.NewJobStore(db)
	retryStore := store.NewRetryStore(db)
	cacheStore := store.NewCacheStore(db)
	tracker := gitops.NewCommitTracker()
	detector := scanner.NewSubprocessDetector(cfg.Scanner)

	scanScanner := cache.New(cacheStore, tracker, detector, cache.Options{
		CacheEnabled:     true,
		TrackUncommitted: true,
		TTLSeconds:       cfg.Jobs.CacheTTLSeconds,
	})

	return db, jobStore, retryStore, scanScanner, nil
}

// scanJobHandler adapts the Cached Scanner into a job-server handler: it
// reads a scan request out of the job's opaque Data map and returns the
// scan-result envelope as a plain map, the same JSON shape the HTTP API
// returns it in (spec.md §6).
func scanJobHandler(scanScanner *cache.Scanner) jobserver.HandlerFunc {
	return jobserver.HandlerFunc{
		Type: "scan",
		Fn: func(ctx context.Context, job *models.Job) (map[string]any, error) {
			req := models.ScanRequest{RepoPath: stringField(job.Data, "repoPath")}
			if v, ok := job.Data["forceRefresh"].(bool); ok {
				req.ForceRefresh = v
			}
			if v, ok := job.Data["maxDepth"].(float64); ok {
				req.MaxDepth = int(v)
			} else if v, ok := job.Data["maxDepth"].(int); ok {
				req.MaxDepth = v
			}

			result, err := scanScanner.Scan(ctx, req)
			if err != nil {
				return nil, err
			}

			raw, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("encoding scan result: %w", err)
			}
			var out map[string]any
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("decoding scan result: %w", err)
			}
			return out, nil
		},
	}
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
