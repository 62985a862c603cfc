package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Opens the interactive terminal dashboard over a local Job Server
instance. Jobs live in the process that created them (spec.md's in-process
jobs map design), so this shows only jobs held by this invocation's own Job
Server; jobs run by 'dupctl serve' or 'dupctl scan' in other processes do not
appear here, even against the same database.`,
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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
	srv.Start(ctx)
	defer srv.Stop()

	app := tui.NewApp(srv)
	return app.Run()
}
