package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dupctl",
	Short: "Job orchestration and duplicate-detection pipeline platform",
	Long: `dupctl runs a job server that schedules, executes, and tracks
duplicate-detection scans across repositories, with a persistent gateway
daemon for REST/SSE control and a terminal dashboard for operators.

Get started:
  dupctl scan      Run a duplicate-detection scan against a repository
  dupctl jobs      List, cancel, pause, and resume jobs
  dupctl serve     Start the persistent gateway daemon with REST API
  dupctl ui        Launch the terminal dashboard
  dupctl config    View and manage configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.dupctl/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		scanCmd,
		jobsCmd,
		serveCmd,
		uiCmd,
		configCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("verbose logging enabled")
	}
}
