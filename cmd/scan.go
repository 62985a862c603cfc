package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/models"
)

var (
	scanRepoPath     string
	scanForceRefresh bool
	scanMaxDepth     int
	scanOutputFmt    string
	scanInteractive  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [repository-path]",
	Short: "Run a duplicate-detection scan against a repository",
	Long: `Runs the Cached Scanner against a repository path, consulting the
scan cache before invoking the external pattern detector.

Examples:
  dupctl scan /path/to/repo
  dupctl scan /path/to/repo --force-refresh
  dupctl scan --interactive`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanForceRefresh, "force-refresh", false, "bypass the scan cache")
	scanCmd.Flags().IntVar(&scanMaxDepth, "max-depth", 0, "maximum directory depth to scan (0: detector default)")
	scanCmd.Flags().StringVar(&scanOutputFmt, "output", "table", "output format: table|json|yaml")
	scanCmd.Flags().BoolVar(&scanInteractive, "interactive", false, "prompt for scan options instead of using flags")
}

func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		scanRepoPath = args[0]
	}

	if scanInteractive || scanRepoPath == "" {
		if err := runScanForm(); err != nil {
			return err
		}
	}
	if scanRepoPath == "" {
		return fmt.Errorf("repository path is required")
	}

	ctx := context.Background()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, _, _, scanScanner, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	req := models.ScanRequest{
		RepoPath:     scanRepoPath,
		ForceRefresh: scanForceRefresh,
		MaxDepth:     scanMaxDepth,
	}

	fmt.Printf("Scanning %s\n", scanRepoPath)
	result, err := scanScanner.Scan(ctx, req)
	if err != nil {
		return fmt.Errorf("scanning repository: %w", err)
	}

	return printScanResult(result, scanOutputFmt)
}

func runScanForm() error {
	maxDepthStr := strconv.Itoa(scanMaxDepth)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Repository path").
				Description("Local path to the repository to scan.").
				Placeholder("/path/to/repo").
				Value(&scanRepoPath),
			huh.NewConfirm().
				Title("Force refresh?").
				Description("Bypass the scan cache and recompute even on a cache hit.").
				Value(&scanForceRefresh),
			huh.NewInput().
				Title("Max depth (0 for detector default)").
				Value(&maxDepthStr),
			huh.NewSelect[string]().
				Title("Output format").
				Options(
					huh.NewOption("table", "table"),
					huh.NewOption("json", "json"),
					huh.NewOption("yaml", "yaml"),
				).
				Value(&scanOutputFmt),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if d, err := strconv.Atoi(maxDepthStr); err == nil {
		scanMaxDepth = d
	}
	return nil
}

func printScanResult(result *models.ScanResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		out, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	default:
		printScanTable(result)
		return nil
	}
}

func printScanTable(result *models.ScanResult) {
	fmt.Println("=== Scan Results ===")
	fmt.Printf("Repository : %s\n", result.RepoPath)
	fmt.Printf("Commit     : %s\n", result.ShortCommit)
	fmt.Printf("From cache : %t\n", result.FromCache)
	fmt.Printf("Generated  : %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Printf("Files scanned : %d\n", result.Summary.FilesScanned)
	fmt.Printf("Duplicate sets: %d\n", result.Summary.DuplicateSets)
	fmt.Printf("Duration      : %dms\n\n", result.Summary.DurationMillis)

	for _, d := range result.Duplicates {
		fmt.Printf("  [%.0f%% similar] %v\n", d.Similarity*100, d.Files)
	}
	if len(result.Duplicates) == 0 {
		fmt.Println("No duplicates found.")
	}
}
