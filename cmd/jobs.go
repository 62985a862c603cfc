package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dupctl/dupctl/internal/config"
)

var jobsPort int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control jobs on a running gateway",
	Long: `Talks to a running 'dupctl serve' gateway over its local REST API to
list, inspect, and drive the lifecycle of jobs.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipelineID, _ := cmd.Flags().GetString("pipeline")
		status, _ := cmd.Flags().GetString("status")

		path := "/api/jobs"
		q := url.Values{}
		if pipelineID != "" {
			q.Set("pipelineId", pipelineID)
		}
		if status != "" {
			q.Set("status", status)
		}
		if enc := q.Encode(); enc != "" {
			path += "?" + enc
		}

		var resp struct {
			Items []map[string]any `json:"items"`
			Total int              `json:"total"`
		}
		if err := gatewayGet(path, &resp); err != nil {
			return err
		}
		fmt.Printf("%-40s %-10s %-12s %s\n", "ID", "TYPE", "PIPELINE", "STATUS")
		for _, j := range resp.Items {
			fmt.Printf("%-40v %-10v %-12v %v\n", j["id"], j["jobType"], j["pipelineId"], j["status"])
		}
		fmt.Printf("\n%d total\n", resp.Total)
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Fetch a single job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job map[string]any
		if err := gatewayGet("/api/jobs/"+args[0], &job); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job",
	Args:  cobra.ExactArgs(1),
	RunE:  jobLifecycleCmd("/cancel"),
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a queued job",
	Args:  cobra.ExactArgs(1),
	RunE:  jobLifecycleCmd("/pause"),
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE:  jobLifecycleCmd("/resume"),
}

func jobLifecycleCmd(suffix string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var result struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		if err := gatewayPost("/api/jobs/"+args[0]+suffix, nil, &result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("%s", result.Message)
		}
		fmt.Println(result.Message)
		return nil
	}
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage cron-triggered scan schedules",
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Items []map[string]any `json:"items"`
		}
		if err := gatewayGet("/api/schedules", &resp); err != nil {
			return err
		}
		fmt.Printf("%-38s %-20s %-8s %s\n", "ID", "CRON", "ENABLED", "REPO")
		for _, s := range resp.Items {
			fmt.Printf("%-38v %-20v %-8v %v\n", s["id"], s["cronExpr"], s["enabled"], s["repoPath"])
		}
		return nil
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <cron-expr> <repo-path>",
	Short: "Create a new schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"cronExpr": args[0],
			"repoPath": args[1],
			"jobType":  "scan",
			"enabled":  true,
		}
		var created map[string]any
		if err := gatewayPost("/api/schedules", body, &created); err != nil {
			return err
		}
		fmt.Printf("created schedule %v\n", created["id"])
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return gatewayDelete("/api/schedules/" + args[0])
	},
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger <schedule-id>",
	Short: "Run a schedule's job immediately, outside its cron cadence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := gatewayPost("/api/schedules/"+args[0]+"/trigger", nil, nil); err != nil {
			return err
		}
		fmt.Println("triggered")
		return nil
	},
}

func init() {
	jobsListCmd.Flags().String("pipeline", "", "filter by pipeline id")
	jobsListCmd.Flags().String("status", "", "filter by status")
	jobsCmd.PersistentFlags().IntVar(&jobsPort, "port", 0, "gateway port (default: from config)")
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsCancelCmd, jobsPauseCmd, jobsResumeCmd, scheduleCmd)
	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleDeleteCmd, scheduleTriggerCmd)
}

// --- minimal HTTP client against the local gateway ---

func gatewayBaseURL() (string, error) {
	if jobsPort > 0 {
		return fmt.Sprintf("http://127.0.0.1:%d", jobsPort), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = 7070
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port), nil
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func gatewayGet(path string, out any) error {
	base, err := gatewayBaseURL()
	if err != nil {
		return err
	}
	resp, err := httpClient.Get(base + path)
	if err != nil {
		return fmt.Errorf("calling gateway (is 'dupctl serve' running?): %w", err)
	}
	defer resp.Body.Close()
	return decodeGatewayResponse(resp, out)
}

func gatewayPost(path string, body any, out any) error {
	base, err := gatewayBaseURL()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := httpClient.Post(base+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("calling gateway (is 'dupctl serve' running?): %w", err)
	}
	defer resp.Body.Close()
	return decodeGatewayResponse(resp, out)
}

func gatewayDelete(path string) error {
	base, err := gatewayBaseURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodDelete, base+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway (is 'dupctl serve' running?): %w", err)
	}
	defer resp.Body.Close()
	return decodeGatewayResponse(resp, nil)
}

func decodeGatewayResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %s: %s", resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
