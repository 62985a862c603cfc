package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/models"
)

// SubprocessDetector is the default Detector: it shells out to a configured
// external binary, passing the scan request as command-line arguments and
// parsing its stdout as a models.ScanResult, mirroring the subprocess-and-parse
// pattern the teacher uses per-scanner (internal/scanner/grype.go et al.),
// collapsed here to the single opaque detector spec.md §4.4 describes.
type SubprocessDetector struct {
	binPath string
	timeout time.Duration
}

// NewSubprocessDetector builds a SubprocessDetector from scanner config.
func NewSubprocessDetector(cfg config.ScannerConfig) *SubprocessDetector {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SubprocessDetector{binPath: cfg.BinPath, timeout: timeout}
}

// Scan invokes the configured binary as
// `<binPath> --repo <path> --format json [--max-depth N]`,
// reading a JSON-encoded models.ScanResult from its stdout.
func (d *SubprocessDetector) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	if _, err := exec.LookPath(d.binPath); err != nil {
		return nil, fmt.Errorf("pattern detector binary %q not found: %w", d.binPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{"--repo", req.RepoPath, "--format", "json"}
	if req.MaxDepth > 0 {
		args = append(args, "--max-depth", fmt.Sprintf("%d", req.MaxDepth))
	}

	cmd := exec.CommandContext(ctx, d.binPath, args...) // #nosec G204 -- binPath is operator configuration, not user input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running pattern detector: %w\n%s", err, stderr.String())
	}

	var result models.ScanResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parsing pattern detector output: %w", err)
	}
	result.RepoPath = req.RepoPath
	result.GeneratedAt = time.Now().UTC()
	if result.Summary.DurationMillis == 0 {
		result.Summary.DurationMillis = time.Since(start).Milliseconds()
	}
	return &result, nil
}
