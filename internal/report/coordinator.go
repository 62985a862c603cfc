// Package report implements the Report Coordinator [MODULE] (SPEC_FULL
// §12.5): a thin subprocess wrapper that hands an external report generator
// a scan result and surfaces the artifact path(s) it produced.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dupctl/dupctl/models"
)

// Artifact is one generated report file.
type Artifact struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// Coordinator invokes an external report-generator binary given a scan
// result. Report markup generation itself is out of scope (spec.md §1); this
// type only knows how to invoke the subprocess and parse its manifest.
type Coordinator struct {
	binPath string
	timeout time.Duration
}

// New constructs a Coordinator. binPath is the configured report-generator
// binary; timeout bounds a single invocation.
func New(binPath string, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Coordinator{binPath: binPath, timeout: timeout}
}

// Generate writes result to a temp file, invokes the report generator against
// it, and parses the JSON manifest of artifacts it prints to stdout.
func (c *Coordinator) Generate(ctx context.Context, result *models.ScanResult, outDir string) ([]Artifact, error) {
	if _, err := exec.LookPath(c.binPath); err != nil {
		return nil, fmt.Errorf("report generator binary %q not found: %w", c.binPath, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding scan result: %w", err)
	}
	tmp, err := os.CreateTemp("", "dupctl-report-*.json")
	if err != nil {
		return nil, fmt.Errorf("creating scan result temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing scan result temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing scan result temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binPath, "--input", tmp.Name(), "--out-dir", outDir) // #nosec G204 -- binPath is operator configuration
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running report generator: %w\n%s", err, stderr.String())
	}

	var manifest struct {
		Artifacts []Artifact `json:"artifacts"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &manifest); err != nil {
		return nil, fmt.Errorf("parsing report generator manifest: %w", err)
	}
	return manifest.Artifacts, nil
}
