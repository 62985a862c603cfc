package scanner

import (
	"context"

	"github.com/dupctl/dupctl/models"
)

// NoopDetector is a Detector test double: it returns a fixed result (or
// error) without touching a subprocess, for exercising the Cached Scanner
// and job handlers without the external binary installed.
type NoopDetector struct {
	Result *models.ScanResult
	Err    error
}

func (d *NoopDetector) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Result != nil {
		return d.Result, nil
	}
	return &models.ScanResult{RepoPath: req.RepoPath}, nil
}
