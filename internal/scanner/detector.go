// Package scanner implements the Pattern Detector shim (spec.md §12.4): the
// duplicate-detection algorithm itself is out of scope, so this package only
// knows how to invoke an opaque external binary and normalize its output into
// models.ScanResult.
package scanner

import (
	"context"

	"github.com/dupctl/dupctl/models"
)

// Detector runs duplicate detection against a repository and returns a
// structured result. Implementations never panic; failures are returned as
// plain errors for the caller's handler to classify via jobserver.HandledError.
type Detector interface {
	Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error)
}
