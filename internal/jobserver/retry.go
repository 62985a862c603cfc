package jobserver

import (
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retrySuffixPattern matches one or more trailing "-retry<digits>" segments,
// the naming convention of spec.md §4.1/§9 used to keep retried jobs
// observable while still aggregating them under their original id.
var retrySuffixPattern = regexp.MustCompile(`(-retry\d+)+$`)

// originalJobID strips any -retry<N> suffixes to recover the id under which
// retry bookkeeping and metrics are grouped (spec.md §8 invariant 5).
func originalJobID(id string) string {
	return retrySuffixPattern.ReplaceAllString(id, "")
}

// nonRetriableCodes are HandledError codes the retry policy never retries —
// spec.md §4.1: "not ENOENT, not permission, not programmer errors."
var nonRetriableCodes = map[string]bool{
	"ENOENT":      true,
	"EACCES":      true,
	"EPERM":       true,
	"VALIDATION":  true,
	"PROGRAMMER":  true,
}

// isRetriable classifies a failure code per spec.md §4.1's retry policy.
// An empty code (a plain, unclassified error) is retriable by default.
func isRetriable(code string) bool {
	return !nonRetriableCodes[code]
}

// retryBackoff computes the delay before attempt N (1-indexed) using an
// exponential backoff policy, replacing an ad hoc time.Sleep per SPEC_FULL §11.
func retryBackoff(baseDelay time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = baseDelay * 16

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d <= 0 {
		d = baseDelay
	}
	return d
}
