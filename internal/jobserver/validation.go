package jobserver

import "regexp"

// jobIDPattern implements spec.md §4.8's validation contract: external job
// ids must be 1-100 characters of letters, digits, underscore, or hyphen.
// Path traversal sequences, shell metacharacters, and null bytes never match.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidJobID reports whether id satisfies spec.md §4.8/§6's id contract.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// ClampPage applies the pagination sanitisation of spec.md §4.8: limit
// defaults to 50 and clamps to [1, maxLimit]; offset defaults to 0 and never
// goes negative. A non-positive maxLimit falls back to 200.
func ClampPage(limit, offset, maxLimit int) (int, int) {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
