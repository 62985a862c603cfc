package models

import "time"

// ScanRequest is the input to the Cached Scanner (spec.md §4.4). The
// duplicate-detection algorithm itself is out of scope; this is the
// envelope handed to the opaque Pattern Detector shim.
type ScanRequest struct {
	RepoPath     string `json:"repoPath"`
	ForceRefresh bool   `json:"forceRefresh"`
	MaxDepth     int    `json:"maxDepth,omitempty"`
}

// ScanResult is the opaque-to-dupctl envelope produced by the external
// pattern detector and stored verbatim in the scan cache (spec.md §4.3/§6).
type ScanResult struct {
	RepoPath      string         `json:"repoPath"`
	ShortCommit   string         `json:"shortCommit"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	FromCache     bool           `json:"fromCache"`
	Duplicates    []DuplicateSet `json:"duplicates"`
	Summary       ScanSummary    `json:"summary"`
	CacheMetadata *CacheMetadata `json:"cache_metadata,omitempty"`
}

// CacheMetadata is attached to a ScanResult served from the scan cache
// (spec.md §4.3 getCachedScan): from_cache is always true here, and age is
// derived from wall time since cached_at at the moment of the hit.
type CacheMetadata struct {
	FromCache bool      `json:"from_cache"`
	CachedAt  time.Time `json:"cached_at"`
	AgeSeconds int64    `json:"age"`
	AgeHours  float64   `json:"age_hours"`
	AgeDays   float64   `json:"age_days"`
}

// DuplicateSet is a single cluster reported by the external detector. Its
// internal scoring method is out of scope; dupctl only stores and relays it.
type DuplicateSet struct {
	Files      []string `json:"files"`
	Similarity float64  `json:"similarity"`
}

// ScanSummary is the headline count block of a scan result.
type ScanSummary struct {
	FilesScanned   int `json:"filesScanned"`
	DuplicateSets  int `json:"duplicateSets"`
	DurationMillis int64 `json:"durationMillis"`
}
