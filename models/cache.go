package models

import "time"

// CacheEntry is a single content-addressed scan cache record, keyed by
// (RepoPath, ShortCommit) per spec.md §4.3/§4.4.
type CacheEntry struct {
	RepoPath    string    `json:"repoPath"    db:"repo_path"`
	ShortCommit string    `json:"shortCommit" db:"short_commit"`
	ResultJSON  string    `json:"-"           db:"result_json"`
	CachedAt    time.Time `json:"cachedAt"    db:"cached_at"`
	TTLSeconds  int64     `json:"ttlSeconds"  db:"ttl_seconds"`
	HitCount    int       `json:"hitCount"    db:"hit_count"`
}

// Expired reports whether the entry has outlived its TTL as of now.
func (c CacheEntry) Expired(now time.Time) bool {
	if c.TTLSeconds <= 0 {
		return false
	}
	return now.After(c.CachedAt.Add(time.Duration(c.TTLSeconds) * time.Second))
}

// CacheEntryMetadata is the public shape of one stored cache entry, as
// returned by store.CacheStore.List, deliberately excluding the raw scan
// result payload.
type CacheEntryMetadata struct {
	RepoPath    string    `json:"repoPath"`
	ShortCommit string    `json:"shortCommit"`
	CachedAt    time.Time `json:"cachedAt"`
	AgeSeconds  int64     `json:"ageSeconds"`
	HitCount    int       `json:"hitCount"`
}

// CacheStats summarizes the cache's current population (spec.md §4.4 getStats).
type CacheStats struct {
	TotalEntries int   `json:"totalEntries"`
	TotalHits    int   `json:"totalHits"`
	OldestEntry  *time.Time `json:"oldestEntry,omitempty"`
	NewestEntry  *time.Time `json:"newestEntry,omitempty"`
}

// RepositoryStatus is the git-state snapshot the Cached Scanner consults to
// decide whether a cache hit is safe to serve (spec.md §4.4 "4 conditions").
type RepositoryStatus struct {
	RepoPath     string `json:"repoPath"`
	ShortCommit  string `json:"shortCommit"`
	Branch       string `json:"branch"`
	Dirty        bool   `json:"dirty"`
	RemoteURL    string `json:"remoteUrl,omitempty"`
	LastCommitAt *time.Time `json:"lastCommitAt,omitempty"`
}
