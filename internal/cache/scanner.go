// Package cache implements the Scan Cache and Cached Scanner [MODULE]s of
// spec.md §4.3/§4.4: a content-addressed store of scan results keyed by
// (repoPath, shortCommit), and the decision logic for when a cached result
// is safe to serve instead of recomputing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dupctl/dupctl/internal/gitops"
	"github.com/dupctl/dupctl/internal/scanner"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

// CacheStatusReason classifies why getCacheStatus did not report a hit
// (spec.md §4.4).
type CacheStatusReason string

const (
	ReasonNotAGitRepository CacheStatusReason = "not_a_git_repository"
	ReasonDisabled          CacheStatusReason = "disabled"
	ReasonUncommitted       CacheStatusReason = "uncommitted_changes"
	ReasonMiss              CacheStatusReason = "miss"
)

// CacheStatus is the composed repo-status + cache-presence + age report of
// getCacheStatus.
type CacheStatus struct {
	RepositoryStatus models.RepositoryStatus
	Cached           bool
	Reason           CacheStatusReason
	AgeSeconds       int64
}

// Scanner is the Cached Scanner [MODULE]: it wraps a Pattern Detector with
// the cache-vs-compute decision of spec.md §4.4, consulting the Commit
// Tracker for repository state and the Scan Cache store for hits/misses.
type Scanner struct {
	cache          *store.CacheStore
	tracker        *gitops.CommitTracker
	detector       scanner.Detector
	cacheEnabled   bool
	trackUncommitted bool
	ttlSeconds     int64
}

// Options configures a Scanner's cache policy (SPEC_FULL §10.3 jobs config).
type Options struct {
	CacheEnabled     bool
	TrackUncommitted bool
	TTLSeconds       int64
}

// New constructs a Scanner.
func New(cacheStore *store.CacheStore, tracker *gitops.CommitTracker, detector scanner.Detector, opts Options) *Scanner {
	ttl := opts.TTLSeconds
	if ttl <= 0 {
		ttl = 30 * 24 * 60 * 60
	}
	return &Scanner{
		cache:            cacheStore,
		tracker:          tracker,
		detector:         detector,
		cacheEnabled:     opts.CacheEnabled,
		trackUncommitted: opts.TrackUncommitted,
		ttlSeconds:       ttl,
	}
}

// shouldUseCache implements spec.md §4.4's 4 conditions.
func (s *Scanner) shouldUseCache(status models.RepositoryStatus, req models.ScanRequest) bool {
	if !s.cacheEnabled || s.cache == nil {
		return false
	}
	if status.ShortCommit == "no-git" {
		return false
	}
	if req.ForceRefresh {
		return false
	}
	if s.trackUncommitted && status.Dirty {
		return false
	}
	return true
}

// Scan runs the cache-vs-compute decision, then either serves a cache hit or
// invokes the external detector and (best-effort) populates the cache.
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	status := s.tracker.GetRepositoryStatus(ctx, req.RepoPath)

	if s.shouldUseCache(status, req) {
		if cached, err := s.getCachedScan(ctx, req.RepoPath, status.ShortCommit); err == nil && cached != nil {
			return cached, nil
		}
	}

	result, err := s.detector.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("running pattern detector: %w", err)
	}
	result.ShortCommit = status.ShortCommit
	result.FromCache = false

	if s.shouldUseCache(status, req) {
		s.cacheScan(ctx, req.RepoPath, status.ShortCommit, result)
	}
	return result, nil
}

// getCachedScan returns a cache hit with from_cache metadata attached, or nil
// on miss, expiry, or any storage error (cache problems never propagate into
// scan correctness, per spec.md §4.3).
func (s *Scanner) getCachedScan(ctx context.Context, repoPath, shortCommit string) (*models.ScanResult, error) {
	entry, err := s.cache.Get(ctx, repoPath, shortCommit)
	if err != nil || entry == nil {
		return nil, nil
	}
	if entry.Expired(time.Now().UTC()) {
		return nil, nil
	}

	var result models.ScanResult
	if err := json.Unmarshal([]byte(entry.ResultJSON), &result); err != nil {
		return nil, nil
	}
	result.FromCache = true

	age := time.Since(entry.CachedAt)
	result.CacheMetadata = &models.CacheMetadata{
		FromCache:  true,
		CachedAt:   entry.CachedAt,
		AgeSeconds: int64(age.Seconds()),
		AgeHours:   age.Hours(),
		AgeDays:    age.Hours() / 24,
	}
	return &result, nil
}

// cacheScan writes result to the cache. Errors are logged-by-omission: a
// failure to cache never fails the scan itself.
func (s *Scanner) cacheScan(ctx context.Context, repoPath, shortCommit string, result *models.ScanResult) bool {
	payload, err := json.Marshal(result)
	if err != nil {
		return false
	}
	entry := models.CacheEntry{
		RepoPath:    repoPath,
		ShortCommit: shortCommit,
		ResultJSON:  string(payload),
		CachedAt:    time.Now().UTC(),
		TTLSeconds:  s.ttlSeconds,
	}
	return s.cache.Put(ctx, entry) == nil
}

// GetCacheStatus composes a repository snapshot with cache presence/age for
// the dashboard and CLI (spec.md §4.4 getCacheStatus).
func (s *Scanner) GetCacheStatus(ctx context.Context, repoPath string) CacheStatus {
	status := s.tracker.GetRepositoryStatus(ctx, repoPath)
	out := CacheStatus{RepositoryStatus: status}

	if status.ShortCommit == "no-git" {
		out.Reason = ReasonNotAGitRepository
		return out
	}
	if !s.cacheEnabled || s.cache == nil {
		out.Reason = ReasonDisabled
		return out
	}
	if s.trackUncommitted && status.Dirty {
		out.Reason = ReasonUncommitted
		return out
	}

	entry, err := s.cache.Get(ctx, repoPath, status.ShortCommit)
	if err != nil || entry == nil {
		out.Reason = ReasonMiss
		return out
	}
	out.Cached = true
	out.AgeSeconds = int64(time.Since(entry.CachedAt).Seconds())
	return out
}

// InvalidateCache removes every cache entry for repoPath (spec.md §4.4
// invalidateCache).
func (s *Scanner) InvalidateCache(ctx context.Context, repoPath string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, repoPath)
}
