package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dupctl/dupctl/models"
)

// CacheStore persists the content-addressed scan cache backing the Scan
// Cache [MODULE] (spec.md §4.3), keyed by (repoPath, shortCommit).
type CacheStore struct {
	db DB
}

func NewCacheStore(db DB) *CacheStore {
	return &CacheStore{db: db}
}

// Put upserts a cache entry, resetting its hit count to 0 on a fresh write.
func (s *CacheStore) Put(ctx context.Context, entry models.CacheEntry) error {
	entry.HitCount = 0
	err := s.db.Upsert(ctx, "cache_entries", cacheRow{
		RepoPath:    entry.RepoPath,
		ShortCommit: entry.ShortCommit,
		ResultJSON:  entry.ResultJSON,
		CachedAt:    entry.CachedAt.Format(timeLayout),
		TTLSeconds:  entry.TTLSeconds,
		HitCount:    entry.HitCount,
	}, []string{"repo_path", "short_commit"})
	if err != nil {
		return fmt.Errorf("caching scan for %s@%s: %w", entry.RepoPath, entry.ShortCommit, err)
	}
	return nil
}

// Get fetches the cache entry for (repoPath, shortCommit), bumping its hit
// count as a side effect when found. Returns (nil, nil) on a cache miss.
func (s *CacheStore) Get(ctx context.Context, repoPath, shortCommit string) (*models.CacheEntry, error) {
	var row cacheRow
	err := s.db.Get(ctx, &row, `SELECT repo_path, short_commit, result_json,
		cached_at, ttl_seconds, hit_count FROM cache_entries
		WHERE repo_path = ? AND short_commit = ?`, repoPath, shortCommit)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	cachedAt, err := time.Parse(timeLayout, row.CachedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing cached_at: %w", err)
	}

	if err := s.db.Exec(ctx, `UPDATE cache_entries SET hit_count = hit_count + 1
		WHERE repo_path = ? AND short_commit = ?`, repoPath, shortCommit); err != nil {
		return nil, fmt.Errorf("recording cache hit: %w", err)
	}

	return &models.CacheEntry{
		RepoPath:    row.RepoPath,
		ShortCommit: row.ShortCommit,
		ResultJSON:  row.ResultJSON,
		CachedAt:    cachedAt,
		TTLSeconds:  row.TTLSeconds,
		HitCount:    row.HitCount + 1,
	}, nil
}

// Invalidate removes every cache entry for a repo path. It backs the Cached
// Scanner's explicit InvalidateCache operation (POST /api/cache/invalidate).
func (s *CacheStore) Invalidate(ctx context.Context, repoPath string) error {
	return s.db.Exec(ctx, `DELETE FROM cache_entries WHERE repo_path = ?`, repoPath)
}

// List returns all cache entries for a repo, most recently cached first.
func (s *CacheStore) List(ctx context.Context, repoPath string) ([]models.CacheEntryMetadata, error) {
	var rows []cacheRow
	if err := s.db.Select(ctx, &rows, `SELECT repo_path, short_commit, result_json,
		cached_at, ttl_seconds, hit_count FROM cache_entries WHERE repo_path = ?
		ORDER BY cached_at DESC`, repoPath); err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}

	now := time.Now().UTC()
	out := make([]models.CacheEntryMetadata, 0, len(rows))
	for _, r := range rows {
		cachedAt, err := time.Parse(timeLayout, r.CachedAt)
		if err != nil {
			continue
		}
		out = append(out, models.CacheEntryMetadata{
			RepoPath:    r.RepoPath,
			ShortCommit: r.ShortCommit,
			CachedAt:    cachedAt,
			AgeSeconds:  int64(now.Sub(cachedAt).Seconds()),
			HitCount:    r.HitCount,
		})
	}
	return out, nil
}

// Stats summarizes the cache's current population across all repos.
func (s *CacheStore) Stats(ctx context.Context) (*models.CacheStats, error) {
	var rows []cacheRow
	if err := s.db.Select(ctx, &rows, `SELECT repo_path, short_commit, result_json,
		cached_at, ttl_seconds, hit_count FROM cache_entries`); err != nil {
		return nil, fmt.Errorf("computing cache stats: %w", err)
	}

	stats := &models.CacheStats{TotalEntries: len(rows)}
	for _, r := range rows {
		stats.TotalHits += r.HitCount
		cachedAt, err := time.Parse(timeLayout, r.CachedAt)
		if err != nil {
			continue
		}
		if stats.OldestEntry == nil || cachedAt.Before(*stats.OldestEntry) {
			t := cachedAt
			stats.OldestEntry = &t
		}
		if stats.NewestEntry == nil || cachedAt.After(*stats.NewestEntry) {
			t := cachedAt
			stats.NewestEntry = &t
		}
	}
	return stats, nil
}

// ClearAll empties the cache entirely (spec.md §4.4 clearAll).
func (s *CacheStore) ClearAll(ctx context.Context) error {
	return s.db.Exec(ctx, `DELETE FROM cache_entries`)
}

type cacheRow struct {
	RepoPath    string `db:"repo_path"`
	ShortCommit string `db:"short_commit"`
	ResultJSON  string `db:"result_json"`
	CachedAt    string `db:"cached_at"`
	TTLSeconds  int64  `db:"ttl_seconds"`
	HitCount    int    `db:"hit_count"`
}
