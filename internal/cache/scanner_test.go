package cache

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/gitops"
	"github.com/dupctl/dupctl/internal/scanner"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "t@example.com")
	run("config", "user.name", "T")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func newTestScanner(t *testing.T, det scanner.Detector, opts Options) (*Scanner, *store.CacheStore) {
	t.Helper()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	cs := store.NewCacheStore(db)
	return New(cs, gitops.NewCommitTracker(), det, opts), cs
}

func TestScanPopulatesCacheOnMissThenServesHit(t *testing.T) {
	dir := initRepo(t)
	calls := 0
	det := &countingDetector{Detector: &scanner.NoopDetector{Result: &models.ScanResult{
		Duplicates: []models.DuplicateSet{{Files: []string{"a.go", "b.go"}, Similarity: 0.9}},
	}}, calls: &calls}

	s, _ := newTestScanner(t, det, Options{CacheEnabled: true, TrackUncommitted: true})

	first, err := s.Scan(context.Background(), models.ScanRequest{RepoPath: dir})
	require.NoError(t, err)
	require.False(t, first.FromCache)
	require.Equal(t, 1, calls)

	second, err := s.Scan(context.Background(), models.ScanRequest{RepoPath: dir})
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.Equal(t, 1, calls, "second scan should be served from cache, not the detector")
}

func TestScanSkipsCacheOnUncommittedChanges(t *testing.T) {
	dir := initRepo(t)
	calls := 0
	det := &countingDetector{Detector: &scanner.NoopDetector{}, calls: &calls}
	s, _ := newTestScanner(t, det, Options{CacheEnabled: true, TrackUncommitted: true})

	_, err := s.Scan(context.Background(), models.ScanRequest{RepoPath: dir})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("dirty\n"), 0o644))

	_, err = s.Scan(context.Background(), models.ScanRequest{RepoPath: dir})
	require.NoError(t, err)
	require.Equal(t, 2, calls, "dirty working tree must bypass the cache")
}

func TestGetCacheStatusReasons(t *testing.T) {
	dir := initRepo(t)
	s, _ := newTestScanner(t, &scanner.NoopDetector{}, Options{CacheEnabled: true, TrackUncommitted: true})

	notGit := s.GetCacheStatus(context.Background(), t.TempDir())
	require.Equal(t, ReasonNotAGitRepository, notGit.Reason)

	miss := s.GetCacheStatus(context.Background(), dir)
	require.Equal(t, ReasonMiss, miss.Reason)

	_, err := s.Scan(context.Background(), models.ScanRequest{RepoPath: dir})
	require.NoError(t, err)

	hit := s.GetCacheStatus(context.Background(), dir)
	require.True(t, hit.Cached)
}

type countingDetector struct {
	scanner.Detector
	calls *int
}

func (c *countingDetector) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	*c.calls++
	return c.Detector.Scan(ctx, req)
}
