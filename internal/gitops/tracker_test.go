package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestCommitTrackerOnNonRepo(t *testing.T) {
	tr := NewCommitTracker()
	dir := t.TempDir()

	require.False(t, tr.IsGitRepository(dir))
	require.Equal(t, "", tr.GetRepositoryCommit(dir))
	require.Equal(t, "no-git", tr.GetShortCommit(dir))
	require.True(t, tr.HasChanged(dir, "deadbeef"))
	require.Empty(t, tr.GetBranchName(dir))
	require.False(t, tr.HasUncommittedChanges(dir))
	require.Equal(t, 0, tr.GetCommitCount(dir))

	status := tr.GetRepositoryStatus(context.Background(), dir)
	require.Equal(t, "no-git", status.ShortCommit)
}

func TestCommitTrackerOnRealRepo(t *testing.T) {
	dir := initTestRepo(t)
	tr := NewCommitTracker()

	require.True(t, tr.IsGitRepository(dir))
	sha := tr.GetRepositoryCommit(dir)
	require.Len(t, sha, 40)
	require.Equal(t, sha[:7], tr.GetShortCommit(dir))
	require.Equal(t, "main", tr.GetBranchName(dir))
	require.False(t, tr.HasUncommittedChanges(dir))
	require.Equal(t, 1, tr.GetCommitCount(dir))
	require.False(t, tr.HasChanged(dir, sha))
	require.True(t, tr.HasChanged(dir, "0000000000000000000000000000000000000000"))

	history := tr.GetCommitHistory(dir, 5)
	require.Len(t, history, 1)
	require.Equal(t, sha, history[0].SHA)

	status := tr.GetRepositoryStatus(context.Background(), dir)
	require.Equal(t, "main", status.Branch)
	require.False(t, status.Dirty)
	require.NotNil(t, status.LastCommitAt)
}
