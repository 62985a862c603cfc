package gitops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveBranchNameSanitizesAndTruncates(t *testing.T) {
	bm := NewBranchManager(GitOpsConfig{BranchPrefix: "dupctl/", BaseBranch: "main"}, nil)

	name := bm.deriveBranchName(JobContext{
		JobType:     "scan",
		Description: "Some Weird Description!! With Punctuation... and more text than thirty characters",
	})

	require.True(t, strings.HasPrefix(name, "dupctl/scan-some-weird-description-with-pu-"))
	require.NotContains(t, name, "!")
	require.NotContains(t, name, " ")

	noDesc := bm.deriveBranchName(JobContext{})
	require.True(t, strings.HasPrefix(noDesc, "dupctl/job-"))
}

func TestCreateJobBranchCommitPushCleanupRoundTrips(t *testing.T) {
	dir := initTestRepo(t)
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main", BranchPrefix: "dupctl/", DryRun: true}, nil)

	require.True(t, bm.IsGitRepository(dir))
	require.False(t, bm.HasChanges(dir))

	git, err := bm.CreateJobBranch(dir, JobContext{JobID: "j1", JobType: "scan", Description: "dedupe"})
	require.NoError(t, err)
	require.Equal(t, "main", git.OriginalBranch)
	require.Equal(t, git.BranchName, bm.GetCurrentBranch(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("two\n"), 0o644))
	require.True(t, bm.HasChanges(dir))
	require.Equal(t, []string{"b.txt"}, bm.GetChangedFiles(dir))

	sha, err := bm.CommitChanges(dir, CommitContext{JobID: "j1", Message: "add b"}, []string{"b.txt"})
	require.NoError(t, err)
	require.Len(t, sha, 40)
	require.False(t, bm.HasChanges(dir))

	require.False(t, bm.PushBranch(dir, git.BranchName))
	require.Equal(t, "dry-run-"+git.BranchName, bm.CreatePullRequest(context.Background(), git.BranchName, PRContext{Title: "t"}))

	bm.CleanupBranch(dir, git.BranchName, git.OriginalBranch)
	require.Equal(t, "main", bm.GetCurrentBranch(dir))
}

func TestCommitChangesReturnsEmptyShaWhenNothingToCommit(t *testing.T) {
	dir := initTestRepo(t)
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main"}, nil)

	sha, err := bm.CommitChanges(dir, CommitContext{JobID: "j1", Message: "noop"}, nil)
	require.NoError(t, err)
	require.Empty(t, sha)
}

func TestBranchManagerOnNonRepoIsConservativelyFalsy(t *testing.T) {
	dir := t.TempDir()
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main"}, nil)

	require.False(t, bm.IsGitRepository(dir))
	require.False(t, bm.HasChanges(dir))
	require.Empty(t, bm.GetChangedFiles(dir))
	require.Empty(t, bm.GetCurrentBranch(dir))
}
