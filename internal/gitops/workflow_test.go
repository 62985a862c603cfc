package gitops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dupctl/dupctl/models"
)

func repoPathFromData(job *models.Job) string {
	p, _ := job.Data["repoPath"].(string)
	return p
}

func TestWorkflowManagerWrapCommitsChangesFromHandler(t *testing.T) {
	dir := initTestRepo(t)
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main", BranchPrefix: "dupctl/", DryRun: true}, nil)
	wm := NewWorkflowManager(bm, repoPathFromData)

	job := &models.Job{ID: "j1", JobType: "scan", Data: map[string]any{"repoPath": dir}}

	result, git, err := wm.Wrap(context.Background(), job, func(ctx context.Context) (map[string]any, error) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x\n"), 0o644))
		return map[string]any{"changed": 1}, nil
	})

	require.NoError(t, err)
	require.Equal(t, map[string]any{"changed": 1}, result)
	require.NotNil(t, git)
	require.Equal(t, "main", git.OriginalBranch)
	require.Contains(t, git.ChangedFiles, "new.txt")
	require.Len(t, git.CommitSHA, 40)
	require.Equal(t, "dry-run-"+git.BranchName, git.PRUrl)

	require.Equal(t, "main", bm.GetCurrentBranch(dir))
}

func TestWorkflowManagerWrapPropagatesHandlerErrorAfterCleanup(t *testing.T) {
	dir := initTestRepo(t)
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main", BranchPrefix: "dupctl/", DryRun: true}, nil)
	wm := NewWorkflowManager(bm, repoPathFromData)

	job := &models.Job{ID: "j2", JobType: "scan", Data: map[string]any{"repoPath": dir}}

	boom := context.DeadlineExceeded
	_, git, err := wm.Wrap(context.Background(), job, func(ctx context.Context) (map[string]any, error) {
		return nil, boom
	})

	require.ErrorIs(t, err, boom)
	require.NotNil(t, git)
	require.Equal(t, "main", bm.GetCurrentBranch(dir))
}

func TestWorkflowManagerWrapSkipsNonGitPaths(t *testing.T) {
	bm := NewBranchManager(GitOpsConfig{BaseBranch: "main"}, nil)
	wm := NewWorkflowManager(bm, repoPathFromData)

	job := &models.Job{ID: "j3", JobType: "scan", Data: map[string]any{"repoPath": t.TempDir()}}

	result, git, err := wm.Wrap(context.Background(), job, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})

	require.NoError(t, err)
	require.Nil(t, git)
	require.Equal(t, map[string]any{"ok": true}, result)
}
