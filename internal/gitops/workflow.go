package gitops

import (
	"context"
	"log/slog"

	"github.com/dupctl/dupctl/models"
)

// Reserved job.Data keys a handler's CommitMessageProvider/PRContextProvider
// populate before a wrap (see jobserver.annotateGitHooks). Duplicated here
// rather than imported to keep gitops free of a jobserver dependency.
const (
	dataCommitTitle = "_gitCommitTitle"
	dataCommitBody  = "_gitCommitBody"
	dataPRBranch    = "_gitPRBranch"
	dataPRTitle     = "_gitPRTitle"
	dataPRBody      = "_gitPRBody"
	dataPRLabels    = "_gitPRLabels"
)

// WorkflowManager is the Git Workflow Manager [MODULE] (spec.md §4.6): it
// wraps a job handler's body in a branch->commit->push->PR->cleanup
// transaction. It satisfies jobserver.WorkflowRunner by structural typing,
// so this package never imports jobserver.
type WorkflowManager struct {
	branches *BranchManager
	repoPath func(job *models.Job) string
}

// NewWorkflowManager constructs a WorkflowManager. repoPath extracts the
// target working tree from a job's data payload; handlers disagree on the
// field name so the caller supplies the accessor.
func NewWorkflowManager(branches *BranchManager, repoPath func(job *models.Job) string) *WorkflowManager {
	return &WorkflowManager{branches: branches, repoPath: repoPath}
}

// Wrap runs the 6-step transaction of spec.md §4.6 around run. A failure at
// any step after branch creation still attempts cleanup, and the handler's
// own error is propagated unchanged regardless of cleanup's outcome.
func (w *WorkflowManager) Wrap(ctx context.Context, job *models.Job, run func(context.Context) (map[string]any, error)) (map[string]any, *models.GitMetadata, error) {
	path := w.repoPath(job)
	if path == "" || !w.branches.IsGitRepository(path) {
		result, err := run(ctx)
		return result, nil, err
	}

	git, err := w.branches.CreateJobBranch(path, JobContext{
		JobID:       job.ID,
		JobType:     job.JobType,
		Description: job.PipelineID,
	})
	if err != nil {
		result, runErr := run(ctx)
		return result, nil, firstNonNil(runErr, err)
	}

	result, runErr := run(ctx)

	if w.branches.HasChanges(path) {
		changed := w.branches.GetChangedFiles(path)
		git.ChangedFiles = changed

		title := stringData(job, dataCommitTitle, job.JobType+" update ("+job.ID+")")
		body := stringData(job, dataCommitBody, "")

		sha, commitErr := w.branches.CommitChanges(path, CommitContext{
			JobID:       job.ID,
			Message:     title,
			Description: body,
		}, changed)
		if commitErr != nil {
			slog.Error("gitops: commit failed", "job_id", job.ID, "error", commitErr)
		} else if sha != "" {
			git.CommitSHA = sha
			w.branches.PushBranch(path, git.BranchName)

			prTitle := stringData(job, dataPRTitle, title)
			prBody := stringData(job, dataPRBody, "Automated change produced by job "+job.ID)
			git.PRUrl = w.branches.CreatePullRequest(ctx, git.BranchName, PRContext{
				Title:  prTitle,
				Body:   prBody,
				Labels: labelsData(job),
			})
		}
	}

	w.branches.CleanupBranch(path, git.BranchName, git.OriginalBranch)

	return result, git, runErr
}

func stringData(job *models.Job, key, fallback string) string {
	if job.Data == nil {
		return fallback
	}
	if v, ok := job.Data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func labelsData(job *models.Job) []string {
	if job.Data == nil {
		return nil
	}
	if v, ok := job.Data[dataPRLabels].([]string); ok {
		return v
	}
	return nil
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
