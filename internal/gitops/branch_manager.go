package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/models"
)

// nonBranchChar matches anything outside [a-z0-9-] for branch-name sanitisation
// (spec.md §4.5 createJobBranch).
var nonBranchChar = regexp.MustCompile(`[^a-z0-9-]+`)

// JobContext is what a job handler hands the Branch Manager to derive a
// branch name (spec.md §4.5 createJobBranch).
type JobContext struct {
	JobID       string
	JobType     string
	Description string
}

// CommitContext assembles a commit message (spec.md §4.5 commitChanges).
type CommitContext struct {
	JobID       string
	Message     string
	Description string
}

// PRContext is what a job handler hands the Branch Manager once a branch has
// been pushed (spec.md §4.5 createPullRequest).
type PRContext struct {
	Title      string
	Body       string
	Labels     []string
	Draft      bool
	Owner      string
	Repo       string
	BaseBranch string
}

// PRCreator is the PR backend a BranchManager delegates to once a branch has
// been pushed. provider_github.go/provider_gitlab.go each implement this
// against their SDK.
type PRCreator interface {
	CreatePR(ctx context.Context, opts models.CreatePROptions) (*models.PullRequest, error)
}

// BranchManager is the Branch Manager [MODULE] (spec.md §4.5): a thin
// subprocess wrapper over the git CLI. Every operation returns a structured,
// conservative-falsy result on failure; none of them throw, mirroring the
// teacher's runGit/gitCreateBranch/gitCommit/gitPush helpers in
// internal/agent/pr_agent.go.
type BranchManager struct {
	cfg GitOpsConfig
	pr  PRCreator
}

// GitOpsConfig is the subset of config.GitConfig the Branch Manager needs.
type GitOpsConfig struct {
	DryRun             bool
	BaseBranch         string
	BranchPrefix       string
	AttributionTrailer string
}

// NewGitOpsConfig adapts a config.GitConfig into GitOpsConfig.
func NewGitOpsConfig(c config.GitConfig) GitOpsConfig {
	return GitOpsConfig{
		DryRun:             c.DryRun,
		BaseBranch:         c.BaseBranch,
		BranchPrefix:       c.BranchPrefix,
		AttributionTrailer: c.AttributionTrailer,
	}
}

// NewBranchManager constructs a BranchManager. pr may be nil: createPullRequest
// then returns the "dry-run-<branch>" sentinel unconditionally.
func NewBranchManager(cfg GitOpsConfig, pr PRCreator) *BranchManager {
	return &BranchManager{cfg: cfg, pr: pr}
}

// IsGitRepository reports whether path looks like a git working tree.
func (b *BranchManager) IsGitRepository(path string) bool {
	return runGit(path, "rev-parse", "--is-inside-work-tree") == nil
}

// HasChanges reports whether the working tree has any uncommitted diff
// against HEAD, staged or not.
func (b *BranchManager) HasChanges(path string) bool {
	out, err := runGitOutput(path, "status", "--porcelain")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// GetChangedFiles lists paths with uncommitted changes, relative to path.
func (b *BranchManager) GetChangedFiles(path string) []string {
	out, err := runGitOutput(path, "status", "--porcelain")
	if err != nil {
		return nil
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files
}

// GetCurrentBranch returns the checked-out branch name, or "" if detached or
// not a repository.
func (b *BranchManager) GetCurrentBranch(path string) string {
	out, err := runGitOutput(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(out)
	if name == "HEAD" {
		return ""
	}
	return name
}

// CreateJobBranch checks out the base branch, pulls (skipped in dry-run),
// then creates and switches to a derived job branch (spec.md §4.5). The
// returned GitMetadata.OriginalBranch lets the caller restore state later.
func (b *BranchManager) CreateJobBranch(path string, jc JobContext) (*models.GitMetadata, error) {
	original := b.GetCurrentBranch(path)
	if original == "" {
		original = b.cfg.BaseBranch
	}

	base := b.cfg.BaseBranch
	if base == "" {
		base = "main"
	}
	if err := runGit(path, "checkout", base); err != nil {
		return nil, fmt.Errorf("checking out base branch %q: %w", base, err)
	}
	if !b.cfg.DryRun {
		if err := runGit(path, "pull", "--ff-only"); err != nil {
			return nil, fmt.Errorf("pulling base branch %q: %w", base, err)
		}
	}

	branch := b.deriveBranchName(jc)
	if err := runGit(path, "checkout", "-b", branch); err != nil {
		return nil, fmt.Errorf("creating branch %q: %w", branch, err)
	}

	return &models.GitMetadata{BranchName: branch, OriginalBranch: original}, nil
}

// deriveBranchName builds "<prefix><jobType>-<sanitized-desc>-<epochMillis>"
// per spec.md §4.5, truncating the description to ~30 characters.
func (b *BranchManager) deriveBranchName(jc JobContext) string {
	jobType := strings.ToLower(strings.TrimSpace(jc.JobType))
	jobType = nonBranchChar.ReplaceAllString(jobType, "-")
	jobType = strings.Trim(jobType, "-")
	if jobType == "" {
		jobType = "job"
	}
	desc := strings.ToLower(strings.TrimSpace(jc.Description))
	desc = nonBranchChar.ReplaceAllString(desc, "-")
	desc = strings.Trim(desc, "-")
	if len(desc) > 30 {
		desc = desc[:30]
	}

	prefix := b.cfg.BranchPrefix
	if prefix == "" {
		prefix = "dupctl/"
	}
	epoch := time.Now().UTC().UnixMilli()
	if desc == "" {
		return fmt.Sprintf("%s%s-%d", prefix, jobType, epoch)
	}
	return fmt.Sprintf("%s%s-%s-%d", prefix, jobType, desc, epoch)
}

// CommitChanges stages everything and commits, returning the empty string
// when there is nothing to commit. The message assembles cc.Message, an
// optional description, the job id, file count, and the attribution trailer.
func (b *BranchManager) CommitChanges(path string, cc CommitContext, changedFiles []string) (string, error) {
	if !b.HasChanges(path) {
		return "", nil
	}
	if err := runGit(path, "add", "-A"); err != nil {
		return "", fmt.Errorf("staging changes: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(cc.Message)
	if strings.TrimSpace(cc.Description) != "" {
		sb.WriteString("\n\n")
		sb.WriteString(cc.Description)
	}
	sb.WriteString(fmt.Sprintf("\n\nJob ID: %s\nFiles changed: %d", cc.JobID, len(changedFiles)))
	if b.cfg.AttributionTrailer != "" {
		sb.WriteString("\n\n")
		sb.WriteString(b.cfg.AttributionTrailer)
	}

	if err := runGit(path, "commit", "-m", sb.String()); err != nil {
		return "", fmt.Errorf("committing changes: %w", err)
	}
	sha, err := runGitOutput(path, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving commit sha: %w", err)
	}
	return strings.TrimSpace(sha), nil
}

// PushBranch pushes branch to origin. Always false in dry-run.
func (b *BranchManager) PushBranch(path, branch string) bool {
	if b.cfg.DryRun {
		return false
	}
	return runGit(path, "push", "-u", "origin", branch) == nil
}

// CreatePullRequest opens a PR via the configured PRCreator. Dry-run, a nil
// PRCreator, or a backend error all yield the "dry-run-<branch>" sentinel
// rather than propagating a failure up through the workflow.
func (b *BranchManager) CreatePullRequest(ctx context.Context, branch string, pc PRContext) string {
	if b.cfg.DryRun || b.pr == nil {
		return "dry-run-" + branch
	}
	base := pc.BaseBranch
	if base == "" {
		base = b.cfg.BaseBranch
	}
	result, err := b.pr.CreatePR(ctx, models.CreatePROptions{
		Owner:      pc.Owner,
		Repo:       pc.Repo,
		Title:      pc.Title,
		Body:       pc.Body,
		HeadBranch: branch,
		BaseBranch: base,
		Labels:     pc.Labels,
		Draft:      pc.Draft,
	})
	if err != nil {
		return "dry-run-" + branch
	}
	return result.URL
}

// CleanupBranch restores the original branch (falling back to the configured
// base branch) and deletes the local job branch. Errors are swallowed: this
// is best-effort tidy-up, never a source of workflow failure.
func (b *BranchManager) CleanupBranch(path, branch, originalBranch string) {
	target := originalBranch
	if target == "" {
		target = b.cfg.BaseBranch
	}
	if target == "" {
		target = "main"
	}
	_ = runGit(path, "checkout", target)
	_ = runGit(path, "branch", "-D", branch)
}

func runGit(dir string, args ...string) error {
	_, err := runGitOutput(dir, args...)
	return err
}

func runGitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...) // #nosec G204 -- "git" is a literal; args are controlled by callers
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}
