// Package gitops implements the Commit Tracker, Branch Manager, and Git
// Workflow Manager [MODULE]s of spec.md §4.5-4.7, split along the teacher's
// own read/write boundary: go-git for read-only introspection, the git CLI
// subprocess for mutations.
package gitops

import (
	"context"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/dupctl/dupctl/models"
)

// CommitTracker is a read-only view over a local git workspace (spec.md
// §4.7). Every operation returns the conservative neutral value for
// non-git or invalid paths; none of them throw.
type CommitTracker struct{}

// NewCommitTracker constructs a CommitTracker. It holds no state: each call
// opens the target repository fresh, since the working tree may change
// between calls.
func NewCommitTracker() *CommitTracker {
	return &CommitTracker{}
}

// IsGitRepository reports whether path is the root of a git working tree.
// A subdirectory inside a working tree is reported false.
func (t *CommitTracker) IsGitRepository(path string) bool {
	_, err := gogit.PlainOpen(path)
	return err == nil
}

// GetRepositoryCommit returns the full HEAD commit SHA, or "" if path is not
// a git repository or HEAD cannot be resolved (e.g. empty repo).
func (t *CommitTracker) GetRepositoryCommit(path string) string {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// GetShortCommit truncates a full commit SHA to the 7-hex-character cache-key
// form (spec.md glossary "Short commit"); the sentinel "no-git" is returned
// for non-repositories.
func (t *CommitTracker) GetShortCommit(path string) string {
	full := t.GetRepositoryCommit(path)
	if full == "" {
		return "no-git"
	}
	if len(full) > 7 {
		return full[:7]
	}
	return full
}

// HasChanged reports whether path's current commit differs from lastCommit.
// A non-git path, or an empty lastCommit, is conservatively reported changed.
func (t *CommitTracker) HasChanged(path, lastCommit string) bool {
	if lastCommit == "" {
		return true
	}
	current := t.GetRepositoryCommit(path)
	if current == "" {
		return true
	}
	return current != lastCommit
}

// GetBranchName returns the current branch's short name, or "" if detached
// or not a repository.
func (t *CommitTracker) GetBranchName(path string) string {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// HasUncommittedChanges reports whether the working tree has modifications,
// additions, or deletions relative to the index/HEAD. Non-repositories
// report false (nothing to invalidate a cache over).
func (t *CommitTracker) HasUncommittedChanges(path string) bool {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false
	}
	status, err := wt.Status()
	if err != nil {
		return false
	}
	return !status.IsClean()
}

// GetChangedFiles lists the files with uncommitted changes in the working
// tree (its status against the index and HEAD). fromCommit is not consulted:
// files changed by commits made since fromCommit are not listed.
func (t *CommitTracker) GetChangedFiles(path, fromCommit string) []string {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil
	}
	status, err := wt.Status()
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(status))
	for f := range status {
		files = append(files, f)
	}
	return files
}

// GetRemoteUrl returns the URL of the named remote (default "origin"), or ""
// if absent.
func (t *CommitTracker) GetRemoteUrl(path string, name string) string {
	if name == "" {
		name = "origin"
	}
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return ""
	}
	remote, err := repo.Remote(name)
	if err != nil {
		return ""
	}
	cfg := remote.Config()
	if len(cfg.URLs) == 0 {
		return ""
	}
	return cfg.URLs[0]
}

// GetCommitCount returns the number of commits reachable from HEAD, or 0 on
// any failure (empty repo, not a repo).
func (t *CommitTracker) GetCommitCount(path string) int {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return 0
	}
	head, err := repo.Head()
	if err != nil {
		return 0
	}
	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return 0
	}
	count := 0
	_ = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count
}

// GetCommitHistory returns up to limit commit metadata entries starting from
// HEAD, most recent first.
func (t *CommitTracker) GetCommitHistory(path string, limit int) []CommitInfo {
	if limit <= 0 {
		limit = 20
	}
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil
	}
	var out []CommitInfo
	_ = iter.ForEach(func(c *object.Commit) error {
		if len(out) >= limit {
			return storer.ErrStop
		}
		out = append(out, CommitInfo{
			SHA:     c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	return out
}

// CommitInfo is a single entry in a commit history listing.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// GetRepositoryStatus composes a full snapshot (spec.md §3 RepositoryStatus).
func (t *CommitTracker) GetRepositoryStatus(ctx context.Context, path string) models.RepositoryStatus {
	status := models.RepositoryStatus{RepoPath: path}
	if !t.IsGitRepository(path) {
		status.ShortCommit = "no-git"
		return status
	}
	status.ShortCommit = t.GetShortCommit(path)
	status.Branch = t.GetBranchName(path)
	status.Dirty = t.HasUncommittedChanges(path)
	status.RemoteURL = t.GetRemoteUrl(path, "origin")

	repo, err := gogit.PlainOpen(path)
	if err == nil {
		if head, err := repo.Head(); err == nil {
			if commit, err := repo.CommitObject(head.Hash()); err == nil {
				when := commit.Author.When
				status.LastCommitAt = &when
			}
		}
	}
	return status
}
