package gitops

import (
	"context"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/models"
)

// GitLabProvider implements PRCreator against GitLab and self-managed
// GitLab, opening merge requests (spec.md's "pull request" generalises to a
// GitLab merge request).
type GitLabProvider struct {
	client *gitlab.Client
	host   string
}

// NewGitLabProvider builds a GitLabProvider from a single configured token.
func NewGitLabProvider(cfg config.GitLabConfig) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		opts = append(opts, gitlab.WithBaseURL(fmt.Sprintf("https://%s/api/v4/", cfg.Host)))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLabProvider{client: client, host: cfg.Host}, nil
}

// CreatePR opens a merge request against opts.BaseBranch.
func (g *GitLabProvider) CreatePR(ctx context.Context, opts models.CreatePROptions) (*models.PullRequest, error) {
	nameWithNS := opts.Owner + "/" + opts.Repo
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(nameWithNS, &gitlab.CreateMergeRequestOptions{
		Title:        &opts.Title,
		Description:  &opts.Body,
		SourceBranch: &opts.HeadBranch,
		TargetBranch: &opts.BaseBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MR on %s: %w", nameWithNS, err)
	}
	host := g.host
	if host == "" {
		host = "gitlab.com"
	}
	return &models.PullRequest{
		Number: int(mr.IID),
		URL:    fmt.Sprintf("https://%s/%s/-/merge_requests/%d", host, nameWithNS, mr.IID),
		State:  mr.State,
	}, nil
}
