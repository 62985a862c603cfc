package gitops

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/models"
)

// GitHubProvider implements PRCreator against GitHub and GitHub Enterprise.
// Trimmed from the teacher's fuller RepoProvider (fork/list/search) down to
// the single operation the Branch Manager needs: spec.md §4.5 only ever
// opens a PR, it never forks or browses.
type GitHubProvider struct {
	client *gogithub.Client
}

// NewGitHubProvider builds a GitHubProvider from a single configured token.
func NewGitHubProvider(cfg config.GitHubConfig) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}
	return &GitHubProvider{client: client}, nil
}

// CreatePR opens a pull request against opts.BaseBranch.
func (g *GitHubProvider) CreatePR(ctx context.Context, opts models.CreatePROptions) (*models.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, opts.Owner, opts.Repo, &gogithub.NewPullRequest{
		Title:               gogithub.Ptr(opts.Title),
		Body:                gogithub.Ptr(opts.Body),
		Head:                gogithub.Ptr(opts.HeadBranch),
		Base:                gogithub.Ptr(opts.BaseBranch),
		Draft:               gogithub.Ptr(opts.Draft),
		MaintainerCanModify: gogithub.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR on %s/%s: %w", opts.Owner, opts.Repo, err)
	}
	if len(opts.Labels) > 0 {
		if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, opts.Owner, opts.Repo, pr.GetNumber(), opts.Labels); err != nil {
			return nil, fmt.Errorf("labeling PR #%d on %s/%s: %w", pr.GetNumber(), opts.Owner, opts.Repo, err)
		}
	}
	return &models.PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		State:  pr.GetState(),
	}, nil
}
