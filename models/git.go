package models

// Provider identifies a PR backend (spec.md §4.6 Git Workflow Manager).
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
	ProviderAzure  Provider = "azure" // documented gap, see DESIGN.md
)

// CreatePROptions is what the Branch Manager hands the PR backend once a
// branch has been pushed (spec.md §4.5/§4.6).
type CreatePROptions struct {
	Owner        string
	Repo         string
	Title        string
	Body         string
	HeadBranch   string
	BaseBranch   string
	Labels       []string
	Draft        bool
}

// PullRequest is the conservative result of a successful PR creation.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state"`
}

// WorkflowResult is a summary shape for the Git Workflow Manager's
// branch->commit->push->PR sequence (spec.md §4.6). WorkflowManager.Wrap does
// not return it: Wrap returns the handler's result, the GitMetadata and the
// handler's error.
type WorkflowResult struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message,omitempty"`
	RolledBack   bool         `json:"rolledBack"`
	PullRequest  *PullRequest `json:"pullRequest,omitempty"`
	Git          *GitMetadata `json:"git,omitempty"`
}
