package gitops

import (
	"fmt"

	"github.com/dupctl/dupctl/internal/config"
)

// NewPRCreator builds the PRCreator for the first configured GitHub or
// GitLab credential, preferring GitHub when both are present. Azure DevOps
// is a documented gap (see DESIGN.md): no PRCreator backs models.ProviderAzure.
// A nil, nil return means no credentials are configured; callers fall back to
// the BranchManager's dry-run sentinel behaviour.
func NewPRCreator(cfg config.GitConfig) (PRCreator, error) {
	if len(cfg.GitHub) > 0 {
		p, err := NewGitHubProvider(cfg.GitHub[0])
		if err != nil {
			return nil, fmt.Errorf("building GitHub provider: %w", err)
		}
		return p, nil
	}
	if len(cfg.GitLab) > 0 {
		p, err := NewGitLabProvider(cfg.GitLab[0])
		if err != nil {
			return nil, fmt.Errorf("building GitLab provider: %w", err)
		}
		return p, nil
	}
	return nil, nil
}
