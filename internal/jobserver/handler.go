package jobserver

import (
	"context"
	"fmt"

	"github.com/dupctl/dupctl/models"
)

// Handler is the composition-friendly replacement for the source's
// subclass-per-worker pattern (spec.md §9 design note): a plain value
// registered with Server.RegisterHandler rather than a Server subclass.
type Handler interface {
	// JobType names the classification a job created with this handler carries.
	JobType() string

	// Run executes the job body. ctx is cancelled (best-effort, spec.md §5) when
	// the job is cancelled while running. The returned map becomes job.Result.
	Run(ctx context.Context, job *models.Job) (map[string]any, error)
}

// CommitMessageProvider is implemented by handlers whose jobs flow through
// the Git Workflow Manager, supplying the commit-message hook of spec.md §4.1.
type CommitMessageProvider interface {
	CommitMessage(job *models.Job) (title, body string)
}

// PRContextProvider is implemented by handlers that want to customize the
// pull request opened for their job, per spec.md §4.1's _generatePRContext.
type PRContextProvider interface {
	PRContext(job *models.Job) (branchName, title, body string, labels []string)
}

// HandlerFunc adapts a plain function to the Handler interface for simple,
// stateless job types.
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, job *models.Job) (map[string]any, error)
}

func (h HandlerFunc) JobType() string { return h.Type }

func (h HandlerFunc) Run(ctx context.Context, job *models.Job) (map[string]any, error) {
	return h.Fn(ctx, job)
}

// HandledError carries a retry-classification code alongside a message, so
// handlers can signal the retry policy of spec.md §4.1 (ENOENT and similar
// non-retriable failures vs. everything else).
type HandledError struct {
	Message string
	Code    string
}

func (e *HandledError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// NewHandledError builds a HandledError with the given code. A plain Go error
// that is not a HandledError is recorded under the generic code "" by the
// failure path (retriable by default; see retry.go).
func NewHandledError(code, message string) *HandledError {
	return &HandledError{Code: code, Message: message}
}
