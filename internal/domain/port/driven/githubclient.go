package driven

import (
	"context"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// GitHubClient defines the driven port for reading from the code host. The
// client is bound to a single repository at construction. Failures surface as
// *model.APIError.
type GitHubClient interface {
	// ListOpenPRs returns every open pull request.
	ListOpenPRs(ctx context.Context) ([]model.PullRequest, error)
	// GetCheckRuns returns all check runs for a commit.
	GetCheckRuns(ctx context.Context, sha string) ([]model.CheckRun, error)
	// ListCheckAnnotations returns the file/line annotations of a check run.
	ListCheckAnnotations(ctx context.Context, checkRunID int64) ([]model.Annotation, error)
	// GetWorkflowRunLogs returns the raw zip archive of a workflow run's logs.
	GetWorkflowRunLogs(ctx context.Context, runID int64) ([]byte, error)
	// ListPRReviews returns the reviews submitted on a pull request.
	ListPRReviews(ctx context.Context, prNumber int) ([]model.Review, error)
}
