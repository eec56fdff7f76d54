package driven

import (
	"context"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// GitHubWriter defines the driven port for mutating pull requests on the code host.
type GitHubWriter interface {
	// UpdatePRBody replaces the body of a pull request.
	UpdatePRBody(ctx context.Context, prNumber int, body string) error
	// PostPRComment adds a PR-level comment.
	PostPRComment(ctx context.Context, prNumber int, body string) error
	// CreatePRReview submits a review with the given verdict.
	CreatePRReview(ctx context.Context, prNumber int, body string, verdict model.ReviewVerdict) error
	// CreatePullRequest opens a pull request and returns its number.
	CreatePullRequest(ctx context.Context, pr model.NewPullRequest) (int, error)
}
