package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubWriter = (*Client)(nil)

// UpdatePRBody replaces the description of a pull request.
func (c *Client) UpdatePRBody(ctx context.Context, prNumber int, body string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	_, resp, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, prNumber, &gh.PullRequest{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return apiError(fmt.Sprintf("updating body of %s#%d", c.RepoFullName(), prNumber), resp, err)
	}

	logRateLimit(resp, "edit-pull", 0, 1)
	return nil
}

// PostPRComment adds a PR-level comment via the Issues API.
func (c *Client) PostPRComment(ctx context.Context, prNumber int, body string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	comment := &gh.IssueComment{Body: gh.Ptr(body)}
	_, resp, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, prNumber, comment)
	if err != nil {
		return apiError(fmt.Sprintf("creating comment on %s#%d", c.RepoFullName(), prNumber), resp, err)
	}

	logRateLimit(resp, "create-comment", 0, 1)
	return nil
}

// CreatePRReview submits a review on a pull request.
func (c *Client) CreatePRReview(ctx context.Context, prNumber int, body string, verdict model.ReviewVerdict) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	review := &gh.PullRequestReviewRequest{
		Event: gh.Ptr(string(verdict)),
		Body:  gh.Ptr(body),
	}

	_, resp, err := c.gh.PullRequests.CreateReview(ctx, c.owner, c.repo, prNumber, review)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return apiError(fmt.Sprintf("creating review for %s#%d: head moved since snapshot", c.RepoFullName(), prNumber), resp, err)
		}
		return apiError(fmt.Sprintf("creating review for %s#%d", c.RepoFullName(), prNumber), resp, err)
	}

	logRateLimit(resp, "create-review", 0, 1)
	return nil
}

// CreatePullRequest opens a pull request from pr.Head into pr.Base.
func (c *Client) CreatePullRequest(ctx context.Context, pr model.NewPullRequest) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	created, resp, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.Ptr(pr.Title),
		Head:  gh.Ptr(pr.Head),
		Base:  gh.Ptr(pr.Base),
		Body:  gh.Ptr(pr.Body),
		Draft: gh.Ptr(pr.Draft),
	})
	if err != nil {
		return 0, apiError(fmt.Sprintf("creating pull request %s -> %s on %s", pr.Head, pr.Base, c.RepoFullName()), resp, err)
	}

	logRateLimit(resp, "create-pull", 0, 1)
	return created.GetNumber(), nil
}
