// Package github implements the GitHubClient and GitHubWriter ports using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Timeouts bounds each outbound call. Metadata covers every REST call except the
// log archive download, which gets Logs.
type Timeouts struct {
	Metadata time.Duration
	Logs     time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{Metadata: 30 * time.Second, Logs: 60 * time.Second}
}

// Client implements the driven.GitHubClient port for one repository.
type Client struct {
	gh         *gh.Client
	download   *http.Client // Fetches pre-signed log archive URLs without the API auth header.
	maxArchive int64
	owner      string
	repo       string
	timeouts   Timeouts
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. x/time/rate limiter (client-side request pacing, rps requests per second)
//  2. httpcache (ETag-based conditional request caching)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github (GitHub REST API client with PAT auth)
func NewClient(token, repoFullName string, rps float64, timeouts Timeouts) (*Client, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	cacheTransport.Transport = newRateLimitedTransport(http.DefaultTransport, rps)
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:         client,
		download:   &http.Client{},
		maxArchive: maxArchiveBytes,
		owner:      owner,
		repo:       repo,
		timeouts:   timeouts,
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repoFullName string) (*Client, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:         client,
		download:   httpClient,
		maxArchive: maxArchiveBytes,
		owner:      owner,
		repo:       repo,
		timeouts:   DefaultTimeouts(),
	}, nil
}

// RepoFullName returns the "owner/repo" the client is bound to.
func (c *Client) RepoFullName() string {
	return c.owner + "/" + c.repo
}

// ListOpenPRs retrieves all open pull requests, handling pagination.
func (c *Client) ListOpenPRs(ctx context.Context) ([]model.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	allPRs := []model.PullRequest{}

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("listing open pull requests for %s (page %d)", c.RepoFullName(), opts.Page), resp, err)
		}

		logRateLimit(resp, "pulls", opts.Page, len(prs))

		for _, pr := range prs {
			allPRs = append(allPRs, mapPullRequest(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allPRs, nil
}

// GetCheckRuns retrieves all check runs for a commit SHA, handling pagination.
func (c *Client) GetCheckRuns(ctx context.Context, sha string) ([]model.CheckRun, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	allRuns := []model.CheckRun{}

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("listing check runs for %s@%s (page %d)", c.RepoFullName(), sha, opts.Page), resp, err)
		}

		logRateLimit(resp, "check-runs", opts.Page, len(result.CheckRuns))

		for _, cr := range result.CheckRuns {
			allRuns = append(allRuns, mapCheckRun(cr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allRuns, nil
}

// ListCheckAnnotations retrieves the annotations of a check run, handling pagination.
func (c *Client) ListCheckAnnotations(ctx context.Context, checkRunID int64) ([]model.Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	opts := &gh.ListOptions{PerPage: 100}
	var all []model.Annotation

	for {
		annotations, resp, err := c.gh.Checks.ListCheckRunAnnotations(ctx, c.owner, c.repo, checkRunID, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("listing annotations for check run %d (page %d)", checkRunID, opts.Page), resp, err)
		}

		for _, a := range annotations {
			all = append(all, mapAnnotation(checkRunID, a))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetWorkflowRunLogs resolves the log archive redirect for a workflow run and
// downloads the zip bytes.
func (c *Client) GetWorkflowRunLogs(ctx context.Context, runID int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Logs)
	defer cancel()

	op := fmt.Sprintf("downloading logs for workflow run %d", runID)

	archiveURL, resp, err := c.gh.Actions.GetWorkflowRunLogs(ctx, c.owner, c.repo, runID, 4)
	if err != nil {
		return nil, apiError(op, resp, err)
	}

	return c.fetchArchive(ctx, op, archiveURL.String())
}

// ListPRReviews retrieves all reviews for a pull request, handling pagination.
func (c *Client) ListPRReviews(ctx context.Context, prNumber int) ([]model.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Metadata)
	defer cancel()

	opts := &gh.ListOptions{PerPage: 100}
	var allReviews []model.Review

	for {
		reviews, resp, err := c.gh.PullRequests.ListReviews(ctx, c.owner, c.repo, prNumber, opts)
		if err != nil {
			return nil, apiError(fmt.Sprintf("listing reviews for %s#%d (page %d)", c.RepoFullName(), prNumber, opts.Page), resp, err)
		}

		for _, r := range reviews {
			allReviews = append(allReviews, mapReview(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allReviews, nil
}

// apiError wraps a go-github failure as a typed *model.APIError, carrying the
// HTTP status when a response was received.
func apiError(op string, resp *gh.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var ghErr *gh.ErrorResponse
	if status == 0 && errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}
	return &model.APIError{Op: op, StatusCode: status, Err: err}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest) model.PullRequest {
	return model.PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		Author:     pr.GetUser().GetLogin(),
		Branch:     pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadSHA:    pr.GetHead().GetSHA(),
		URL:        pr.GetHTMLURL(),
		IsDraft:    pr.GetDraft(),
	}
}

// mapCheckRun converts a go-github CheckRun to a domain model CheckRun.
func mapCheckRun(cr *gh.CheckRun) model.CheckRun {
	return model.CheckRun{
		ID:         cr.GetID(),
		Name:       cr.GetName(),
		Status:     cr.GetStatus(),
		Conclusion: cr.GetConclusion(),
		DetailsURL: cr.GetDetailsURL(),
	}
}

func mapAnnotation(checkRunID int64, a *gh.CheckRunAnnotation) model.Annotation {
	return model.Annotation{
		CheckRunID: checkRunID,
		Path:       a.GetPath(),
		StartLine:  a.GetStartLine(),
		EndLine:    a.GetEndLine(),
		Level:      a.GetAnnotationLevel(),
		Title:      a.GetTitle(),
		Message:    a.GetMessage(),
	}
}

// mapReview converts a go-github PullRequestReview to a domain model Review.
func mapReview(r *gh.PullRequestReview) model.Review {
	return model.Review{
		ID:          r.GetID(),
		Author:      r.GetUser().GetLogin(),
		State:       strings.ToLower(r.GetState()),
		Body:        r.GetBody(),
		CommitID:    r.GetCommitID(),
		SubmittedAt: r.GetSubmittedAt().Time,
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// rateLimitedTransport paces outgoing requests with a token bucket.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newRateLimitedTransport(base http.RoundTripper, rps float64) http.RoundTripper {
	if rps <= 0 {
		return base
	}
	burst := max(int(rps), 1)
	return &rateLimitedTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// RoundTrip waits for a token before delegating to the base transport.
func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
