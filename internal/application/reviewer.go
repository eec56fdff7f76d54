package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Reviewer posts one marker-tagged review on pull requests with green CI.
type Reviewer struct {
	gh     driven.GitHubClient
	writer driven.GitHubWriter
	llm    driven.Completer
	llmCfg LLMSettings
}

// NewReviewer creates a Reviewer.
func NewReviewer(gh driven.GitHubClient, writer driven.GitHubWriter, llm driven.Completer, llmCfg LLMSettings) *Reviewer {
	return &Reviewer{gh: gh, writer: writer, llm: llm, llmCfg: llmCfg}
}

// Handle reviews one needs_review event unless a review carrying the marker
// already exists on the pull request.
func (r *Reviewer) Handle(ctx context.Context, ev model.Event) model.Outcome {
	snap := ev.Snapshot

	reviews, err := r.gh.ListPRReviews(ctx, snap.Number)
	if err != nil {
		return failure(fmt.Errorf("list reviews: %w", err))
	}
	for _, rv := range reviews {
		if strings.Contains(rv.Body, model.ReviewMarker) {
			clog.FromContext(ctx).Info("pr already reviewed", "review_id", rv.ID)
			return model.Declined{Did: model.ActionAlreadyReviewed, Reason: "marker review exists"}
		}
	}

	text, err := complete(ctx, r.llm, r.llmCfg, "", buildReviewPrompt(snap))
	if err != nil {
		return failure(fmt.Errorf("generate review: %w", err))
	}

	body := model.ReviewMarker + "\n\n" + text
	if err := r.writer.CreatePRReview(ctx, snap.Number, body, model.VerdictComment); err != nil {
		return failure(fmt.Errorf("create review: %w", err))
	}

	clog.FromContext(ctx).Info("pr review posted")
	return model.Completed{Did: model.ActionReviewPosted}
}
