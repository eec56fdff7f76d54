package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Worker remediates one event and reports a tagged outcome. Workers never
// return errors; execution failures are model.Failed outcomes.
type Worker interface {
	Handle(ctx context.Context, ev model.Event) model.Outcome
}

// LLMSettings configures one kind of completion call.
type LLMSettings struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

var errEmptyCompletion = errors.New("completion returned no text")

// complete runs a bounded completion and returns trimmed, non-empty text.
func complete(ctx context.Context, llm driven.Completer, s LLMSettings, system, prompt string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	text, err := llm.Complete(ctx, model.CompletionRequest{
		Model:     s.Model,
		System:    system,
		Prompt:    prompt,
		MaxTokens: s.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// failure classifies an execution error: version-control failures keep their
// own action so they are distinguishable in logs and metrics.
func failure(err error) model.Failed {
	var gitErr *model.GitError
	if errors.As(err, &gitErr) {
		return model.Failed{Did: model.ActionGitError, Err: err}
	}
	return model.Failed{Did: model.ActionFailed, Err: err}
}
