// Package llm adapts hosted generative models to the Completer port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Completer = (*AnthropicCompleter)(nil)

const defaultMaxTokens = 4096

// AnthropicCompleter sends single-turn prompts to the Anthropic Messages API.
type AnthropicCompleter struct {
	client       anthropic.Client
	defaultModel string
	retry        RetryPolicy
}

// NewAnthropicCompleter builds a completer. The SDK's own retries are disabled
// so that RetryPolicy alone governs retry behavior. Extra options (base URL,
// HTTP client) are applied last.
func NewAnthropicCompleter(apiKey, defaultModel string, retry RetryPolicy, opts ...option.RequestOption) *AnthropicCompleter {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicCompleter{
		client:       anthropic.NewClient(all...),
		defaultModel: defaultModel,
		retry:        retry,
	}
}

// Complete returns the concatenated text blocks of the model's reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, req model.CompletionRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)},
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	return withRetry(ctx, c.retry, "anthropic "+modelName, isRetryableAnthropicError, func() (string, error) {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		return b.String(), nil
	})
}

// isRetryableAnthropicError reports rate limits, overload and gateway failures.
func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
			return true
		}
	}
	return false
}

// String identifies the completer in logs.
func (c *AnthropicCompleter) String() string {
	return fmt.Sprintf("anthropic(%s)", c.defaultModel)
}
