package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Completer = (*GeminiCompleter)(nil)

// GeminiCompleter sends single-turn prompts to the Gemini API.
type GeminiCompleter struct {
	client       *genai.Client
	defaultModel string
	retry        RetryPolicy
}

// NewGeminiCompleter creates a Gemini API client authenticated by API key.
func NewGeminiCompleter(ctx context.Context, apiKey, defaultModel string, retry RetryPolicy) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiCompleter{client: client, defaultModel: defaultModel, retry: retry}, nil
}

// Complete returns the text of the first candidate.
func (c *GeminiCompleter) Complete(ctx context.Context, req model.CompletionRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	cfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	return withRetry(ctx, c.retry, "gemini "+modelName, isRetryableGeminiError, func() (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, modelName, genai.Text(req.Prompt), cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
}

// isRetryableGeminiError matches quota exhaustion and transient server errors.
// The SDK does not expose a typed status for every transport path, so the
// message is inspected.
func isRetryableGeminiError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"429", "RESOURCE_EXHAUSTED", "Resource exhausted", "rate limit",
		"503", "UNAVAILABLE", "Overloaded", "quota exceeded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
