package driven

import (
	"context"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// Completer defines the driven port for a generative completion service.
type Completer interface {
	// Complete sends system instructions and a user prompt and returns the reply text.
	Complete(ctx context.Context, req model.CompletionRequest) (string, error)
}
