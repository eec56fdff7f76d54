package driven

import (
	"context"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// EventStore defines the driven port for the idempotency ledger. Entries are
// append-only; recording an existing (pr, sha, kind) key is a no-op.
type EventStore interface {
	IsEventProcessed(ctx context.Context, prNumber int, headSHA string, kind model.EventKind) (bool, error)
	RecordEvent(ctx context.Context, prNumber int, headSHA string, kind model.EventKind, action model.Action) error
	// CountFixAttempts counts fix pushes for a PR across all of its commits.
	CountFixAttempts(ctx context.Context, prNumber int) (int, error)
	// GetFixHistory returns the PR's fix pushes, oldest first.
	GetFixHistory(ctx context.Context, prNumber int) ([]model.LedgerEntry, error)
	// ListByPR returns every ledger entry for a PR, oldest first.
	ListByPR(ctx context.Context, prNumber int) ([]model.LedgerEntry, error)
	// ListRecent returns the newest entries across all PRs, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error)
}
