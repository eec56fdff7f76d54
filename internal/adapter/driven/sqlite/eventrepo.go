package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// timestampLayout is fixed-width so processed_at sorts chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventStore port.
type EventRepo struct {
	db  *DB
	now func() time.Time
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db, now: time.Now}
}

// IsEventProcessed reports whether (prNumber, headSHA, kind) already has a ledger entry.
func (r *EventRepo) IsEventProcessed(ctx context.Context, prNumber int, headSHA string, kind model.EventKind) (bool, error) {
	const query = `
		SELECT COUNT(*) FROM github_events
		WHERE pr_number = ? AND head_sha = ? AND event_type = ?`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, prNumber, headSHA, string(kind)).Scan(&count); err != nil {
		return false, fmt.Errorf("check event %s for #%d@%s: %w", kind, prNumber, headSHA, err)
	}
	return count > 0, nil
}

// RecordEvent appends a ledger entry. A duplicate key is silently ignored so the
// first recorded action for a key wins.
func (r *EventRepo) RecordEvent(ctx context.Context, prNumber int, headSHA string, kind model.EventKind, action model.Action) error {
	const query = `
		INSERT OR IGNORE INTO github_events (pr_number, head_sha, event_type, action_taken, processed_at)
		VALUES (?, ?, ?, ?, ?)`

	processedAt := r.now().UTC().Format(timestampLayout)
	if _, err := r.db.Writer.ExecContext(ctx, query, prNumber, headSHA, string(kind), string(action), processedAt); err != nil {
		return fmt.Errorf("record event %s for #%d@%s: %w", kind, prNumber, headSHA, err)
	}
	return nil
}

// CountFixAttempts counts fix pushes for the PR across all of its commits.
func (r *EventRepo) CountFixAttempts(ctx context.Context, prNumber int) (int, error) {
	placeholders, args := fixActionArgs(prNumber)
	query := `SELECT COUNT(*) FROM github_events WHERE pr_number = ? AND action_taken IN (` + placeholders + `)`

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count fix attempts for #%d: %w", prNumber, err)
	}
	return count, nil
}

// GetFixHistory returns the PR's fix pushes, oldest first.
func (r *EventRepo) GetFixHistory(ctx context.Context, prNumber int) ([]model.LedgerEntry, error) {
	placeholders, args := fixActionArgs(prNumber)
	query := selectEntries + ` WHERE pr_number = ? AND action_taken IN (` + placeholders + `)
		ORDER BY processed_at ASC, id ASC`

	return r.queryEntries(ctx, fmt.Sprintf("fix history for #%d", prNumber), query, args...)
}

// ListByPR returns all ledger entries for the PR, oldest first.
func (r *EventRepo) ListByPR(ctx context.Context, prNumber int) ([]model.LedgerEntry, error) {
	query := selectEntries + ` WHERE pr_number = ? ORDER BY processed_at ASC, id ASC`
	return r.queryEntries(ctx, fmt.Sprintf("events for #%d", prNumber), query, prNumber)
}

// ListRecent returns up to limit entries across all PRs, newest first.
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	query := selectEntries + ` ORDER BY processed_at DESC, id DESC LIMIT ?`
	return r.queryEntries(ctx, "recent events", query, limit)
}

const selectEntries = `
	SELECT id, pr_number, head_sha, event_type, action_taken, processed_at
	FROM github_events`

func (r *EventRepo) queryEntries(ctx context.Context, what, query string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		var (
			e           model.LedgerEntry
			kind        string
			action      string
			processedAt string
		)
		if err := rows.Scan(&e.ID, &e.PRNumber, &e.HeadSHA, &kind, &action, &processedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		e.Kind = model.EventKind(kind)
		e.Action = model.Action(action)
		if e.ProcessedAt, err = parseTime(processedAt); err != nil {
			return nil, fmt.Errorf("parse processed_at for entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}

	return entries, nil
}

// fixActionArgs builds the IN (...) placeholder list for fix actions, prefixed by the PR number argument.
func fixActionArgs(prNumber int) (string, []any) {
	args := make([]any, 0, len(model.FixAttemptActions)+1)
	args = append(args, prNumber)
	marks := make([]string, 0, len(model.FixAttemptActions))
	for _, a := range model.FixAttemptActions {
		marks = append(marks, "?")
		args = append(args, string(a))
	}
	return strings.Join(marks, ", "), args
}

// parseTime accepts the timestamp layouts SQLite and this package write.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timestampLayout,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
