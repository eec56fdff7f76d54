package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

func TestEventRepo_RecordAndIsProcessed(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	processed, err := repo.IsEventProcessed(ctx, 7, "abc123", model.EventCIFailure)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, repo.RecordEvent(ctx, 7, "abc123", model.EventCIFailure, model.ActionRuffFixPushed))

	processed, err = repo.IsEventProcessed(ctx, 7, "abc123", model.EventCIFailure)
	require.NoError(t, err)
	assert.True(t, processed)

	// Same PR and SHA, different kind, is a separate key.
	processed, err = repo.IsEventProcessed(ctx, 7, "abc123", model.EventNeedsReview)
	require.NoError(t, err)
	assert.False(t, processed)

	processed, err = repo.IsEventProcessed(ctx, 7, "def456", model.EventCIFailure)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestEventRepo_RecordEvent_DuplicateKeepsFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, 3, "sha1", model.EventNeedsReview, model.ActionReviewPosted))
	require.NoError(t, repo.RecordEvent(ctx, 3, "sha1", model.EventNeedsReview, model.ActionAlreadyReviewed))

	entries, err := repo.ListByPR(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionReviewPosted, entries[0].Action)
	assert.Equal(t, model.EventNeedsReview, entries[0].Kind)
	assert.Equal(t, "sha1", entries[0].HeadSHA)
	assert.False(t, entries[0].ProcessedAt.IsZero())
}

func TestEventRepo_CountFixAttempts(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	count, err := repo.CountFixAttempts(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.RecordEvent(ctx, 9, "sha1", model.EventCIFailure, model.ActionRuffFixPushed))
	require.NoError(t, repo.RecordEvent(ctx, 9, "sha2", model.EventCIFailure, model.ActionAIFixPushed))
	require.NoError(t, repo.RecordEvent(ctx, 9, "sha3", model.EventCIFailure, model.ActionNoFixFound))
	require.NoError(t, repo.RecordEvent(ctx, 9, "sha3", model.EventNeedsReview, model.ActionReviewPosted))
	require.NoError(t, repo.RecordEvent(ctx, 10, "other", model.EventCIFailure, model.ActionAIFixPushed))

	count, err = repo.CountFixAttempts(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEventRepo_GetFixHistory_OrderedOldestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, 4, "first", model.EventCIFailure, model.ActionRuffFixPushed))
	require.NoError(t, repo.RecordEvent(ctx, 4, "second", model.EventCIFailure, model.ActionSecretAlertPosted))
	require.NoError(t, repo.RecordEvent(ctx, 4, "third", model.EventCIFailure, model.ActionAIFixPushed))

	history, err := repo.GetFixHistory(ctx, 4)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].HeadSHA)
	assert.Equal(t, model.ActionRuffFixPushed, history[0].Action)
	assert.Equal(t, "third", history[1].HeadSHA)
	assert.True(t, history[0].ProcessedAt.Before(history[1].ProcessedAt))
}

func TestEventRepo_SubSecondOrdering(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// A whole second followed by a fraction of the same second.
	base := time.Date(2026, 3, 1, 12, 0, 35, 0, time.UTC)
	stamps := []time.Time{base, base.Add(500 * time.Millisecond), base.Add(time.Second)}
	repo.now = func() time.Time {
		next := stamps[0]
		stamps = stamps[1:]
		return next
	}

	require.NoError(t, repo.RecordEvent(ctx, 5, "whole", model.EventCIFailure, model.ActionRuffFixPushed))
	require.NoError(t, repo.RecordEvent(ctx, 5, "half", model.EventCIFailure, model.ActionAIFixPushed))
	require.NoError(t, repo.RecordEvent(ctx, 5, "next", model.EventCIFailure, model.ActionAIFixPushed))

	// Rewrite ids in reverse so only processed_at can produce the right order.
	_, err := repo.db.Writer.ExecContext(ctx, `UPDATE github_events SET id = 100 - id`)
	require.NoError(t, err)

	history, err := repo.GetFixHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "whole", history[0].HeadSHA)
	assert.Equal(t, "half", history[1].HeadSHA)
	assert.Equal(t, "next", history[2].HeadSHA)
	assert.True(t, base.Equal(history[0].ProcessedAt))

	recent, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "next", recent[0].HeadSHA)
	assert.Equal(t, "half", recent[1].HeadSHA)

	var stored string
	require.NoError(t, repo.db.Reader.QueryRowContext(ctx,
		`SELECT processed_at FROM github_events WHERE head_sha = 'whole'`).Scan(&stored))
	assert.Equal(t, "2026-03-01T12:00:35.000000000Z", stored)
}

func TestNewDB_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "elvagent", "elvagent.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

func TestEventRepo_GetFixHistory_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	history, err := repo.GetFixHistory(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEventRepo_ListRecent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordEvent(ctx, 1, "a", model.EventNeedsDescription, model.ActionDescriptionGenerated))
	require.NoError(t, repo.RecordEvent(ctx, 2, "b", model.EventNeedsReview, model.ActionReviewPosted))
	require.NoError(t, repo.RecordEvent(ctx, 3, "c", model.EventCIFailure, model.ActionAIFixPushed))

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].PRNumber)
	assert.Equal(t, 2, recent[1].PRNumber)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRunMigrations_DirtySchema(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Writer.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)

	_, err = RunMigrations(db.Writer)
	require.ErrorIs(t, err, ErrDirtySchema)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "rfc3339 nano", input: "2026-03-01T12:00:01.123456789Z"},
		{name: "sqlite strftime", input: "2026-03-01T12:00:01.123Z"},
		{name: "sqlite datetime", input: "2026-03-01 12:00:01"},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTime(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2026, got.Year())
		})
	}
}
