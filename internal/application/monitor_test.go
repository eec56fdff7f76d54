package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

func TestEventKindFor(t *testing.T) {
	tests := []struct {
		name   string
		snap   model.Snapshot
		want   model.EventKind
		wantOK bool
	}{
		{
			name:   "failing checks",
			snap:   snapshotWith(1, "s", failed(1, "unit-tests")),
			want:   model.EventCIFailure,
			wantOK: true,
		},
		{
			name:   "secret failure",
			snap:   snapshotWith(1, "s", failed(1, "secret-scan")),
			want:   model.EventCIFailure,
			wantOK: true,
		},
		{
			name:   "all pass",
			snap:   snapshotWith(1, "s", passed(1, "unit-tests")),
			want:   model.EventNeedsReview,
			wantOK: true,
		},
		{
			name:   "no checks is all pass",
			snap:   snapshotWith(1, "s"),
			want:   model.EventNeedsReview,
			wantOK: true,
		},
		{
			name:   "pending yields nothing",
			snap:   snapshotWith(1, "s", passed(1, "lint"), running(2, "unit-tests")),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := application.EventKindFor(tt.snap)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventKindFor_PlaceholderBeatsFailingCI(t *testing.T) {
	snap := snapshotWith(1, "s", failed(1, "secret-scan"), failed(2, "unit-tests"))
	snap.Body = model.DescriptionPlaceholder

	kind, ok := application.EventKindFor(snap)

	require.True(t, ok)
	assert.Equal(t, model.EventNeedsDescription, kind)
}

func TestEventKindFor_DescribedBodyIsNotReflagged(t *testing.T) {
	snap := snapshotWith(1, "s", passed(1, "unit-tests"))
	snap.Body = model.DescriptionMarker + "\n\n## Summary\nDone."

	kind, ok := application.EventKindFor(snap)

	require.True(t, ok)
	assert.Equal(t, model.EventNeedsReview, kind)
}

func newMonitor(gh *mockGitHubClient, store *mockEventStore, d *application.Dispatcher) *application.CIMonitor {
	return application.NewCIMonitor(gh, store, d, application.NewRecorder(store, nil), nil)
}

func TestCIMonitor_Triage_Idempotency(t *testing.T) {
	store := &mockEventStore{}
	m := newMonitor(&mockGitHubClient{}, store, nil)
	ctx := context.Background()
	snaps := []model.Snapshot{snapshotWith(5, "abc", failed(1, "unit-tests"))}

	// Replaying without a recorded outcome re-emits the event.
	for range 2 {
		events, err := m.Triage(ctx, snaps)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventCIFailure, events[0].Kind)
		assert.Equal(t, "abc", events[0].HeadSHA)
		assert.Equal(t, 5, events[0].Snapshot.Number)
	}

	require.NoError(t, store.RecordEvent(ctx, 5, "abc", model.EventCIFailure, model.ActionAIFixPushed))

	events, err := m.Triage(ctx, snaps)
	require.NoError(t, err)
	assert.Empty(t, events)

	// A new head commit is evaluated fresh.
	events, err = m.Triage(ctx, []model.Snapshot{snapshotWith(5, "def", failed(1, "unit-tests"))})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCIMonitor_Triage_LedgerErrorSkipsPR(t *testing.T) {
	store := &mockEventStore{lookupErr: errors.New("database is locked")}
	m := newMonitor(&mockGitHubClient{}, store, nil)

	events, err := m.Triage(context.Background(), []model.Snapshot{snapshotWith(1, "a", failed(1, "unit-tests"))})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCIMonitor_Poll(t *testing.T) {
	gh := &mockGitHubClient{
		listOpenPRs: func(context.Context) ([]model.PullRequest, error) {
			return []model.PullRequest{
				{Number: 1, HeadSHA: "sha1"},
				{Number: 2, HeadSHA: "sha2"},
				{Number: 3, HeadSHA: "sha3"},
			}, nil
		},
		getCheckRuns: func(_ context.Context, sha string) ([]model.CheckRun, error) {
			if sha == "sha2" {
				return nil, errors.New("502 bad gateway")
			}
			return []model.CheckRun{passed(1, "test-"+sha)}, nil
		},
	}
	m := newMonitor(gh, &mockEventStore{}, nil)

	snaps, err := m.Poll(context.Background())

	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Number)
	assert.Equal(t, "test-sha1", snaps[0].CheckRuns[0].Name)
	assert.Equal(t, 3, snaps[1].Number)
}

func TestCIMonitor_Poll_ListFailureFailsCycle(t *testing.T) {
	gh := &mockGitHubClient{
		listOpenPRs: func(context.Context) ([]model.PullRequest, error) {
			return nil, &model.APIError{Op: "list pull requests", StatusCode: 500, Err: errors.New("boom")}
		},
	}
	m := newMonitor(gh, &mockEventStore{}, nil)

	_, err := m.Poll(context.Background())

	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

// TestCIMonitor_FullCycle runs the monitor through a Loop cycle: a secret
// failure is alerted on and recorded, and the next cycle does nothing.
func TestCIMonitor_FullCycle(t *testing.T) {
	ctx := context.Background()
	gh := &mockGitHubClient{
		listOpenPRs: func(context.Context) ([]model.PullRequest, error) {
			return []model.PullRequest{{Number: 12, HeadSHA: "cafe", Branch: "feature"}}, nil
		},
		getCheckRuns: func(context.Context, string) ([]model.CheckRun, error) {
			return []model.CheckRun{failed(1, "secret-scan")}, nil
		},
	}
	writer := newMockWriter()
	store := &mockEventStore{}
	wc := &mockWorkingCopy{dir: t.TempDir()}
	fixer := application.NewCIFixer(gh, writer, store, wc, &mockFormatter{}, &mockCompleter{}, application.FixerConfig{MaxAttempts: 3})
	dispatcher := application.NewDispatcher(&stubWorker{}, fixer, &stubWorker{}, nil)
	loop := application.NewCILoop(newMonitor(gh, store, dispatcher), 0, 0, nil)

	report, err := loop.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Snapshots)
	assert.Equal(t, 1, report.Events)
	assert.Equal(t, 1, report.Results)

	entries, _ := store.ListByPR(ctx, 12)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSecretAlertPosted, entries[0].Action)
	assert.Len(t, writer.comments[12], 1)
	assert.Empty(t, wc.ops)

	report, err = loop.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Events)
	assert.Len(t, writer.comments[12], 1)
}
