package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// stubWorker returns a fixed outcome or runs a function.
type stubWorker struct {
	outcome model.Outcome
	handle  func(ev model.Event) model.Outcome
	calls   []model.Event
}

func (s *stubWorker) Handle(_ context.Context, ev model.Event) model.Outcome {
	s.calls = append(s.calls, ev)
	if s.handle != nil {
		return s.handle(ev)
	}
	if s.outcome == nil {
		return model.Completed{Did: "stub"}
	}
	return s.outcome
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	describer := &stubWorker{outcome: model.Completed{Did: model.ActionDescriptionGenerated}}
	fixer := &stubWorker{outcome: model.Declined{Did: model.ActionNoFixFound}}
	reviewer := &stubWorker{outcome: model.Completed{Did: model.ActionReviewPosted}}
	d := application.NewDispatcher(describer, fixer, reviewer, nil)
	snap := snapshotWith(1, "sha")

	tests := []struct {
		kind   model.EventKind
		action model.Action
	}{
		{model.EventNeedsDescription, model.ActionDescriptionGenerated},
		{model.EventCIFailure, model.ActionNoFixFound},
		{model.EventNeedsReview, model.ActionReviewPosted},
	}
	for _, tt := range tests {
		result := d.Dispatch(context.Background(), model.NewEvent(snap, tt.kind))
		assert.Equal(t, tt.action, result.Action)
		assert.True(t, result.Success)
		assert.Equal(t, tt.kind, result.Kind)
		assert.Equal(t, 1, result.PRNumber)
		assert.Equal(t, "sha", result.HeadSHA)
	}

	assert.Len(t, describer.calls, 1)
	assert.Len(t, fixer.calls, 1)
	assert.Len(t, reviewer.calls, 1)
}

func TestDispatcher_EveryKindHasAWorker(t *testing.T) {
	w := &stubWorker{}
	d := application.NewDispatcher(w, w, w, nil)

	for _, kind := range model.EventKinds {
		result := d.Dispatch(context.Background(), model.NewEvent(snapshotWith(1, "s"), kind))
		assert.NotEqual(t, model.ActionUnknownEvent, result.Action, kind)
	}
}

func TestDispatcher_PanicBecomesException(t *testing.T) {
	boom := &stubWorker{handle: func(model.Event) model.Outcome { panic("nil map write") }}
	reg := prometheus.NewRegistry()
	d := application.NewDispatcher(boom, boom, boom, application.NewMetrics(reg))

	result := d.Dispatch(context.Background(), model.NewEvent(snapshotWith(4, "s"), model.EventCIFailure))

	assert.False(t, result.Success)
	assert.Equal(t, model.ActionException, result.Action)
	assert.Contains(t, result.Error, "nil map write")
	assert.Equal(t, model.EventCIFailure, result.Kind)
	assert.Equal(t, 4, result.PRNumber)

	count, err := testutil.GatherAndCount(reg, "elvagent_worker_results_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDispatcher_UnknownKind(t *testing.T) {
	w := &stubWorker{}
	d := application.NewDispatcher(w, w, w, nil)

	result := d.Dispatch(context.Background(), model.NewEvent(snapshotWith(1, "s"), "needs_coffee"))

	assert.False(t, result.Success)
	assert.Equal(t, model.ActionUnknownEvent, result.Action)
	assert.Empty(t, w.calls)
}

func TestDispatcher_FailedOutcome(t *testing.T) {
	w := &stubWorker{outcome: model.Failed{Did: model.ActionGitError, Err: errors.New("git push: exit 1")}}
	d := application.NewDispatcher(w, w, w, nil)

	result := d.Dispatch(context.Background(), model.NewEvent(snapshotWith(1, "s"), model.EventCIFailure))

	assert.False(t, result.Success)
	assert.Equal(t, model.ActionGitError, result.Action)
	assert.Equal(t, "git push: exit 1", result.Error)
}
