package application

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// checkFetchConcurrency bounds parallel check-run requests per cycle.
const checkFetchConcurrency = 4

// CIMonitor is the CI remediation Agent: it snapshots open pull requests,
// turns them into deduplicated events, dispatches them and records outcomes.
type CIMonitor struct {
	gh         driven.GitHubClient
	store      driven.EventStore
	dispatcher *Dispatcher
	recorder   *Recorder
	metrics    *Metrics
}

// Compile-time interface satisfaction check.
var _ Agent[model.Snapshot, model.Event, model.WorkerResult] = (*CIMonitor)(nil)

// NewCIMonitor creates a CIMonitor.
func NewCIMonitor(
	gh driven.GitHubClient,
	store driven.EventStore,
	dispatcher *Dispatcher,
	recorder *Recorder,
	metrics *Metrics,
) *CIMonitor {
	return &CIMonitor{gh: gh, store: store, dispatcher: dispatcher, recorder: recorder, metrics: metrics}
}

// Poll lists open pull requests and fetches each head commit's check runs in
// parallel. A PR whose checks cannot be fetched is skipped for this cycle.
func (m *CIMonitor) Poll(ctx context.Context) ([]model.Snapshot, error) {
	prs, err := m.gh.ListOpenPRs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open PRs: %w", err)
	}

	snapshots := make([]*model.Snapshot, len(prs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkFetchConcurrency)

	for i, pr := range prs {
		g.Go(func() error {
			runs, err := m.gh.GetCheckRuns(gctx, pr.HeadSHA)
			if err != nil {
				clog.FromContext(ctx).Warn("check runs fetch failed, skipping PR", "pr", pr.Number, "error", err)
				return nil
			}
			snapshots[i] = &model.Snapshot{PullRequest: pr, CheckRuns: runs}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.Snapshot, 0, len(prs))
	for _, s := range snapshots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// EventKindFor maps a snapshot to at most one event kind. A placeholder body
// takes priority over CI state; pending CI yields no event.
func EventKindFor(s model.Snapshot) (model.EventKind, bool) {
	if s.NeedsDescription() {
		return model.EventNeedsDescription, true
	}

	state := s.CIState()
	switch {
	case state.IsFailure():
		return model.EventCIFailure, true
	case state == model.CIStateAllPass:
		return model.EventNeedsReview, true
	default:
		return "", false
	}
}

// Triage emits one event per snapshot that needs action and has not already
// been handled for its head commit. A ledger lookup failure skips the PR for
// this cycle rather than risking a duplicate remediation.
func (m *CIMonitor) Triage(ctx context.Context, snapshots []model.Snapshot) ([]model.Event, error) {
	var events []model.Event

	for _, s := range snapshots {
		kind, ok := EventKindFor(s)
		if !ok {
			continue
		}

		log := clog.FromContext(ctx).With("pr", s.Number, "kind", kind)

		processed, err := m.store.IsEventProcessed(ctx, s.Number, s.HeadSHA, kind)
		if err != nil {
			log.Error("ledger lookup failed, skipping PR", "error", err)
			continue
		}
		if processed {
			log.Debug("event already processed")
			continue
		}

		m.metrics.observeEvent(kind)
		events = append(events, model.NewEvent(s, kind))
	}

	return events, nil
}

// Act dispatches events one at a time.
func (m *CIMonitor) Act(ctx context.Context, events []model.Event) []model.WorkerResult {
	results := make([]model.WorkerResult, 0, len(events))
	for _, ev := range events {
		results = append(results, m.dispatcher.Dispatch(ctx, ev))
	}
	return results
}

// Record hands results to the Recorder.
func (m *CIMonitor) Record(ctx context.Context, results []model.WorkerResult) error {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	clog.FromContext(ctx).Debug("recording results", "results", len(results), "succeeded", succeeded)

	return m.recorder.Record(ctx, results)
}

// CILoop is the scheduling loop instantiated for the CI monitor.
type CILoop = Loop[model.Snapshot, model.Event, model.WorkerResult]

// NewCILoop wraps the monitor in a scheduling loop.
func NewCILoop(m *CIMonitor, interval time.Duration, maxCycles int, metrics *Metrics) *CILoop {
	return NewLoop[model.Snapshot, model.Event, model.WorkerResult](m, interval, maxCycles, metrics)
}
