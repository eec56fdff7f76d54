// Package application contains the agent's use-case orchestration: the
// scheduling loop, the CI monitor pipeline and its remediation workers.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

// Agent is one poll, triage, act, record pipeline driven by a Loop.
// Act never fails as a whole; per-item failures are part of its results.
type Agent[S, E, R any] interface {
	Poll(ctx context.Context) ([]S, error)
	Triage(ctx context.Context, snapshots []S) ([]E, error)
	Act(ctx context.Context, events []E) []R
	Record(ctx context.Context, results []R) error
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID         string
	Trigger    string // "schedule" or "manual".
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshots  int
	Events     int
	Results    int
	Err        error
}

// Duration returns how long the cycle ran.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// triggerRequest asks the running loop for an immediate cycle.
type triggerRequest struct {
	done chan CycleReport
}

// Loop runs an Agent's cycle on a fixed interval. Cycles never overlap: manual
// triggers are executed by the loop goroutine between scheduled cycles.
type Loop[S, E, R any] struct {
	agent     Agent[S, E, R]
	interval  time.Duration
	maxCycles int
	metrics   *Metrics
	triggerCh chan triggerRequest
	newID     func() string

	mu        sync.RWMutex
	last      *CycleReport
	completed int
}

// NewLoop creates a Loop. maxCycles of 0 runs until the context is canceled.
func NewLoop[S, E, R any](agent Agent[S, E, R], interval time.Duration, maxCycles int, metrics *Metrics) *Loop[S, E, R] {
	return &Loop[S, E, R]{
		agent:     agent,
		interval:  interval,
		maxCycles: maxCycles,
		metrics:   metrics,
		triggerCh: make(chan triggerRequest),
		newID:     uuid.NewString,
	}
}

// RunCycle executes poll, triage, act and record exactly once. Act and record
// are skipped when triage yields no events. A panic anywhere in the cycle is
// recovered and returned as an error.
func (l *Loop[S, E, R]) RunCycle(ctx context.Context) (CycleReport, error) {
	return l.runCycle(ctx, "schedule")
}

func (l *Loop[S, E, R]) runCycle(ctx context.Context, trigger string) (report CycleReport, err error) {
	report = CycleReport{ID: l.newID(), Trigger: trigger, StartedAt: time.Now()}
	log := clog.FromContext(ctx).With("cycle_id", report.ID)
	ctx = clog.WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			log.Error("cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
		report.FinishedAt = time.Now()
		report.Err = err
		l.metrics.observeCycle(report)
		l.store(report)
	}()

	log.Info("cycle started", "trigger", trigger)

	snapshots, err := l.agent.Poll(ctx)
	if err != nil {
		return report, fmt.Errorf("poll: %w", err)
	}
	report.Snapshots = len(snapshots)
	log.Info("cycle polled", "snapshots", report.Snapshots)

	events, err := l.agent.Triage(ctx, snapshots)
	if err != nil {
		return report, fmt.Errorf("triage: %w", err)
	}
	report.Events = len(events)
	log.Info("cycle triaged", "events", report.Events)

	if len(events) == 0 {
		return report, nil
	}

	results := l.agent.Act(ctx, events)
	report.Results = len(results)
	log.Info("cycle acted", "results", report.Results)

	if err := l.agent.Record(ctx, results); err != nil {
		return report, fmt.Errorf("record: %w", err)
	}

	log.Info("cycle complete", "duration", time.Since(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

// Run executes cycles until ctx is canceled or maxCycles scheduled cycles have
// run, sleeping interval between them. Errors are logged and never stop the
// loop. A started cycle always runs to completion, even if ctx is canceled.
func (l *Loop[S, E, R]) Run(ctx context.Context) {
	for n := 1; ; n++ {
		if _, err := l.runCycle(context.WithoutCancel(ctx), "schedule"); err != nil {
			slog.Error("cycle failed", "cycle", n, "error", err)
		}

		if l.maxCycles > 0 && n >= l.maxCycles {
			slog.Info("cycle limit reached", "cycles", n)
			return
		}

		if !l.sleep(ctx) {
			slog.Info("agent loop stopped")
			return
		}
	}
}

// sleep waits for the interval while serving manual triggers. It reports
// false when ctx is canceled.
func (l *Loop[S, E, R]) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case req := <-l.triggerCh:
			report, err := l.runCycle(context.WithoutCancel(ctx), "manual")
			if err != nil {
				slog.Error("manual cycle failed", "error", err)
			}
			req.done <- report
		}
	}
}

// Trigger asks the running loop to execute a cycle now and waits for its
// report. It blocks until the loop is between cycles and returns ctx's error
// if that does not happen in time.
func (l *Loop[S, E, R]) Trigger(ctx context.Context) (CycleReport, error) {
	req := triggerRequest{done: make(chan CycleReport, 1)}

	select {
	case l.triggerCh <- req:
	case <-ctx.Done():
		return CycleReport{}, ctx.Err()
	}

	select {
	case report := <-req.done:
		return report, nil
	case <-ctx.Done():
		return CycleReport{}, ctx.Err()
	}
}

// LastCycle returns the most recent cycle's report and the number of cycles
// completed so far. ok is false before the first cycle finishes.
func (l *Loop[S, E, R]) LastCycle() (report CycleReport, completed int, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.last == nil {
		return CycleReport{}, l.completed, false
	}
	return *l.last, l.completed, true
}

func (l *Loop[S, E, R]) store(report CycleReport) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.last = &report
	l.completed++
}
