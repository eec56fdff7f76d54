package application

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// Dispatcher routes each event to the worker for its kind.
type Dispatcher struct {
	describer Worker
	fixer     Worker
	reviewer  Worker
	metrics   *Metrics
}

// NewDispatcher creates a Dispatcher over the three workers.
func NewDispatcher(describer, fixer, reviewer Worker, metrics *Metrics) *Dispatcher {
	return &Dispatcher{describer: describer, fixer: fixer, reviewer: reviewer, metrics: metrics}
}

func (d *Dispatcher) workerFor(kind model.EventKind) Worker {
	switch kind {
	case model.EventNeedsDescription:
		return d.describer
	case model.EventCIFailure:
		return d.fixer
	case model.EventNeedsReview:
		return d.reviewer
	default:
		return nil
	}
}

// Dispatch runs the event's worker and converts its outcome into a
// WorkerResult. A panicking worker yields a failed "exception" result.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) (result model.WorkerResult) {
	log := clog.FromContext(ctx).With("pr", ev.PRNumber, "kind", ev.Kind, "sha", shortSHA(ev.HeadSHA))
	ctx = clog.WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panicked", "panic", r, "stack", string(debug.Stack()))
			result = model.ResultFor(ev, model.Failed{Did: model.ActionException, Err: fmt.Errorf("worker panic: %v", r)})
		}
		d.metrics.observeResult(result)
	}()

	w := d.workerFor(ev.Kind)
	if w == nil {
		log.Error("no worker for event kind")
		return model.ResultFor(ev, model.Failed{Did: model.ActionUnknownEvent, Err: fmt.Errorf("no worker for event kind %q", ev.Kind)})
	}

	outcome := w.Handle(ctx, ev)
	result = model.ResultFor(ev, outcome)

	switch o := outcome.(type) {
	case model.Completed:
		log.Info("worker completed", "action", o.Did)
	case model.Declined:
		log.Info("worker declined", "action", o.Did, "reason", o.Reason)
	case model.Failed:
		log.Error("worker failed", "action", o.Did, "error", o.Err)
	}
	return result
}
