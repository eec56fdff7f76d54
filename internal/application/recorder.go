package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Recorder writes successful worker results to the idempotency ledger.
// Failed results are only logged so the next cycle retries them.
type Recorder struct {
	store   driven.EventStore
	metrics *Metrics
}

// NewRecorder creates a Recorder.
func NewRecorder(store driven.EventStore, metrics *Metrics) *Recorder {
	return &Recorder{store: store, metrics: metrics}
}

// Record persists every successful result. All results are attempted; the
// returned error joins any write failures.
func (r *Recorder) Record(ctx context.Context, results []model.WorkerResult) error {
	var errs []error

	for _, res := range results {
		log := clog.FromContext(ctx).With("pr", res.PRNumber, "kind", res.Kind, "action", res.Action)

		if !res.Success {
			log.Warn("worker result not recorded", "error", res.Error)
			continue
		}

		err := r.store.RecordEvent(ctx, res.PRNumber, res.HeadSHA, res.Kind, res.Action)
		r.metrics.observeLedgerWrite(err)
		if err != nil {
			log.Error("ledger write failed", "error", err)
			errs = append(errs, fmt.Errorf("record #%d %s: %w", res.PRNumber, res.Kind, err))
			continue
		}
		log.Info("github event recorded")
	}

	return errors.Join(errs...)
}
