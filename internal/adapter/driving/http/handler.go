// Package httphandler is the HTTP driving adapter: a read-only status and
// ledger API, an HTML fix report, a manual cycle trigger and Prometheus
// metrics.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/elvagent/internal/application"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
	statusEventLimit  = 10

	// triggerTimeout bounds how long a manual trigger waits for the loop to
	// finish its current cycle and then run the requested one.
	triggerTimeout = 15 * time.Minute
)

// CycleTrigger runs an agent cycle on demand.
type CycleTrigger interface {
	Trigger(ctx context.Context) (application.CycleReport, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	history  *application.HistoryService
	trigger  CycleTrigger
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHandler creates a Handler. trigger may be nil, in which case manual
// cycles are rejected; gatherer may be nil to disable /metrics.
func NewHandler(
	history *application.HistoryService,
	trigger CycleTrigger,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		history:  history,
		trigger:  trigger,
		gatherer: gatherer,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/events", h.ListEvents)
	mux.HandleFunc("GET /api/v1/prs/{number}/events", h.GetPRHistory)
	mux.HandleFunc("POST /api/v1/cycles", h.TriggerCycle)
	mux.HandleFunc("GET /prs/{number}/report", h.PRReport)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// Recovery sits inside the request logger so a recovered panic is still
	// logged with its 500 status and request ID.
	return requestLogger(logger, recoverPanics(mux))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status returns the last cycle report and the most recent ledger entries.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.history.Status(r.Context(), statusEventLimit)
	if err != nil {
		h.logger.Error("failed to load status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

// ListEvents returns the newest ledger entries, bounded by the limit query
// parameter.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponses(entries))
}

// GetPRHistory returns every ledger entry for one pull request with its
// circuit breaker state.
func (h *Handler) GetPRHistory(w http.ResponseWriter, r *http.Request) {
	number, ok := prNumber(w, r)
	if !ok {
		return
	}

	history, err := h.history.PRHistory(r.Context(), number)
	if err != nil {
		h.logger.Error("failed to load PR history", "number", number, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toPRHistoryResponse(history))
}

// PRReport renders a pull request's history as an HTML page.
func (h *Handler) PRReport(w http.ResponseWriter, r *http.Request) {
	number, ok := prNumber(w, r)
	if !ok {
		return
	}

	history, err := h.history.PRHistory(r.Context(), number)
	if err != nil {
		h.logger.Error("failed to load PR history", "number", number, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	page, err := renderReport(history)
	if err != nil {
		h.logger.Error("failed to render report", "number", number, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// TriggerCycle asks the running loop for an immediate cycle and returns its
// report once it completes.
func (h *Handler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "agent loop is not running")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), triggerTimeout)
	defer cancel()

	report, err := h.trigger.Trigger(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "timed out waiting for cycle")
			return
		}
		h.logger.Error("manual cycle trigger failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "cycle trigger canceled")
		return
	}

	writeJSON(w, http.StatusOK, toCycleResponse(report))
}

// prNumber parses the {number} path value, writing a 400 on failure.
func prNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return 0, false
	}
	return number, true
}
