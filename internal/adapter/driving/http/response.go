package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CycleResponse is the JSON representation of one agent cycle.
type CycleResponse struct {
	ID         string `json:"id"`
	Trigger    string `json:"trigger"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
	Snapshots  int    `json:"snapshots"`
	Events     int    `json:"events"`
	Results    int    `json:"results"`
	Error      string `json:"error,omitempty"`
}

// EventResponse is the JSON representation of a ledger entry.
type EventResponse struct {
	ID          int64  `json:"id"`
	PRNumber    int    `json:"pr_number"`
	HeadSHA     string `json:"head_sha"`
	EventType   string `json:"event_type"`
	ActionTaken string `json:"action_taken"`
	ProcessedAt string `json:"processed_at"`
}

// StatusResponse is the JSON representation of the agent status endpoint.
type StatusResponse struct {
	CyclesCompleted int             `json:"cycles_completed"`
	LastCycle       *CycleResponse  `json:"last_cycle"`
	RecentEvents    []EventResponse `json:"recent_events"`
}

// PRHistoryResponse is the ledger view of a single pull request.
type PRHistoryResponse struct {
	Number       int             `json:"number"`
	FixAttempts  int             `json:"fix_attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	BreakerOpen  bool            `json:"breaker_open"`
	LatestAction string          `json:"latest_action,omitempty"`
	Events       []EventResponse `json:"events"`
}

func toCycleResponse(r application.CycleReport) CycleResponse {
	resp := CycleResponse{
		ID:         r.ID,
		Trigger:    r.Trigger,
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
		DurationMS: r.Duration().Milliseconds(),
		Snapshots:  r.Snapshots,
		Events:     r.Events,
		Results:    r.Results,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func toEventResponse(e model.LedgerEntry) EventResponse {
	return EventResponse{
		ID:          e.ID,
		PRNumber:    e.PRNumber,
		HeadSHA:     e.HeadSHA,
		EventType:   string(e.Kind),
		ActionTaken: string(e.Action),
		ProcessedAt: e.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

func toEventResponses(entries []model.LedgerEntry) []EventResponse {
	resp := make([]EventResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEventResponse(e))
	}
	return resp
}

func toStatusResponse(s *application.AgentStatus) StatusResponse {
	resp := StatusResponse{
		CyclesCompleted: s.CyclesCompleted,
		RecentEvents:    toEventResponses(s.RecentEvents),
	}
	if s.LastCycle != nil {
		c := toCycleResponse(*s.LastCycle)
		resp.LastCycle = &c
	}
	return resp
}

func toPRHistoryResponse(h *application.PRHistory) PRHistoryResponse {
	return PRHistoryResponse{
		Number:       h.Number,
		FixAttempts:  h.FixAttempts,
		MaxAttempts:  h.MaxAttempts,
		BreakerOpen:  h.BreakerOpen,
		LatestAction: string(h.LatestAction),
		Events:       toEventResponses(h.Entries),
	}
}
