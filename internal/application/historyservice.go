package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// CycleSource reports the most recent agent cycle. *Loop satisfies it.
type CycleSource interface {
	LastCycle() (report CycleReport, completed int, ok bool)
}

// AgentStatus is the operational view of the running agent.
type AgentStatus struct {
	CyclesCompleted int
	LastCycle       *CycleReport
	RecentEvents    []model.LedgerEntry
}

// PRHistory is the ledger view of one pull request.
type PRHistory struct {
	Number       int
	Entries      []model.LedgerEntry
	FixAttempts  int
	MaxAttempts  int
	BreakerOpen  bool
	LatestAction model.Action
}

// HistoryService assembles ledger and cycle data into read models for the
// HTTP API and CLI. It depends only on port interfaces.
type HistoryService struct {
	store       driven.EventStore
	cycles      CycleSource
	maxAttempts int
}

// NewHistoryService creates a HistoryService. cycles may be nil when no loop
// is running, as in one-shot CLI commands.
func NewHistoryService(store driven.EventStore, cycles CycleSource, maxAttempts int) *HistoryService {
	return &HistoryService{store: store, cycles: cycles, maxAttempts: maxAttempts}
}

// Status returns the last cycle report and the most recent ledger entries.
func (s *HistoryService) Status(ctx context.Context, recent int) (*AgentStatus, error) {
	entries, err := s.store.ListRecent(ctx, recent)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}

	status := &AgentStatus{RecentEvents: entries}
	if s.cycles != nil {
		if report, completed, ok := s.cycles.LastCycle(); ok {
			status.LastCycle = &report
			status.CyclesCompleted = completed
		}
	}
	return status, nil
}

// Recent returns up to limit ledger entries, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]model.LedgerEntry, error) {
	entries, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return entries, nil
}

// PRHistory returns every ledger entry for a pull request together with its
// circuit breaker state.
func (s *HistoryService) PRHistory(ctx context.Context, prNumber int) (*PRHistory, error) {
	entries, err := s.store.ListByPR(ctx, prNumber)
	if err != nil {
		return nil, fmt.Errorf("list events for #%d: %w", prNumber, err)
	}

	attempts, err := s.store.CountFixAttempts(ctx, prNumber)
	if err != nil {
		return nil, fmt.Errorf("count fix attempts for #%d: %w", prNumber, err)
	}

	h := &PRHistory{
		Number:      prNumber,
		Entries:     entries,
		FixAttempts: attempts,
		MaxAttempts: s.maxAttempts,
		BreakerOpen: s.maxAttempts > 0 && attempts >= s.maxAttempts,
	}
	if len(entries) > 0 {
		h.LatestAction = entries[len(entries)-1].Action
	}
	return h, nil
}
