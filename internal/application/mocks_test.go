package application_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	listOpenPRs     func(ctx context.Context) ([]model.PullRequest, error)
	getCheckRuns    func(ctx context.Context, sha string) ([]model.CheckRun, error)
	listAnnotations func(ctx context.Context, checkRunID int64) ([]model.Annotation, error)
	getRunLogs      func(ctx context.Context, runID int64) ([]byte, error)
	listReviews     func(ctx context.Context, prNumber int) ([]model.Review, error)
}

func (m *mockGitHubClient) ListOpenPRs(ctx context.Context) ([]model.PullRequest, error) {
	if m.listOpenPRs == nil {
		return nil, nil
	}
	return m.listOpenPRs(ctx)
}

func (m *mockGitHubClient) GetCheckRuns(ctx context.Context, sha string) ([]model.CheckRun, error) {
	if m.getCheckRuns == nil {
		return nil, nil
	}
	return m.getCheckRuns(ctx, sha)
}

func (m *mockGitHubClient) ListCheckAnnotations(ctx context.Context, checkRunID int64) ([]model.Annotation, error) {
	if m.listAnnotations == nil {
		return nil, nil
	}
	return m.listAnnotations(ctx, checkRunID)
}

func (m *mockGitHubClient) GetWorkflowRunLogs(ctx context.Context, runID int64) ([]byte, error) {
	if m.getRunLogs == nil {
		return nil, fmt.Errorf("no logs")
	}
	return m.getRunLogs(ctx, runID)
}

func (m *mockGitHubClient) ListPRReviews(ctx context.Context, prNumber int) ([]model.Review, error) {
	if m.listReviews == nil {
		return nil, nil
	}
	return m.listReviews(ctx, prNumber)
}

type reviewCall struct {
	PRNumber int
	Body     string
	Verdict  model.ReviewVerdict
}

type mockWriter struct {
	mu         sync.Mutex
	comments   map[int][]string
	bodies     map[int]string
	reviews    []reviewCall
	commentErr error
	bodyErr    error
	reviewErr  error
}

func newMockWriter() *mockWriter {
	return &mockWriter{comments: map[int][]string{}, bodies: map[int]string{}}
}

func (m *mockWriter) UpdatePRBody(_ context.Context, prNumber int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bodyErr != nil {
		return m.bodyErr
	}
	m.bodies[prNumber] = body
	return nil
}

func (m *mockWriter) PostPRComment(_ context.Context, prNumber int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commentErr != nil {
		return m.commentErr
	}
	m.comments[prNumber] = append(m.comments[prNumber], body)
	return nil
}

func (m *mockWriter) CreatePRReview(_ context.Context, prNumber int, body string, verdict model.ReviewVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviewErr != nil {
		return m.reviewErr
	}
	m.reviews = append(m.reviews, reviewCall{PRNumber: prNumber, Body: body, Verdict: verdict})
	return nil
}

func (m *mockWriter) CreatePullRequest(_ context.Context, _ model.NewPullRequest) (int, error) {
	return 0, nil
}

type ledgerKey struct {
	pr   int
	sha  string
	kind model.EventKind
}

// mockEventStore is an in-memory ledger with injectable failures.
type mockEventStore struct {
	mu        sync.Mutex
	entries   []model.LedgerEntry
	lookupErr error
	recordErr error
	countErr  error
}

func (m *mockEventStore) IsEventProcessed(_ context.Context, prNumber int, headSHA string, kind model.EventKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	for _, e := range m.entries {
		if (ledgerKey{e.PRNumber, e.HeadSHA, e.Kind}) == (ledgerKey{prNumber, headSHA, kind}) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEventStore) RecordEvent(_ context.Context, prNumber int, headSHA string, kind model.EventKind, action model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.entries = append(m.entries, model.LedgerEntry{
		ID:       int64(len(m.entries) + 1),
		PRNumber: prNumber,
		HeadSHA:  headSHA,
		Kind:     kind,
		Action:   action,
	})
	return nil
}

func (m *mockEventStore) CountFixAttempts(ctx context.Context, prNumber int) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	history, _ := m.GetFixHistory(ctx, prNumber)
	return len(history), nil
}

func (m *mockEventStore) GetFixHistory(_ context.Context, prNumber int) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range m.entries {
		if e.PRNumber != prNumber {
			continue
		}
		for _, a := range model.FixAttemptActions {
			if e.Action == a {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *mockEventStore) ListByPR(_ context.Context, prNumber int) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range m.entries {
		if e.PRNumber == prNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEventStore) ListRecent(_ context.Context, limit int) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LedgerEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

type mockCompleter struct {
	reply    string
	err      error
	requests []model.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req model.CompletionRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.reply, m.err
}

// mockWorkingCopy records the git operations performed on it.
type mockWorkingCopy struct {
	dir        string
	ops        []string
	hasChanges func() bool
	errs       map[string]error
	commitSHA  string
	// remoteHook, when set, runs inside Fetch and Push with their context.
	remoteHook func(ctx context.Context, op string) error
}

func (m *mockWorkingCopy) op(name string) error {
	m.ops = append(m.ops, name)
	if err := m.errs[name]; err != nil {
		return err
	}
	return nil
}

func (m *mockWorkingCopy) Dir() string { return m.dir }

func (m *mockWorkingCopy) Checkout(_ context.Context, _ string) error  { return m.op("checkout") }
func (m *mockWorkingCopy) HardReset(_ context.Context, _ string) error { return m.op("reset") }
func (m *mockWorkingCopy) StageAll(_ context.Context) error            { return m.op("add") }

func (m *mockWorkingCopy) Fetch(ctx context.Context, _ string) error { return m.remote(ctx, "fetch") }
func (m *mockWorkingCopy) Push(ctx context.Context, _ string) error  { return m.remote(ctx, "push") }

func (m *mockWorkingCopy) remote(ctx context.Context, name string) error {
	if err := m.op(name); err != nil {
		return err
	}
	if m.remoteHook != nil {
		return m.remoteHook(ctx, name)
	}
	return nil
}

func (m *mockWorkingCopy) HasChanges(_ context.Context) (bool, error) {
	if err := m.op("status"); err != nil {
		return false, err
	}
	if m.hasChanges == nil {
		return false, nil
	}
	return m.hasChanges(), nil
}

func (m *mockWorkingCopy) Commit(_ context.Context, message string) (string, error) {
	m.ops = append(m.ops, "commit:"+message)
	if err := m.errs["commit"]; err != nil {
		return "", err
	}
	if m.commitSHA == "" {
		return "deadbeef", nil
	}
	return m.commitSHA, nil
}

type mockFormatter struct {
	calls int
	fixFn func(dir string) error
}

func (m *mockFormatter) Fix(_ context.Context, dir string) error {
	m.calls++
	if m.fixFn == nil {
		return nil
	}
	return m.fixFn(dir)
}

// --- Fixtures ---

func snapshotWith(number int, sha string, runs ...model.CheckRun) model.Snapshot {
	return model.Snapshot{
		PullRequest: model.PullRequest{
			Number:  number,
			Title:   "Add feature",
			Body:    "Adds a feature.",
			Author:  "octocat",
			Branch:  "feature/x",
			HeadSHA: sha,
		},
		CheckRuns: runs,
	}
}

func failed(id int64, name string) model.CheckRun {
	return model.CheckRun{
		ID:         id,
		Name:       name,
		Status:     "completed",
		Conclusion: "failure",
		DetailsURL: fmt.Sprintf("https://github.com/o/r/actions/runs/%d/job/1", 1000+id),
	}
}

func passed(id int64, name string) model.CheckRun {
	return model.CheckRun{ID: id, Name: name, Status: "completed", Conclusion: "success"}
}

func running(id int64, name string) model.CheckRun {
	return model.CheckRun{ID: id, Name: name, Status: "in_progress"}
}
