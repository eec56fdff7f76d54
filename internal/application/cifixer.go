package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// FixerConfig configures the CI fixer.
type FixerConfig struct {
	MaxAttempts int
	GitTimeout  time.Duration // Per fetch or push; zero means unbounded.
	LLM         LLMSettings
	Limits      InvestigationLimits
}

// CIFixer remediates ci_failure events through escalating tiers: an alert for
// secret-scanning failures, a circuit breaker, a deterministic formatter pass
// for lint failures and a model-guided patch for everything else.
type CIFixer struct {
	writer       driven.GitHubWriter
	store        driven.EventStore
	wc           driven.WorkingCopy
	formatter    driven.Formatter
	llm          driven.Completer
	investigator *Investigator
	cfg          FixerConfig

	// mu serializes use of the shared working copy.
	mu sync.Mutex
}

// NewCIFixer creates a CIFixer operating on the given working copy.
func NewCIFixer(
	gh driven.GitHubClient,
	writer driven.GitHubWriter,
	store driven.EventStore,
	wc driven.WorkingCopy,
	formatter driven.Formatter,
	llm driven.Completer,
	cfg FixerConfig,
) *CIFixer {
	return &CIFixer{
		writer:       writer,
		store:        store,
		wc:           wc,
		formatter:    formatter,
		llm:          llm,
		investigator: NewInvestigator(gh, wc.Dir(), cfg.Limits),
		cfg:          cfg,
	}
}

// Handle runs the tiered fix strategy for one ci_failure event.
func (f *CIFixer) Handle(ctx context.Context, ev model.Event) model.Outcome {
	snap := ev.Snapshot
	state := snap.CIState()
	log := clog.FromContext(ctx).With("ci_state", state)

	if state == model.CIStateSecretFail {
		if err := f.writer.PostPRComment(ctx, snap.Number, SecretAlertComment); err != nil {
			return failure(fmt.Errorf("post secret alert: %w", err))
		}
		log.Warn("secret scanning failure, alert posted")
		return model.Declined{Did: model.ActionSecretAlertPosted, Reason: "secret scanning failure"}
	}

	if !state.IsFailure() {
		return model.Declined{Did: model.ActionNoChangesNeeded, Reason: fmt.Sprintf("ci state is %s", state)}
	}

	attempts, err := f.store.CountFixAttempts(ctx, snap.Number)
	if err != nil {
		return failure(fmt.Errorf("count fix attempts: %w", err))
	}
	if attempts >= f.cfg.MaxAttempts {
		if err := f.writer.PostPRComment(ctx, snap.Number, CircuitBreakerComment(f.cfg.MaxAttempts)); err != nil {
			return failure(fmt.Errorf("post circuit breaker comment: %w", err))
		}
		log.Warn("circuit breaker triggered", "attempts", attempts, "max", f.cfg.MaxAttempts)
		return model.Declined{Did: model.ActionCircuitBreakerTriggered, Reason: fmt.Sprintf("%d fix attempts", attempts)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.sync(ctx, snap.Branch); err != nil {
		return failure(err)
	}

	if state == model.CIStateLintFail {
		pushed, err := f.formatterTier(ctx, snap)
		if err != nil {
			return failure(err)
		}
		if pushed {
			return model.Completed{Did: model.ActionRuffFixPushed}
		}
		log.Info("formatter produced no changes, escalating")
	}

	return f.patchTier(ctx, snap)
}

// sync forces the working copy to match the remote branch head.
func (f *CIFixer) sync(ctx context.Context, branch string) error {
	if err := f.remote(ctx, func(ctx context.Context) error { return f.wc.Fetch(ctx, branch) }); err != nil {
		return err
	}
	if err := f.wc.Checkout(ctx, branch); err != nil {
		return err
	}
	return f.wc.HardReset(ctx, branch)
}

// remote runs a network git operation under GitTimeout.
func (f *CIFixer) remote(ctx context.Context, op func(context.Context) error) error {
	if f.cfg.GitTimeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.GitTimeout)
	defer cancel()
	return op(ctx)
}

// formatterTier runs the formatter and pushes its changes. It reports false
// when there is nothing to push; a formatter that cannot run is treated the
// same way so the patch tier still gets a chance.
func (f *CIFixer) formatterTier(ctx context.Context, snap model.Snapshot) (bool, error) {
	log := clog.FromContext(ctx)

	if err := f.formatter.Fix(ctx, f.wc.Dir()); err != nil {
		log.Warn("formatter failed", "error", err)
		// Drop any partial rewrite before escalating.
		return false, f.wc.HardReset(ctx, snap.Branch)
	}

	return f.commitAndPush(ctx, snap.Branch, FormatterCommitMessage)
}

// patchTier investigates the failure, asks the model for replacement files
// and pushes them.
func (f *CIFixer) patchTier(ctx context.Context, snap model.Snapshot) model.Outcome {
	log := clog.FromContext(ctx)

	inv := f.investigator.Investigate(ctx, snap)
	log.Info("failure investigated",
		"log_chars", len(inv.Log),
		"annotations", len(inv.Annotations),
		"files", len(inv.Files),
	)

	history, err := f.store.GetFixHistory(ctx, snap.Number)
	if err != nil {
		log.Warn("fix history unavailable", "error", err)
		history = nil
	}

	reply, err := complete(ctx, f.llm, f.cfg.LLM, fixSystemPrompt, buildFixPrompt(snap, inv, history, f.cfg.Limits.MaxLogChars))
	if err != nil && !errors.Is(err, errEmptyCompletion) {
		return failure(fmt.Errorf("request fix: %w", err))
	}

	files := f.acceptedFiles(ctx, ParseFixReply(reply))
	if len(files) == 0 {
		if err := f.writer.PostPRComment(ctx, snap.Number, NoFixComment); err != nil {
			return failure(fmt.Errorf("post no-fix comment: %w", err))
		}
		log.Info("no fix found")
		return model.Declined{Did: model.ActionNoFixFound, Reason: "model returned no usable file map"}
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := writeRepoFile(f.wc.Dir(), p, files[p]); err != nil {
			return failure(err)
		}
	}

	pushed, err := f.commitAndPush(ctx, snap.Branch, AIFixCommitMessage)
	if err != nil {
		return failure(err)
	}
	if !pushed {
		log.Info("proposed fix matches committed content")
		return model.Declined{Did: model.ActionNoChangesNeeded, Reason: "proposed fix is a no-op"}
	}

	log.Info("ai fix pushed", "files", paths)
	return model.Completed{Did: model.ActionAIFixPushed}
}

// acceptedFiles drops entries whose path would escape the repository or go
// through a symlink.
func (f *CIFixer) acceptedFiles(ctx context.Context, files map[string]string) map[string]string {
	log := clog.FromContext(ctx)

	root, err := os.OpenRoot(f.wc.Dir())
	if err != nil {
		log.Warn("open working copy failed", "dir", f.wc.Dir(), "error", err)
		return nil
	}
	defer root.Close()

	accepted := make(map[string]string, len(files))
	for p, content := range files {
		if _, err := checkRepoPath(root, p); err != nil {
			log.Warn("rejecting proposed file", "path", p, "error", err)
			continue
		}
		accepted[p] = content
	}
	return accepted
}

// commitAndPush stages everything and, when the tree differs from HEAD,
// commits and pushes. It reports whether a push happened.
func (f *CIFixer) commitAndPush(ctx context.Context, branch, message string) (bool, error) {
	if err := f.wc.StageAll(ctx); err != nil {
		return false, err
	}

	changed, err := f.wc.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	sha, err := f.wc.Commit(ctx, message)
	if err != nil {
		return false, err
	}
	if err := f.remote(ctx, func(ctx context.Context) error { return f.wc.Push(ctx, branch) }); err != nil {
		return false, err
	}

	clog.FromContext(ctx).Info("fix pushed", "commit", sha, "branch", branch)
	return true, nil
}
