package application

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// PR comment texts posted by the CI fixer.
const (
	SecretAlertComment = "**ElvAgent CI Alert**: Secret scanning failure detected. " +
		"Please review and remove any committed secrets manually."
	NoFixComment = "**ElvAgent CI Fixer**: Could not determine a fix for the CI failure. " +
		"Manual review required."
	circuitBreakerCommentFormat = "**ElvAgent CI Fixer**: Reached maximum fix attempts (%d). " +
		"Manual intervention required."
)

// Commit messages for the two fix tiers.
const (
	FormatterCommitMessage = "fix: Auto-fix lint errors (ruff)"
	AIFixCommitMessage     = "fix: AI-suggested CI fix (ElvAgent)"
)

// CircuitBreakerComment is the escalation posted once max attempts is reached.
func CircuitBreakerComment(maxAttempts int) string {
	return fmt.Sprintf(circuitBreakerCommentFormat, maxAttempts)
}

const fixSystemPrompt = `You repair failing continuous-integration runs for a software repository.
You are given the failure log, check annotations, the current contents of the relevant files and the
history of earlier automated fix attempts on this pull request.

Respond with ONLY a JSON object mapping repository-relative file paths to the COMPLETE corrected
content of each file. Include only files that must change. Do not return diffs. Do not wrap the
object in prose or code fences. If you cannot determine a fix, respond with {}.`

// buildFixPrompt renders the user prompt for a diagnose-and-patch call.
func buildFixPrompt(snap model.Snapshot, inv Investigation, history []model.LedgerEntry, maxLogChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A CI pipeline failed for PR #%d (%q) on branch %q.\n\n", snap.Number, snap.Title, snap.Branch)

	b.WriteString("Failed checks:\n")
	for _, cr := range inv.FailedChecks {
		fmt.Fprintf(&b, "- %s\n", cr.Name)
	}

	b.WriteString("\nPrevious automated fix attempts on this PR:\n")
	if len(history) == 0 {
		b.WriteString("- none\n")
	}
	for _, h := range history {
		fmt.Fprintf(&b, "- %s: %s on commit %s\n", h.ProcessedAt.UTC().Format("2006-01-02 15:04"), h.Action, shortSHA(h.HeadSHA))
	}
	if len(history) > 0 {
		b.WriteString("Earlier fixes did not make CI pass; try a different approach.\n")
	}

	if inv.Log != "" {
		fmt.Fprintf(&b, "\nCI failure log (last %d chars):\n```\n%s\n```\n", maxLogChars, inv.Log)
	} else {
		b.WriteString("\nCI failure log: unavailable.\n")
	}

	if len(inv.Annotations) > 0 {
		b.WriteString("\nAnnotations:\n")
		for _, a := range inv.Annotations {
			fmt.Fprintf(&b, "- %s:%d [%s] %s: %s\n", a.Path, a.StartLine, a.Level, a.Title, a.Message)
		}
	}

	if len(inv.Files) > 0 {
		b.WriteString("\nCurrent file contents:\n")
		for _, f := range inv.Files {
			fmt.Fprintf(&b, "\n### %s\n```\n%s\n```\n", f.Path, f.Content)
		}
	}

	b.WriteString("\nReturn the JSON object now.")
	return b.String()
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// describeSections are the H2 headings a generated description must carry.
var describeSections = []string{"Summary", "Changes", "Testing"}

func buildDescribePrompt(snap model.Snapshot) string {
	return fmt.Sprintf(
		"Write a concise GitHub PR description for a PR titled '%s' on branch '%s' by '%s'. "+
			"Include sections: ## Summary, ## Changes, ## Testing. "+
			"Keep it under 500 words. Return only the markdown content, no preamble.",
		snap.Title, snap.Branch, snap.Author,
	)
}

func buildReviewPrompt(snap model.Snapshot) string {
	return fmt.Sprintf(
		"Review this GitHub PR:\nTitle: %s\nBranch: %s\nAuthor: %s\n\n"+
			"Provide a constructive code review. Focus on: correctness, "+
			"potential bugs, code quality, and any security concerns. "+
			"Be concise (under 300 words).",
		snap.Title, snap.Branch, snap.Author,
	)
}
