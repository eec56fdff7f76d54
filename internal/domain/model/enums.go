package model

// CIState is the single priority-ordered classification of a commit's check runs.
type CIState string

const (
	CIStateSecretFail CIState = "secret_fail"
	CIStateLintFail   CIState = "lint_fail"
	CIStateTestFail   CIState = "test_fail"
	CIStateMixedFail  CIState = "mixed_fail"
	CIStatePending    CIState = "pending"
	CIStateAllPass    CIState = "all_pass"
)

// IsFailure reports whether the state is one of the four failure classifications.
func (s CIState) IsFailure() bool {
	switch s {
	case CIStateSecretFail, CIStateLintFail, CIStateTestFail, CIStateMixedFail:
		return true
	default:
		return false
	}
}

// EventKind identifies which remediation a pull request needs.
type EventKind string

const (
	EventNeedsDescription EventKind = "needs_description"
	EventCIFailure        EventKind = "ci_failure"
	EventNeedsReview      EventKind = "needs_review"
)

// EventKinds lists every kind the dispatcher must handle.
var EventKinds = []EventKind{EventNeedsDescription, EventCIFailure, EventNeedsReview}

// Action is the short label a worker reports for what it did.
type Action string

const (
	ActionSecretAlertPosted       Action = "secret_alert_posted"
	ActionCircuitBreakerTriggered Action = "circuit_breaker_triggered"
	ActionRuffFixPushed           Action = "ruff_fix_pushed"
	ActionAIFixPushed             Action = "ai_fix_pushed"
	ActionNoFixFound              Action = "no_fix_found"
	ActionNoChangesNeeded         Action = "no_changes_needed"
	ActionDescriptionGenerated    Action = "description_generated"
	ActionReviewPosted            Action = "review_posted"
	ActionAlreadyReviewed         Action = "already_reviewed"
	ActionGitError                Action = "git_error"
	ActionFailed                  Action = "failed"
	ActionException               Action = "exception"
	ActionUnknownEvent            Action = "unknown_event"
)

// FixAttemptActions are the actions charged against a pull request's circuit breaker.
var FixAttemptActions = []Action{ActionRuffFixPushed, ActionAIFixPushed}

// ReviewVerdict is the event submitted with a pull request review.
type ReviewVerdict string

const (
	VerdictComment        ReviewVerdict = "COMMENT"
	VerdictApprove        ReviewVerdict = "APPROVE"
	VerdictRequestChanges ReviewVerdict = "REQUEST_CHANGES"
)
