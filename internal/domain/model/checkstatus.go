package model

import "strings"

// Check-run name markers used by the classifier. Matching is case-insensitive substring containment.
const (
	SecretCheckMarker = "secret"
	TestCheckMarker   = "test"
)

// LintCheckMarkers identify lint and format checks.
var LintCheckMarkers = []string{"lint", "ruff"}

// CheckRun is one CI job result attached to a commit.
type CheckRun struct {
	ID         int64  // GitHub check run ID.
	Name       string // e.g. "lint/ruff", "unit-tests".
	Status     string // queued, in_progress, completed.
	Conclusion string // success, failure, or empty while running.
	DetailsURL string // Link to the job; for Actions it embeds the workflow run ID.
}

// Failed reports whether the check finished with a failure conclusion.
// Other terminal conclusions (cancelled, timed_out, ...) are not failures for classification.
func (c CheckRun) Failed() bool {
	return c.Conclusion == "failure"
}

// InProgress reports whether the check is queued or running.
func (c CheckRun) InProgress() bool {
	return c.Status == "queued" || c.Status == "in_progress"
}

func (c CheckRun) nameContains(marker string) bool {
	return strings.Contains(strings.ToLower(c.Name), marker)
}

// IsSecretCheck reports whether the check is a secret-scanning job.
func (c CheckRun) IsSecretCheck() bool {
	return c.nameContains(SecretCheckMarker)
}

// IsLintCheck reports whether the check is a lint or format job.
func (c CheckRun) IsLintCheck() bool {
	for _, m := range LintCheckMarkers {
		if c.nameContains(m) {
			return true
		}
	}
	return false
}

// IsTestCheck reports whether the check is a test job.
func (c CheckRun) IsTestCheck() bool {
	return c.nameContains(TestCheckMarker)
}

// ClassifyChecks reduces a list of check runs to one CIState. Rules are applied
// in strict precedence order and the first match wins. Only checks with a
// "failure" conclusion take part in failure classification, so a pending check
// never masks a failure. An empty list is all_pass.
func ClassifyChecks(runs []CheckRun) CIState {
	var failed []CheckRun
	pending := false

	for _, cr := range runs {
		if cr.Failed() {
			failed = append(failed, cr)
		} else if cr.InProgress() {
			pending = true
		}
	}

	if len(failed) > 0 {
		for _, cr := range failed {
			if cr.IsSecretCheck() {
				return CIStateSecretFail
			}
		}
		if all(failed, CheckRun.IsLintCheck) {
			return CIStateLintFail
		}
		if all(failed, CheckRun.IsTestCheck) {
			return CIStateTestFail
		}
		return CIStateMixedFail
	}

	if pending {
		return CIStatePending
	}
	return CIStateAllPass
}

// FailedChecks returns the checks with a failure conclusion, in input order.
func FailedChecks(runs []CheckRun) []CheckRun {
	var out []CheckRun
	for _, cr := range runs {
		if cr.Failed() {
			out = append(out, cr)
		}
	}
	return out
}

func all(runs []CheckRun, pred func(CheckRun) bool) bool {
	for _, cr := range runs {
		if !pred(cr) {
			return false
		}
	}
	return true
}
