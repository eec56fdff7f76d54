package model

import "strings"

// DescriptionPlaceholder marks a pull request body that was never written by a
// human or by a previous describer pass.
const DescriptionPlaceholder = "<!-- auto-generated -->"

// DescriptionMarker prefixes bodies written by the describer.
const DescriptionMarker = "<!-- elvagent-description -->"

// ReviewMarker is embedded in every review the reviewer posts.
const ReviewMarker = "<!-- elvagent-review -->"

// PullRequest is the metadata of an open pull request as returned by the code host.
type PullRequest struct {
	Number     int
	Title      string
	Body       string
	Author     string
	Branch     string // Source (head) branch.
	BaseBranch string
	HeadSHA    string
	URL        string
	IsDraft    bool
}

// Snapshot is one open pull request plus the check runs of its head commit,
// rebuilt on every poll cycle and never persisted.
type Snapshot struct {
	PullRequest
	CheckRuns []CheckRun
}

// CIState classifies the snapshot's check runs.
func (s Snapshot) CIState() CIState {
	return ClassifyChecks(s.CheckRuns)
}

// NeedsDescription reports whether the body still carries the placeholder sentinel.
func (s Snapshot) NeedsDescription() bool {
	return strings.Contains(s.Body, DescriptionPlaceholder)
}

// NewPullRequest is the input for opening a pull request on the code host.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
	Draft bool
}
