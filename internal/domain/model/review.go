package model

import "time"

// Review is a review already submitted on a pull request.
type Review struct {
	ID          int64
	Author      string
	State       string
	Body        string
	CommitID    string
	SubmittedAt time.Time
}

// Annotation is a structured file/line message attached to a check run.
type Annotation struct {
	CheckRunID int64
	Path       string
	StartLine  int
	EndLine    int
	Level      string // notice, warning, failure.
	Title      string
	Message    string
}
