package model

import "time"

// Event is a unit of dispatch: one remediation kind for one pull request commit.
type Event struct {
	PRNumber int
	HeadSHA  string
	Kind     EventKind
	Snapshot Snapshot
}

// NewEvent builds the event of the given kind for a snapshot.
func NewEvent(s Snapshot, kind EventKind) Event {
	return Event{
		PRNumber: s.Number,
		HeadSHA:  s.HeadSHA,
		Kind:     kind,
		Snapshot: s,
	}
}

// LedgerEntry is a persisted record of a completed remediation. Entries are
// append-only and unique per (PRNumber, HeadSHA, Kind).
type LedgerEntry struct {
	ID          int64
	PRNumber    int
	HeadSHA     string
	Kind        EventKind
	Action      Action
	ProcessedAt time.Time
}
