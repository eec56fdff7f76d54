package model

// Outcome is the tagged result of a worker invocation. Exactly one of
// Completed, Declined or Failed.
type Outcome interface {
	outcome()
	Action() Action
}

// Completed means the worker performed its remediation.
type Completed struct {
	Did Action
}

// Declined means the worker correctly chose not to act further (secret alert,
// circuit breaker, no fix found, no-op fix, already reviewed). It counts as success.
type Declined struct {
	Did    Action
	Reason string
}

// Failed means the worker could not complete. It is never written to the ledger.
type Failed struct {
	Did Action
	Err error
}

func (Completed) outcome() {}
func (Declined) outcome()  {}
func (Failed) outcome()    {}

// Action returns the action label.
func (o Completed) Action() Action { return o.Did }

// Action returns the action label.
func (o Declined) Action() Action { return o.Did }

// Action returns the action label.
func (o Failed) Action() Action { return o.Did }

// WorkerResult is the uniform record every worker invocation produces.
type WorkerResult struct {
	PRNumber int
	HeadSHA  string
	Kind     EventKind
	Action   Action
	Success  bool
	Error    string
}

// ResultFor converts a worker outcome for an event into a WorkerResult.
func ResultFor(ev Event, o Outcome) WorkerResult {
	r := WorkerResult{
		PRNumber: ev.PRNumber,
		HeadSHA:  ev.HeadSHA,
		Kind:     ev.Kind,
		Action:   o.Action(),
		Success:  true,
	}
	if f, ok := o.(Failed); ok {
		r.Success = false
		if f.Err != nil {
			r.Error = f.Err.Error()
		}
	}
	return r
}
