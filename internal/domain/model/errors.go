package model

import (
	"fmt"
	"strings"
)

// APIError is a failed call to the code host.
type APIError struct {
	Op         string
	StatusCode int // 0 when no HTTP response was received.
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// GitError is a failed version-control operation. Stderr carries the tool's
// output when the operation was run as a command.
type GitError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *GitError) Error() string {
	var b strings.Builder
	b.WriteString("git ")
	b.WriteString(e.Op)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, ": exit %d", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GitError) Unwrap() error { return e.Err }
