// Package gitrepo implements the WorkingCopy port over a local clone, either
// in-process with go-git or by shelling out to the git binary.
package gitrepo

import "github.com/ericfisherdev/elvagent/internal/domain/model"

// Author is the identity stamped on commits the agent creates.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no identity is configured.
var DefaultAuthor = Author{Name: "ElvAgent", Email: "elvagent@noreply"}

const remoteName = "origin"

func gitErr(op string, err error) error {
	return &model.GitError{Op: op, Err: err}
}
