// Package shell runs external programs for the fixer's deterministic tier and
// the command-line git backend.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandRunner = (*ExecRunner)(nil)

// ExecRunner runs commands as child processes and waits for them to exit.
type ExecRunner struct {
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

// NewExecRunner creates a runner that inherits the agent's environment.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes name with args in dir and captures both output streams. A
// non-zero exit status is returned in the result with a nil error.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (model.CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := model.CommandResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	clog.FromContext(ctx).With("command", name).
		With("exit_code", result.ExitCode).
		With("duration", time.Since(start)).
		Debug("command finished")

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("run %s: %w", name, ctxErr)
		}
		return result, fmt.Errorf("run %s: %w", name, err)
	}

	return result, nil
}
