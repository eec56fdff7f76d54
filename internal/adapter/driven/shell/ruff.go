package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Formatter = (*RuffFormatter)(nil)

// RuffFormatter applies `ruff check --fix` followed by `ruff format`.
type RuffFormatter struct {
	runner  driven.CommandRunner
	command []string
	paths   []string
}

// NewRuffFormatter builds a formatter. bin may carry leading arguments, for
// example "python -m ruff". Empty paths format the whole working tree.
func NewRuffFormatter(runner driven.CommandRunner, bin string, paths []string) *RuffFormatter {
	command := strings.Fields(bin)
	if len(command) == 0 {
		command = []string{"ruff"}
	}
	return &RuffFormatter{runner: runner, command: command, paths: paths}
}

// Fix runs both ruff passes in dir. Exit status 1 from the check pass only
// means unfixable violations remain and is not an error; status 2 and above
// means ruff itself failed.
func (f *RuffFormatter) Fix(ctx context.Context, dir string) error {
	for _, sub := range [][]string{{"check", "--fix"}, {"format"}} {
		args := make([]string, 0, len(f.command)-1+len(sub)+len(f.paths))
		args = append(args, f.command[1:]...)
		args = append(args, sub...)
		args = append(args, f.paths...)

		res, err := f.runner.Run(ctx, dir, f.command[0], args...)
		if err != nil {
			return fmt.Errorf("ruff %s: %w", sub[0], err)
		}
		if res.ExitCode >= 2 {
			return fmt.Errorf("ruff %s: exit %d: %s", sub[0], res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}
	return nil
}
