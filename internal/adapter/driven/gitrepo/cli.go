package gitrepo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WorkingCopy = (*CLIRepo)(nil)

// CLIRepo drives a clone through the git binary, reusing whatever credential
// helpers the host has configured.
type CLIRepo struct {
	dir    string
	runner driven.CommandRunner
	author Author
}

// NewCLIRepo creates a command-line backed working copy rooted at dir.
func NewCLIRepo(dir string, runner driven.CommandRunner, author Author) (*CLIRepo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}
	return &CLIRepo{dir: abs, runner: runner, author: author}, nil
}

// Dir returns the absolute worktree path.
func (r *CLIRepo) Dir() string { return r.dir }

// git runs one git command. A non-zero exit becomes a *model.GitError
// carrying the command's stderr.
func (r *CLIRepo) git(ctx context.Context, op string, args ...string) (model.CommandResult, error) {
	res, err := r.runner.Run(ctx, r.dir, "git", args...)
	if err != nil {
		return res, &model.GitError{Op: op, Err: err}
	}
	if res.ExitCode != 0 {
		return res, &model.GitError{Op: op, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

func (r *CLIRepo) Fetch(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "fetch", "fetch", remoteName, branch)
	return err
}

func (r *CLIRepo) Checkout(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "checkout", "checkout", "-B", branch, remoteName+"/"+branch)
	return err
}

func (r *CLIRepo) HardReset(ctx context.Context, branch string) error {
	if _, err := r.git(ctx, "reset", "reset", "--hard", remoteName+"/"+branch); err != nil {
		return err
	}
	_, err := r.git(ctx, "clean", "clean", "-fd")
	return err
}

func (r *CLIRepo) StageAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "add", "-A")
	return err
}

func (r *CLIRepo) HasChanges(ctx context.Context) (bool, error) {
	res, err := r.git(ctx, "status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

func (r *CLIRepo) Commit(ctx context.Context, message string) (string, error) {
	if _, err := r.git(ctx, "commit",
		"-c", "user.name="+r.author.Name,
		"-c", "user.email="+r.author.Email,
		"commit", "-m", message,
	); err != nil {
		return "", err
	}

	res, err := r.git(ctx, "rev-parse", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *CLIRepo) Push(ctx context.Context, branch string) error {
	_, err := r.git(ctx, "push", "push", remoteName, branch)
	return err
}
