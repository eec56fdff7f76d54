package driven

import "context"

// WorkingCopy defines the driven port for the local repository clone the CI
// fixer mutates. Every method returns *model.GitError on failure.
type WorkingCopy interface {
	// Dir is the absolute path of the working tree.
	Dir() string
	Fetch(ctx context.Context, branch string) error
	Checkout(ctx context.Context, branch string) error
	// HardReset discards local state, untracked files included, and moves the
	// branch to origin/<branch>. Nothing that must persist may live under Dir.
	HardReset(ctx context.Context, branch string) error
	StageAll(ctx context.Context) error
	// HasChanges reports whether the index differs from HEAD after staging.
	HasChanges(ctx context.Context) (bool, error)
	// Commit records staged changes and returns the new commit SHA.
	Commit(ctx context.Context, message string) (string, error)
	Push(ctx context.Context, branch string) error
}

// Formatter defines the driven port for the deterministic lint/format auto-fix tier.
type Formatter interface {
	// Fix rewrites files under dir in place. An error means the tool could not run,
	// not that lint errors remain.
	Fix(ctx context.Context, dir string) error
}
