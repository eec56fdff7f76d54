package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"

	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WorkingCopy = (*GoGitRepo)(nil)

// GoGitRepo drives an existing clone with go-git.
type GoGitRepo struct {
	dir    string
	repo   *git.Repository
	tokens oauth2.TokenSource // nil for unauthenticated remotes.
	author Author
	now    func() time.Time
}

// OpenGoGit opens the clone rooted at dir.
func OpenGoGit(dir string, tokens oauth2.TokenSource, author Author) (*GoGitRepo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}

	repo, err := git.PlainOpen(abs)
	if err != nil {
		return nil, gitErr("open", err)
	}

	return &GoGitRepo{dir: abs, repo: repo, tokens: tokens, author: author, now: time.Now}, nil
}

// Dir returns the absolute worktree path.
func (r *GoGitRepo) Dir() string { return r.dir }

func (r *GoGitRepo) auth() (*githttp.BasicAuth, error) {
	if r.tokens == nil {
		return nil, nil
	}
	token, err := r.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: token.AccessToken}, nil
}

// Fetch updates origin/<branch> from the remote.
func (r *GoGitRepo) Fetch(ctx context.Context, branch string) error {
	auth, err := r.auth()
	if err != nil {
		return gitErr("fetch", err)
	}

	opts := &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remoteName, branch))},
		Force:      true,
	}
	if auth != nil {
		opts.Auth = auth
	}

	clog.FromContext(ctx).Infof("fetching branch %s", branch)
	if err := r.repo.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return gitErr("fetch", err)
	}
	return nil
}

func (r *GoGitRepo) remoteHash(branch string) (plumbing.Hash, error) {
	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("remote ref %s/%s: %w", remoteName, branch, err)
	}
	return ref.Hash(), nil
}

// Checkout points the local branch at origin/<branch> and switches to it.
func (r *GoGitRepo) Checkout(_ context.Context, branch string) error {
	hash, err := r.remoteHash(branch)
	if err != nil {
		return gitErr("checkout", err)
	}

	refName := plumbing.NewBranchReferenceName(branch)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return gitErr("checkout", fmt.Errorf("setting branch reference: %w", err))
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return gitErr("checkout", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: refName, Force: true}); err != nil {
		return gitErr("checkout", err)
	}
	return nil
}

// HardReset moves the current branch to origin/<branch> and removes untracked files.
func (r *GoGitRepo) HardReset(_ context.Context, branch string) error {
	hash, err := r.remoteHash(branch)
	if err != nil {
		return gitErr("reset", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return gitErr("reset", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return gitErr("reset", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return gitErr("clean", err)
	}
	return nil
}

// StageAll stages additions, modifications and deletions.
func (r *GoGitRepo) StageAll(_ context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return gitErr("add", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return gitErr("add", err)
	}
	return nil
}

// HasChanges reports whether the worktree or index differ from HEAD.
func (r *GoGitRepo) HasChanges(_ context.Context) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, gitErr("status", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, gitErr("status", err)
	}
	return !status.IsClean(), nil
}

// Commit records the index as a new commit authored by the agent.
func (r *GoGitRepo) Commit(_ context.Context, message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", gitErr("commit", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  r.now(),
		},
	})
	if err != nil {
		return "", gitErr("commit", err)
	}
	return hash.String(), nil
}

// Push publishes the local branch to origin without forcing.
func (r *GoGitRepo) Push(ctx context.Context, branch string) error {
	auth, err := r.auth()
	if err != nil {
		return gitErr("push", err)
	}

	ref := plumbing.NewBranchReferenceName(branch)
	opts := &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
	}
	if auth != nil {
		opts.Auth = auth
	}

	clog.FromContext(ctx).Infof("pushing branch %s", branch)
	if err := r.repo.PushContext(ctx, opts); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return gitErr("push", err)
	}
	return nil
}
