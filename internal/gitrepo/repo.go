// Package gitrepo wraps local git operations for one working directory.
//
// All commands run through an injectable Runner so tests can substitute a
// fake; the default runner shells out to the installed git binary, which
// keeps the engine on the learner's existing git configuration and
// credentials.
package gitrepo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git command in a directory and returns its combined,
// trimmed output.
type Runner interface {
	RunGit(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs git via exec.Command.
type ExecRunner struct{}

func (r *ExecRunner) RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		return trimmed, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), trimmed, err)
	}
	return trimmed, nil
}

// Repo is the repository adapter, scoped to one working directory.
type Repo struct {
	dir string
	run Runner
}

// New returns a Repo backed by the installed git binary.
func New(dir string) *Repo {
	return NewWithRunner(dir, &ExecRunner{})
}

// NewWithRunner returns a Repo using a custom runner.
func NewWithRunner(dir string, run Runner) *Repo {
	return &Repo{dir: dir, run: run}
}

// Dir returns the working directory the adapter is bound to.
func (r *Repo) Dir() string {
	return r.dir
}

func (r *Repo) git(ctx context.Context, op string, args ...string) (string, error) {
	out, err := r.run.RunGit(ctx, r.dir, args...)
	if err != nil {
		return out, classify(op, out, err)
	}
	return out, nil
}

// CurrentHead returns the commit id of HEAD.
func (r *Repo) CurrentHead(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsClean reports whether the tree has no staged or unstaged modifications
// and no untracked files.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// CreateBranchFrom points branch name at baseRef, creating it if needed.
// Re-pointing an existing branch is deliberate: action retries converge on
// the same branch instead of failing on "already exists".
func (r *Repo) CreateBranchFrom(ctx context.Context, name, baseRef string) error {
	_, err := r.git(ctx, "branch", "branch", "-f", name, baseRef)
	return err
}

// Checkout switches the working tree to the named ref.
func (r *Repo) Checkout(ctx context.Context, name string) error {
	_, err := r.git(ctx, "checkout", "checkout", name)
	return err
}

// ForcePush pushes the named branch to the remote, overwriting the remote
// ref and setting the upstream.
func (r *Repo) ForcePush(ctx context.Context, remote, name string) error {
	_, err := r.git(ctx, "push", "push", "--force", "-u", remote, name)
	return err
}

// Fetch updates the remote-tracking refs for the named remote.
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	_, err := r.git(ctx, "fetch", "fetch", remote)
	return err
}

// Pull fast-forwards the current branch from its upstream.
func (r *Repo) Pull(ctx context.Context) error {
	_, err := r.git(ctx, "pull", "pull", "--ff-only")
	return err
}

// DiffOwnedFiles returns the owned paths that differ between the working
// tree and the given ref. The pathspec restricts the diff to the stage's
// reference-owned globs; an empty glob list yields no paths.
func (r *Repo) DiffOwnedFiles(ctx context.Context, against string, globs []string) ([]string, error) {
	if len(globs) == 0 {
		return nil, nil
	}
	args := append([]string{"diff", "--name-only", against, "--"}, globs...)
	out, err := r.git(ctx, "diff", args...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var changed []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			changed = append(changed, line)
		}
	}
	return changed, nil
}

// ResetHardTo makes the working tree and index byte-identical to ref.
// Destructive; only the hard-reset action calls this.
func (r *Repo) ResetHardTo(ctx context.Context, ref string) error {
	_, err := r.git(ctx, "reset", "reset", "--hard", ref)
	return err
}

// CherryPickRange replays the commits in base..head onto the current branch.
func (r *Repo) CherryPickRange(ctx context.Context, base, head string) error {
	_, err := r.git(ctx, "cherry-pick", "cherry-pick", base+".."+head)
	return err
}

// CherryPickAbort abandons an in-progress cherry-pick.
func (r *Repo) CherryPickAbort(ctx context.Context) error {
	_, err := r.git(ctx, "cherry-pick", "cherry-pick", "--abort")
	return err
}

// ShowFile reads a file's contents at the given ref without checking it out.
// Used to load the quest definition off the meta branch.
func (r *Repo) ShowFile(ctx context.Context, ref, path string) (string, error) {
	return r.git(ctx, "show", "show", ref+":"+path)
}
