package engine

import (
	"context"

	"github.com/CodexForgeBR/questmaster/internal/quest"
)

// Repository is the slice of the local git adapter the engine consumes.
// *gitrepo.Repo satisfies it; tests substitute fakes.
type Repository interface {
	Dir() string
	CurrentHead(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)
	CreateBranchFrom(ctx context.Context, name, baseRef string) error
	Checkout(ctx context.Context, name string) error
	ForcePush(ctx context.Context, remote, name string) error
	Fetch(ctx context.Context, remote string) error
	Pull(ctx context.Context) error
	DiffOwnedFiles(ctx context.Context, against string, globs []string) ([]string, error)
	ResetHardTo(ctx context.Context, ref string) error
	CherryPickRange(ctx context.Context, base, head string) error
	CherryPickAbort(ctx context.Context) error
}

// StageRuntime is the observed forge artifacts of one stage. Observations
// only: every reconciliation recomputes them from the forge, nothing is
// hand-mutated.
type StageRuntime struct {
	Stage quest.StageDefinition

	IssueURL      string
	StarterPRURL  string
	SolutionPRURL string
	// ReferencePRURL is populated only when the learner requested the
	// reference solution.
	ReferencePRURL string
}

// StateDescriptor is the externally visible snapshot: everything the
// presentation layer needs and the sole unit the notifier broadcasts.
// Stages covers indices 0 through the current stage inclusive (all stages
// once the quest is completed).
type StateDescriptor struct {
	Dir      string
	Stages   []StageRuntime
	Progress quest.Progress

	// Diverged reports that a reference-owned path differs from the
	// engine's expected reference tip. The executor consumes this; the
	// reconciler never fixes it.
	Diverged      bool
	DivergedPaths []string
}
