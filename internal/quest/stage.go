// Package quest defines the immutable quest description: an ordered sequence
// of stages, the branch and label naming scheme that keys every forge
// artifact, and the progress state machine derived from those artifacts.
package quest

import (
	"fmt"
	"strings"
)

// StageDefinition describes one chapter of a quest. Loaded once from the
// quest definition file and never mutated afterwards.
type StageDefinition struct {
	// Label is the stable identifier for the stage. It keys every forge
	// artifact: the issue label, the starter branch and the solution branch
	// are all derived from it.
	Label string `yaml:"label"`

	// Name is the human-readable stage title, used for issue and PR titles.
	Name string `yaml:"name"`

	// NoStarter marks stages that ship no seed code. Such stages skip the
	// Starter part entirely: filing the issue is enough to enter Solution.
	NoStarter bool `yaml:"no-starter"`

	// OwnedPaths lists the repository-relative paths (or path globs) the
	// engine writes for this stage. Learner edits to these paths are
	// divergence. The complement is the learner's game area.
	OwnedPaths []string `yaml:"owned-paths"`

	// Opaque prose payloads forwarded verbatim (after reference expansion)
	// into forge artifact bodies.
	IssueBody    string `yaml:"issue-body"`
	StarterBody  string `yaml:"starter-body"`
	SolutionBody string `yaml:"solution-body"`
}

// Part identifies which half of a stage is in play.
type Part int

const (
	// PartStarter is the seed-code half: a PR the learner merges to receive
	// the stage's starting point.
	PartStarter Part = iota
	// PartSolution is the task half: the learner works the issue, optionally
	// requesting a reference solution PR.
	PartSolution
)

// partSuffixes maps each part to its branch-name suffix.
var partSuffixes = map[Part]string{
	PartStarter:  "a",
	PartSolution: "b",
}

func (p Part) String() string {
	switch p {
	case PartStarter:
		return "starter"
	case PartSolution:
		return "solution"
	default:
		return fmt.Sprintf("part(%d)", int(p))
	}
}

// Next returns the part that follows p within a stage, or ok=false when p is
// the last part.
func (p Part) Next() (next Part, ok bool) {
	if p == PartStarter {
		return PartSolution, true
	}
	return 0, false
}

// Status describes how far along the current part is.
type Status int

const (
	// StatusStart means the part's forge artifacts have not been filed yet.
	StatusStart Status = iota
	// StatusWaiting means an artifact exists and the engine is waiting on the
	// learner (merging a PR, closing an issue).
	StatusWaiting
)

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusWaiting:
		return "waiting"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// BranchName returns the branch that carries the given part of the stage.
// The scheme is "<label>-a" for starter branches and "<label>-b" for
// solution branches; the branch name is the idempotency key for the
// corresponding pull request.
func (s *StageDefinition) BranchName(part Part) string {
	return s.Label + "-" + partSuffixes[part]
}

// ParseBranch recovers the stage label and part from a branch name produced
// by BranchName. ok is false for branches outside the naming scheme.
func ParseBranch(branch string) (label string, part Part, ok bool) {
	idx := strings.LastIndex(branch, "-")
	if idx <= 0 || idx == len(branch)-1 {
		return "", 0, false
	}
	switch branch[idx+1:] {
	case "a":
		return branch[:idx], PartStarter, true
	case "b":
		return branch[:idx], PartSolution, true
	default:
		return "", 0, false
	}
}
