package engine

import (
	"context"
	"errors"

	"github.com/CodexForgeBR/questmaster/internal/forge"
	"github.com/CodexForgeBR/questmaster/internal/gitrepo"
	"github.com/CodexForgeBR/questmaster/internal/quest"
)

// stageArtifacts is one stage's forge observations for a single
// reconciliation pass.
type stageArtifacts struct {
	issue      *forge.Issue
	starterPR  *forge.PullRequest
	solutionPR *forge.PullRequest
}

func (s *Session) queryStage(ctx context.Context, stage *quest.StageDefinition) (*stageArtifacts, error) {
	issue, err := s.forge.FindIssue(ctx, stage.Label)
	if err != nil {
		return nil, err
	}
	starterPR, err := s.forge.FindPullRequest(ctx, stage.BranchName(quest.PartStarter))
	if err != nil {
		return nil, err
	}
	solutionPR, err := s.forge.FindPullRequest(ctx, stage.BranchName(quest.PartSolution))
	if err != nil {
		return nil, err
	}
	return &stageArtifacts{issue: issue, starterPR: starterPR, solutionPR: solutionPR}, nil
}

// complete reports whether the stage's terminal condition holds: the issue
// is closed and any requested solution PR is merged. A closed issue marks
// the whole stage done even when no starter PR was ever merged, which is
// how stage skips stay visible to reconciliation.
func (a *stageArtifacts) complete() bool {
	return a.issue != nil && a.issue.Closed() &&
		(a.solutionPR == nil || a.solutionPR.Merged())
}

func (a *stageArtifacts) runtime(stage *quest.StageDefinition) StageRuntime {
	rt := StageRuntime{Stage: *stage}
	if a.issue != nil {
		rt.IssueURL = a.issue.URL
	}
	if a.starterPR != nil {
		rt.StarterPRURL = a.starterPR.URL
	}
	if a.solutionPR != nil {
		rt.SolutionPRURL = a.solutionPR.URL
		if a.solutionPR.HasLabel(forge.ReferenceSolutionLabel) {
			rt.ReferencePRURL = a.solutionPR.URL
		}
	}
	return rt
}

// Reconcile derives the current StateDescriptor from the quest definition,
// the local head and one round of forge queries. It is a pure read: fixed
// query results always map to the same descriptor, and no local or remote
// state is touched. Divergence is reported on the descriptor, never fixed
// here.
func (s *Session) Reconcile(ctx context.Context) (*StateDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reconcileLocked(ctx)
}

func (s *Session) reconcileLocked(ctx context.Context) (*StateDescriptor, error) {
	desc := &StateDescriptor{
		Dir:      s.repo.Dir(),
		Progress: quest.Completed(),
	}

	for i := 0; i < s.def.NumStages(); i++ {
		stage := s.def.Stage(i)
		arts, err := s.queryStage(ctx, stage)
		if err != nil {
			return nil, err
		}
		desc.Stages = append(desc.Stages, arts.runtime(stage))

		if arts.complete() {
			continue
		}

		desc.Progress = s.stageProgress(i, stage, arts)
		break
	}

	if err := s.checkDivergence(ctx, desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// stageProgress places an incomplete stage on the (part, status) grid.
func (s *Session) stageProgress(i int, stage *quest.StageDefinition, arts *stageArtifacts) quest.Progress {
	starterSatisfied := false
	if stage.NoStarter {
		// No seed code: the filed issue alone opens the Solution part, so
		// a Starter-Waiting status is unreachable for this stage.
		starterSatisfied = arts.issue != nil
	} else {
		starterSatisfied = arts.starterPR != nil && arts.starterPR.Merged()
	}

	if !starterSatisfied {
		status := quest.StatusStart
		if arts.starterPR != nil && !arts.starterPR.Merged() {
			status = quest.StatusWaiting
		}
		return quest.Ongoing(i, quest.PartStarter, status)
	}

	status := quest.StatusStart
	if arts.solutionPR != nil && !arts.solutionPR.Merged() {
		status = quest.StatusWaiting
	}
	return quest.Ongoing(i, quest.PartSolution, status)
}

// expectedReferenceRef is the reference tip the engine last wrote for the
// current (stage, part): the base the next action builds on.
func (s *Session) expectedReferenceRef(stage int, part quest.Part) string {
	def := s.def.Stage(stage)
	if part == quest.PartSolution && !def.NoStarter {
		return s.refBranch(def.BranchName(quest.PartStarter))
	}
	return s.refBranch(s.def.StarterBase(stage, s.opts.BaseBranch))
}

// checkDivergence compares the stage's reference-owned paths against the
// expected reference tip whenever the status is Start, i.e. before the
// local tree would be trusted as the base for the next action.
func (s *Session) checkDivergence(ctx context.Context, desc *StateDescriptor) error {
	stage, part, status, ok := desc.Progress.At()
	if !ok || status != quest.StatusStart {
		return nil
	}
	globs := s.def.Stage(stage).OwnedPaths
	if len(globs) == 0 {
		return nil
	}

	changed, err := s.repo.DiffOwnedFiles(ctx, s.expectedReferenceRef(stage, part), globs)
	if err != nil {
		// The reference tip may not exist locally yet (fresh clone, remote
		// not fetched); there is nothing to diverge from.
		var repoErr *gitrepo.RepositoryError
		if errors.As(err, &repoErr) && repoErr.Kind == gitrepo.KindRefNotFound {
			return nil
		}
		return err
	}

	desc.Diverged = len(changed) > 0
	desc.DivergedPaths = changed
	return nil
}
