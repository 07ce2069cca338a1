package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/CodexForgeBR/questmaster/internal/forge"
	"github.com/CodexForgeBR/questmaster/internal/logging"
	"github.com/CodexForgeBR/questmaster/internal/quest"
)

// Every action below follows the same shape: validate preconditions against
// a fresh reconciliation, perform a bounded sequence of local and remote
// steps where every remote artifact is looked up before it is created, then
// reconcile again and publish the result. A crash between steps never
// duplicates artifacts because re-invocation converges on the same
// idempotency keys (stage label for issues, branch name for PRs).

// Refresh re-runs the reconciler and republishes the snapshot. No
// preconditions.
func (s *Session) Refresh(ctx context.Context) (*StateDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	desc, err := s.reconcileLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(*desc)
	return desc, nil
}

// FileFeatureAndIssue advances a stage: files the stage's issue, and for
// stages with seed code pushes the starter branch and opens the starter PR.
// Requires the quest to sit at Ongoing{stage, Starter, Start} with a clean
// tree; divergence converts into an automatic hard reset to the current
// stage and the reset's outcome is reported instead.
func (s *Session) FileFeatureAndIssue(ctx context.Context, stageIdx int) (*StateDescriptor, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	const action = "file feature and issue"
	desc, proceed, err := s.preflight(ctx, action, stageIdx, quest.PartStarter)
	if err != nil {
		return nil, err
	}
	if !proceed {
		// Already advanced: re-invocation is a no-op with an identical
		// snapshot, never a duplicate artifact.
		return desc, nil
	}
	if desc.Diverged {
		return s.recoverDivergence(ctx, stageIdx, desc)
	}

	clean, err := s.repo.IsClean(ctx)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, &PreconditionError{Action: action, Stage: stageIdx,
			Reason: "working tree has uncommitted changes"}
	}

	stage := s.def.Stage(stageIdx)
	if _, err := s.ensureIssue(ctx, stage); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if !stage.NoStarter {
		if err := s.ensureStarterPR(ctx, stageIdx); err != nil {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
	}

	return s.finish(ctx)
}

// FileSolution opens the reference-solution PR for a stage: a branch
// carrying the reference solution's diff applied on top of the learner's
// current head. The issue is untouched; closing it stays the learner's
// action on the forge.
func (s *Session) FileSolution(ctx context.Context, stageIdx int) (*StateDescriptor, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	const action = "file solution"
	desc, proceed, err := s.preflight(ctx, action, stageIdx, quest.PartSolution)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return desc, nil
	}
	if desc.Diverged {
		return s.recoverDivergence(ctx, stageIdx, desc)
	}

	stage := s.def.Stage(stageIdx)
	branch := stage.BranchName(quest.PartSolution)

	existing, err := s.forge.FindPullRequest(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if existing == nil {
		pickBase := stage.BranchName(quest.PartStarter)
		if stage.NoStarter {
			pickBase = s.def.StarterBase(stageIdx, s.opts.BaseBranch)
		}
		conflicted, err := s.buildBranch(ctx, branch, pickBase)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", action, err)
		}

		labels := []string{stage.Label, forge.ReferenceSolutionLabel}
		body := s.expandBody(ctx, stage.SolutionBody)
		if conflicted {
			labels = append(labels, forge.ResetLabel)
			body += conflictNote
		}
		if _, err := s.forge.CreatePullRequest(ctx, forge.CreatePullRequestOptions{
			Head:   branch,
			Base:   s.opts.BaseBranch,
			Title:  stage.Name + " (reference solution)",
			Body:   body,
			Labels: labels,
		}); err != nil {
			return nil, fmt.Errorf("%s: %w", action, err)
		}
	}

	return s.finish(ctx)
}

// HardReset destructively restores the working tree to targetStage's
// reference baseline. Unconditional: it is both the explicit "start this
// chapter over" action and the automatic divergence-recovery path. The
// pre-reset tip is kept on a force-pushed audit branch and documented by a
// reset-labeled PR, so learner work is displaced, never silently destroyed.
func (s *Session) HardReset(ctx context.Context, targetStage int) (*StateDescriptor, error) {
	if !s.def.ValidStage(targetStage) {
		return nil, &PreconditionError{Action: "hard reset", Stage: targetStage,
			Reason: "no such stage"}
	}
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	if err := s.hardResetLocked(ctx, targetStage); err != nil {
		return nil, err
	}
	return s.finish(ctx)
}

// SkipToStage jumps the quest to targetStage: the tree is reset to the
// preceding stage's solution baseline and every earlier unfinished stage's
// issue is filed and closed so reconciliation lands on the target.
func (s *Session) SkipToStage(ctx context.Context, targetStage int) (*StateDescriptor, error) {
	if targetStage < 1 || !s.def.ValidStage(targetStage) {
		return nil, &PreconditionError{Action: "skip", Stage: targetStage,
			Reason: "target must be a stage after the first"}
	}
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	baseline := s.refBranch(s.def.Stage(targetStage - 1).BranchName(quest.PartSolution))
	if err := s.resetTreeTo(ctx, baseline); err != nil {
		return nil, fmt.Errorf("skip: %w", err)
	}

	for i := 0; i < targetStage; i++ {
		stage := s.def.Stage(i)
		issue, err := s.forge.FindIssue(ctx, stage.Label)
		if err != nil {
			return nil, fmt.Errorf("skip: %w", err)
		}
		if issue == nil {
			issue, err = s.createIssue(ctx, stage)
			if err != nil {
				return nil, fmt.Errorf("skip: %w", err)
			}
		}
		if !issue.Closed() {
			if err := s.forge.CloseIssue(ctx, issue.Number); err != nil {
				return nil, fmt.Errorf("skip: %w", err)
			}
		}
	}

	return s.finish(ctx)
}

// preflight reconciles and validates that the quest sits at stageIdx with
// the given part still actionable. proceed is false when the action's
// artifacts already exist (the quest moved past {part, Start} within the
// same stage), which re-invocations treat as success; a different stage is
// a hard precondition failure.
func (s *Session) preflight(ctx context.Context, action string, stageIdx int, part quest.Part) (desc *StateDescriptor, proceed bool, err error) {
	if !s.def.ValidStage(stageIdx) {
		return nil, false, &PreconditionError{Action: action, Stage: stageIdx, Reason: "no such stage"}
	}
	desc, err = s.reconcileLocked(ctx)
	if err != nil {
		return nil, false, err
	}

	atStage, atPart, atStatus, ongoing := desc.Progress.At()
	if !ongoing || atStage != stageIdx || atPart < part {
		return nil, false, &PreconditionError{Action: action, Stage: stageIdx,
			Reason: fmt.Sprintf("requires stage %d %s at start, quest is at %s", stageIdx, part, desc.Progress)}
	}
	proceed = atPart == part && atStatus == quest.StatusStart
	return desc, proceed, nil
}

// recoverDivergence converts a detected divergence into a hard reset to the
// current stage, restoring a consistent baseline without advancing
// progress, and reports the reset's outcome.
func (s *Session) recoverDivergence(ctx context.Context, stageIdx int, desc *StateDescriptor) (*StateDescriptor, error) {
	logging.Warn(fmt.Sprintf("session %s: reference-owned files diverged (%v), resetting stage %d",
		shortID(s.ID), desc.DivergedPaths, stageIdx))
	if err := s.hardResetLocked(ctx, stageIdx); err != nil {
		return nil, fmt.Errorf("divergence recovery: %w", err)
	}
	return s.finish(ctx)
}

const conflictNote = "\n\nNote: due to a merge conflict, this branch is a hard reset to the " +
	"reference content and may have overwritten your previous changes."

// ensureIssue finds or files the stage's issue, keyed by the stage label.
func (s *Session) ensureIssue(ctx context.Context, stage *quest.StageDefinition) (*forge.Issue, error) {
	issue, err := s.forge.FindIssue(ctx, stage.Label)
	if err != nil {
		return nil, err
	}
	if issue != nil {
		return issue, nil
	}
	return s.createIssue(ctx, stage)
}

func (s *Session) createIssue(ctx context.Context, stage *quest.StageDefinition) (*forge.Issue, error) {
	body := s.expandBody(ctx, stage.IssueBody)
	return s.forge.CreateIssue(ctx, stage.Label, stage.Name, body)
}

// ensureStarterPR finds or files the starter PR: branch seeded from the
// stage's reference starter tip, force-pushed, then opened against the base
// branch. The branch push precedes PR creation because the PR's idempotency
// key is the branch itself.
func (s *Session) ensureStarterPR(ctx context.Context, stageIdx int) error {
	stage := s.def.Stage(stageIdx)
	branch := stage.BranchName(quest.PartStarter)

	existing, err := s.forge.FindPullRequest(ctx, branch)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	conflicted, err := s.buildBranch(ctx, branch, s.def.StarterBase(stageIdx, s.opts.BaseBranch))
	if err != nil {
		return err
	}

	labels := []string{stage.Label}
	body := s.expandBody(ctx, stage.StarterBody)
	if conflicted {
		labels = append(labels, forge.ResetLabel)
		body += conflictNote
	}
	_, err = s.forge.CreatePullRequest(ctx, forge.CreatePullRequestOptions{
		Head:   branch,
		Base:   s.opts.BaseBranch,
		Title:  stage.Name + " (starter)",
		Body:   body,
		Labels: labels,
	})
	return err
}

// buildBranch creates branch on top of the learner's base-branch head,
// replays the reference commits pickBase..branch onto it and force-pushes.
// When the replay conflicts, the branch is hard-reset to the reference tip
// instead; the caller marks the resulting PR with the reset label.
// Returns whether the conflict fallback fired.
func (s *Session) buildBranch(ctx context.Context, branch, pickBase string) (conflicted bool, err error) {
	if err := s.repo.Fetch(ctx, s.opts.Reference); err != nil {
		return false, err
	}
	if err := s.repo.Checkout(ctx, s.opts.BaseBranch); err != nil {
		return false, err
	}
	if err := s.repo.Pull(ctx); err != nil {
		// A missing upstream for the base branch is routine on fresh
		// clones; the push below still establishes it.
		logging.Debug(fmt.Sprintf("session %s: pull %s: %v", shortID(s.ID), s.opts.BaseBranch, err))
	}

	if err := s.repo.CreateBranchFrom(ctx, branch, s.opts.BaseBranch); err != nil {
		return false, err
	}
	if err := s.repo.Checkout(ctx, branch); err != nil {
		return false, err
	}

	if err := s.repo.CherryPickRange(ctx, s.refBranch(pickBase), s.refBranch(branch)); err != nil {
		logging.Warn(fmt.Sprintf("session %s: replaying %s conflicted, falling back to hard reset: %v",
			shortID(s.ID), branch, err))
		if abortErr := s.repo.CherryPickAbort(ctx); abortErr != nil {
			return false, abortErr
		}
		if resetErr := s.repo.ResetHardTo(ctx, s.refBranch(branch)); resetErr != nil {
			return false, resetErr
		}
		conflicted = true
	}

	if err := s.repo.ForcePush(ctx, s.opts.Origin, branch); err != nil {
		return false, err
	}
	if err := s.repo.Checkout(ctx, s.opts.BaseBranch); err != nil {
		return false, err
	}
	return conflicted, nil
}

// hardResetLocked performs the reset sequence with the action lock held:
// audit branch capturing the pre-reset tip, destructive local reset to the
// target baseline, force-push of the restored base branch, and a
// reset-labeled PR documenting the operation.
func (s *Session) hardResetLocked(ctx context.Context, targetStage int) error {
	stage := s.def.Stage(targetStage)

	if err := s.repo.Fetch(ctx, s.opts.Reference); err != nil {
		return err
	}

	baseline := s.refBranch(s.def.StarterBase(targetStage, s.opts.BaseBranch))
	if !stage.NoStarter {
		starterPR, err := s.forge.FindPullRequest(ctx, stage.BranchName(quest.PartStarter))
		if err != nil {
			return err
		}
		if starterPR != nil && starterPR.Merged() {
			// The stage's starter is already merged: its tip, not the
			// previous stage's, is the baseline the learner works from.
			baseline = s.refBranch(stage.BranchName(quest.PartStarter))
		}
	}

	head, err := s.repo.CurrentHead(ctx)
	if err != nil {
		return err
	}

	audit := fmt.Sprintf("reset/%s-%s", stage.Label, shortID(uuid.NewString()))
	if err := s.repo.CreateBranchFrom(ctx, audit, "HEAD"); err != nil {
		return err
	}
	if err := s.repo.ForcePush(ctx, s.opts.Origin, audit); err != nil {
		return err
	}

	if err := s.repo.Checkout(ctx, s.opts.BaseBranch); err != nil {
		return err
	}
	if err := s.repo.ResetHardTo(ctx, baseline); err != nil {
		return err
	}
	if err := s.repo.ForcePush(ctx, s.opts.Origin, s.opts.BaseBranch); err != nil {
		return err
	}

	existing, err := s.forge.FindPullRequest(ctx, audit)
	if err != nil {
		return err
	}
	if existing == nil {
		body := fmt.Sprintf(
			"This pull request records an automatic hard reset of stage %q.\n\n"+
				"The branch %s holds the tree as it was before the reset (head %s); "+
				"the working tree now matches the stage baseline %s.",
			stage.Label, audit, head, baseline)
		if _, err := s.forge.CreatePullRequest(ctx, forge.CreatePullRequestOptions{
			Head:   audit,
			Base:   s.opts.BaseBranch,
			Title:  fmt.Sprintf("Hard reset to %q baseline", stage.Label),
			Body:   body,
			Labels: []string{forge.ResetLabel, stage.Label},
		}); err != nil {
			return err
		}
	}

	logging.Success(fmt.Sprintf("session %s: stage %q restored to %s (previous tree kept on %s)",
		shortID(s.ID), stage.Label, baseline, audit))
	return nil
}

// resetTreeTo resets the base branch to ref and force-pushes it, without
// the audit machinery (used by skips, where displaced work is expected).
func (s *Session) resetTreeTo(ctx context.Context, ref string) error {
	if err := s.repo.Fetch(ctx, s.opts.Reference); err != nil {
		return err
	}
	if err := s.repo.Checkout(ctx, s.opts.BaseBranch); err != nil {
		return err
	}
	if err := s.repo.ResetHardTo(ctx, ref); err != nil {
		return err
	}
	return s.repo.ForcePush(ctx, s.opts.Origin, s.opts.BaseBranch)
}

// expandBody resolves {{ label kind }} cross-references against the
// artifacts currently on the forge.
func (s *Session) expandBody(ctx context.Context, body string) string {
	return quest.ExpandBodyRefs(body, func(label, kind string) (int, bool) {
		switch kind {
		case "issue":
			issue, err := s.forge.FindIssue(ctx, label)
			if err != nil || issue == nil {
				return 0, false
			}
			return issue.Number, true
		case "pr":
			stage, ok := s.def.StageByLabel(label)
			if !ok {
				return 0, false
			}
			for _, part := range []quest.Part{quest.PartStarter, quest.PartSolution} {
				pr, err := s.forge.FindPullRequest(ctx, stage.BranchName(part))
				if err == nil && pr != nil {
					return pr.Number, true
				}
			}
			return 0, false
		default:
			return 0, false
		}
	})
}

// finish closes out an action: reconcile, publish, return the fresh
// snapshot. Snapshot order matches production order since the action lock
// is held.
func (s *Session) finish(ctx context.Context) (*StateDescriptor, error) {
	desc, err := s.reconcileLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(*desc)
	return desc, nil
}
