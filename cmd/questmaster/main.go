package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/questmaster/internal/banner"
	"github.com/CodexForgeBR/questmaster/internal/cli"
	"github.com/CodexForgeBR/questmaster/internal/config"
	"github.com/CodexForgeBR/questmaster/internal/engine"
	"github.com/CodexForgeBR/questmaster/internal/exitcode"
	"github.com/CodexForgeBR/questmaster/internal/forge"
	"github.com/CodexForgeBR/questmaster/internal/logging"
	"github.com/CodexForgeBR/questmaster/internal/quest"
	sighandler "github.com/CodexForgeBR/questmaster/internal/signal"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	flagCfg := config.NewDefaultConfig()

	rootCmd := &cobra.Command{
		Use:     "questmaster",
		Short:   "Quest synchronization engine for git-driven tutorials",
		Long:    "Questmaster delivers programming quests through a real git repository and a forge's issues and pull requests, keeping both in agreement about your progress.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.BindFlags(rootCmd, flagCfg)
	cli.SetCustomHelp(rootCmd)

	rootCmd.AddCommand(
		newStatusCmd(flagCfg),
		newBeginCmd(flagCfg),
		newSolutionCmd(flagCfg),
		newResetCmd(flagCfg),
		newSkipCmd(flagCfg),
		newWatchCmd(flagCfg),
	)

	if err := rootCmd.Execute(); err != nil {
		logging.Error(err.Error())
		os.Exit(exitcode.FromError(err))
	}
}

// loadSession assembles the effective config (defaults < project file <
// explicit file < explicitly-set flags), then binds a session to the quest
// directory.
func loadSession(ctx context.Context, cmd *cobra.Command, flagCfg *config.Config) (*engine.Session, *config.Config, error) {
	if err := cli.ValidateFlags(flagCfg); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(flagCfg.Dir, flagCfg.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cli.ApplyOverrides(cmd, flagCfg, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logging.SetVerbose(cfg.Verbose)

	retry := forge.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts
	retry.BaseDelay = time.Duration(cfg.BaseDelaySeconds) * time.Second
	retry.OnRetry = func(op string, attempt int, delay time.Duration) {
		logging.Warn(fmt.Sprintf("%s failed (attempt %d), retrying in %s", op, attempt, delay))
	}

	opts := engine.Options{
		Origin:     cfg.Origin,
		Reference:  cfg.Reference,
		BaseBranch: cfg.BaseBranch,
	}
	sess, err := engine.LoadSession(ctx, cfg.Dir, opts, retry)
	if err != nil {
		return nil, nil, err
	}
	return sess, cfg, nil
}

// currentStage reconciles and returns the stage the quest sits at.
func currentStage(ctx context.Context, sess *engine.Session) (int, *engine.StateDescriptor, error) {
	desc, err := sess.Reconcile(ctx)
	if err != nil {
		return 0, nil, err
	}
	stage, _, _, ongoing := desc.Progress.At()
	if !ongoing {
		return 0, desc, fmt.Errorf("quest %q is already complete", sess.Definition().Title)
	}
	return stage, desc, nil
}

// resolveStage accepts a stage index or a stage label.
func resolveStage(def *quest.Definition, arg string) (int, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		if !def.ValidStage(i) {
			return 0, fmt.Errorf("no stage %d: quest has stages 0..%d", i, def.NumStages()-1)
		}
		return i, nil
	}
	for i := 0; i < def.NumStages(); i++ {
		if def.Stage(i).Label == arg {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no stage labeled %q", arg)
}

func newStatusCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show quest progress and per-stage artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, _, err := loadSession(cmd.Context(), cmd, flagCfg)
			if err != nil {
				return err
			}
			desc, err := sess.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			banner.PrintQuestBanner(sess.Definition().Title, desc)
			banner.PrintStages(desc)
			if desc.Diverged {
				banner.PrintDivergenceWarning(desc.DivergedPaths)
			}
			if desc.Progress.IsCompleted() {
				banner.PrintCompletionBanner(sess.Definition().Title)
			}
			return nil
		},
	}
}

func newBeginCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "begin",
		Short: "File the current stage's issue and starter pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, _, err := loadSession(ctx, cmd, flagCfg)
			if err != nil {
				return err
			}
			stageIdx, _, err := currentStage(ctx, sess)
			if err != nil {
				return err
			}

			stage := sess.Definition().Stage(stageIdx)
			logging.Stage(fmt.Sprintf("Beginning stage %d: %s", stageIdx, stage.Name))
			desc, err := sess.FileFeatureAndIssue(ctx, stageIdx)
			if err != nil {
				return err
			}

			reportStage(desc, stageIdx)
			return nil
		},
	}
}

func newSolutionCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "solution",
		Short: "Open the reference-solution pull request for the current stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, _, err := loadSession(ctx, cmd, flagCfg)
			if err != nil {
				return err
			}
			stageIdx, _, err := currentStage(ctx, sess)
			if err != nil {
				return err
			}

			desc, err := sess.FileSolution(ctx, stageIdx)
			if err != nil {
				return err
			}

			rt := desc.Stages[stageIdx]
			if rt.SolutionPRURL != "" {
				logging.Success("Reference solution opened: " + rt.SolutionPRURL)
			}
			logging.Info("Review it, merge it, then close the stage issue to move on.")
			return nil
		},
	}
}

func newResetCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [stage]",
		Short: "Hard-reset the working tree to a stage's reference baseline",
		Long: "Reset destructively restores the working tree to the stage's reference " +
			"baseline. The pre-reset tree is kept on a pushed audit branch and " +
			"documented by a reset-labeled pull request.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, _, err := loadSession(ctx, cmd, flagCfg)
			if err != nil {
				return err
			}

			var stageIdx int
			if len(args) == 1 {
				stageIdx, err = resolveStage(sess.Definition(), args[0])
			} else {
				stageIdx, _, err = currentStage(ctx, sess)
			}
			if err != nil {
				return err
			}

			logging.Warn(fmt.Sprintf("Hard-resetting to the stage %d baseline; current work moves to an audit branch", stageIdx))
			desc, err := sess.HardReset(ctx, stageIdx)
			if err != nil {
				return err
			}
			logging.Info("Now at " + desc.Progress.String())
			return nil
		},
	}
}

func newSkipCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <stage>",
		Short: "Jump forward to a later stage, closing the issues in between",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, _, err := loadSession(ctx, cmd, flagCfg)
			if err != nil {
				return err
			}
			target, err := resolveStage(sess.Definition(), args[0])
			if err != nil {
				return err
			}
			// Skips only move forward; going back is what reset is for.
			current, _, err := currentStage(ctx, sess)
			if err != nil {
				return err
			}
			if target <= current {
				return fmt.Errorf("stage %d is not ahead of the current stage %d (use reset to go back)", target, current)
			}

			desc, err := sess.SkipToStage(ctx, target)
			if err != nil {
				return err
			}
			logging.Success(fmt.Sprintf("Skipped to stage %d: %s", target, sess.Definition().Stage(target).Name))
			logging.Info("Now at " + desc.Progress.String())
			return nil
		},
	}
}

func newWatchCmd(flagCfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the forge and report progress changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sess, cfg, err := loadSession(ctx, cmd, flagCfg)
			if err != nil {
				return err
			}

			sighandler.SetupSignalHandler(ctx, cancel, func() {
				logging.Warn("Interrupted — stopping watch")
			})

			desc, err := sess.Refresh(ctx)
			if err != nil {
				return err
			}
			banner.PrintQuestBanner(sess.Definition().Title, desc)
			return watchLoop(ctx, sess, desc.Progress, time.Duration(cfg.PollSeconds)*time.Second)
		},
	}
}

// watchLoop refreshes on every tick and prints a line whenever the derived
// progress moves. Transient forge failures are reported and retried on the
// next tick.
func watchLoop(ctx context.Context, sess *engine.Session, last quest.Progress, interval time.Duration) error {
	updates, unsubscribe := sess.Notifier().Subscribe()
	defer unsubscribe()

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			os.Exit(exitcode.Interrupted)
		case desc := <-updates:
			if desc.Progress == last {
				continue
			}
			last = desc.Progress
			banner.PrintProgressLine(desc.Progress)
			if desc.Diverged {
				banner.PrintDivergenceWarning(desc.DivergedPaths)
			}
			if desc.Progress.IsCompleted() {
				banner.PrintCompletionBanner(sess.Definition().Title)
				logging.Info("Watched for " + logging.FormatDuration(int(time.Since(start).Seconds())))
				return nil
			}
		case <-ticker.C:
			if _, err := sess.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					os.Exit(exitcode.Interrupted)
				}
				logging.Warn("refresh failed: " + err.Error())
			}
		}
	}
}

// reportStage prints the artifacts an advance produced or adopted.
func reportStage(desc *engine.StateDescriptor, stageIdx int) {
	rt := desc.Stages[stageIdx]
	if rt.IssueURL != "" {
		logging.Success("Issue: " + rt.IssueURL)
	}
	if rt.StarterPRURL != "" {
		logging.Success("Starter PR: " + rt.StarterPRURL)
		logging.Info("Merge the starter PR to unlock the solution part.")
	} else {
		logging.Info("This stage ships no starter code; solve it and run `questmaster solution` when stuck or done.")
	}
	if desc.Diverged {
		banner.PrintDivergenceWarning(desc.DivergedPaths)
	}
}
