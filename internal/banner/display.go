// Package banner provides colored banner display functions for the
// questmaster CLI.
//
// All banner functions write formatted output to stdout with color-coded
// headers and separators. They render the quest snapshot: per-stage
// artifacts, current progress, completion and reset notices.
package banner

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/CodexForgeBR/questmaster/internal/engine"
	"github.com/CodexForgeBR/questmaster/internal/quest"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

const separator = "═══════════════════════════════════════════════════"

// PrintQuestBanner displays the quest header shown by status and watch.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  Guessing Game
//	═══════════════════════════════════════════════════
//	  Directory:  /quests/guessing-game
//	  Progress:   stage 1, starter, waiting
//	═══════════════════════════════════════════════════
func PrintQuestBanner(title string, desc *engine.StateDescriptor) {
	sep := headerColor(separator)
	fmt.Println(sep)
	fmt.Println(headerColor("  " + title))
	fmt.Println(sep)
	fmt.Printf("  Directory:  %s\n", desc.Dir)
	fmt.Printf("  Progress:   %s\n", desc.Progress)
	fmt.Println(sep)
}

// PrintStages lists each queried stage with its forge artifacts. Completed
// stages get a check mark, the current stage an arrow.
func PrintStages(desc *engine.StateDescriptor) {
	current, _, _, ongoing := desc.Progress.At()

	for i, rt := range desc.Stages {
		marker := successColor("✓")
		if ongoing && i == current {
			marker = warnColor("→")
		}
		fmt.Printf("  %s stage %d  %s\n", marker, i, rt.Stage.Name)
		printArtifact("issue", rt.IssueURL)
		printArtifact("starter", rt.StarterPRURL)
		printArtifact("solution", rt.SolutionPRURL)
	}
}

func printArtifact(kind, url string) {
	if url == "" {
		return
	}
	fmt.Printf("      %-9s %s\n", kind+":", dimColor(url))
}

// PrintDivergenceWarning flags reference-owned files that drifted from the
// expected reference tip.
func PrintDivergenceWarning(paths []string) {
	fmt.Println(warnColor("  ⚠ reference-owned files have diverged:"))
	for _, p := range paths {
		fmt.Printf("      %s\n", p)
	}
	fmt.Println(warnColor("  the next begin/solution will hard-reset the stage"))
}

// PrintCompletionBanner displays the quest completion banner.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ✓ Quest complete: Guessing Game
//	═══════════════════════════════════════════════════
func PrintCompletionBanner(title string) {
	sep := successColor(separator)
	fmt.Println(sep)
	fmt.Println(successColor("  ✓ Quest complete: " + title))
	fmt.Println(sep)
}

// PrintProgressLine is the single-line form used by watch on every change.
func PrintProgressLine(progress quest.Progress) {
	if progress.IsCompleted() {
		fmt.Println(successColor("  quest complete"))
		return
	}
	fmt.Printf("  now at %s\n", progress)
}
