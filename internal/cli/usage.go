// Package cli provides help text and usage formatting for the questmaster CLI.
package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `questmaster - Quest synchronization engine for git-driven tutorials

USAGE
  questmaster <command> [flags]

COMMANDS
  status          Show quest progress and per-stage artifacts
  begin           File the current stage's issue and starter pull request
  solution        Open the reference-solution pull request for the current stage
  reset [stage]   Hard-reset the working tree to a stage's reference baseline
  skip <stage>    Jump forward to a later stage, closing the issues in between
  watch           Poll the forge and report progress changes until interrupted

FLAGS
  Quest Location:
    -C, --dir <path>                Quest working directory (default: .)
    --config <path>                 Path to additional config file

  Remote Layout:
    --origin <remote>               Remote receiving pushed branches (default: origin)
    --reference <remote>            Remote carrying the quest reference branches (default: upstream)
    --base-branch <branch>          Learner mainline branch (default: main)

  Forge Access:
    --max-attempts <int>            Max attempts per forge call (default: 4)
    --base-delay-seconds <int>      Initial retry delay in seconds (default: 2)
    --poll-seconds <int>            Watch refresh interval in seconds (default: 10)

  Help & Version:
    -v, --verbose                   Enable debug logging
    -h, --help                      Show this help text
    --version                       Show version, commit, build date

EXIT CODES
  0   Success              The command completed
  1   Error                Invalid arguments, broken quest, forge failure
  2   Precondition         The quest is not in a state the command accepts
  3   Busy                 Another mutating command holds the session
  130 Interrupted          SIGINT or SIGTERM received

EXAMPLES
  # Show where the quest stands
  questmaster status

  # Start the next stage: issue plus starter PR
  questmaster begin

  # Open the reference solution once the starter is merged
  questmaster solution

  # Start the current stage over from its reference baseline
  questmaster reset

  # Jump straight to stage 3 (by index or label)
  questmaster skip 3

  # Follow progress while merging PRs in the browser
  questmaster watch

For more information, see: https://github.com/CodexForgeBR/questmaster
`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
