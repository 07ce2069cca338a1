// Package cli provides flag binding and validation for the questmaster CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CodexForgeBR/questmaster/internal/config"
)

// BindFlags registers the global questmaster flags on the root command.
// The flags directly modify fields in the provided config pointer; call
// ApplyOverrides after loading config files so explicitly-set flags win
// over file values.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()

	// Quest location
	flags.StringVarP(&cfg.Dir, "dir", "C", ".", "Quest working directory")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file")

	// Remote layout
	flags.StringVar(&cfg.Origin, "origin", "origin", "Remote receiving pushed branches")
	flags.StringVar(&cfg.Reference, "reference", "upstream", "Remote carrying the quest reference branches")
	flags.StringVar(&cfg.BaseBranch, "base-branch", "main", "Learner mainline branch")

	// Forge retry budget & polling
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", 4, "Max attempts per forge call")
	flags.IntVar(&cfg.BaseDelaySeconds, "base-delay-seconds", 2, "Initial retry delay in seconds")
	flags.IntVar(&cfg.PollSeconds, "poll-seconds", 10, "Watch refresh interval in seconds")

	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")
}

// ApplyOverrides copies every flag the user explicitly set from flagCfg
// into cfg. Uses Changed() so config file values are not clobbered by flag
// defaults.
func ApplyOverrides(cmd *cobra.Command, flagCfg, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("dir") {
		cfg.Dir = flagCfg.Dir
	}
	if flags.Changed("origin") {
		cfg.Origin = flagCfg.Origin
	}
	if flags.Changed("reference") {
		cfg.Reference = flagCfg.Reference
	}
	if flags.Changed("base-branch") {
		cfg.BaseBranch = flagCfg.BaseBranch
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = flagCfg.MaxAttempts
	}
	if flags.Changed("base-delay-seconds") {
		cfg.BaseDelaySeconds = flagCfg.BaseDelaySeconds
	}
	if flags.Changed("poll-seconds") {
		cfg.PollSeconds = flagCfg.PollSeconds
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagCfg.Verbose
	}
	cfg.ConfigFile = flagCfg.ConfigFile
}

// ValidateFlags checks flag values that must hold before any config file is
// read. Must be called after flag parsing.
func ValidateFlags(cfg *config.Config) error {
	if info, err := os.Stat(cfg.Dir); err != nil {
		return fmt.Errorf("--dir: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("--dir: %s is not a directory", cfg.Dir)
	}

	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err != nil {
			return fmt.Errorf("--config: %w", err)
		}
	}
	return nil
}
