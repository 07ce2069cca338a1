// Package config defines the questmaster configuration model and default
// values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < project config file < explicit config file <
// CLI flag overrides.
package config

// DefaultFileName is the project config file looked up in the quest
// directory.
const DefaultFileName = ".questmaster.yaml"

// Config holds every configuration field for the questmaster CLI.
type Config struct {
	// Dir is the quest working directory.
	Dir string

	// Remote layout: Origin receives pushed branches, Reference carries the
	// quest's reference branches, BaseBranch is the learner's mainline.
	Origin     string
	Reference  string
	BaseBranch string

	// Forge retry budget.
	MaxAttempts      int
	BaseDelaySeconds int

	// PollSeconds is the watch command's refresh interval.
	PollSeconds int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFile is the explicit config file path (CLI-only, never loaded
	// from a file).
	ConfigFile string
}

// NewDefaultConfig returns a Config populated with all built-in default
// values.
func NewDefaultConfig() *Config {
	return &Config{
		Dir:              ".",
		Origin:           "origin",
		Reference:        "upstream",
		BaseBranch:       "main",
		MaxAttempts:      4,
		BaseDelaySeconds: 2,
		PollSeconds:      10,
	}
}
