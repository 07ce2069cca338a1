package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

// TestLoad_DefaultsOnly tests loading with no config files present.
func TestLoad_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, "origin", cfg.Origin)
	assert.Equal(t, "upstream", cfg.Reference)
	assert.Equal(t, "main", cfg.BaseBranch)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 10, cfg.PollSeconds)
	assert.False(t, cfg.Verbose)
}

// TestLoad_ProjectFileOverridesDefaults tests the project config layer.
func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFileName, "reference: quest-upstream\npoll-seconds: 30\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "quest-upstream", cfg.Reference)
	assert.Equal(t, 30, cfg.PollSeconds)
	// Unset keys keep their defaults.
	assert.Equal(t, "origin", cfg.Origin)
	assert.Equal(t, 4, cfg.MaxAttempts)
}

// TestLoad_ExplicitFileWins tests that the explicit file beats the project
// file.
func TestLoad_ExplicitFileWins(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFileName, "poll-seconds: 30\n")
	explicit := writeConfig(t, dir, "other.yaml", "poll-seconds: 5\nverbose: true\n")

	cfg, err := Load(dir, explicit)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.PollSeconds)
	assert.True(t, cfg.Verbose)
}

// TestLoad_ExplicitFileMustExist tests that a missing explicit file errors
// while a missing project file does not.
func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir, filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config file")
}

// TestLoad_UnknownKeyRejected tests that typoed keys fail loudly.
func TestLoad_UnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFileName, "pol-seconds: 30\n")

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

// TestValidate tests the config sanity checks.
func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectedErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:        "zero attempts",
			mutate:      func(c *Config) { c.MaxAttempts = 0 },
			expectedErr: "max-attempts must be positive",
		},
		{
			name:        "negative delay",
			mutate:      func(c *Config) { c.BaseDelaySeconds = -1 },
			expectedErr: "base-delay-seconds must be positive",
		},
		{
			name:        "zero poll interval",
			mutate:      func(c *Config) { c.PollSeconds = 0 },
			expectedErr: "poll-seconds must be positive",
		},
		{
			name:        "identical remotes",
			mutate:      func(c *Config) { c.Reference = "origin" },
			expectedErr: "must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}
