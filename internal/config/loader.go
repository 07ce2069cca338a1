package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so the loader can tell an
// absent key from a zero value and only override what the file sets.
type fileConfig struct {
	Origin           *string `yaml:"origin"`
	Reference        *string `yaml:"reference"`
	BaseBranch       *string `yaml:"base-branch"`
	MaxAttempts      *int    `yaml:"max-attempts"`
	BaseDelaySeconds *int    `yaml:"base-delay-seconds"`
	PollSeconds      *int    `yaml:"poll-seconds"`
	Verbose          *bool   `yaml:"verbose"`
}

// applyFile merges a YAML config file over cfg. Unknown keys are rejected
// so a typo never silently reverts to a default.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Origin != nil {
		cfg.Origin = *fc.Origin
	}
	if fc.Reference != nil {
		cfg.Reference = *fc.Reference
	}
	if fc.BaseBranch != nil {
		cfg.BaseBranch = *fc.BaseBranch
	}
	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}
	if fc.BaseDelaySeconds != nil {
		cfg.BaseDelaySeconds = *fc.BaseDelaySeconds
	}
	if fc.PollSeconds != nil {
		cfg.PollSeconds = *fc.PollSeconds
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	return nil
}

// Load assembles a Config by merging sources in order of increasing
// priority:
//
//  1. Built-in defaults
//  2. Project config file (<dir>/.questmaster.yaml), if present
//  3. Explicit config file (explicitPath), which must exist when given
//
// CLI flag overrides are applied afterwards by the command layer, which
// knows which flags the user actually set.
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Dir = dir
	cfg.ConfigFile = explicitPath

	projectPath := filepath.Join(dir, DefaultFileName)
	if err := applyFile(cfg, projectPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if explicitPath != "" {
		if err := applyFile(cfg, explicitPath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func validatePositive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, v)
	}
	return nil
}

// Validate rejects configs that would wedge the engine.
func (c *Config) Validate() error {
	if err := validatePositive("max-attempts", c.MaxAttempts); err != nil {
		return err
	}
	if err := validatePositive("base-delay-seconds", c.BaseDelaySeconds); err != nil {
		return err
	}
	if err := validatePositive("poll-seconds", c.PollSeconds); err != nil {
		return err
	}
	if c.Origin == c.Reference {
		return fmt.Errorf("origin and reference remotes must differ, both are %q", c.Origin)
	}
	return nil
}
