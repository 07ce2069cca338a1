package quest

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefinitionFile is the conventional name of the quest definition, read from
// the repository's meta branch (or the working tree as a fallback).
const DefinitionFile = "quest.yaml"

// Definition is a fully validated quest: an ordered, immutable sequence of
// stages. The slice index is the canonical stage number.
type Definition struct {
	// Title is the quest's display name.
	Title string `yaml:"title"`

	// Stages in canonical order. Never reordered or mutated after load.
	Stages []StageDefinition `yaml:"stages"`

	// Final is an opaque terminal-assessment payload forwarded to the
	// presentation layer. The engine never inspects it.
	Final *yaml.Node `yaml:"final,omitempty"`

	index map[string]int
}

// PackageError reports a malformed or ambiguous quest definition. It is
// always detected at load time; a Definition that loads is safe to run.
type PackageError struct {
	Reason string
}

func (e *PackageError) Error() string {
	return "invalid quest package: " + e.Reason
}

// Load reads and validates a quest definition file.
func Load(filePath string) (*Definition, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read quest definition: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML into a Definition. Stage labels must be unique
// and ownership globs must be pairwise disjoint across stages; ambiguous
// ownership is rejected here rather than surfacing later as a runtime
// conflict.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &PackageError{Reason: fmt.Sprintf("parse quest definition: %v", err)}
	}

	if def.Title == "" {
		return nil, &PackageError{Reason: "missing title"}
	}
	if len(def.Stages) == 0 {
		return nil, &PackageError{Reason: "quest has no stages"}
	}

	def.index = make(map[string]int, len(def.Stages))
	for i := range def.Stages {
		stage := &def.Stages[i]
		if stage.Label == "" {
			return nil, &PackageError{Reason: fmt.Sprintf("stage %d has no label", i)}
		}
		if strings.ContainsAny(stage.Label, " \t\n/") {
			return nil, &PackageError{Reason: fmt.Sprintf("stage label %q contains whitespace or '/'", stage.Label)}
		}
		if prev, dup := def.index[stage.Label]; dup {
			return nil, &PackageError{Reason: fmt.Sprintf("duplicate stage label %q (stages %d and %d)", stage.Label, prev, i)}
		}
		def.index[stage.Label] = i

		for _, glob := range stage.OwnedPaths {
			if _, err := path.Match(glob, ""); err != nil {
				return nil, &PackageError{Reason: fmt.Sprintf("stage %q has invalid glob %q", stage.Label, glob)}
			}
		}
	}

	if err := checkDisjointOwnership(def.Stages); err != nil {
		return nil, err
	}

	return &def, nil
}

// checkDisjointOwnership rejects definitions where two stages claim the same
// reference-owned path.
func checkDisjointOwnership(stages []StageDefinition) error {
	for i := range stages {
		for j := i + 1; j < len(stages); j++ {
			for _, a := range stages[i].OwnedPaths {
				for _, b := range stages[j].OwnedPaths {
					if globsOverlap(a, b) {
						return &PackageError{Reason: fmt.Sprintf(
							"stages %q and %q both claim path %q",
							stages[i].Label, stages[j].Label, a)}
					}
				}
			}
		}
	}
	return nil
}

// globsOverlap conservatively detects ownership collisions: identical
// patterns always collide, and a literal path colliding with a glob is
// detected by matching. Two distinct globs with meta-characters are treated
// as disjoint; authors are expected to partition by directory.
func globsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if !hasGlobMeta(a) {
		if ok, _ := path.Match(b, a); ok {
			return true
		}
	}
	if !hasGlobMeta(b) {
		if ok, _ := path.Match(a, b); ok {
			return true
		}
	}
	return false
}

func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// NumStages returns the number of stages.
func (d *Definition) NumStages() int {
	return len(d.Stages)
}

// Stage returns the stage at index i.
func (d *Definition) Stage(i int) *StageDefinition {
	return &d.Stages[i]
}

// ValidStage reports whether i is a valid stage index.
func (d *Definition) ValidStage(i int) bool {
	return i >= 0 && i < len(d.Stages)
}

// StageByLabel looks a stage up by its label.
func (d *Definition) StageByLabel(label string) (*StageDefinition, bool) {
	i, ok := d.index[label]
	if !ok {
		return nil, false
	}
	return &d.Stages[i], true
}

// StarterBase returns the reference branch a stage's starter content builds
// on: the previous stage's solution branch, or the base branch for stage 0.
func (d *Definition) StarterBase(stage int, baseBranch string) string {
	if stage == 0 {
		return baseBranch
	}
	return d.Stages[stage-1].BranchName(PartSolution)
}
