package forge

import "time"

// ResetLabel marks pull requests opened by the hard-reset action so
// learners and downstream tooling can recognize automatic resets.
const ResetLabel = "reset"

// ReferenceSolutionLabel marks solution PRs whose content is the engine's
// reference diff rather than learner work.
const ReferenceSolutionLabel = "reference-solution"

// Label is a forge issue/PR label.
type Label struct {
	Name string `json:"name"`
}

// Issue is a forge issue observation. Issues are keyed by a label carrying
// the stage's label string.
type Issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	State  string  `json:"state"`
	Labels []Label `json:"labels"`
}

// Closed reports whether the issue has been closed on the forge.
func (i *Issue) Closed() bool {
	return i.State == "CLOSED" || i.State == "closed"
}

// PullRequest is a forge pull request observation, keyed by its head branch.
type PullRequest struct {
	Number     int        `json:"number"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	State      string     `json:"state"`
	HeadBranch string     `json:"headRefName"`
	Labels     []Label    `json:"labels"`
	MergedAt   *time.Time `json:"mergedAt"`
}

// Merged reports whether the pull request has been merged.
func (p *PullRequest) Merged() bool {
	return p.MergedAt != nil
}

// HasLabel reports whether the pull request carries the named label.
func (p *PullRequest) HasLabel(name string) bool {
	for _, l := range p.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}
