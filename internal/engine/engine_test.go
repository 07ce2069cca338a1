package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CodexForgeBR/questmaster/internal/forge"
	"github.com/CodexForgeBR/questmaster/internal/quest"
)

// testQuest mirrors the canonical three-stage playthrough: a no-starter
// setup stage followed by two regular stages.
const testQuest = `
title: Guessing Game
stages:
  - label: setup
    name: Set up the project
    no-starter: true
    owned-paths: ["README.md"]
    issue-body: Create the project skeleton.
  - label: guess-loop
    name: Implement the guessing loop
    owned-paths: ["src/game/*"]
    issue-body: Implement the loop.
    starter-body: Starter code.
    solution-body: Reference solution.
  - label: grader
    name: Grade the guesses
    owned-paths: ["src/grader/*"]
    issue-body: Add grading.
    starter-body: Grader starter.
    solution-body: Grader solution.
`

// fakeForge is an in-memory forge keyed exactly like the real one: issues
// by stage label, PRs by head branch.
type fakeForge struct {
	mu     sync.Mutex
	issues map[string]*forge.Issue
	prs    map[string]*forge.PullRequest
	next   int

	issueCreates int
	prCreates    int

	// gate, when non-nil, blocks FindIssue until released. Used to hold a
	// mutating action in flight.
	gate chan struct{}
}

func newFakeForge() *fakeForge {
	return &fakeForge{
		issues: make(map[string]*forge.Issue),
		prs:    make(map[string]*forge.PullRequest),
		next:   1,
	}
}

func (f *fakeForge) FindIssue(_ context.Context, label string) (*forge.Issue, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if issue, ok := f.issues[label]; ok {
		copied := *issue
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeForge) CreateIssue(_ context.Context, label, title, body string) (*forge.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := &forge.Issue{
		Number: f.next,
		Title:  title,
		URL:    fmt.Sprintf("https://forge.test/issues/%d", f.next),
		State:  "OPEN",
		Labels: []forge.Label{{Name: label}},
	}
	f.next++
	f.issueCreates++
	f.issues[label] = issue
	copied := *issue
	return &copied, nil
}

func (f *fakeForge) CloseIssue(_ context.Context, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, issue := range f.issues {
		if issue.Number == number {
			issue.State = "CLOSED"
			return nil
		}
	}
	return &forge.ForgeError{Kind: forge.KindNotFound, Op: "close issue",
		Err: fmt.Errorf("no issue %d", number)}
}

func (f *fakeForge) FindPullRequest(_ context.Context, headBranch string) (*forge.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.prs[headBranch]; ok {
		copied := *pr
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeForge) CreatePullRequest(_ context.Context, opts forge.CreatePullRequestOptions) (*forge.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]forge.Label, len(opts.Labels))
	for i, name := range opts.Labels {
		labels[i] = forge.Label{Name: name}
	}
	pr := &forge.PullRequest{
		Number:     f.next,
		Title:      opts.Title,
		URL:        fmt.Sprintf("https://forge.test/pull/%d", f.next),
		State:      "OPEN",
		HeadBranch: opts.Head,
		Labels:     labels,
	}
	f.next++
	f.prCreates++
	f.prs[opts.Head] = pr
	copied := *pr
	return &copied, nil
}

func (f *fakeForge) AddLabels(_ context.Context, prNumber int, labels ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.prs {
		if pr.Number == prNumber {
			for _, name := range labels {
				pr.Labels = append(pr.Labels, forge.Label{Name: name})
			}
			return nil
		}
	}
	return &forge.ForgeError{Kind: forge.KindNotFound, Op: "add labels",
		Err: fmt.Errorf("no pr %d", prNumber)}
}

// mergePR simulates the learner merging a PR in their browser.
func (f *fakeForge) mergePR(headBranch string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := f.prs[headBranch]
	now := time.Now()
	pr.MergedAt = &now
	pr.State = "MERGED"
}

// closeIssueByLabel simulates the learner closing a stage issue.
func (f *fakeForge) closeIssueByLabel(label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[label].State = "CLOSED"
}

// fakeRepo records git operations and replays configured divergence.
type fakeRepo struct {
	mu            sync.Mutex
	dir           string
	head          string
	clean         bool
	ops           []string
	divergedPaths []string
	cherryPickErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{dir: "/quests/guessing-game", head: "abc1234", clean: true}
}

func (r *fakeRepo) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
}

func (r *fakeRepo) hasOp(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if strings.Contains(op, substr) {
			return true
		}
	}
	return false
}

func (r *fakeRepo) Dir() string { return r.dir }

func (r *fakeRepo) CurrentHead(context.Context) (string, error) { return r.head, nil }

func (r *fakeRepo) IsClean(context.Context) (bool, error) { return r.clean, nil }

func (r *fakeRepo) CreateBranchFrom(_ context.Context, name, baseRef string) error {
	r.record("branch %s %s", name, baseRef)
	return nil
}

func (r *fakeRepo) Checkout(_ context.Context, name string) error {
	r.record("checkout %s", name)
	return nil
}

func (r *fakeRepo) ForcePush(_ context.Context, remote, name string) error {
	r.record("push %s %s", remote, name)
	return nil
}

func (r *fakeRepo) Fetch(_ context.Context, remote string) error {
	r.record("fetch %s", remote)
	return nil
}

func (r *fakeRepo) Pull(context.Context) error {
	r.record("pull")
	return nil
}

func (r *fakeRepo) DiffOwnedFiles(_ context.Context, against string, globs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.divergedPaths...), nil
}

func (r *fakeRepo) ResetHardTo(_ context.Context, ref string) error {
	r.record("reset --hard %s", ref)
	r.mu.Lock()
	defer r.mu.Unlock()
	// A hard reset restores the reference baseline, clearing divergence.
	r.divergedPaths = nil
	return nil
}

func (r *fakeRepo) CherryPickRange(_ context.Context, base, head string) error {
	r.record("cherry-pick %s..%s", base, head)
	return r.cherryPickErr
}

func (r *fakeRepo) CherryPickAbort(context.Context) error {
	r.record("cherry-pick --abort")
	return nil
}

// newTestSession wires a session over the fakes.
func newTestSession(t *testing.T) (*Session, *fakeRepo, *fakeForge) {
	t.Helper()
	def, err := quest.Parse([]byte(testQuest))
	require.NoError(t, err)

	repo := newFakeRepo()
	client := newFakeForge()
	return NewSession(def, repo, client, DefaultOptions()), repo, client
}

// requireOngoing asserts the descriptor's progress tuple.
func requireOngoing(t *testing.T, desc *StateDescriptor, stage int, part quest.Part, status quest.Status) {
	t.Helper()
	require.Equal(t, quest.Ongoing(stage, part, status), desc.Progress,
		"expected stage %d %s %s, got %s", stage, part, status, desc.Progress)
}
