// Package forge wraps the remote issue and pull-request operations the
// quest engine drives. The default implementation shells out to the
// installed gh CLI, which carries the learner's existing authentication;
// everything runs through interfaces so tests substitute fakes.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CmdRunner executes a gh command and returns its combined, trimmed output.
type CmdRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs gh via exec in a fixed directory so gh infers the
// repository from the local git remote.
type ExecRunner struct {
	Dir string
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		return trimmed, fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), trimmed, err)
	}
	return trimmed, nil
}

// CreatePullRequestOptions parameterizes pull request creation. Head is the
// idempotency key: callers must look the branch up before creating.
type CreatePullRequestOptions struct {
	Head   string
	Base   string
	Title  string
	Body   string
	Labels []string
}

// Client is the forge capability interface consumed by the engine. Find
// operations return (nil, nil) when the artifact does not exist yet; every
// create is keyed so a lookup-then-create sequence converges under retries.
type Client interface {
	FindIssue(ctx context.Context, label string) (*Issue, error)
	CreateIssue(ctx context.Context, label, title, body string) (*Issue, error)
	CloseIssue(ctx context.Context, number int) error
	FindPullRequest(ctx context.Context, headBranch string) (*PullRequest, error)
	CreatePullRequest(ctx context.Context, opts CreatePullRequestOptions) (*PullRequest, error)
	AddLabels(ctx context.Context, prNumber int, labels ...string) error
}

const issueFields = "number,title,url,state,labels"
const prFields = "number,title,url,state,labels,headRefName,mergedAt"

// GHClient implements Client over the gh CLI.
type GHClient struct {
	run CmdRunner
}

// NewClient returns a Client bound to the repository at dir.
func NewClient(dir string) *GHClient {
	return &GHClient{run: &ExecRunner{Dir: dir}}
}

// NewClientWithRunner returns a Client using a custom runner.
func NewClientWithRunner(run CmdRunner) *GHClient {
	return &GHClient{run: run}
}

// FindIssue looks up the issue carrying the stage label. A missing issue is
// (nil, nil), not an error.
func (c *GHClient) FindIssue(ctx context.Context, label string) (*Issue, error) {
	out, err := c.run.Run(ctx, "issue", "list",
		"--label", label,
		"--state", "all",
		"--limit", "1",
		"--json", issueFields)
	if err != nil {
		return nil, classify("find issue", out, err)
	}

	var issues []Issue
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		return nil, &ForgeError{Kind: KindTransient, Op: "find issue",
			Err: fmt.Errorf("parse issue list: %w", err)}
	}
	if len(issues) == 0 {
		return nil, nil
	}
	return &issues[0], nil
}

// CreateIssue opens an issue tagged with the stage label. The label is
// created first so tagging cannot fail on a fresh repository.
func (c *GHClient) CreateIssue(ctx context.Context, label, title, body string) (*Issue, error) {
	if err := c.ensureLabel(ctx, label); err != nil {
		return nil, err
	}

	out, err := c.run.Run(ctx, "issue", "create",
		"--title", title,
		"--body", body,
		"--label", label)
	if err != nil {
		return nil, classify("create issue", out, err)
	}

	// gh prints the new issue URL on the last line.
	url := lastLine(out)
	number, err := numberFromURL(url)
	if err != nil {
		return nil, &ForgeError{Kind: KindTransient, Op: "create issue", Err: err}
	}
	return &Issue{
		Number: number,
		Title:  title,
		URL:    url,
		State:  "OPEN",
		Labels: []Label{{Name: label}},
	}, nil
}

// CloseIssue closes an issue by number.
func (c *GHClient) CloseIssue(ctx context.Context, number int) error {
	out, err := c.run.Run(ctx, "issue", "close", strconv.Itoa(number))
	if err != nil {
		return classify("close issue", out, err)
	}
	return nil
}

// FindPullRequest looks up the pull request whose head is the given branch.
// A missing PR is (nil, nil), not an error.
func (c *GHClient) FindPullRequest(ctx context.Context, headBranch string) (*PullRequest, error) {
	out, err := c.run.Run(ctx, "pr", "list",
		"--head", headBranch,
		"--state", "all",
		"--limit", "1",
		"--json", prFields)
	if err != nil {
		return nil, classify("find pull request", out, err)
	}

	var prs []PullRequest
	if err := json.Unmarshal([]byte(out), &prs); err != nil {
		return nil, &ForgeError{Kind: KindTransient, Op: "find pull request",
			Err: fmt.Errorf("parse pr list: %w", err)}
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

// CreatePullRequest opens a pull request from opts.Head into opts.Base and
// applies the requested labels.
func (c *GHClient) CreatePullRequest(ctx context.Context, opts CreatePullRequestOptions) (*PullRequest, error) {
	for _, label := range opts.Labels {
		if err := c.ensureLabel(ctx, label); err != nil {
			return nil, err
		}
	}

	args := []string{"pr", "create",
		"--head", opts.Head,
		"--base", opts.Base,
		"--title", opts.Title,
		"--body", opts.Body,
	}
	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}

	out, err := c.run.Run(ctx, args...)
	if err != nil {
		return nil, classify("create pull request", out, err)
	}

	url := lastLine(out)
	number, err := numberFromURL(url)
	if err != nil {
		return nil, &ForgeError{Kind: KindTransient, Op: "create pull request", Err: err}
	}
	labels := make([]Label, len(opts.Labels))
	for i, name := range opts.Labels {
		labels[i] = Label{Name: name}
	}
	return &PullRequest{
		Number:     number,
		Title:      opts.Title,
		URL:        url,
		State:      "OPEN",
		HeadBranch: opts.Head,
		Labels:     labels,
	}, nil
}

// AddLabels tags an existing pull request.
func (c *GHClient) AddLabels(ctx context.Context, prNumber int, labels ...string) error {
	args := []string{"pr", "edit", strconv.Itoa(prNumber)}
	for _, label := range labels {
		if err := c.ensureLabel(ctx, label); err != nil {
			return err
		}
		args = append(args, "--add-label", label)
	}
	out, err := c.run.Run(ctx, args...)
	if err != nil {
		return classify("add labels", out, err)
	}
	return nil
}

// ensureLabel creates the label if it is missing. --force makes the call
// idempotent.
func (c *GHClient) ensureLabel(ctx context.Context, name string) error {
	out, err := c.run.Run(ctx, "label", "create", name, "--force")
	if err != nil {
		return classify("ensure label", out, err)
	}
	return nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// numberFromURL extracts the artifact number from a forge URL such as
// https://github.com/user/repo/issues/42 or .../pull/7.
func numberFromURL(url string) (int, error) {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0, fmt.Errorf("no artifact number in URL %q", url)
	}
	number, err := strconv.Atoi(url[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("no artifact number in URL %q: %w", url, err)
	}
	return number, nil
}
