package forge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCmdRunner replays canned gh output keyed by the joined argument string.
type fakeCmdRunner struct {
	calls     []string
	responses map[string]string
	failures  map[string]string
}

func newFakeCmdRunner() *fakeCmdRunner {
	return &fakeCmdRunner{
		responses: make(map[string]string),
		failures:  make(map[string]string),
	}
}

func (f *fakeCmdRunner) Run(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if out, ok := f.failures[key]; ok {
		return out, errors.New("exit status 1")
	}
	return f.responses[key], nil
}

const findIssueKey = "issue list --label setup --state all --limit 1 --json " + issueFields
const findPRKey = "pr list --head setup-a --state all --limit 1 --json " + prFields

// TestFindIssue tests issue lookup by stage label.
func TestFindIssue(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses[findIssueKey] =
		`[{"number":3,"title":"Set up","url":"https://example.com/issues/3","state":"OPEN","labels":[{"name":"setup"}]}]`
	client := NewClientWithRunner(run)

	issue, err := client.FindIssue(context.Background(), "setup")
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 3, issue.Number)
	assert.False(t, issue.Closed())
}

// TestFindIssue_Missing tests that a missing issue is nil, nil.
func TestFindIssue_Missing(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses[findIssueKey] = `[]`
	client := NewClientWithRunner(run)

	issue, err := client.FindIssue(context.Background(), "setup")
	require.NoError(t, err)
	assert.Nil(t, issue)
}

// TestCreateIssue tests label bootstrap and URL parsing.
func TestCreateIssue(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses["issue create --title Set up --body Body --label setup"] =
		"https://example.com/owner/repo/issues/12"
	client := NewClientWithRunner(run)

	issue, err := client.CreateIssue(context.Background(), "setup", "Set up", "Body")
	require.NoError(t, err)
	assert.Equal(t, 12, issue.Number)
	assert.Equal(t, "https://example.com/owner/repo/issues/12", issue.URL)
	// The label must exist before the issue references it.
	assert.Equal(t, "label create setup --force", run.calls[0])
}

// TestFindPullRequest tests PR lookup by head branch, including merge state.
func TestFindPullRequest(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses[findPRKey] =
		`[{"number":7,"title":"Starter","url":"https://example.com/pull/7","state":"MERGED","headRefName":"setup-a","labels":[{"name":"setup"}],"mergedAt":"2026-08-30T12:00:00Z"}]`
	client := NewClientWithRunner(run)

	pr, err := client.FindPullRequest(context.Background(), "setup-a")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, 7, pr.Number)
	assert.True(t, pr.Merged())
	assert.True(t, pr.HasLabel("setup"))
	assert.False(t, pr.HasLabel(ResetLabel))
}

// TestFindPullRequest_Missing tests that a missing PR is nil, nil.
func TestFindPullRequest_Missing(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses[findPRKey] = `[]`
	client := NewClientWithRunner(run)

	pr, err := client.FindPullRequest(context.Background(), "setup-a")
	require.NoError(t, err)
	assert.Nil(t, pr)
}

// TestCreatePullRequest tests PR creation with labels.
func TestCreatePullRequest(t *testing.T) {
	run := newFakeCmdRunner()
	run.responses["pr create --head setup-a --base main --title Starter --body Seed --label setup"] =
		"https://example.com/owner/repo/pull/9"
	client := NewClientWithRunner(run)

	pr, err := client.CreatePullRequest(context.Background(), CreatePullRequestOptions{
		Head:   "setup-a",
		Base:   "main",
		Title:  "Starter",
		Body:   "Seed",
		Labels: []string{"setup"},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, pr.Number)
	assert.Equal(t, "setup-a", pr.HeadBranch)
	assert.True(t, pr.HasLabel("setup"))
}

// TestErrorClassification tests mapping gh output to forge error kinds.
func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		expected  ErrorKind
		retryable bool
	}{
		{
			name:      "bad credentials",
			output:    "HTTP 401: Bad credentials (https://api.github.com/graphql)",
			expected:  KindUnauthorized,
			retryable: false,
		},
		{
			name:      "auth required",
			output:    "To get started with GitHub CLI, please run: gh auth login",
			expected:  KindUnauthorized,
			retryable: false,
		},
		{
			name:      "rate limited",
			output:    "HTTP 403: API rate limit exceeded",
			expected:  KindRateLimited,
			retryable: true,
		},
		{
			name:      "missing repository",
			output:    "GraphQL: Could not resolve to a Repository",
			expected:  KindNotFound,
			retryable: false,
		},
		{
			name:      "network failure",
			output:    "dial tcp: lookup api.github.com: no such host",
			expected:  KindTransient,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newFakeCmdRunner()
			run.failures[findIssueKey] = tt.output
			client := NewClientWithRunner(run)

			_, err := client.FindIssue(context.Background(), "setup")
			require.Error(t, err)

			var forgeErr *ForgeError
			require.ErrorAs(t, err, &forgeErr)
			assert.Equal(t, tt.expected, forgeErr.Kind)
			assert.Equal(t, tt.retryable, forgeErr.Retryable())
		})
	}
}

// TestNumberFromURL tests artifact number extraction.
func TestNumberFromURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expected    int
		expectError bool
	}{
		{name: "issue url", url: "https://example.com/o/r/issues/42", expected: 42},
		{name: "pull url", url: "https://example.com/o/r/pull/7", expected: 7},
		{name: "trailing slash", url: "https://example.com/o/r/pull/7/", expectError: true},
		{name: "no number", url: "https://example.com/o/r/pulls", expectError: true},
		{name: "empty", url: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := numberFromURL(tt.url)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}
