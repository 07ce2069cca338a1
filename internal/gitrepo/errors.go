package gitrepo

import (
	"fmt"
	"strings"
)

// ErrorKind classifies local repository failures.
type ErrorKind int

const (
	// KindIO covers filesystem and subprocess failures with no more
	// specific classification.
	KindIO ErrorKind = iota
	// KindNotARepo means the directory is not a git working tree.
	KindNotARepo
	// KindDirtyTree means an operation required a clean tree and found
	// uncommitted changes.
	KindDirtyTree
	// KindRefNotFound means a named ref does not exist.
	KindRefNotFound
	// KindPushRejected means the remote refused a push.
	KindPushRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotARepo:
		return "not a repository"
	case KindDirtyTree:
		return "dirty tree"
	case KindRefNotFound:
		return "ref not found"
	case KindPushRejected:
		return "push rejected"
	default:
		return "io error"
	}
}

// RepositoryError wraps a failed git operation with its classification.
// The adapter never retries; retry policy belongs to the caller.
type RepositoryError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("git %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// classify maps git stderr text to an ErrorKind.
func classify(op, output string, err error) *RepositoryError {
	kind := KindIO
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "not a git repository"):
		kind = KindNotARepo
	case strings.Contains(lower, "unknown revision"),
		strings.Contains(lower, "bad revision"),
		strings.Contains(lower, "did not match any"),
		strings.Contains(lower, "couldn't find remote ref"):
		kind = KindRefNotFound
	case strings.Contains(lower, "[rejected]"),
		strings.Contains(lower, "failed to push"):
		kind = KindPushRejected
	case strings.Contains(lower, "your local changes"),
		strings.Contains(lower, "would be overwritten"):
		kind = KindDirtyTree
	}
	return &RepositoryError{Kind: kind, Op: op, Err: err}
}
