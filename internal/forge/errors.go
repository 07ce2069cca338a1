package forge

import (
	"fmt"
	"strings"
)

// ErrorKind classifies remote forge failures.
type ErrorKind int

const (
	// KindTransient covers network hiccups; retryable.
	KindTransient ErrorKind = iota
	// KindRateLimited means the forge throttled the request; retryable
	// after a delay.
	KindRateLimited
	// KindNotFound means the target resource does not exist. For lookups
	// this is a normal "does not exist yet" signal, not an error.
	KindNotFound
	// KindUnauthorized means the credentials were rejected; fatal to the
	// session, never retried.
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "transient network error"
	}
}

// ForgeError wraps a failed forge operation with its classification.
type ForgeError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ForgeError) Error() string {
	return fmt.Sprintf("forge %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ForgeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may resolve by waiting and
// retrying. Unauthorized and NotFound never do.
func (e *ForgeError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// classify maps gh CLI output to an ErrorKind.
func classify(op, output string, err error) *ForgeError {
	kind := KindTransient
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "http 401"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "bad credentials"),
		strings.Contains(lower, "gh auth login"):
		kind = KindUnauthorized
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "http 429"),
		strings.Contains(lower, "secondary limit"):
		kind = KindRateLimited
	case strings.Contains(lower, "http 404"),
		strings.Contains(lower, "could not resolve to"),
		strings.Contains(lower, "not found"):
		kind = KindNotFound
	}
	return &ForgeError{Kind: kind, Op: op, Err: err}
}
