package engine

import (
	"errors"
	"fmt"
)

// ErrSessionBusy is returned when a mutating action is invoked while
// another is in flight. Actions are never interleaved: concurrent git
// mutation and forge writes under the same idempotency keys could race
// into duplicate artifacts.
var ErrSessionBusy = errors.New("session busy: another action is in progress")

// PreconditionError reports an action invoked in a state that does not
// permit it. Never retried; the precondition will not become true by
// waiting.
type PreconditionError struct {
	Action string
	Stage  int
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s (stage %d): %s", e.Action, e.Stage, e.Reason)
}
