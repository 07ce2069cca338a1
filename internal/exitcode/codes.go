// Package exitcode defines named exit codes for the questmaster CLI.
//
// Each code maps a specific termination condition to a numeric value
// recognized by shell scripts and CI pipelines.
package exitcode

import (
	"errors"

	"github.com/CodexForgeBR/questmaster/internal/engine"
)

// Exit code constants for questmaster commands.
const (
	Success      = 0   // Command completed
	Error        = 1   // Invalid args, broken quest, forge failure
	Precondition = 2   // Quest state does not admit the command
	Busy         = 3   // Another mutating command holds the session
	Interrupted  = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case Precondition:
		return "Precondition"
	case Busy:
		return "Busy"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}

// FromError maps a command error to its exit code.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var precondition *engine.PreconditionError
	switch {
	case errors.Is(err, engine.ErrSessionBusy):
		return Busy
	case errors.As(err, &precondition):
		return Precondition
	default:
		return Error
	}
}
