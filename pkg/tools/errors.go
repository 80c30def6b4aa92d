package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned for names that were never registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrAgentContextRequired is returned when a crew-dependent tool is invoked without a crew member
	ErrAgentContextRequired = errors.New("tool requires a crew instance")

	// ErrUnknownArgument is returned when an argument name is not among the tool's parameters
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrDuplicateTool is returned when registering a name twice
	ErrDuplicateTool = errors.New("tool already registered")
)

// InvocationError describes a failed invocation. Its message is the text the
// crew and the user see, so it is written to history verbatim.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrToolNotFound):
		return fmt.Sprintf("Tool '%s' not found.", e.Tool)
	case errors.Is(e.Err, ErrAgentContextRequired):
		return "Error: This tool requires a crew instance."
	default:
		return fmt.Sprintf("Error executing tool '%s': %s", e.Tool, e.Err.Error())
	}
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
