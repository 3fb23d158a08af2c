package cli

import (
	"errors"
	"fmt"

	"phasegate/internal/engine"
)

// Exit codes returned to the shell. Scripts drive their retry and abort
// decisions off these, so the mapping is part of the command contract.
const (
	// exitFailure covers general errors, including definitions or
	// instances that cannot be found.
	exitFailure = 1

	// exitPrecondition reports an operation the engine refused because of
	// the instance's current state: unmet dependencies, skips of mandatory
	// steps, operations on terminal instances, and the like.
	exitPrecondition = 2

	// exitVerification reports a step whose verification gate failed.
	exitVerification = 3
)

// ExitError represents a command execution failure with a specific exit code.
//
// This error type allows Cobra RunE functions to signal non-zero exit codes
// without calling os.Exit() directly, enabling testable CLI behavior.
// Commands return one of these; it propagates up to main, where
// [IsExitError] extracts the code for the shell.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int

	// Err is the underlying failure, when there is one. Verification
	// failures carry no Err: the snapshot rendering already reported them.
	Err error
}

// Error implements the error interface. With a cause it reports the
// cause's message; without one it falls back to the "exit status N"
// format used by os/exec.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap exposes the underlying failure to errors.Is and errors.As.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an [ExitError] with the given exit code and no
// underlying cause.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// WrapExitError attaches an exit code to an underlying failure so the
// error message survives to the terminal while the code survives to the
// shell.
func WrapExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit
// code. Returns (0, false) for nil or unrelated errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// wrapExit classifies err per the exit code contract and attaches the
// resulting code.
func wrapExit(err error) error {
	return WrapExitError(exitCodeFor(err), err)
}

// exitCodeFor maps engine and store failures onto the command exit code
// contract. Preconditions the engine refused map to 2; everything else,
// including lookups that found nothing or too much, maps to the general 1.
func exitCodeFor(err error) int {
	preconditions := []error{
		engine.ErrDependencyNotSatisfied,
		engine.ErrStepNotOptional,
		engine.ErrStepNotPending,
		engine.ErrInstanceBlocked,
		engine.ErrInstanceNotBlocked,
		engine.ErrInstanceTerminal,
		engine.ErrNotAwaitingAttestation,
		engine.ErrDefinitionMismatch,
	}
	for _, sentinel := range preconditions {
		if errors.Is(err, sentinel) {
			return exitPrecondition
		}
	}
	return exitFailure
}
