package cmd

import (
	"errors"
	"fmt"

	"go-workshop-sync/internal/workshop"
)

// Process exit codes.
const (
	ExitOK                 = 0
	ExitNoInputs           = 1 // Nothing requested, help printed
	ExitInitFailed         = 2 // Usage, configuration, store or service setup failed
	ExitServiceUnavailable = 3 // Download requested but the service cannot be reached
	ExitFault              = 4 // Unhandled fault or batch-fatal error
	ExitUnsupportedType    = 5 // Download of a type the game cannot fetch
	ExitBatchFailed        = 6 // Batch ran but at least one type failed
)

// exitError carries the exit code a command wants the process to end with.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// batchError tags an error that ended a running batch. Anything without a more
// specific code is a fault.
func batchError(err error) error {
	if errors.Is(err, workshop.ErrUnsupportedType) {
		return err
	}
	return withExitCode(ExitFault, err)
}

// exitCodeFor maps a command error onto a process exit code. Untagged errors
// come from argument parsing or setup, before any batch ran.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var fault *workshop.FaultError
	switch {
	case errors.As(err, &fault):
		return ExitFault
	case errors.Is(err, workshop.ErrUnsupportedType):
		return ExitUnsupportedType
	case errors.Is(err, workshop.ErrNoInputs):
		return ExitNoInputs
	}
	return ExitInitFailed
}
