package apperrors

import "errors"

// Exit codes returned by the command line tools.
const (
	ExitOK       = 0
	ExitFailure  = 1 // runtime failure
	ExitUsage    = 2 // invalid configuration or arguments
	ExitNotFound = 3 // missing input file or folder
)

// ExitCode maps an error to the appropriate process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrValidation):
		return ExitUsage
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	default:
		return ExitFailure
	}
}
