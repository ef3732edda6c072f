// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/psmbuild/psmbuild/pkg/types"
)

// ExitError carries the process exit status out of a RunE handler. Handlers
// print their own message first, so Execute only needs the code.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	switch e.Code {
	case types.ExitFailure:
		return "one or more modules failed to build"
	case types.ExitUsage:
		return "invalid invocation or configuration"
	default:
		return fmt.Sprintf("exit status %d", e.Code)
	}
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCodeOf maps the error returned by the command tree to a process exit
// status. Errors that did not go through an ExitError count as failures.
func exitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	if exitErr, ok := errors.AsType[*ExitError](err); ok {
		return exitErr.Code
	}
	return types.ExitFailure
}
