// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"fmt"

	"github.com/psmbuild/psmbuild/pkg/types"
)

const (
	// ViolationName is a file base name that cannot be a definition name.
	ViolationName ViolationKind = "invalid_name"
	// ViolationSyntax is content that does not parse.
	ViolationSyntax ViolationKind = "syntax"
	// ViolationDefinitionCount is a file with zero or several top-level
	// definitions.
	ViolationDefinitionCount ViolationKind = "definition_count"
	// ViolationExecutionBlock is a script-level param block or a named
	// begin/process/end/dynamicparam/clean block.
	ViolationExecutionBlock ViolationKind = "execution_block"
	// ViolationStatement is any other top-level statement.
	ViolationStatement ViolationKind = "top_level_statement"
	// ViolationAlias is a declared alias that cannot be exported.
	ViolationAlias ViolationKind = "invalid_alias"
)

// ErrStructuralViolation is the sentinel error wrapped by StructuralError.
var ErrStructuralViolation = errors.New("structural violation")

type (
	// ViolationKind identifies which authoring rule a source file broke.
	ViolationKind string

	// StructuralError reports a source file that cannot be turned into a
	// definition record. It wraps ErrStructuralViolation and, when present,
	// the underlying cause (a syntax or name validation error).
	StructuralError struct {
		Path types.FilesystemPath
		Kind ViolationKind
		// Line is the 1-based line of the offending construct (0 if unknown).
		Line   int
		Detail string
		Err    error
	}
)

// Error implements the error interface for StructuralError.
func (e *StructuralError) Error() string {
	loc := e.Path.String()
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", loc, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", loc, e.Detail)
}

// Unwrap returns ErrStructuralViolation and the cause, if any.
func (e *StructuralError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStructuralViolation}
	}
	return []error{ErrStructuralViolation, e.Err}
}
