// SPDX-License-Identifier: MPL-2.0

package psast

import (
	"errors"
	"fmt"
)

// ErrSyntax is the sentinel error wrapped by SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports a lexing or parsing failure at a source position.
// It wraps ErrSyntax for errors.Is() compatibility.
type SyntaxError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func newSyntaxError(src string, offset int, format string, args ...any) *SyntaxError {
	line, col := Position(src, offset)
	return &SyntaxError{
		Offset: offset,
		Line:   line,
		Column: col,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface for SyntaxError.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// Unwrap returns ErrSyntax for errors.Is() compatibility.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }
