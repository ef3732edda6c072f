// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
var ErrInvalidFilesystemPath = errors.New("invalid filesystem path")

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// A valid path must be non-empty and not whitespace-only.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty or whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns an error if the path is empty or whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// Slash returns the path with every separator (both '/' and '\') turned into
// '/', so paths reported by different tools compare equal.
func (p FilesystemPath) Slash() string {
	return strings.ReplaceAll(filepath.ToSlash(string(p)), `\`, "/")
}

// HasSuffixPath reports whether p ends with suffix on a path-segment
// boundary, comparing separator-agnostically. "a/b/c.ps1" has suffix
// "b/c.ps1" but not "/c.ps1" nor "bc.ps1".
func (p FilesystemPath) HasSuffixPath(suffix FilesystemPath) bool {
	full, tail := p.Slash(), strings.TrimPrefix(suffix.Slash(), "./")
	if tail == "" || !strings.HasSuffix(full, tail) {
		return false
	}
	if len(full) == len(tail) {
		return true
	}
	return full[len(full)-len(tail)-1] == '/'
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }
