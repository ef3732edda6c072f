// SPDX-License-Identifier: MPL-2.0

// Package types defines value types shared by the assembly pipeline packages
// (extract, assemble, manifest, build). They carry validation but no
// pipeline behavior.
//
// This package is a leaf dependency: it imports only the standard library.
package types

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"
)

// ErrInvalidDefinitionName is the sentinel error wrapped by InvalidDefinitionNameError.
var ErrInvalidDefinitionName = errors.New("invalid definition name")

type (
	// DefinitionName is the name a definition is exported under. It is taken
	// from the source file's base name, so it must be non-empty and contain no
	// whitespace.
	DefinitionName string

	// InvalidDefinitionNameError is returned when a DefinitionName is empty or
	// contains whitespace.
	InvalidDefinitionNameError struct {
		Value  DefinitionName
		Reason string
	}
)

// DefinitionNameFromPath returns the base name of p without its extension.
// Both '/' and '\' count as separators.
func DefinitionNameFromPath(p FilesystemPath) DefinitionName {
	base := path.Base(p.Slash())
	return DefinitionName(strings.TrimSuffix(base, path.Ext(base)))
}

// String returns the string representation of the DefinitionName.
func (n DefinitionName) String() string { return string(n) }

// Validate returns an error if the name is empty or contains whitespace.
func (n DefinitionName) Validate() error {
	if reason := nameProblem(string(n)); reason != "" {
		return &InvalidDefinitionNameError{Value: n, Reason: reason}
	}
	return nil
}

// Error implements the error interface for InvalidDefinitionNameError.
func (e *InvalidDefinitionNameError) Error() string {
	return fmt.Sprintf("invalid definition name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidDefinitionName for errors.Is() compatibility.
func (e *InvalidDefinitionNameError) Unwrap() error { return ErrInvalidDefinitionName }

func nameProblem(s string) string {
	if s == "" {
		return "must be non-empty"
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "must not contain whitespace"
	}
	return ""
}
