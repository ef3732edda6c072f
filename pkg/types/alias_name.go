// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
)

// ErrInvalidAliasName is the sentinel error wrapped by InvalidAliasNameError.
var ErrInvalidAliasName = errors.New("invalid alias name")

type (
	// AliasName is an alternative command name exported alongside a definition.
	AliasName string

	// InvalidAliasNameError is returned when an AliasName is empty or contains
	// whitespace.
	InvalidAliasNameError struct {
		Value  AliasName
		Reason string
	}
)

// String returns the string representation of the AliasName.
func (a AliasName) String() string { return string(a) }

// Validate returns an error if the alias is empty or contains whitespace.
func (a AliasName) Validate() error {
	if reason := nameProblem(string(a)); reason != "" {
		return &InvalidAliasNameError{Value: a, Reason: reason}
	}
	return nil
}

// Error implements the error interface for InvalidAliasNameError.
func (e *InvalidAliasNameError) Error() string {
	return fmt.Sprintf("invalid alias name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidAliasName for errors.Is() compatibility.
func (e *InvalidAliasNameError) Unwrap() error { return ErrInvalidAliasName }
