// SPDX-License-Identifier: MPL-2.0

// Package diag defines the structured diagnostics that pipeline stages return
// to their callers instead of writing to a console. The build layer decides
// how to log and report them.
package diag

import (
	"errors"
	"fmt"
)

const (
	// SeverityInfo records an auditable decision, such as a content substitution.
	SeverityInfo Severity = "info"
	// SeverityWarning indicates a recoverable problem; processing continued.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal error; the affected step was skipped.
	SeverityError Severity = "error"
)

// ErrInvalidSeverity is the sentinel error wrapped by InvalidSeverityError.
var ErrInvalidSeverity = errors.New("invalid diagnostic severity")

type (
	// Severity represents diagnostic severity.
	Severity string

	// InvalidSeverityError is returned when a Severity value is not recognized.
	InvalidSeverityError struct {
		Value Severity
	}

	// Diagnostic is one structured message produced by a pipeline stage.
	Diagnostic struct {
		// Severity is the diagnostic level.
		Severity Severity `json:"severity" yaml:"severity"`
		// Code is a machine-readable identifier (e.g., "history_missing").
		Code Code `json:"code" yaml:"code"`
		// Message is the human-readable description.
		Message string `json:"message" yaml:"message"`
		// Path is the file path associated with this diagnostic (optional).
		Path string `json:"path,omitempty" yaml:"path,omitempty"`
		// Cause is the underlying error (optional, for programmatic inspection).
		Cause error `json:"-" yaml:"-"`
	}

	// Code identifies a diagnostic kind.
	Code string

	// List accumulates diagnostics in emission order.
	List []Diagnostic
)

// Diagnostic codes.
const (
	CodeHistorySubstituted  Code = "history_substituted"
	CodeHistoryMissing      Code = "history_missing"
	CodeHistoryLookupFailed Code = "history_lookup_failed"
	CodeUncommittedIncluded Code = "uncommitted_included"
	CodeNoSources           Code = "no_sources"
	CodeNameClaimed         Code = "name_already_claimed"
	CodeDescriptorAmbiguous Code = "descriptor_ambiguous"
	CodeDescriptorDeclined  Code = "descriptor_declined"
	CodeDescriptorLoad      Code = "descriptor_load_failed"
	CodeAnalyzerFinding     Code = "analyzer_finding"
	CodeAnalyzerFailed      Code = "analyzer_failed"
)

// String returns the string representation of the Severity.
func (s Severity) String() string { return string(s) }

// IsValid returns whether the Severity is one of the defined levels.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true, nil
	default:
		return false, []error{&InvalidSeverityError{Value: s}}
	}
}

// Error implements the error interface for InvalidSeverityError.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid diagnostic severity %q (valid: info, warning, error)", e.Value)
}

// Unwrap returns ErrInvalidSeverity for errors.Is() compatibility.
func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// Infof appends an info diagnostic.
func (l *List) Infof(code Code, path, format string, args ...any) {
	l.add(SeverityInfo, code, path, nil, format, args...)
}

// Warnf appends a warning diagnostic.
func (l *List) Warnf(code Code, path string, cause error, format string, args ...any) {
	l.add(SeverityWarning, code, path, cause, format, args...)
}

// Errorf appends an error diagnostic.
func (l *List) Errorf(code Code, path string, cause error, format string, args ...any) {
	l.add(SeverityError, code, path, cause, format, args...)
}

func (l *List) add(sev Severity, code Code, path string, cause error, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
		Cause:    cause,
	})
}

// Has reports whether the list holds a diagnostic with the given code.
func (l List) Has(code Code) bool {
	for _, d := range l {
		if d.Code == code {
			return true
		}
	}
	return false
}
