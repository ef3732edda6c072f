// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"
	"fmt"

	"github.com/psmbuild/psmbuild/internal/assemble"
	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/extract"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/internal/manifest"
	"github.com/psmbuild/psmbuild/internal/project"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/internal/vcs"
)

const (
	// KindEnvironment covers filesystem, version-control and encoding
	// failures. The directory is abandoned.
	KindEnvironment Kind = "environment"
	// KindStructuralViolation covers source files and export names that
	// break the one-definition contract. The directory is abandoned.
	KindStructuralViolation Kind = "structural_violation"
	// KindMissingInput covers absent sources, histories and descriptors.
	// Processing continues with a warning.
	KindMissingInput Kind = "missing_input"
	// KindAmbiguousDescriptor covers several descriptors in one directory.
	// The descriptor step is skipped with a warning.
	KindAmbiguousDescriptor Kind = "ambiguous_descriptor"
	// KindRecoverableLookupFailure covers per-file lookups that failed while
	// the rest of the directory could proceed.
	KindRecoverableLookupFailure Kind = "recoverable_lookup_failure"
)

// ErrInvalidKind is the sentinel error wrapped by InvalidKindError.
var ErrInvalidKind = errors.New("invalid error kind")

type (
	// Kind is the failure category of an error or diagnostic.
	Kind string

	// InvalidKindError is returned when a Kind value is not recognized.
	InvalidKindError struct {
		Value Kind
	}
)

// String returns the string representation of the Kind.
func (k Kind) String() string { return string(k) }

// IsValid returns whether the Kind is one of the defined categories.
func (k Kind) IsValid() (bool, []error) {
	switch k {
	case KindEnvironment, KindStructuralViolation, KindMissingInput,
		KindAmbiguousDescriptor, KindRecoverableLookupFailure:
		return true, nil
	default:
		return false, []error{&InvalidKindError{Value: k}}
	}
}

// Fatal reports whether errors of this kind abandon the directory.
func (k Kind) Fatal() bool {
	return k == KindEnvironment || k == KindStructuralViolation
}

// Issue returns the catalog entry that explains this kind, if any.
func (k Kind) Issue() (issue.Id, bool) {
	switch k {
	case KindStructuralViolation:
		return issue.StructuralViolationId, true
	case KindAmbiguousDescriptor:
		return issue.AmbiguousDescriptorId, true
	case KindMissingInput:
		return issue.NoSourcesId, true
	default:
		return 0, false
	}
}

// Error implements the error interface for InvalidKindError.
func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid error kind %q", e.Value)
}

// Unwrap returns ErrInvalidKind for errors.Is() compatibility.
func (e *InvalidKindError) Unwrap() error { return ErrInvalidKind }

// Classify returns the category of err. Errors no stage claims are treated
// as environment failures; nil has no kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, extract.ErrStructuralViolation),
		errors.Is(err, assemble.ErrReservedDelimiter),
		errors.Is(err, assemble.ErrNothingExported):
		return KindStructuralViolation
	case errors.Is(err, manifest.ErrAmbiguousDescriptor):
		return KindAmbiguousDescriptor
	case errors.Is(err, vcs.ErrNoHistory),
		errors.Is(err, manifest.ErrDeclined):
		return KindMissingInput
	default:
		return KindEnvironment
	}
}

// KindOf returns the category of a diagnostic code. Informational codes
// have no kind.
func KindOf(code diag.Code) Kind {
	switch code {
	case diag.CodeHistoryMissing, diag.CodeNoSources, diag.CodeDescriptorDeclined, diag.CodeNameClaimed:
		return KindMissingInput
	case diag.CodeHistoryLookupFailed, diag.CodeDescriptorLoad, diag.CodeAnalyzerFailed:
		return KindRecoverableLookupFailure
	case diag.CodeDescriptorAmbiguous:
		return KindAmbiguousDescriptor
	default:
		return ""
	}
}

// issueFor picks the catalog entry that best explains a fatal module error.
func issueFor(err error) (issue.Id, bool) {
	switch {
	case errors.Is(err, vcs.ErrClientUnavailable):
		return issue.VCSUnavailableId, true
	case errors.Is(err, assemble.ErrReservedDelimiter):
		return issue.ReservedDelimiterId, true
	case errors.Is(err, textenc.ErrInvalidEncoding):
		return issue.InvalidEncodingId, true
	case errors.Is(err, project.ErrTargetOverlapsSource):
		return issue.TargetOverlapsSourceId, true
	default:
		return Classify(err).Issue()
	}
}
