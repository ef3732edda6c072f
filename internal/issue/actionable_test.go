// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  &ActionableError{Operation: "assemble module"},
			want: "failed to assemble module",
		},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "assemble module", Resource: "./src"},
			want: "failed to assemble module: ./src",
		},
		{
			name: "with resource and cause",
			err: &ActionableError{
				Operation: "load descriptor",
				Resource:  "./src/Tools.psd1",
				Cause:     errors.New("not a data file"),
			},
			want: "failed to load descriptor: ./src/Tools.psd1: not a data file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := &ActionableError{Operation: "x", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions",
			err: &ActionableError{
				Operation:   "assemble module",
				Resource:    "./src",
				Suggestions: []string{"Rename the function", "Check the file name"},
			},
			contains: []string{"failed to assemble module: ./src", "• Rename the function", "• Check the file name"},
		},
		{
			name: "chain hidden when not verbose",
			err: &ActionableError{
				Operation: "load config",
				Cause:     errors.New("syntax error"),
			},
			contains: []string{"failed to load config: syntax error"},
			excludes: []string{"Error chain:"},
		},
		{
			name: "nested chain when verbose",
			err: &ActionableError{
				Operation: "build",
				Cause: &ActionableError{
					Operation: "read source",
					Cause:     errors.New("permission denied"),
				},
			},
			verbose: true,
			contains: []string{
				"Error chain:",
				"1. failed to read source: permission denied",
				"2. permission denied",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\ngot:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() should not contain %q\ngot:\n%s", s, got)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should be nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should be a nil error")
	}

	cause := errors.New("parse error")
	ae := NewErrorContext().
		WithOperation("load config").
		WithResource("/home/u/.config/psmbuild/config.cue").
		WithIssue(ConfigLoadFailedId).
		WithSuggestion("Check syntax").
		WithSuggestions("Run 'psmbuild config init'", "Remove the file").
		Wrap(cause).
		Build()
	if ae == nil {
		t.Fatal("Build() = nil")
	}
	if ae.Operation != "load config" || ae.Resource == "" || ae.Issue != ConfigLoadFailedId {
		t.Errorf("ActionableError = %+v", ae)
	}
	if len(ae.Suggestions) != 3 || !ae.HasSuggestions() {
		t.Errorf("Suggestions = %v, want 3", ae.Suggestions)
	}
	if !errors.Is(ae, cause) {
		t.Error("cause not wrapped")
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("read source").WithResource("a.ps1")
	e1 := ctx.Wrap(errors.New("one")).Build()
	e2 := ctx.Wrap(errors.New("two")).Build()
	if e1.Cause.Error() == e2.Cause.Error() {
		t.Error("reused context should carry the latest cause")
	}
	if e1.Operation != e2.Operation {
		t.Error("reused context should keep the operation")
	}
}

func TestWrapHelpers(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	if WrapWithOperation(nil, "x") != nil || WrapWithContext(nil, "x", "y") != nil {
		t.Error("wrapping nil should yield nil")
	}
	if e := WrapWithOperation(cause, "write artifact"); e.Operation != "write artifact" || !errors.Is(e, cause) {
		t.Errorf("WrapWithOperation() = %+v", e)
	}
	if e := WrapWithContext(cause, "write artifact", "out/M.psm1"); e.Resource != "out/M.psm1" {
		t.Errorf("WrapWithContext() = %+v", e)
	}
	if e := NewActionableError("x"); e.Resource != "" || e.Cause != nil {
		t.Errorf("NewActionableError() = %+v", e)
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	linked := NewErrorContext().
		WithOperation("assemble module").
		WithIssue(ReservedDelimiterId).
		BuildError()
	is, ok := IssueOf(fmt.Errorf("batch: %w", linked))
	if !ok || is.Id() != ReservedDelimiterId {
		t.Errorf("IssueOf() = %v, %v, want ReservedDelimiterId", is, ok)
	}

	if _, ok := IssueOf(WrapWithOperation(errors.New("x"), "y")); ok {
		t.Error("IssueOf() on an unlinked error should report false")
	}
	if _, ok := IssueOf(nil); ok {
		t.Error("IssueOf(nil) should report false")
	}
}
