// SPDX-License-Identifier: MPL-2.0

package diag

import (
	"errors"
	"testing"
)

func TestSeverity_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity Severity
		want     bool
		wantErr  bool
	}{
		{SeverityInfo, true, false},
		{SeverityWarning, true, false},
		{SeverityError, true, false},
		{"", false, true},
		{"invalid", false, true},
		{"WARNING", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.severity.IsValid()
			if isValid != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.severity, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("Severity(%q).IsValid() returned no errors, want error", tt.severity)
				}
				if !errors.Is(errs[0], ErrInvalidSeverity) {
					t.Errorf("error should wrap ErrInvalidSeverity, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("Severity(%q).IsValid() returned unexpected errors: %v", tt.severity, errs)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	var l List
	l.Infof(CodeHistorySubstituted, "a.ps1", "using %s", "HEAD")
	l.Warnf(CodeHistoryMissing, "b.ps1", cause, "skipped")
	l.Errorf(CodeDescriptorLoad, "m.psd1", cause, "load failed")

	if len(l) != 3 {
		t.Fatalf("len = %d, want 3", len(l))
	}
	if l[0].Severity != SeverityInfo || l[0].Message != "using HEAD" || l[0].Path != "a.ps1" {
		t.Errorf("info diagnostic = %+v", l[0])
	}
	if l[1].Severity != SeverityWarning || !errors.Is(l[1].Cause, cause) {
		t.Errorf("warning diagnostic = %+v", l[1])
	}
	if !l.Has(CodeDescriptorLoad) || l.Has(CodeNoSources) {
		t.Error("Has() mismatch")
	}
}
