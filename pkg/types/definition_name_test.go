// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestDefinitionName_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   DefinitionName
		wantErr bool
	}{
		{"verb noun", "Get-Foo", false},
		{"scope-free single word", "Invoke", false},
		{"empty", "", true},
		{"inner space", "Get Foo", true},
		{"trailing tab", "Get-Foo\t", true},
		{"non-breaking space", "Get\u00a0Foo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.value.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Errorf("DefinitionName(%q).Validate() returned unexpected error: %v", tt.value, err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDefinitionName) {
				t.Errorf("error should wrap ErrInvalidDefinitionName, got: %v", err)
			}
			var dnErr *InvalidDefinitionNameError
			if !errors.As(err, &dnErr) {
				t.Errorf("error should be *InvalidDefinitionNameError, got: %T", err)
			}
		})
	}
}

func TestAliasName_Validate(t *testing.T) {
	t.Parallel()

	if err := AliasName("gf").Validate(); err != nil {
		t.Errorf("AliasName(gf).Validate() = %v, want nil", err)
	}
	err := AliasName("g f").Validate()
	if !errors.Is(err, ErrInvalidAliasName) {
		t.Errorf("error should wrap ErrInvalidAliasName, got: %v", err)
	}
	if err := AliasName("").Validate(); err == nil {
		t.Error("empty alias should be invalid")
	}
}

func TestDefinitionNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[FilesystemPath]DefinitionName{
		"Get-Foo.ps1":             "Get-Foo",
		`src\Public\Get-Bar.PS1`:  "Get-Bar",
		"a/b/Invoke-Thing.v2.ps1": "Invoke-Thing.v2",
		"/abs/NoExtension":        "NoExtension",
	}
	for in, want := range tests {
		if got := DefinitionNameFromPath(in); got != want {
			t.Errorf("DefinitionNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
