// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"

	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/internal/vcs"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value ColorScheme
		want  bool
		style string
	}{
		{ColorSchemeAuto, true, "auto"},
		{ColorSchemeDark, true, "dark"},
		{ColorSchemeLight, true, "light"},
		{"", false, "auto"},
		{"neon", false, "auto"},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()
			valid, errs := tt.value.IsValid()
			if valid != tt.want {
				t.Errorf("IsValid() = %v, want %v", valid, tt.want)
			}
			if !tt.want && (len(errs) != 1 || !errors.Is(errs[0], ErrInvalidColorScheme)) {
				t.Errorf("errors = %v, want one ErrInvalidColorScheme", errs)
			}
			if got := tt.value.GlamourStyle(); got != tt.style {
				t.Errorf("GlamourStyle() = %q, want %q", got, tt.style)
			}
		})
	}
}

func TestBinaryFilePath_IsValid(t *testing.T) {
	t.Parallel()

	for _, p := range []BinaryFilePath{"", "git", "/usr/bin/git"} {
		if valid, _ := p.IsValid(); !valid {
			t.Errorf("%q should be valid", p)
		}
	}
	valid, errs := BinaryFilePath("  ").IsValid()
	if valid || !errors.Is(errs[0], ErrInvalidBinaryFilePath) {
		t.Errorf("whitespace path: valid=%v errs=%v", valid, errs)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{"bad backend", func(c *Config) { c.VCS.Backend = "svn" }, ErrInvalidVCSConfig},
		{"blank git binary", func(c *Config) { c.VCS.GitBinary = " " }, ErrInvalidVCSConfig},
		{"bad newline", func(c *Config) { c.Output.Newline = "cr" }, ErrInvalidOutputConfig},
		{"bad encoding", func(c *Config) { c.Output.Encoding = "klingon" }, ErrInvalidOutputConfig},
		{"bad color scheme", func(c *Config) { c.UI.ColorScheme = "neon" }, ErrInvalidUIConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			valid, errs := cfg.IsValid()
			if valid {
				t.Fatal("IsValid() = true, want false")
			}
			cfgErr, ok := errors.AsType[*InvalidConfigError](errs[0])
			if !ok || !errors.Is(cfgErr, ErrInvalidConfig) {
				t.Fatalf("errs[0] = %v, want *InvalidConfigError", errs[0])
			}
			if len(cfgErr.FieldErrors) != 1 || !errors.Is(cfgErr.FieldErrors[0], tt.sentinel) {
				t.Errorf("field errors = %v, want one wrapping %v", cfgErr.FieldErrors, tt.sentinel)
			}
		})
	}
}

func TestConfig_IsValid_NestedCauses(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.VCS.Backend = "svn"
	cfg.Output.Encoding = "klingon"
	_, errs := cfg.IsValid()

	err := joinFieldErrors(errs)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("joinFieldErrors() = %v, want ErrInvalidConfig", err)
	}

	var sawBackend, sawEncoding bool
	for _, fe := range errs[0].(*InvalidConfigError).FieldErrors {
		switch e := fe.(type) {
		case *InvalidVCSConfigError:
			sawBackend = errors.Is(e.FieldErrors[0], vcs.ErrInvalidBackend)
		case *InvalidOutputConfigError:
			sawEncoding = errors.Is(e.FieldErrors[0], textenc.ErrInvalidEncoding)
		}
	}
	if !sawBackend || !sawEncoding {
		t.Errorf("nested causes lost: backend=%v encoding=%v", sawBackend, sawEncoding)
	}
}
