// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestFilesystemPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    FilesystemPath
		want    bool
		wantErr bool
	}{
		{"absolute path", FilesystemPath("/usr/bin/bash"), true, false},
		{"relative path", FilesystemPath("run.sh"), true, false},
		{"windows style", FilesystemPath("C:\\Program Files\\app.exe"), true, false},
		{"path with spaces", FilesystemPath("/path/to/my file.txt"), true, false},
		{"dot path", FilesystemPath("."), true, false},
		{"empty is invalid", FilesystemPath(""), false, true},
		{"whitespace only is invalid", FilesystemPath("   "), false, true},
		{"tab only is invalid", FilesystemPath("\t"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.path.Validate()
			if (err == nil) != tt.want {
				t.Errorf("FilesystemPath(%q).Validate() error = %v, wantValid %v", tt.path, err, tt.want)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FilesystemPath(%q).Validate() returned nil, want error", tt.path)
				}
				if !errors.Is(err, ErrInvalidFilesystemPath) {
					t.Errorf("error should wrap ErrInvalidFilesystemPath, got: %v", err)
				}
				var fpErr *InvalidFilesystemPathError
				if !errors.As(err, &fpErr) {
					t.Errorf("error should be *InvalidFilesystemPathError, got: %T", err)
				}
			} else if err != nil {
				t.Errorf("FilesystemPath(%q).Validate() returned unexpected error: %v", tt.path, err)
			}
		})
	}
}

func TestFilesystemPath_String(t *testing.T) {
	t.Parallel()
	p := FilesystemPath("/usr/bin/bash")
	if p.String() != "/usr/bin/bash" {
		t.Errorf("FilesystemPath.String() = %q, want %q", p.String(), "/usr/bin/bash")
	}
}

func TestFilesystemPath_HasSuffixPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   FilesystemPath
		suffix FilesystemPath
		want   bool
	}{
		{"exact", "src/Get-Foo.ps1", "src/Get-Foo.ps1", true},
		{"repo relative suffix", "/work/repo/src/Get-Foo.ps1", "src/Get-Foo.ps1", true},
		{"backslashes", `C:\work\repo\src\Get-Foo.ps1`, "src/Get-Foo.ps1", true},
		{"mixed separators in suffix", "/work/repo/src/Get-Foo.ps1", `src\Get-Foo.ps1`, true},
		{"dot slash prefix", "/work/repo/Get-Foo.ps1", "./Get-Foo.ps1", true},
		{"partial segment", "/work/repo/src/XGet-Foo.ps1", "Get-Foo.ps1", false},
		{"different file", "/work/repo/src/Get-Bar.ps1", "Get-Foo.ps1", false},
		{"empty suffix", "/work/repo/src/Get-Foo.ps1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.path.HasSuffixPath(tt.suffix); got != tt.want {
				t.Errorf("FilesystemPath(%q).HasSuffixPath(%q) = %v, want %v", tt.path, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestFilesystemPath_Slash(t *testing.T) {
	t.Parallel()

	if got := FilesystemPath(`a\b/c`).Slash(); got != "a/b/c" {
		t.Errorf("Slash() = %q, want %q", got, "a/b/c")
	}
}
