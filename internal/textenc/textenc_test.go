// SPDX-License-Identifier: MPL-2.0

package textenc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncoder_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding string
		newline  Newline
		text     string
		want     []byte
	}{
		{"default", "", "", "a\nb\n", []byte("a\nb\n")},
		{"utf8 crlf", "utf8", NewlineCRLF, "a\nb\r\n", []byte("a\r\nb\r\n")},
		{"utf8 bom", "utf8BOM", NewlineLF, "a", []byte{0xEF, 0xBB, 0xBF, 'a'}},
		{"utf16le", "Unicode", NewlineLF, "a", []byte{0xFF, 0xFE, 'a', 0}},
		{"utf16be", "bigendianunicode", NewlineLF, "a", []byte{0xFE, 0xFF, 0, 'a'}},
		{"utf32le", "utf32", NewlineLF, "a", []byte{0xFF, 0xFE, 0, 0, 'a', 0, 0, 0}},
		{"whatwg label", "windows-1252", NewlineLF, "é", []byte{0xE9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, err := New(tt.encoding, tt.newline)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := enc.Encode(tt.text)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New("klingon", ""); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("New(klingon) error = %v, want ErrInvalidEncoding", err)
	}
	if _, err := New("", "cr"); !errors.Is(err, ErrInvalidNewline) {
		t.Errorf("New(cr) error = %v, want ErrInvalidNewline", err)
	}
}

func TestEncoder_Unrepresentable(t *testing.T) {
	t.Parallel()

	enc, err := New("windows-1252", NewlineLF)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := enc.Encode("日本"); err == nil {
		t.Error("Encode() should fail for characters outside the code page")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.psm1")
	enc, err := New("utf16le", NewlineCRLF)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := enc.WriteFile(path, "function F { }\n"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got != "function F { }\n" {
		t.Errorf("ReadFile() = %q", got)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain utf8", []byte("a\r\nb"), "a\nb"},
		{"utf8 bom", []byte{0xEF, 0xBB, 0xBF, 'a', '\n'}, "a\n"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'a', 0, '\r', 0, '\n', 0}, "a\n"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'a'}, "a"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}
