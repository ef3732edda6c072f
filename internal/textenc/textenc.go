// SPDX-License-Identifier: MPL-2.0

// Package textenc encodes generated text for writing: it selects the output
// character encoding and line ending and writes files atomically.
package textenc

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

const (
	// NewlineLF writes "\n" line endings.
	NewlineLF Newline = "lf"
	// NewlineCRLF writes "\r\n" line endings.
	NewlineCRLF Newline = "crlf"

	// DefaultEncoding is UTF-8 without a byte order mark.
	DefaultEncoding = "utf8"
)

var (
	// ErrInvalidEncoding is the sentinel error wrapped by InvalidEncodingError.
	ErrInvalidEncoding = errors.New("invalid output encoding")
	// ErrInvalidNewline is the sentinel error wrapped by InvalidNewlineError.
	ErrInvalidNewline = errors.New("invalid newline style")

	// named holds the PowerShell -Encoding names plus common spellings.
	// Anything else is looked up as a WHATWG label.
	named = map[string]encoding.Encoding{
		"utf8":             unicode.UTF8,
		"utf-8":            unicode.UTF8,
		"utf8nobom":        unicode.UTF8,
		"utf8bom":          unicode.UTF8BOM,
		"unicode":          unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
		"utf16":            unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
		"utf16le":          unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
		"bigendianunicode": unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
		"utf16be":          unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
		"utf32":            utf32.UTF32(utf32.LittleEndian, utf32.UseBOM),
		"utf32le":          utf32.UTF32(utf32.LittleEndian, utf32.UseBOM),
		"bigendianutf32":   utf32.UTF32(utf32.BigEndian, utf32.UseBOM),
		"utf32be":          utf32.UTF32(utf32.BigEndian, utf32.UseBOM),
	}
)

type (
	// Newline is a line-ending style.
	Newline string

	// InvalidNewlineError is returned when a Newline value is not recognized.
	InvalidNewlineError struct {
		Value Newline
	}

	// InvalidEncodingError is returned when an encoding name is unknown.
	InvalidEncodingError struct {
		Name string
		Err  error
	}

	// Encoder converts generated text (with "\n" line endings) to bytes.
	Encoder struct {
		name    string
		enc     encoding.Encoding
		newline Newline
	}
)

// String returns the string representation of the Newline.
func (n Newline) String() string { return string(n) }

// IsValid returns whether the Newline is one of the defined styles.
func (n Newline) IsValid() (bool, []error) {
	switch n {
	case NewlineLF, NewlineCRLF:
		return true, nil
	default:
		return false, []error{&InvalidNewlineError{Value: n}}
	}
}

// Error implements the error interface for InvalidNewlineError.
func (e *InvalidNewlineError) Error() string {
	return fmt.Sprintf("invalid newline style %q (valid: lf, crlf)", e.Value)
}

// Unwrap returns ErrInvalidNewline for errors.Is() compatibility.
func (e *InvalidNewlineError) Unwrap() error { return ErrInvalidNewline }

// Error implements the error interface for InvalidEncodingError.
func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid output encoding %q: %v", e.Name, e.Err)
}

// Unwrap returns ErrInvalidEncoding and the lookup error.
func (e *InvalidEncodingError) Unwrap() []error { return []error{ErrInvalidEncoding, e.Err} }

// New returns an encoder for the named encoding and newline style. An empty
// name selects DefaultEncoding and an empty newline selects NewlineLF.
func New(name string, newline Newline) (*Encoder, error) {
	if name == "" {
		name = DefaultEncoding
	}
	if newline == "" {
		newline = NewlineLF
	}
	if ok, errs := newline.IsValid(); !ok {
		return nil, errs[0]
	}
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &Encoder{name: name, enc: enc, newline: newline}, nil
}

func lookup(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := named[key]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(key)
	if err != nil {
		return nil, &InvalidEncodingError{Name: name, Err: err}
	}
	return enc, nil
}

// Name returns the encoding name the encoder was created with.
func (e *Encoder) Name() string { return e.name }

// Encode converts text to bytes. Characters the encoding cannot represent
// are an error.
func (e *Encoder) Encode(text string) ([]byte, error) {
	if e.newline == NewlineCRLF {
		text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", "\r\n")
	}
	out, err := e.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding as %s: %w", e.name, err)
	}
	return out, nil
}

// WriteFile encodes text and writes it to path atomically.
func (e *Encoder) WriteFile(path, text string) error {
	data, err := e.Encode(text)
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data)
}

// Decode converts file bytes to text, honoring a byte order mark and
// normalizing line endings to "\n".
func Decode(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(out), "\r\n", "\n"), nil
}

// ReadFile reads and decodes a text file.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Decode(data)
}

func atomicWriteFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
