// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/internal/vcs"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidBinaryFilePath is returned when a BinaryFilePath value is whitespace-only.
	ErrInvalidBinaryFilePath = errors.New("invalid binary file path")
	// ErrInvalidVCSConfig is the sentinel error wrapped by InvalidVCSConfigError.
	ErrInvalidVCSConfig = errors.New("invalid vcs config")
	// ErrInvalidOutputConfig is the sentinel error wrapped by InvalidOutputConfigError.
	ErrInvalidOutputConfig = errors.New("invalid output config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// BinaryFilePath is a path or PATH-resolvable name of an executable.
	// The zero value means "use the default binary".
	BinaryFilePath string

	// InvalidBinaryFilePathError is returned when a BinaryFilePath value is
	// non-empty but whitespace-only.
	InvalidBinaryFilePathError struct {
		Value BinaryFilePath
	}

	// InvalidVCSConfigError collects field errors of a VCSConfig.
	InvalidVCSConfigError struct {
		FieldErrors []error
	}

	// InvalidOutputConfigError collects field errors of an OutputConfig.
	InvalidOutputConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError collects field errors of a UIConfig.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects field errors from every section of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the user configuration.
	Config struct {
		// VCS selects how uncommitted changes are detected.
		VCS VCSConfig `json:"vcs" mapstructure:"vcs"`
		// Analyzer configures the post-write syntax check.
		Analyzer AnalyzerConfig `json:"analyzer" mapstructure:"analyzer"`
		// Output configures how the artifact and descriptor are written.
		Output OutputConfig `json:"output" mapstructure:"output"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// VCSConfig selects the version-control client.
	VCSConfig struct {
		// Backend is "git", "go-git" or "none".
		Backend vcs.Backend `json:"backend" mapstructure:"backend"`
		// GitBinary overrides the git executable used by the "git" backend.
		GitBinary BinaryFilePath `json:"git_binary" mapstructure:"git_binary"`
	}

	// AnalyzerConfig configures the syntax-check collaborator.
	AnalyzerConfig struct {
		// Command is a shell command line; empty selects the built-in check.
		Command string `json:"command" mapstructure:"command"`
	}

	// OutputConfig configures written files.
	OutputConfig struct {
		// Encoding names the text encoding of written files.
		Encoding string `json:"encoding" mapstructure:"encoding"`
		// Newline is "lf" or "crlf".
		Newline textenc.Newline `json:"newline" mapstructure:"newline"`
		// MarkGenerated prepends the generated-file marker line to the artifact.
		MarkGenerated bool `json:"mark_generated" mapstructure:"mark_generated"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme of rendered guidance.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Encoder returns the text encoder described by the output section.
func (c OutputConfig) Encoder() (*textenc.Encoder, error) {
	return textenc.New(c.Encoding, c.Newline)
}

// IsValid returns whether the VCSConfig has valid fields.
func (c VCSConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Backend.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.GitBinary.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidVCSConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidVCSConfigError.
func (e *InvalidVCSConfigError) Error() string {
	return fmt.Sprintf("invalid vcs config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidVCSConfig for errors.Is() compatibility.
func (e *InvalidVCSConfigError) Unwrap() error { return ErrInvalidVCSConfig }

// IsValid returns whether the OutputConfig has valid fields. The encoding
// name is checked by resolving it.
func (c OutputConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Newline.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := textenc.New(c.Encoding, textenc.NewlineLF); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidOutputConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidOutputConfigError.
func (e *InvalidOutputConfigError) Error() string {
	return fmt.Sprintf("invalid output config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidOutputConfig for errors.Is() compatibility.
func (e *InvalidOutputConfigError) Unwrap() error { return ErrInvalidOutputConfig }

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		return false, []error{&InvalidUIConfigError{FieldErrors: fieldErrs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the Config has valid fields. The analyzer
// command is free-form and not checked.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.VCS.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Output.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// String returns the string representation of the BinaryFilePath.
func (p BinaryFilePath) String() string { return string(p) }

// IsValid returns whether the BinaryFilePath is valid. The zero value is valid.
func (p BinaryFilePath) IsValid() (bool, []error) {
	if p != "" && strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidBinaryFilePathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidBinaryFilePathError.
func (e *InvalidBinaryFilePathError) Error() string {
	return fmt.Sprintf("invalid binary file path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidBinaryFilePath for errors.Is() compatibility.
func (e *InvalidBinaryFilePathError) Unwrap() error { return ErrInvalidBinaryFilePath }

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// GlamourStyle maps the scheme onto a glamour standard style name.
func (cs ColorScheme) GlamourStyle() string {
	switch cs {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		VCS: VCSConfig{
			Backend:   vcs.BackendGit,
			GitBinary: "git",
		},
		Analyzer: AnalyzerConfig{Command: ""},
		Output: OutputConfig{
			Encoding:      textenc.DefaultEncoding,
			Newline:       textenc.NewlineLF,
			MarkGenerated: true,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
