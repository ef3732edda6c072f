// SPDX-License-Identifier: MPL-2.0

// Package project reads psmbuild.toml, the per-repository file listing the
// modules to build and the run options that apply to all of them.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/psmbuild/psmbuild/internal/platform"
)

// FileName is the project file looked up from the working directory upward.
const FileName = "psmbuild.toml"

var (
	// DefaultInclude selects definition sources when a module names none.
	DefaultInclude = []string{"*.ps1"}
	// DefaultExclude keeps test scripts out of the artifact.
	DefaultExclude = []string{"*.Tests.ps1"}
)

var (
	// ErrNotFound is returned by Find when no project file exists.
	ErrNotFound = errors.New("project file not found")
	// ErrInvalidModule is the sentinel error wrapped by InvalidModuleError.
	ErrInvalidModule = errors.New("invalid module")
	// ErrTargetOverlapsSource is returned when a target directory equals or
	// contains its source directory.
	ErrTargetOverlapsSource = errors.New("target directory overlaps source directory")
	// ErrReservedModuleName is returned when the target directory name, which
	// becomes the module name, is a Windows device name.
	ErrReservedModuleName = errors.New("module name is reserved on Windows")
	// ErrNoModules is returned when a run has nothing to build.
	ErrNoModules = errors.New("no modules configured")
)

type (
	// File is the decoded project file.
	File struct {
		// IncludeUncommitted scans modified and untracked files as-is.
		IncludeUncommitted bool `toml:"include_uncommitted"`
		// SkipSyntaxCheck disables the analyzer.
		SkipSyntaxCheck bool `toml:"skip_syntax_check"`
		// SkipRequires omits #Requires lines from bodies.
		SkipRequires bool `toml:"skip_requires"`
		// MarkGenerated overrides the user config when set.
		MarkGenerated *bool `toml:"mark_generated,omitempty"`
		// Encoding overrides the user config when non-empty.
		Encoding string `toml:"encoding,omitempty"`
		// Modules lists source/target pairs in build order.
		Modules []Module `toml:"module"`

		// Path is where the file was read from.
		Path string `toml:"-"`
	}

	// Module is one source directory and the directory its artifact goes to.
	Module struct {
		Source  string   `toml:"source"`
		Target  string   `toml:"target"`
		Include []string `toml:"include,omitempty"`
		Exclude []string `toml:"exclude,omitempty"`
	}

	// InvalidModuleError collects the problems of one module entry.
	InvalidModuleError struct {
		Index       int
		FieldErrors []error
	}
)

// Error implements the error interface for InvalidModuleError.
func (e *InvalidModuleError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("module[%d]: %s", e.Index, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidModule and every field error.
func (e *InvalidModuleError) Unwrap() []error {
	return append([]error{ErrInvalidModule}, e.FieldErrors...)
}

// Find returns the first project file found in dir or one of its parents.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: no %s in %s or its parents", ErrNotFound, FileName, dir)
		}
		abs = parent
	}
}

// Load decodes a project file. Unknown keys are rejected. Relative module
// paths are resolved against the file's directory and default patterns
// filled in; every module is then validated.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var f File
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, formatDecodeError(path, err)
	}
	f.Path = path

	base := filepath.Dir(path)
	for i := range f.Modules {
		f.Modules[i] = f.Modules[i].Resolve(base)
		if err := f.Modules[i].Validate(i); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &f, nil
}

func formatDecodeError(path string, err error) error {
	if de, ok := errors.AsType[*toml.DecodeError](err); ok {
		row, col := de.Position()
		return fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
	}
	if se, ok := errors.AsType[*toml.StrictMissingError](err); ok {
		return fmt.Errorf("%s: unknown key:\n%s", path, se.String())
	}
	return fmt.Errorf("%s: %w", path, err)
}

// Marshal renders f as TOML.
func Marshal(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resolve returns a copy with absolute, cleaned paths relative to base and
// default patterns in place of empty lists.
func (m Module) Resolve(base string) Module {
	abs := func(p string) string {
		if p == "" {
			return ""
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		return filepath.Clean(p)
	}
	out := Module{Source: abs(m.Source), Target: abs(m.Target)}
	out.Include = m.Include
	if len(out.Include) == 0 {
		out.Include = DefaultInclude
	}
	out.Exclude = m.Exclude
	if m.Exclude == nil {
		out.Exclude = DefaultExclude
	}
	return out
}

// Validate checks a resolved module. index is used in the error only.
func (m Module) Validate(index int) error {
	var errs []error
	if strings.TrimSpace(m.Source) == "" {
		errs = append(errs, errors.New("source must be set"))
	}
	if strings.TrimSpace(m.Target) == "" {
		errs = append(errs, errors.New("target must be set"))
	}
	if m.Source != "" && m.Target != "" && overlaps(m.Source, m.Target) {
		errs = append(errs, fmt.Errorf("%w: %s and %s", ErrTargetOverlapsSource, m.Target, m.Source))
	}
	if name := filepath.Base(m.Target); m.Target != "" && platform.IsWindowsReservedName(name) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrReservedModuleName, name))
	}
	for _, pat := range append(append([]string(nil), m.Include...), m.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid pattern %q", pat))
		}
	}
	if len(errs) > 0 {
		return &InvalidModuleError{Index: index, FieldErrors: errs}
	}
	return nil
}

// Match reports whether a slash-separated path relative to the source
// directory is selected by the include and exclude patterns. Matching
// ignores case, as PowerShell file names do.
func (m Module) Match(rel string) bool {
	rel = strings.ToLower(rel)
	matchAny := func(patterns []string) bool {
		for _, p := range patterns {
			if ok, err := doublestar.Match(strings.ToLower(p), rel); err == nil && ok {
				return true
			}
		}
		return false
	}
	return matchAny(m.Include) && !matchAny(m.Exclude)
}

// overlaps reports whether target is source or one of its ancestors.
func overlaps(source, target string) bool {
	rel, err := filepath.Rel(target, source)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
