// SPDX-License-Identifier: MPL-2.0

// Package assemble merges definition records into a module artifact (.psm1)
// and computes its export surface.
//
// Output is deterministic: bodies are ordered by definition name and every
// export list is deduplicated and sorted, so reassembling an unchanged
// directory yields the same file.
package assemble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/extract"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/pkg/types"
)

const (
	// Delimiter separates names in export declarations, so no exported name
	// may contain it.
	Delimiter = ","

	// ArtifactExtension is the extension of the generated module file.
	ArtifactExtension = ".psm1"

	// ListFunctions names the exported-definition list in errors.
	ListFunctions ExportList = "function"
	// ListAliases names the exported-alias list in errors.
	ListAliases ExportList = "alias"
)

var (
	// ErrReservedDelimiter is the sentinel error wrapped by DelimiterError.
	ErrReservedDelimiter = errors.New("export name contains the reserved delimiter")
	// ErrNothingExported is returned when records produce no exported names.
	ErrNothingExported = errors.New("artifact exports no definitions")
	// ErrInvalidTarget is returned for an empty or root target directory.
	ErrInvalidTarget = errors.New("invalid target directory")
)

type (
	// ExportList identifies one of the export declarations.
	ExportList string

	// DelimiterError reports an export name containing Delimiter. The
	// artifact has been removed when it is returned.
	DelimiterError struct {
		List ExportList
		Name string
	}

	// Options control artifact generation.
	Options struct {
		// Target is the artifact directory. It is deleted and recreated.
		Target string
		// MarkGenerated prepends a do-not-edit marker line.
		MarkGenerated bool
		// Encoder writes the file (UTF-8 with "\n" when nil).
		Encoder *textenc.Encoder
	}

	// Artifact is the generated module and its export surface.
	Artifact struct {
		ModuleName string `json:"module_name" yaml:"module_name"`
		// Path is the artifact file; empty when nothing was written.
		Path      string                 `json:"path,omitempty" yaml:"path,omitempty"`
		Functions []types.DefinitionName `json:"functions" yaml:"functions"`
		Aliases   []types.AliasName      `json:"aliases" yaml:"aliases"`
		// Records are the assembled records in artifact order.
		Records []*extract.Record `json:"-" yaml:"-"`
		// Content is the artifact text before encoding.
		Content     string    `json:"-" yaml:"-"`
		Diagnostics diag.List `json:"-" yaml:"-"`
	}
)

// Error implements the error interface for DelimiterError.
func (e *DelimiterError) Error() string {
	return fmt.Sprintf("exported %s name %q contains reserved delimiter %q", e.List, e.Name, Delimiter)
}

// Unwrap returns ErrReservedDelimiter for errors.Is() compatibility.
func (e *DelimiterError) Unwrap() error { return ErrReservedDelimiter }

// ModuleName returns the module name for a target directory: its base name.
func ModuleName(target string) string {
	return filepath.Base(filepath.Clean(target))
}

// ArtifactPath returns the artifact file path for a target directory.
func ArtifactPath(target string) string {
	return filepath.Join(target, ModuleName(target)+ArtifactExtension)
}

// MarkerLine returns the do-not-edit marker for a module.
func MarkerLine(moduleName string) string {
	return fmt.Sprintf("# %s%s generated by psmbuild; do not edit.", moduleName, ArtifactExtension)
}

// Assemble writes the artifact for records into opts.Target.
//
// With no records nothing is touched and the returned artifact carries a
// warning. Otherwise the target directory is recreated, and the artifact is
// written only once both export lists are valid; on a delimiter violation
// no artifact file remains.
func Assemble(records []*extract.Record, opts Options) (*Artifact, error) {
	target := filepath.Clean(opts.Target)
	if opts.Target == "" || target == filepath.Dir(target) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, opts.Target)
	}
	art := &Artifact{ModuleName: ModuleName(target)}
	if len(records) == 0 {
		art.Diagnostics.Warnf(diag.CodeNoSources, target, nil,
			"no definitions for module %s; artifact not written", art.ModuleName)
		return art, nil
	}

	art.Records = slices.Clone(records)
	slices.SortStableFunc(art.Records, func(a, b *extract.Record) int {
		return compareNames(string(a.Name), string(b.Name))
	})

	if err := os.RemoveAll(target); err != nil {
		return nil, fmt.Errorf("removing %s: %w", target, err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", target, err)
	}
	path := ArtifactPath(target)

	var sb strings.Builder
	if opts.MarkGenerated {
		sb.WriteString(MarkerLine(art.ModuleName))
		sb.WriteString("\n")
	}
	var functions, aliases []string
	for _, rec := range art.Records {
		sb.WriteString(rec.Body)
		sb.WriteString("\n\n")
		functions = append(functions, string(rec.Name))
		for _, a := range rec.Aliases {
			aliases = append(aliases, string(a))
		}
	}

	functions = sortedUnique(functions)
	if len(functions) == 0 {
		return nil, fmt.Errorf("%s: %w", art.ModuleName, ErrNothingExported)
	}
	if err := checkDelimiter(ListFunctions, functions, path); err != nil {
		return nil, err
	}
	aliases = sortedUnique(aliases)
	if err := checkDelimiter(ListAliases, aliases, path); err != nil {
		return nil, err
	}

	sb.WriteString(ExportLine(ListFunctions, functions))
	sb.WriteString("\n")
	if len(aliases) > 0 {
		sb.WriteString(ExportLine(ListAliases, aliases))
		sb.WriteString("\n")
	}
	art.Content = sb.String()

	enc := opts.Encoder
	if enc == nil {
		var err error
		if enc, err = textenc.New("", ""); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteFile(path, art.Content); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	art.Path = path
	for _, f := range functions {
		art.Functions = append(art.Functions, types.DefinitionName(f))
	}
	art.Aliases = make([]types.AliasName, 0, len(aliases))
	for _, a := range aliases {
		art.Aliases = append(art.Aliases, types.AliasName(a))
	}
	return art, nil
}

// ExportLine renders an Export-ModuleMember declaration for names.
func ExportLine(list ExportList, names []string) string {
	param := "-Function"
	if list == ListAliases {
		param = "-Alias"
	}
	return "Export-ModuleMember " + param + " " + strings.Join(names, Delimiter)
}

func checkDelimiter(list ExportList, names []string, artifactPath string) error {
	for _, n := range names {
		if strings.Contains(n, Delimiter) {
			if err := os.Remove(artifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return errors.Join(&DelimiterError{List: list, Name: n}, err)
			}
			return &DelimiterError{List: list, Name: n}
		}
	}
	return nil
}

// compareNames orders names case-insensitively, falling back to byte order
// so the result is total.
func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// sortedUnique sorts names and drops case-insensitive duplicates.
func sortedUnique(names []string) []string {
	slices.SortFunc(names, compareNames)
	return slices.CompactFunc(names, strings.EqualFold)
}
