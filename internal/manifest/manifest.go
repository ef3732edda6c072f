// SPDX-License-Identifier: MPL-2.0

// Package manifest reconciles a module's descriptor (.psd1) with the export
// surface of a freshly assembled artifact.
//
// The descriptor found in the source directory is loaded, its RootModule,
// FunctionsToExport and AliasesToExport keys are overwritten and every other
// key is preserved. The result is written next to the artifact.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/psmbuild/psmbuild/internal/assemble"
	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/pkg/psast"
)

const (
	// DescriptorExtension is the extension of module descriptor files.
	DescriptorExtension = ".psd1"

	// KeyRootModule is the descriptor key naming the artifact file.
	KeyRootModule = "RootModule"
	// KeyFunctionsToExport lists exported definitions.
	KeyFunctionsToExport = "FunctionsToExport"
	// KeyAliasesToExport lists exported aliases.
	KeyAliasesToExport = "AliasesToExport"
	// KeyPrivateData holds module extra data.
	KeyPrivateData = "PrivateData"
	// KeyPSData is the gallery metadata table inside PrivateData.
	KeyPSData = "PSData"
)

var (
	// ErrAmbiguousDescriptor is recorded when a directory holds more than one
	// descriptor.
	ErrAmbiguousDescriptor = errors.New("more than one descriptor")
	// ErrDeclined is recorded when updating an uncommitted descriptor was not
	// confirmed.
	ErrDeclined = errors.New("descriptor update declined")
)

type (
	// Confirmer asks whether to continue with a risky step. Implementations
	// that cannot ask must answer false.
	Confirmer interface {
		Confirm(ctx context.Context, question string) (bool, error)
	}

	// ConfirmFunc adapts a function to Confirmer.
	ConfirmFunc func(ctx context.Context, question string) (bool, error)

	// Abort is the Confirmer used when none is supplied. It always declines.
	Abort struct{}

	// Request describes one descriptor reconciliation.
	Request struct {
		// SourceDir is searched (non-recursively) for descriptors.
		SourceDir string
		// Artifact supplies the module name, target and export lists. It must
		// have been written (Path non-empty).
		Artifact *assemble.Artifact
		// Unresolved reports whether a file has uncommitted changes. Nil means
		// no file does.
		Unresolved func(path string) bool
		// IncludeUncommitted skips the confirmation for an unresolved descriptor.
		IncludeUncommitted bool
		// Confirm is asked before updating an unresolved descriptor. Nil
		// declines.
		Confirm Confirmer
		// Encoder writes the descriptor (UTF-8 with "\n" when nil).
		Encoder *textenc.Encoder
	}

	// Result is the outcome of a reconciliation.
	Result struct {
		// Source is the descriptor that was read, if one was found.
		Source string `json:"source,omitempty" yaml:"source,omitempty"`
		// Path is the descriptor that was written; empty when skipped.
		Path        string       `json:"path,omitempty" yaml:"path,omitempty"`
		Data        *psast.Table `json:"-" yaml:"-"`
		Diagnostics diag.List    `json:"-" yaml:"-"`
	}
)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// Confirm implements Confirmer.
func (Abort) Confirm(context.Context, string) (bool, error) { return false, nil }

// Locate returns the descriptor files directly inside dir, sorted.
func Locate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), DescriptorExtension) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// Reconcile updates the source directory's descriptor for the artifact.
//
// A missing descriptor is a no-op. Several descriptors, a declined
// confirmation and an unreadable descriptor are reported as diagnostics and
// leave nothing written. Only failures to write the new descriptor and
// confirmation errors are returned as errors.
func Reconcile(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	found, err := Locate(req.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("locating descriptor in %s: %w", req.SourceDir, err)
	}
	switch {
	case len(found) == 0:
		return res, nil
	case len(found) > 1:
		res.Diagnostics.Warnf(diag.CodeDescriptorAmbiguous, req.SourceDir, ErrAmbiguousDescriptor,
			"found %d descriptors (%s); descriptor not updated", len(found), baseNames(found))
		return res, nil
	}
	src := found[0]
	res.Source = src

	if !req.IncludeUncommitted && req.Unresolved != nil && req.Unresolved(src) {
		confirm := req.Confirm
		if confirm == nil {
			confirm = Abort{}
		}
		ok, err := confirm.Confirm(ctx, fmt.Sprintf(
			"Descriptor %s has uncommitted changes. Update it anyway?", filepath.Base(src)))
		if err != nil {
			return nil, fmt.Errorf("confirming descriptor update: %w", err)
		}
		if !ok {
			res.Diagnostics.Warnf(diag.CodeDescriptorDeclined, src, ErrDeclined,
				"descriptor %s has uncommitted changes; update declined", filepath.Base(src))
			return res, nil
		}
	}

	data, err := Load(src)
	if err != nil {
		res.Diagnostics.Errorf(diag.CodeDescriptorLoad, src, err, "loading descriptor failed: %v", err)
		return res, nil
	}

	art := req.Artifact
	out := filepath.Join(filepath.Dir(art.Path), art.ModuleName+DescriptorExtension)
	merged, err := Write(out, data, Overrides(art), req.Encoder)
	if err != nil {
		return nil, err
	}
	res.Path = out
	res.Data = merged
	return res, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (*psast.Table, error) {
	text, err := textenc.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return psast.ParseData(text)
}

// Overrides returns the descriptor keys computed from an artifact.
func Overrides(art *assemble.Artifact) *psast.Table {
	functions := make([]string, 0, len(art.Functions))
	for _, f := range art.Functions {
		functions = append(functions, f.String())
	}
	aliases := make([]string, 0, len(art.Aliases))
	for _, a := range art.Aliases {
		aliases = append(aliases, a.String())
	}
	t := psast.NewTable()
	t.Set(KeyRootModule, psast.StringValue(filepath.Base(art.Path)))
	t.Set(KeyFunctionsToExport, psast.StringArray(functions))
	t.Set(KeyAliasesToExport, psast.StringArray(aliases))
	return t
}

// Write produces the descriptor at path from data with overrides applied.
//
// The file is written twice. The first pass writes every top-level key with
// an empty PrivateData.PSData table; the second re-reads that file and adds
// the PSData entries one at a time.
func Write(path string, data, overrides *psast.Table, enc *textenc.Encoder) (*psast.Table, error) {
	if enc == nil {
		var err error
		if enc, err = textenc.New("", ""); err != nil {
			return nil, err
		}
	}

	first := data.Clone()
	for _, k := range overrides.Keys() {
		v, _ := overrides.Get(k)
		first.Set(k, v)
	}
	psData := detachPSData(first)

	if err := enc.WriteFile(path, psast.FormatData(first)); err != nil {
		return nil, fmt.Errorf("writing descriptor %s: %w", path, err)
	}
	if psData == nil || psData.Len() == 0 {
		return first, nil
	}

	text, err := textenc.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rereading descriptor %s: %w", path, err)
	}
	second, err := psast.ParseData(text)
	if err != nil {
		return nil, fmt.Errorf("rereading descriptor %s: %w", path, err)
	}
	pd, _ := second.Get(KeyPrivateData)
	target, _ := pd.Table.Get(KeyPSData)
	for _, k := range psData.Keys() {
		v, _ := psData.Get(k)
		target.Table.Set(k, v)
	}
	pd.Table.Set(KeyPSData, target)
	second.Set(KeyPrivateData, pd)

	if err := enc.WriteFile(path, psast.FormatData(second)); err != nil {
		return nil, fmt.Errorf("writing descriptor %s: %w", path, err)
	}
	return second, nil
}

// detachPSData replaces PrivateData.PSData with an empty table and returns
// the original one. It returns nil when there is no PSData table.
func detachPSData(t *psast.Table) *psast.Table {
	pd, ok := t.Get(KeyPrivateData)
	if !ok || pd.Kind != psast.KindTable || pd.Table == nil {
		return nil
	}
	ps, ok := pd.Table.Get(KeyPSData)
	if !ok || ps.Kind != psast.KindTable || ps.Table == nil {
		return nil
	}
	pd.Table.Set(KeyPSData, psast.TableValue(psast.NewTable()))
	return ps.Table
}

func baseNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}
