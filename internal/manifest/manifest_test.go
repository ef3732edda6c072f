// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/psmbuild/psmbuild/internal/assemble"
	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/pkg/psast"
	"github.com/psmbuild/psmbuild/pkg/types"
)

const descriptor = `@{
    RootModule = 'Old.psm1'
    ModuleVersion = '1.2.0'
    GUID = 'b0d2c1a4-0000-4000-8000-000000000000'
    FunctionsToExport = '*'
    PrivateData = @{
        PSData = @{
            Tags = @('build', 'tools')
            ProjectUri = 'https://example.com/mymodule'
        }
        Other = 1
    }
}
`

func setup(t *testing.T, files map[string]string) (string, *assemble.Artifact) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	target := filepath.Join(root, "out", "MyModule")
	for _, dir := range []string{src, target} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	art := &assemble.Artifact{
		ModuleName: "MyModule",
		Path:       filepath.Join(target, "MyModule.psm1"),
		Functions:  []types.DefinitionName{"Get-Bar", "Get-Foo"},
		Aliases:    []types.AliasName{"gf"},
	}
	return src, art
}

func TestReconcile_OverridesAndPreserves(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"MyModule.psd1": descriptor})
	res, err := Reconcile(t.Context(), Request{SourceDir: src, Artifact: art})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	wantPath := filepath.Join(filepath.Dir(art.Path), "MyModule.psd1")
	if res.Path != wantPath {
		t.Fatalf("Path = %q, want %q", res.Path, wantPath)
	}

	got, err := Load(res.Path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v, _ := got.Get(KeyRootModule); v.Str != "MyModule.psm1" {
		t.Errorf("RootModule = %+v", v)
	}
	if v, _ := got.Get(KeyFunctionsToExport); !slices.Equal(v.Strings(), []string{"Get-Bar", "Get-Foo"}) {
		t.Errorf("FunctionsToExport = %+v", v)
	}
	if v, _ := got.Get(KeyAliasesToExport); !slices.Equal(v.Strings(), []string{"gf"}) {
		t.Errorf("AliasesToExport = %+v", v)
	}
	if v, _ := got.Get("ModuleVersion"); v.Str != "1.2.0" {
		t.Errorf("ModuleVersion = %+v", v)
	}

	pd, _ := got.Get(KeyPrivateData)
	if other, _ := pd.Table.Get("Other"); other.Str != "1" {
		t.Errorf("PrivateData.Other = %+v", other)
	}
	ps, _ := pd.Table.Get(KeyPSData)
	if tags, _ := ps.Table.Get("Tags"); !slices.Equal(tags.Strings(), []string{"build", "tools"}) {
		t.Errorf("PSData.Tags = %+v", tags)
	}
	if uri, _ := ps.Table.Get("ProjectUri"); uri.Str != "https://example.com/mymodule" {
		t.Errorf("PSData.ProjectUri = %+v", uri)
	}

	wantKeys := []string{"RootModule", "ModuleVersion", "GUID", "FunctionsToExport", "PrivateData", "AliasesToExport"}
	if !slices.Equal(got.Keys(), wantKeys) {
		t.Errorf("Keys() = %v, want %v", got.Keys(), wantKeys)
	}

	if data, _ := os.ReadFile(filepath.Join(src, "MyModule.psd1")); string(data) != descriptor {
		t.Error("source descriptor must not be modified")
	}
}

func TestReconcile_EmptyAliases(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"M.psd1": "@{ AliasesToExport = 'old' }"})
	art.Aliases = nil
	res, err := Reconcile(t.Context(), Request{SourceDir: src, Artifact: art})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "AliasesToExport = @()") {
		t.Errorf("descriptor = %s", data)
	}
}

func TestReconcile_NoDescriptor(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"Get-Foo.ps1": "function Get-Foo { }"})
	res, err := Reconcile(t.Context(), Request{SourceDir: src, Artifact: art})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Path != "" || res.Source != "" || len(res.Diagnostics) != 0 {
		t.Errorf("result = %+v, want no-op", res)
	}
}

func TestReconcile_Ambiguous(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"A.psd1": descriptor, "B.PSD1": descriptor})
	res, err := Reconcile(t.Context(), Request{SourceDir: src, Artifact: art})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want nothing written", res.Path)
	}
	if !res.Diagnostics.Has(diag.CodeDescriptorAmbiguous) {
		t.Errorf("Diagnostics = %+v", res.Diagnostics)
	}
	if !errors.Is(res.Diagnostics[0].Cause, ErrAmbiguousDescriptor) {
		t.Errorf("Cause = %v", res.Diagnostics[0].Cause)
	}
}

func TestReconcile_UnresolvedDescriptor(t *testing.T) {
	t.Parallel()

	unresolved := func(path string) bool { return strings.HasSuffix(path, "MyModule.psd1") }

	tests := []struct {
		name        string
		confirm     Confirmer
		include     bool
		wantWritten bool
		wantAsked   bool
	}{
		{"default aborts", nil, false, false, false},
		{"declined", ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil }), false, false, true},
		{"accepted", ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil }), false, true, true},
		{"include uncommitted skips prompt", ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil }), true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src, art := setup(t, map[string]string{"MyModule.psd1": descriptor})

			asked := false
			var confirm Confirmer
			if tt.confirm != nil {
				confirm = ConfirmFunc(func(ctx context.Context, q string) (bool, error) {
					asked = true
					return tt.confirm.Confirm(ctx, q)
				})
			}
			res, err := Reconcile(t.Context(), Request{
				SourceDir:          src,
				Artifact:           art,
				Unresolved:         unresolved,
				IncludeUncommitted: tt.include,
				Confirm:            confirm,
			})
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if written := res.Path != ""; written != tt.wantWritten {
				t.Errorf("written = %v, want %v", written, tt.wantWritten)
			}
			if asked != tt.wantAsked {
				t.Errorf("asked = %v, want %v", asked, tt.wantAsked)
			}
			if !tt.wantWritten && !res.Diagnostics.Has(diag.CodeDescriptorDeclined) {
				t.Errorf("Diagnostics = %+v", res.Diagnostics)
			}
		})
	}
}

func TestReconcile_ConfirmError(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"MyModule.psd1": descriptor})
	boom := errors.New("no terminal")
	_, err := Reconcile(t.Context(), Request{
		SourceDir:  src,
		Artifact:   art,
		Unresolved: func(string) bool { return true },
		Confirm:    ConfirmFunc(func(context.Context, string) (bool, error) { return false, boom }),
	})
	if !errors.Is(err, boom) {
		t.Errorf("Reconcile() error = %v, want %v", err, boom)
	}
}

func TestReconcile_LoadFailure(t *testing.T) {
	t.Parallel()

	src, art := setup(t, map[string]string{"MyModule.psd1": "Get-Date\n"})
	res, err := Reconcile(t.Context(), Request{SourceDir: src, Artifact: art})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want nothing written", res.Path)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Severity != diag.SeverityError {
		t.Fatalf("Diagnostics = %+v", res.Diagnostics)
	}
	if !errors.Is(res.Diagnostics[0].Cause, psast.ErrNotDataFile) {
		t.Errorf("Cause = %v", res.Diagnostics[0].Cause)
	}
}

func TestWrite_TwoPhases(t *testing.T) {
	t.Parallel()

	data, err := psast.ParseData(descriptor)
	if err != nil {
		t.Fatal(err)
	}
	overrides := psast.NewTable()
	overrides.Set(KeyRootModule, psast.StringValue("X.psm1"))

	path := filepath.Join(t.TempDir(), "X.psd1")
	merged, err := Write(path, data, overrides, nil)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if v, _ := data.Get(KeyRootModule); v.Str != "Old.psm1" {
		t.Error("Write() must not modify its input")
	}
	pd, _ := merged.Get(KeyPrivateData)
	ps, _ := pd.Table.Get(KeyPSData)
	if !slices.Equal(ps.Table.Keys(), []string{"Tags", "ProjectUri"}) {
		t.Errorf("PSData keys = %v", ps.Table.Keys())
	}
}
