// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/extract"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/pkg/types"
)

func record(t *testing.T, name, content string) *extract.Record {
	t.Helper()
	rec, err := extract.Extract(types.FilesystemPath(name+".ps1"), content, extract.Options{})
	if err != nil {
		t.Fatalf("Extract(%s) error = %v", name, err)
	}
	return rec
}

func TestAssemble_ExportSurface(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "out", "MyModule")
	records := []*extract.Record{
		record(t, "Get-Foo", "function Get-Foo { 'foo' }\nSet-Alias -Name gf -Value Get-Foo\n"),
		record(t, "Get-Bar", "function Get-Bar { 'bar' }\n"),
	}

	art, err := Assemble(records, Options{Target: target, MarkGenerated: true})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if art.ModuleName != "MyModule" {
		t.Errorf("ModuleName = %q", art.ModuleName)
	}
	if want := []types.DefinitionName{"Get-Bar", "Get-Foo"}; !slices.Equal(art.Functions, want) {
		t.Errorf("Functions = %v, want %v", art.Functions, want)
	}
	if want := []types.AliasName{"gf"}; !slices.Equal(art.Aliases, want) {
		t.Errorf("Aliases = %v, want %v", art.Aliases, want)
	}

	want := "# MyModule.psm1 generated by psmbuild; do not edit.\n" +
		"function Get-Bar { 'bar' }\n\n" +
		"function Get-Foo { 'foo' }\nSet-Alias -Name gf -Value Get-Foo\n\n" +
		"Export-ModuleMember -Function Get-Bar,Get-Foo\n" +
		"Export-ModuleMember -Alias gf\n"
	data, err := os.ReadFile(filepath.Join(target, "MyModule.psm1"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != want {
		t.Errorf("artifact =\n%s\nwant\n%s", data, want)
	}
	if art.Path != filepath.Join(target, "MyModule.psm1") {
		t.Errorf("Path = %q", art.Path)
	}
}

func TestAssemble_NoAliasLineWithoutAliases(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "M")
	art, err := Assemble([]*extract.Record{record(t, "F", "function F { }")}, Options{Target: target})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if strings.Contains(art.Content, "-Alias") {
		t.Errorf("Content = %q, want no alias export", art.Content)
	}
	if strings.HasPrefix(art.Content, "#") {
		t.Errorf("Content = %q, want no marker", art.Content)
	}
	if len(art.Aliases) != 0 {
		t.Errorf("Aliases = %v", art.Aliases)
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "M")
	build := func(order []int) *Artifact {
		all := []*extract.Record{
			record(t, "b", "function b { }\nsal bb b"),
			record(t, "A", "function A { }\nsal aa A"),
			record(t, "c", "function c { }"),
		}
		var records []*extract.Record
		for _, i := range order {
			records = append(records, all[i])
		}
		art, err := Assemble(records, Options{Target: target})
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		return art
	}

	first := build([]int{0, 1, 2})
	second := build([]int{2, 0, 1})
	if first.Content != second.Content {
		t.Errorf("content differs between runs:\n%s\n---\n%s", first.Content, second.Content)
	}
	if !slices.Equal(first.Functions, []types.DefinitionName{"A", "b", "c"}) {
		t.Errorf("Functions = %v", first.Functions)
	}
}

func TestAssemble_ReplacesTargetDirectory(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "M")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(target, "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Assemble([]*extract.Record{record(t, "F", "function F { }")}, Options{Target: target}); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived regeneration")
	}
}

func TestAssemble_EmptyIsNoOp(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "M")
	art, err := Assemble(nil, Options{Target: target})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if art.Path != "" {
		t.Errorf("Path = %q, want empty", art.Path)
	}
	if !art.Diagnostics.Has(diag.CodeNoSources) {
		t.Errorf("Diagnostics = %+v", art.Diagnostics)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("target directory should not be created")
	}
}

func TestAssemble_DelimiterViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		list    ExportList
	}{
		{"function name", "Get,Foo", "function Get-Foo { }", ListFunctions},
		{"alias name", "Get-Foo", "function Get-Foo { }\nSet-Alias -Name 'g,f' -Value Get-Foo", ListAliases},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := filepath.Join(t.TempDir(), "M")
			_, err := Assemble([]*extract.Record{record(t, tt.file, tt.content)}, Options{Target: target})
			if !errors.Is(err, ErrReservedDelimiter) {
				t.Fatalf("Assemble() error = %v, want ErrReservedDelimiter", err)
			}
			delimErr, ok := errors.AsType[*DelimiterError](err)
			if !ok || delimErr.List != tt.list {
				t.Errorf("error = %#v, want list %s", err, tt.list)
			}
			if _, err := os.Stat(ArtifactPath(target)); !os.IsNotExist(err) {
				t.Error("artifact must not exist after a delimiter violation")
			}
		})
	}
}

func TestAssemble_InvalidTarget(t *testing.T) {
	t.Parallel()

	rec := record(t, "F", "function F { }")
	for _, target := range []string{"", string(filepath.Separator)} {
		if _, err := Assemble([]*extract.Record{rec}, Options{Target: target}); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Assemble(target %q) error = %v, want ErrInvalidTarget", target, err)
		}
	}
}

func TestAssemble_CRLF(t *testing.T) {
	t.Parallel()

	enc, err := textenc.New("utf8", textenc.NewlineCRLF)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(t.TempDir(), "M")
	art, err := Assemble([]*extract.Record{record(t, "F", "function F { }")}, Options{Target: target, Encoder: enc})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "function F { }\r\n\r\nExport-ModuleMember -Function F\r\n" {
		t.Errorf("artifact = %q", data)
	}
}
