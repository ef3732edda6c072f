// SPDX-License-Identifier: MPL-2.0

package build

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/project"
	"github.com/psmbuild/psmbuild/pkg/types"
)

func sampleReport() *Report {
	var d diag.List
	d.Warnf(diag.CodeHistoryMissing, "src/New.ps1", nil, "skipping New: untracked file src/New.ps1 has no committed version")
	d.Infof(diag.CodeHistorySubstituted, "src/Get-A.ps1", "using committed content of Get-A")
	return &Report{
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Modules: []*ModuleReport{
			{
				Source: "/w/src", Target: "/w/out/Tools", ModuleName: "Tools", Status: StatusBuilt,
				Artifact: "/w/out/Tools/Tools.psm1", Functions: []types.DefinitionName{"Get-A"},
				Diagnostics: d,
			},
			{
				Source: "/w/bad", Target: "/w/out/Bad", ModuleName: "Bad", Status: StatusFailed,
				Kind: KindStructuralViolation, Error: "Two.ps1: more than one definition",
				Err: errors.New("not serialized"),
			},
		},
	}
}

func TestReport_Summary(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	if got := r.Warnings(); got != 1 {
		t.Errorf("Warnings() = %d, want 1", got)
	}
	if r.ExitCode() != types.ExitFailure {
		t.Errorf("ExitCode() = %v", r.ExitCode())
	}
	r.Modules = r.Modules[:1]
	if r.ExitCode() != types.ExitSuccess {
		t.Errorf("ExitCode() without failures = %v", r.ExitCode())
	}
}

func TestReport_WriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "reports", "build.yaml")
		if err := sampleReport().WriteFile(path); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var decoded struct {
			Modules []struct {
				ModuleName  string `yaml:"module_name"`
				Status      string `yaml:"status"`
				Kind        string `yaml:"error_kind"`
				Diagnostics []struct {
					Code string `yaml:"code"`
					Path string `yaml:"path"`
				} `yaml:"diagnostics"`
			} `yaml:"modules"`
		}
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("report is not YAML: %v\n%s", err, data)
		}
		if len(decoded.Modules) != 2 || decoded.Modules[1].Kind != "structural_violation" {
			t.Errorf("decoded = %+v", decoded)
		}
		if d := decoded.Modules[0].Diagnostics; len(d) != 2 || d[0].Path != "src/New.ps1" {
			t.Errorf("diagnostics = %+v", d)
		}
		if strings.Contains(string(data), "not serialized") {
			t.Error("Err must not be serialized")
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "build.json")
		if err := sampleReport().WriteFile(path); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("report is not JSON: %v", err)
		}
		if decoded["duration_ns"] != float64(1500*time.Millisecond) {
			t.Errorf("duration_ns = %v", decoded["duration_ns"])
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		t.Parallel()
		err := sampleReport().WriteFile(filepath.Join(dir, "build.txt"))
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("error = %v, want ErrUnknownFormat", err)
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	content := []byte("function Get-A { }\n")
	path := filepath.Join(t.TempDir(), "M.psm1")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	sum := blake3.Sum256(content)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("Fingerprint() = %q, want %q", got, want)
	}
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Fingerprint() of a missing file should fail")
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	src := writeTree(t, map[string]string{
		"b.ps1":                "",
		"A.PS1":                "",
		"a.Tests.ps1":          "",
		"notes.md":             "",
		"Public/c.ps1":         "",
		".git/hooks/d.ps1":     "",
		"node_modules/x/e.ps1": "",
	})

	flat := project.Module{Source: src, Target: src + "-out"}.Resolve("/")
	got, err := Scan(flat)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if want := []string{"A.PS1", "b.ps1"}; !slices.Equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	deep := project.Module{Source: src, Target: src + "-out", Include: []string{"**/*.ps1"}}.Resolve("/")
	got, err = Scan(deep)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if want := []string{"A.PS1", "Public/c.ps1", "b.ps1"}; !slices.Equal(got, want) {
		t.Errorf("recursive Scan() = %v, want %v", got, want)
	}
}
