// SPDX-License-Identifier: MPL-2.0

package analyzer

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/psmbuild/psmbuild/internal/diag"
)

func writeArtifact(t *testing.T, content string) Target {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "M")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "M.psm1")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return Target{Dir: dir, Path: path, ModuleName: "M"}
}

func TestBuiltin_Check(t *testing.T) {
	t.Parallel()

	clean := writeArtifact(t, "function F { }\n\nExport-ModuleMember -Function F\n")
	findings, err := Builtin{}.Check(t.Context(), clean)
	if err != nil || len(findings) != 0 {
		t.Errorf("Check(clean) = %v, %v", findings, err)
	}

	broken := writeArtifact(t, "function F {\n  'unterminated\n}\n")
	findings, err = Builtin{}.Check(t.Context(), broken)
	if err != nil {
		t.Fatalf("Check(broken) error = %v", err)
	}
	if len(findings) != 1 || findings[0].Line != 2 || findings[0].Severity != diag.SeverityError {
		t.Errorf("Check(broken) = %+v", findings)
	}

	if _, err := (Builtin{}).Check(t.Context(), Target{Path: filepath.Join(t.TempDir(), "missing.psm1")}); !errors.Is(err, ErrAnalyzerFailed) {
		t.Errorf("Check(missing) error = %v, want ErrAnalyzerFailed", err)
	}
}

func TestCommand_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []Finding
	}{
		{
			name:   "clean",
			script: "true",
		},
		{
			name:   "environment is set",
			script: `echo "$MODULE_NAME.psm1:3: warning: $(basename "$ARTIFACT") in $(basename "$ARTIFACT_DIR")"`,
			want: []Finding{
				{Severity: diag.SeverityWarning, File: "M.psm1", Line: 3, Message: "M.psm1 in M"},
			},
		},
		{
			name:   "failure without output",
			script: "echo 'analyzer crashed' >&2; exit 3",
			want: []Finding{
				{Severity: diag.SeverityError, Message: "analyzer crashed"},
			},
		},
		{
			name:   "runs in artifact directory",
			script: `test -f M.psm1 || echo "error: not in artifact dir"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := writeArtifact(t, "function F { }\n")
			findings, err := New(tt.script).Check(t.Context(), target)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			for i := range findings {
				if findings[i].File == target.Path {
					findings[i].File = ""
				}
			}
			if !slices.Equal(findings, tt.want) {
				t.Errorf("Check() = %+v, want %+v", findings, tt.want)
			}
		})
	}
}

func TestCommand_BadScript(t *testing.T) {
	t.Parallel()

	_, err := New("if then fi (").Check(t.Context(), writeArtifact(t, ""))
	if !errors.Is(err, ErrAnalyzerFailed) {
		t.Errorf("Check() error = %v, want ErrAnalyzerFailed", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, ok := New("  ").(Builtin); !ok {
		t.Error("blank script should select the built-in analyzer")
	}
	if _, ok := New("pwsh -c 1").(*Command); !ok {
		t.Error("script should select the command analyzer")
	}
}

func TestParseFindings(t *testing.T) {
	t.Parallel()

	out := "M.psm1:12:5: Error: Missing closing '}'\n\n" +
		"warning: trailing whitespace\r\n" +
		"Information: 3 rules evaluated\n" +
		"plain message\n"
	want := []Finding{
		{Severity: diag.SeverityError, File: "M.psm1", Line: 12, Column: 5, Message: "Missing closing '}'"},
		{Severity: diag.SeverityWarning, Message: "trailing whitespace"},
		{Severity: diag.SeverityInfo, Message: "3 rules evaluated"},
		{Severity: diag.SeverityError, Message: "plain message"},
	}
	if got := ParseFindings(out); !slices.Equal(got, want) {
		t.Errorf("ParseFindings() = %+v, want %+v", got, want)
	}
}
