// SPDX-License-Identifier: MPL-2.0

package build

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/psmbuild/psmbuild/internal/analyzer"
	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/pkg/types"
)

const (
	// StatusBuilt means the artifact was written.
	StatusBuilt Status = "built"
	// StatusSkipped means the directory had nothing to build.
	StatusSkipped Status = "skipped"
	// StatusFailed means the directory was abandoned.
	StatusFailed Status = "failed"

	// FormatYAML writes the report as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON writes the report as indented JSON.
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for a report path with an unsupported
// extension.
var ErrUnknownFormat = errors.New("unknown report format")

type (
	// Status is the outcome of one module.
	Status string

	// Format selects the report encoding.
	Format string

	// ModuleReport is the outcome of building one source directory.
	ModuleReport struct {
		Source     string `json:"source" yaml:"source"`
		Target     string `json:"target" yaml:"target"`
		ModuleName string `json:"module_name" yaml:"module_name"`
		Status     Status `json:"status" yaml:"status"`
		// Artifact is the written .psm1 file.
		Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
		// Fingerprint is the hex BLAKE3 digest of the artifact bytes.
		Fingerprint string                 `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
		Functions   []types.DefinitionName `json:"functions,omitempty" yaml:"functions,omitempty"`
		Aliases     []types.AliasName      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
		// Descriptor is the written .psd1 file.
		Descriptor  string             `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
		Diagnostics diag.List          `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
		Findings    []analyzer.Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
		Kind        Kind               `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
		Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
		Duration    time.Duration      `json:"duration_ns" yaml:"duration"`

		// Err is the error that abandoned the directory.
		Err error `json:"-" yaml:"-"`
	}

	// Report collects the module outcomes of one run in processing order.
	Report struct {
		StartedAt time.Time       `json:"started_at" yaml:"started_at"`
		Duration  time.Duration   `json:"duration_ns" yaml:"duration"`
		Modules   []*ModuleReport `json:"modules" yaml:"modules"`
	}
)

// FormatFor returns the report format implied by a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (use .yaml, .yml or .json)", ErrUnknownFormat, path)
	}
}

// Failed returns the modules that were abandoned.
func (r *Report) Failed() []*ModuleReport {
	var out []*ModuleReport
	for _, m := range r.Modules {
		if m.Status == StatusFailed {
			out = append(out, m)
		}
	}
	return out
}

// ExitCode is ExitFailure when any module was abandoned.
func (r *Report) ExitCode() types.ExitCode {
	if len(r.Failed()) > 0 {
		return types.ExitFailure
	}
	return types.ExitSuccess
}

// Warnings counts warning and error diagnostics across all modules.
func (r *Report) Warnings() int {
	n := 0
	for _, m := range r.Modules {
		for _, d := range m.Diagnostics {
			if d.Severity != diag.SeverityInfo {
				n++
			}
		}
	}
	return n
}

// Encode writes the report to w.
func (r *Report) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile writes the report to path in the format its extension names.
func (r *Report) WriteFile(path string) (err error) {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return r.Encode(f, format)
}

// Fingerprint returns the hex BLAKE3 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
