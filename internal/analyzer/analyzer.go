// SPDX-License-Identifier: MPL-2.0

// Package analyzer runs the post-generation syntax check against a written
// artifact. Findings are reported; they never roll the artifact back.
//
// Without a configured command the artifact is re-parsed in-process. A
// configured command is a POSIX shell script run by an embedded interpreter
// with ARTIFACT, ARTIFACT_DIR and MODULE_NAME set. Its stdout is read line by
// line; each non-empty line is one finding in the form
//
//	[file:line[:col]:] [error|warning|info:] message
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/pkg/psast"
)

// ErrAnalyzerFailed is returned when the analyzer itself could not run.
var ErrAnalyzerFailed = errors.New("analyzer failed")

type (
	// Target identifies the artifact to check.
	Target struct {
		Dir        string
		Path       string
		ModuleName string
	}

	// Finding is one problem reported against the artifact.
	Finding struct {
		Severity diag.Severity `json:"severity" yaml:"severity"`
		File     string        `json:"file,omitempty" yaml:"file,omitempty"`
		Line     int           `json:"line,omitempty" yaml:"line,omitempty"`
		Column   int           `json:"column,omitempty" yaml:"column,omitempty"`
		Message  string        `json:"message" yaml:"message"`
	}

	// Analyzer checks a written artifact.
	Analyzer interface {
		Check(ctx context.Context, target Target) ([]Finding, error)
	}

	// Builtin re-parses the artifact with the built-in parser.
	Builtin struct{}

	// Command runs a shell script against the artifact.
	Command struct {
		Script string
	}
)

var findingLine = regexp.MustCompile(
	`^(?:(?P<file>[^:\s][^:]*?):(?P<line>\d+):(?:(?P<col>\d+):)?\s*)?` +
		`(?:(?P<sev>(?i:error|warning|information|info))\s*:\s*)?(?P<msg>.*\S)\s*$`)

// New returns the Command analyzer for a non-empty script and Builtin
// otherwise.
func New(script string) Analyzer {
	if strings.TrimSpace(script) == "" {
		return Builtin{}
	}
	return &Command{Script: script}
}

// Check implements Analyzer.
func (Builtin) Check(_ context.Context, target Target) ([]Finding, error) {
	text, err := textenc.ReadFile(target.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalyzerFailed, err)
	}
	_, err = psast.Parse(text)
	if err == nil {
		return nil, nil
	}
	synErr, ok := errors.AsType[*psast.SyntaxError](err)
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrAnalyzerFailed, err)
	}
	return []Finding{{
		Severity: diag.SeverityError,
		File:     target.Path,
		Line:     synErr.Line,
		Column:   synErr.Column,
		Message:  synErr.Msg,
	}}, nil
}

// Check implements Analyzer. A non-zero exit status without output becomes a
// single error finding carrying stderr.
func (c *Command) Check(ctx context.Context, target Target) ([]Finding, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(c.Script), "analyzer")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse analyzer command: %w", ErrAnalyzerFailed, err)
	}

	env := append(os.Environ(),
		"ARTIFACT="+target.Path,
		"ARTIFACT_DIR="+target.Dir,
		"MODULE_NAME="+target.ModuleName,
	)
	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(target.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create interpreter: %w", ErrAnalyzerFailed, err)
	}

	exitCode := 0
	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if !errors.As(err, &exitStatus) {
			return nil, fmt.Errorf("%w: %w", ErrAnalyzerFailed, err)
		}
		exitCode = int(exitStatus)
	}

	findings := ParseFindings(stdout.String())
	if exitCode != 0 && len(findings) == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "analyzer exited with status " + strconv.Itoa(exitCode)
		}
		findings = append(findings, Finding{Severity: diag.SeverityError, File: target.Path, Message: msg})
	}
	return findings, nil
}

// ParseFindings turns analyzer output into findings, one per non-empty line.
// Lines without a severity are errors.
func ParseFindings(output string) []Finding {
	var out []Finding
	for _, line := range strings.Split(output, "\n") {
		m := findingLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		f := Finding{
			Severity: diag.SeverityError,
			File:     m[findingLine.SubexpIndex("file")],
			Message:  m[findingLine.SubexpIndex("msg")],
		}
		f.Line, _ = strconv.Atoi(m[findingLine.SubexpIndex("line")])
		f.Column, _ = strconv.Atoi(m[findingLine.SubexpIndex("col")])
		switch strings.ToLower(m[findingLine.SubexpIndex("sev")]) {
		case "warning":
			f.Severity = diag.SeverityWarning
		case "info", "information":
			f.Severity = diag.SeverityInfo
		}
		out = append(out, f)
	}
	return out
}
