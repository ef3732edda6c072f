// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/psmbuild/psmbuild/internal/build"
	"github.com/psmbuild/psmbuild/internal/diag"
)

// summaryPrinter renders build reports for the terminal and writes the
// report file after each run.
type summaryPrinter struct {
	w           io.Writer
	cwd         string
	verbose     bool
	guideStyle  string
	reportPath  string
	reportError io.Writer
}

func (p *summaryPrinter) print(rep *build.Report) {
	for _, m := range rep.Modules {
		p.printModule(m)
	}

	built := 0
	for _, m := range rep.Modules {
		if m.Status == build.StatusBuilt {
			built++
		}
	}
	line := fmt.Sprintf("Built %d of %d module(s) in %s", built, len(rep.Modules), rep.Duration.Round(time.Millisecond))
	if n := rep.Warnings(); n > 0 {
		line += WarningStyle.Render(fmt.Sprintf(", %d warning(s)", n))
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, line)

	if p.reportPath == "" {
		return
	}
	if err := rep.WriteFile(p.reportPath); err != nil {
		fmt.Fprintf(p.reportError, "%s writing report: %v\n", WarningStyle.Render("!"), err)
		return
	}
	fmt.Fprintf(p.w, "Report written to %s\n", CmdStyle.Render(displayPath(p.cwd, p.reportPath)))
}

func (p *summaryPrinter) printModule(m *build.ModuleReport) {
	name := TitleStyle.Render(m.ModuleName)
	switch m.Status {
	case build.StatusBuilt:
		fmt.Fprintf(p.w, "%s %s %s\n", SuccessStyle.Render("✓"), name, CmdStyle.Render(displayPath(p.cwd, m.Artifact)))
		fmt.Fprintf(p.w, "  %s\n", VerboseStyle.Render(fmt.Sprintf("%d function(s), %d alias(es)", len(m.Functions), len(m.Aliases))))
		if m.Descriptor != "" {
			fmt.Fprintf(p.w, "  %s %s\n", SubtitleStyle.Render("descriptor"), displayPath(p.cwd, m.Descriptor))
		}
		if p.verbose && m.Fingerprint != "" {
			fmt.Fprintf(p.w, "  %s %s\n", SubtitleStyle.Render("blake3"), VerboseStyle.Render(m.Fingerprint))
		}
	case build.StatusSkipped:
		fmt.Fprintf(p.w, "%s %s %s\n", WarningStyle.Render("!"), name, WarningStyle.Render("skipped: no definition sources"))
	case build.StatusFailed:
		fmt.Fprintf(p.w, "%s %s %s\n", ErrorStyle.Render("✗"), name, SubtitleStyle.Render(string(m.Kind)))
		if m.Err != nil {
			fmt.Fprintf(p.w, "  %s\n", formatErrorForDisplay(m.Err, p.verbose))
			if p.verbose {
				renderGuide(p.w, m.Err, p.guideStyle)
			}
		}
	}

	for _, d := range m.Diagnostics {
		if d.Severity == diag.SeverityInfo && !p.verbose {
			continue
		}
		fmt.Fprintf(p.w, "  %s %s\n", severityMark(d.Severity), d.Message)
	}
}

func severityMark(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return ErrorStyle.Render("✗")
	case diag.SeverityWarning:
		return WarningStyle.Render("!")
	default:
		return VerboseStyle.Render("·")
	}
}
