// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psmbuild/psmbuild/internal/extract"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/pkg/types"
)

// inspectFlagValues holds the flags of `psmbuild inspect`.
type inspectFlagValues struct {
	skipRequires bool
	format       string
}

func newInspectCommand() *cobra.Command {
	flags := &inspectFlagValues{}

	inspectCmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show what a single source file contributes to a module",
		Long: `Validate one definition source file and print its record: the
exported name, the name after the keyword, required modules and aliases.
A file that breaks the one-definition rule is reported with the line of
the offending construct.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, flags, args[0])
		},
	}

	inspectCmd.Flags().BoolVar(&flags.skipRequires, "skip-requires", false, "leave #Requires lines out of the body")
	inspectCmd.Flags().StringVarP(&flags.format, "output", "o", "text", "output format: text, yaml or json")

	return inspectCmd
}

func runInspect(cmd *cobra.Command, flags *inspectFlagValues, file string) error {
	switch flags.format {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q (valid: text, yaml, json)", flags.format)
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	content, err := textenc.ReadFile(abs)
	if err != nil {
		return issue.WrapWithContext(err, "read definition file", file)
	}

	rec, err := extract.Extract(types.FilesystemPath(abs), content, extract.Options{SkipRequires: flags.skipRequires})
	if err != nil {
		wrapped := issue.NewErrorContext().
			WithOperation("inspect "+filepath.Base(abs)).
			WithIssue(issue.StructuralViolationId).
			Wrap(err).
			BuildError()
		return reportError(cmd, wrapped, types.ExitFailure, true)
	}

	w := cmd.OutOrStdout()
	switch flags.format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	default:
		printRecord(w, rec)
		return nil
	}
}

func printRecord(w io.Writer, rec *extract.Record) {
	row := func(key, value string) {
		fmt.Fprintf(w, "%s %s\n", CmdStyle.Width(12).Render(key+":"), value)
	}
	fmt.Fprintln(w, TitleStyle.Render(rec.Name.String()))
	row("keyword", rec.Keyword)
	row("parsed name", rec.ParsedName)
	row("requires", listOrNone(rec.Requires))

	aliases := make([]string, 0, len(rec.Aliases))
	for _, a := range rec.Aliases {
		aliases = append(aliases, a.String())
	}
	row("aliases", listOrNone(aliases))
	row("body", fmt.Sprintf("%d line(s)", strings.Count(rec.Body, "\n")+1))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return SubtitleStyle.Render("(none)")
	}
	return strings.Join(items, ", ")
}
