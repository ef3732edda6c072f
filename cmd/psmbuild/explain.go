// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psmbuild/psmbuild/internal/config"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/pkg/types"
)

var errUnknownIssue = errors.New("unknown issue")

func newExplainCommand(root *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [ISSUE]",
		Short: "Show troubleshooting guidance for a build problem",
		Long: `Without arguments, list the known problems. With an issue name, render
its guide: what went wrong, common causes and things to try.`,
		Example: `  psmbuild explain
  psmbuild explain structural-violation`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			var slugs []string
			for _, is := range issue.Values() {
				slugs = append(slugs, is.Slug())
			}
			return slugs, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(w, TitleStyle.Render("Known issues"))
				fmt.Fprintln(w)
				for _, is := range issue.Values() {
					fmt.Fprintf(w, "  %s %s\n", CmdStyle.Width(26).Render(is.Slug()), SubtitleStyle.Render(headline(is)))
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, "Run 'psmbuild explain <issue>' for the full guide.")
				return nil
			}

			is, ok := issue.Lookup(args[0])
			if !ok {
				return reportError(cmd, unknownIssueError(args[0]), types.ExitUsage, root.verbose)
			}

			style := string(config.ColorSchemeAuto)
			if cfg, err := loadConfig(cmd.Context(), root); err == nil {
				style = cfg.UI.ColorScheme.GlamourStyle()
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, root.verbose))
			}
			rendered, err := is.Render(style)
			if err != nil {
				return err
			}
			fmt.Fprint(w, rendered)
			return nil
		},
	}
}

func unknownIssueError(slug string) *issue.ActionableError {
	ae := issue.NewActionableError("explain issue")
	ae.Resource = slug
	ae.Cause = errUnknownIssue
	ae.Suggestions = []string{"run 'psmbuild explain' for the list of known issues"}
	return ae
}

// headline returns the first markdown heading of an issue without the
// leading hashes.
func headline(is *issue.Issue) string {
	for line := range strings.Lines(string(is.MarkdownMsg())) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
