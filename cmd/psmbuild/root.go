// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/psmbuild/psmbuild/internal/config"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "psmbuild",
		Short: "Assemble PowerShell script modules from one-function-per-file sources",
		Long: TitleStyle.Render("psmbuild") + SubtitleStyle.Render(" - PowerShell module assembly") + `

psmbuild turns a directory of single-function .ps1 files into one .psm1
module and keeps its .psd1 descriptor in step with what the module
exports. Only committed content is built unless asked otherwise.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Keep one function, filter or workflow per .ps1 file
  2. Describe source/target pairs in psmbuild.toml, or pass them directly
  3. Build with: psmbuild build

` + SubtitleStyle.Render("Examples:") + `
  psmbuild build ./src ./out/Tools   Build one module
  psmbuild build --watch             Rebuild on every save
  psmbuild inspect src/Get-Thing.ps1 Show what a source file exports
  psmbuild explain                   List troubleshooting guides
  psmbuild config show               Show current configuration`,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/psmbuild/config.cue)")

	rootCmd.AddCommand(newBuildCommand(flags))
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newExplainCommand(flags))
	rootCmd.AddCommand(newConfigCommand(flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command and exits with the status of the outcome.
// It is called by main.main.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		newRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(int(exitCodeOf(err)))
	}
}

// loadConfig reads the user configuration selected by --config.
func loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(ctx, flags.loadOptions())
	if err != nil {
		if _, ok := errors.AsType[*issue.ActionableError](err); ok {
			return nil, err
		}
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(flags.configPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("run 'psmbuild config dump' to see the expected schema").
			Wrap(err).
			BuildError()
	}
	return cfg, nil
}

func (f *rootFlagValues) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: types.FilesystemPath(f.configPath)}
}

// newLogger returns the logger every pipeline stage reports to.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "psmbuild"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	if ae, ok := errors.AsType[*issue.ActionableError](err); ok {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
