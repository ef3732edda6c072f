// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psmbuild/psmbuild/internal/analyzer"
	"github.com/psmbuild/psmbuild/internal/build"
	"github.com/psmbuild/psmbuild/internal/config"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/internal/project"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/internal/vcs"
	"github.com/psmbuild/psmbuild/pkg/types"
)

type (
	// buildFlagValues holds the flags of `psmbuild build`.
	buildFlagValues struct {
		includeUncommitted bool
		skipSyntaxCheck    bool
		skipRequires       bool
		markGenerated      bool
		assumeYes          bool
		watch              bool
		encoding           string
		reportPath         string
		projectPath        string
	}

	// buildPlan is what a build run does once flags, the project file and
	// the user config have been layered.
	buildPlan struct {
		modules            []project.Module
		projectFile        string
		includeUncommitted bool
		skipSyntaxCheck    bool
		skipRequires       bool
		markGenerated      bool
		encoder            *textenc.Encoder
		reportPath         string
	}
)

func newBuildCommand(root *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}

	buildCmd := &cobra.Command{
		Use:   "build [SOURCE TARGET]",
		Short: "Assemble modules from their definition sources",
		Long: `Assemble one .psm1 module per source directory and reconcile its
.psd1 descriptor.

Without arguments the modules listed in psmbuild.toml are built; the file
is looked up in the current directory and its parents. A SOURCE TARGET
pair builds that single module instead, still honoring the run settings
of a project file if one is found.

Settings are layered: flags win over the project file, which wins over the
user configuration.`,
		Example: `  psmbuild build ./src ./out/Tools
  psmbuild build --include-uncommitted --report build.yaml
  psmbuild build --watch`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected SOURCE TARGET or no arguments, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, root, flags, args)
		},
	}

	f := buildCmd.Flags()
	f.BoolVar(&flags.includeUncommitted, "include-uncommitted", false, "build modified and untracked files as they are on disk")
	f.BoolVar(&flags.skipSyntaxCheck, "skip-syntax-check", false, "do not check the written module")
	f.BoolVar(&flags.skipRequires, "skip-requires", false, "leave #Requires lines out of the module")
	f.BoolVar(&flags.markGenerated, "mark-generated", true, "start the module with a do-not-edit marker")
	f.StringVar(&flags.encoding, "encoding", "", "text encoding of written files (default from config)")
	f.BoolVarP(&flags.assumeYes, "yes", "y", false, "update descriptors with uncommitted changes without asking")
	f.StringVar(&flags.reportPath, "report", "", "write a build report (.yaml, .yml or .json)")
	f.BoolVarP(&flags.watch, "watch", "w", false, "rebuild modules whenever their sources change")
	f.StringVar(&flags.projectPath, "project", "", "project file (default is the nearest "+project.FileName+")")

	return buildCmd
}

func runBuild(cmd *cobra.Command, root *rootFlagValues, flags *buildFlagValues, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx, root)
	if err != nil {
		return reportError(cmd, err, types.ExitUsage, root.verbose)
	}
	verbose := root.verbose || cfg.UI.Verbose

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	plan, err := resolvePlan(cfg, flags, cmd.Flags().Changed, args, cwd)
	if err != nil {
		return reportError(cmd, err, types.ExitUsage, verbose)
	}

	client, err := vcs.NewClient(cfg.VCS.Backend, cfg.VCS.GitBinary.String())
	if err != nil {
		return reportError(cmd, err, types.ExitUsage, verbose)
	}

	logger := newLogger(cmd.ErrOrStderr(), verbose)
	if plan.projectFile != "" {
		logger.Debug("Using project file", "path", plan.projectFile)
	}
	runner := build.NewRunner(build.Options{
		Logger:             logger,
		Client:             client,
		Analyzer:           analyzer.New(cfg.Analyzer.Command),
		Confirm:            newConfirmer(flags.assumeYes, os.Stdin, cmd.ErrOrStderr()),
		Encoder:            plan.encoder,
		IncludeUncommitted: plan.includeUncommitted,
		SkipRequires:       plan.skipRequires,
		MarkGenerated:      plan.markGenerated,
		SkipSyntaxCheck:    plan.skipSyntaxCheck,
	})

	out := &summaryPrinter{
		w:           cmd.OutOrStdout(),
		cwd:         cwd,
		verbose:     verbose,
		guideStyle:  cfg.UI.ColorScheme.GlamourStyle(),
		reportPath:  plan.reportPath,
		reportError: cmd.ErrOrStderr(),
	}

	if flags.watch {
		return runWatchMode(cmd, runner, plan, out, logger)
	}

	rep, err := runner.Run(ctx, plan.modules)
	if rep != nil {
		out.print(rep)
	}
	if err != nil {
		return reportError(cmd, err, types.ExitFailure, verbose)
	}
	if code := rep.ExitCode(); code != types.ExitSuccess {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: code}
	}
	return nil
}

// resolvePlan layers flags over the project file over the user config.
// changed reports whether a flag was set on the command line.
func resolvePlan(cfg *config.Config, flags *buildFlagValues, changed func(string) bool, args []string, cwd string) (*buildPlan, error) {
	proj, err := loadProject(flags.projectPath, cwd)
	if err != nil {
		return nil, err
	}

	plan := &buildPlan{
		markGenerated: cfg.Output.MarkGenerated,
		reportPath:    flags.reportPath,
	}
	encoding := cfg.Output.Encoding
	if proj != nil {
		plan.projectFile = proj.Path
		plan.modules = proj.Modules
		plan.includeUncommitted = proj.IncludeUncommitted
		plan.skipSyntaxCheck = proj.SkipSyntaxCheck
		plan.skipRequires = proj.SkipRequires
		if proj.MarkGenerated != nil {
			plan.markGenerated = *proj.MarkGenerated
		}
		if proj.Encoding != "" {
			encoding = proj.Encoding
		}
	}

	if changed("include-uncommitted") {
		plan.includeUncommitted = flags.includeUncommitted
	}
	if changed("skip-syntax-check") {
		plan.skipSyntaxCheck = flags.skipSyntaxCheck
	}
	if changed("skip-requires") {
		plan.skipRequires = flags.skipRequires
	}
	if changed("mark-generated") {
		plan.markGenerated = flags.markGenerated
	}
	if changed("encoding") {
		encoding = flags.encoding
	}
	if plan.reportPath != "" {
		if _, err := build.FormatFor(plan.reportPath); err != nil {
			return nil, err
		}
	}

	if plan.encoder, err = textenc.New(encoding, cfg.Output.Newline); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select output encoding").
			WithResource(encoding).
			WithIssue(issue.InvalidEncodingId).
			Wrap(err).
			BuildError()
	}

	if len(args) == 2 {
		m := project.Module{Source: args[0], Target: args[1]}.Resolve(cwd)
		if err := m.Validate(0); err != nil {
			ectx := issue.NewErrorContext().WithOperation("check module").Wrap(err)
			if errors.Is(err, project.ErrTargetOverlapsSource) {
				ectx = ectx.WithIssue(issue.TargetOverlapsSourceId)
			}
			return nil, ectx.BuildError()
		}
		plan.modules = []project.Module{m}
	}
	if len(plan.modules) == 0 {
		return nil, issue.NewErrorContext().
			WithOperation("select modules").
			WithSuggestions(
				"pass a SOURCE TARGET pair",
				"list [[module]] entries in "+project.FileName,
			).
			Wrap(project.ErrNoModules).
			BuildError()
	}
	return plan, nil
}

// loadProject reads the explicit project file, or the nearest one when
// path is empty. A missing implicit project file is not an error.
func loadProject(path, cwd string) (*project.File, error) {
	if path == "" {
		found, err := project.Find(cwd)
		if errors.Is(err, project.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, issue.WrapWithContext(err, "find project file", cwd)
		}
		path = found
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	f, err := project.Load(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load project file").
			WithResource(path).
			WithIssue(issue.ProjectLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return f, nil
}

// reportError prints err the way the user asked for and returns the exit
// status to use. Guidance from the issue catalog is added in verbose mode.
func reportError(cmd *cobra.Command, err error, code types.ExitCode, verbose bool) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	if verbose {
		renderGuide(w, err, string(config.ColorSchemeAuto))
	}
	return &ExitError{Code: code, Err: err}
}

// renderGuide prints the catalog entry attached to err, if any.
func renderGuide(w io.Writer, err error, style string) {
	is, ok := issue.IssueOf(err)
	if !ok {
		return
	}
	rendered, renderErr := is.Render(style)
	if renderErr != nil {
		fmt.Fprintf(w, "%s see 'psmbuild explain %s'\n", SubtitleStyle.Render("Hint:"), is.Slug())
		return
	}
	fmt.Fprint(w, rendered)
}

// displayPath shortens p relative to cwd when it lies below it.
func displayPath(cwd, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(cwd, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}
