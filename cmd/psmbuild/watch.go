// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/psmbuild/psmbuild/internal/build"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/internal/project"
	"github.com/psmbuild/psmbuild/internal/watch"
)

// watchPatterns are the files whose changes trigger a rebuild.
var watchPatterns = []string{"**/*.ps1", "**/*.psd1"}

// runWatchMode builds every module once, then rebuilds the modules whose
// sources change until the command's context is cancelled (Ctrl+C).
func runWatchMode(cmd *cobra.Command, runner *build.Runner, plan *buildPlan, out *summaryPrinter, logger *log.Logger) error {
	ctx := cmd.Context()

	rebuild := func(ctx context.Context, modules []project.Module) error {
		rep, err := runner.Run(ctx, modules)
		if rep != nil {
			out.print(rep)
		}
		return err
	}

	if !plan.includeUncommitted {
		logger.Info("Only committed content is built; pass --include-uncommitted to build files as saved")
	}
	fmt.Fprintf(out.w, "%s Watch mode: initial build of %d module(s)\n", VerboseHighlightStyle.Render("→"), len(plan.modules))
	if err := rebuild(ctx, plan.modules); err != nil {
		return err
	}

	roots := make([]string, 0, len(plan.modules))
	for _, m := range plan.modules {
		roots = append(roots, m.Source)
	}

	w, err := watch.New(watch.Config{
		Roots:    roots,
		Patterns: watchPatterns,
		Ignore:   targetIgnores(plan.modules),
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			modules := affectedModules(plan.modules, changed)
			if len(modules) == 0 {
				return nil
			}
			fmt.Fprintf(out.w, "\n%s Detected %d change(s). Rebuilding %d module(s)...\n",
				VerboseHighlightStyle.Render("→"), len(changed), len(modules))
			if err := rebuild(ctx, modules); err != nil && ctx.Err() == nil {
				return err
			}
			fmt.Fprintf(out.w, "\n%s Watching for changes...\n", VerboseHighlightStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return issue.WrapWithOperation(err, "start watcher")
	}

	fmt.Fprintf(out.w, "\n%s Watching %d source director(ies) for changes (Ctrl+C to stop)...\n",
		VerboseHighlightStyle.Render("→"), len(w.Roots()))
	return w.Run(ctx)
}

// affectedModules returns, in build order, the modules with a changed file
// in their source directory. Files under a module's own target directory
// do not count.
func affectedModules(modules []project.Module, changed []string) []project.Module {
	var out []project.Module
	for _, m := range modules {
		if slices.ContainsFunc(changed, func(p string) bool {
			return within(m.Source, p) && !within(m.Target, p)
		}) {
			out = append(out, m)
		}
	}
	return out
}

// targetIgnores keeps writes into a target nested in its source from
// triggering another rebuild.
func targetIgnores(modules []project.Module) []string {
	var ignores []string
	for _, m := range modules {
		if !within(m.Source, m.Target) {
			continue
		}
		rel, err := filepath.Rel(m.Source, m.Target)
		if err != nil {
			continue
		}
		pat := filepath.ToSlash(rel) + "/**"
		if !slices.Contains(ignores, pat) {
			ignores = append(ignores, pat)
		}
	}
	return ignores
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
