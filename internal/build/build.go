// SPDX-License-Identifier: MPL-2.0

// Package build runs the assembly pipeline over a batch of module pairs.
//
// Each source directory goes through version-control reconciliation, the
// working-tree scan, definition extraction, artifact assembly, descriptor
// reconciliation and the syntax check, in that order. Directories are
// processed one at a time and each runs to completion before the next
// starts. An environment failure or a structural violation abandons the
// directory; the batch carries on with the next one. Every substitution,
// skip and recoverable failure is recorded as a diagnostic naming the file
// and logged as it happens.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/psmbuild/psmbuild/internal/analyzer"
	"github.com/psmbuild/psmbuild/internal/assemble"
	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/internal/extract"
	"github.com/psmbuild/psmbuild/internal/issue"
	"github.com/psmbuild/psmbuild/internal/manifest"
	"github.com/psmbuild/psmbuild/internal/project"
	"github.com/psmbuild/psmbuild/internal/textenc"
	"github.com/psmbuild/psmbuild/internal/vcs"
	"github.com/psmbuild/psmbuild/pkg/types"
)

type (
	// Options configure a Runner.
	Options struct {
		// Logger receives one record per diagnostic. Nil discards.
		Logger *log.Logger
		// Client answers version-control questions. Nil uses vcs.NoneClient.
		Client vcs.Client
		// Analyzer checks each written artifact. Nil uses analyzer.Builtin.
		Analyzer analyzer.Analyzer
		// Confirm is asked before updating a descriptor with uncommitted
		// changes. Nil declines.
		Confirm manifest.Confirmer
		// Encoder writes the artifact and descriptor. Nil is UTF-8 with "\n".
		Encoder *textenc.Encoder

		// IncludeUncommitted scans modified and untracked files as-is.
		IncludeUncommitted bool
		// SkipRequires omits #Requires lines from definition bodies.
		SkipRequires bool
		// MarkGenerated prepends the do-not-edit marker to the artifact.
		MarkGenerated bool
		// SkipSyntaxCheck disables the analyzer.
		SkipSyntaxCheck bool
	}

	// Runner builds modules with fixed options.
	Runner struct {
		opts Options
		log  *log.Logger
		now  func() time.Time
	}

	// moduleRun carries the state of one RunModule call.
	moduleRun struct {
		r      *Runner
		m      project.Module
		rep    *ModuleReport
		log    *log.Logger
		logged int
	}
)

// NewRunner returns a Runner, filling in defaults for nil options.
func NewRunner(opts Options) *Runner {
	if opts.Client == nil {
		opts.Client = vcs.NoneClient{}
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.Builtin{}
	}
	if opts.Confirm == nil {
		opts.Confirm = manifest.Abort{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{opts: opts, log: logger, now: time.Now}
}

// Run builds modules in order. The returned error is non-nil only when ctx
// is done before every module ran; the report then covers the modules that
// finished. Module failures are recorded in the report.
func (r *Runner) Run(ctx context.Context, modules []project.Module) (*Report, error) {
	if len(modules) == 0 {
		return nil, project.ErrNoModules
	}
	rep := &Report{StartedAt: r.now()}
	defer func() { rep.Duration = r.now().Sub(rep.StartedAt) }()

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Modules = append(rep.Modules, r.RunModule(ctx, m))
	}
	return rep, nil
}

// RunModule builds one source directory into its target directory.
func (r *Runner) RunModule(ctx context.Context, m project.Module) *ModuleReport {
	start := r.now()
	name := assemble.ModuleName(m.Target)
	run := &moduleRun{
		r:   r,
		m:   m,
		rep: &ModuleReport{Source: m.Source, Target: m.Target, ModuleName: name},
		log: r.log.With("module", name),
	}
	run.log.Info("Building module", "source", m.Source, "target", m.Target)

	if err := run.execute(ctx); err != nil {
		run.fail(err)
	}
	run.flush()
	run.rep.Duration = r.now().Sub(start)

	switch run.rep.Status {
	case StatusBuilt:
		run.log.Info("Module built", "artifact", run.rep.Artifact,
			"functions", len(run.rep.Functions), "aliases", len(run.rep.Aliases))
	case StatusSkipped:
		run.log.Warn("Module skipped", "reason", "no definition sources")
	}
	return run.rep
}

func (run *moduleRun) execute(ctx context.Context) error {
	r, m := run.r, run.m
	if err := m.Validate(0); err != nil {
		return err
	}
	absSource, err := filepath.Abs(m.Source)
	if err != nil {
		return err
	}

	res, err := vcs.Reconcile(ctx, r.opts.Client, absSource, vcs.Options{
		IncludeUncommitted: r.opts.IncludeUncommitted,
		Match:              m.Match,
	})
	if err != nil {
		return err
	}
	run.add(res.Diagnostics)

	resolved, err := run.scan(absSource, res)
	if err != nil {
		return err
	}

	records := make([]*extract.Record, 0, resolved.Len())
	for _, e := range resolved.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := extract.Extract(e.Path, e.Content, extract.Options{SkipRequires: r.opts.SkipRequires})
		if err != nil {
			return err
		}
		run.log.Debug("Extracted definition", "name", rec.Name, "file", e.Path, "origin", e.Origin)
		records = append(records, rec)
	}

	art, err := assemble.Assemble(records, assemble.Options{
		Target:        m.Target,
		MarkGenerated: r.opts.MarkGenerated,
		Encoder:       r.opts.Encoder,
	})
	if err != nil {
		return err
	}
	run.add(art.Diagnostics)
	if art.Path == "" {
		run.rep.Status = StatusSkipped
		return nil
	}
	run.rep.Status = StatusBuilt
	run.rep.Artifact = art.Path
	run.rep.Functions = art.Functions
	run.rep.Aliases = art.Aliases
	if run.rep.Fingerprint, err = Fingerprint(art.Path); err != nil {
		return err
	}
	run.flush()

	desc, err := manifest.Reconcile(ctx, manifest.Request{
		SourceDir:          absSource,
		Artifact:           art,
		Unresolved:         res.IsUnresolved,
		IncludeUncommitted: r.opts.IncludeUncommitted,
		Confirm:            r.opts.Confirm,
		Encoder:            r.opts.Encoder,
	})
	if err != nil {
		return err
	}
	run.add(desc.Diagnostics)
	run.rep.Descriptor = desc.Path

	if !r.opts.SkipSyntaxCheck {
		run.check(ctx, art)
	}
	return nil
}

// scan claims working-tree content for every selected file that version
// control did not already resolve.
func (run *moduleRun) scan(absSource string, res *vcs.Resolution) (*vcs.ResolvedContent, error) {
	files, err := Scan(run.m)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", absSource, err)
	}

	resolved := res.Historical
	var found diag.List
	for _, rel := range files {
		abs := filepath.Join(absSource, filepath.FromSlash(rel))
		if res.IsExcluded(abs) {
			continue
		}
		path := types.FilesystemPath(abs)
		name := types.DefinitionNameFromPath(path)
		if prev, taken := resolved.Get(name); taken {
			if prev.Origin == vcs.SourceHistory && path.HasSuffixPath(prev.Path) {
				continue
			}
			found.Warnf(diag.CodeNameClaimed, abs, nil,
				"skipping %s: name %s already taken by %s", abs, name, prev.Path)
			continue
		}
		content, err := textenc.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", abs, err)
		}
		resolved.Claim(vcs.Entry{Name: name, Path: path, Content: content, Origin: vcs.SourceWorktree})
	}
	run.add(found)
	return resolved, nil
}

// check runs the analyzer. Findings are reported and never undo the
// artifact.
func (run *moduleRun) check(ctx context.Context, art *assemble.Artifact) {
	findings, err := run.r.opts.Analyzer.Check(ctx, analyzer.Target{
		Dir:        filepath.Dir(art.Path),
		Path:       art.Path,
		ModuleName: art.ModuleName,
	})
	var list diag.List
	if err != nil {
		list.Warnf(diag.CodeAnalyzerFailed, art.Path, err, "syntax check did not run: %v", err)
		run.add(list)
		return
	}
	run.rep.Findings = findings
	for _, f := range findings {
		file := f.File
		if file == "" {
			file = art.Path
		}
		msg := f.Message
		if f.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", f.Line, msg)
		}
		list = append(list, diag.Diagnostic{
			Severity: f.Severity,
			Code:     diag.CodeAnalyzerFinding,
			Message:  msg,
			Path:     file,
		})
	}
	run.add(list)
}

func (run *moduleRun) add(list diag.List) {
	run.rep.Diagnostics = append(run.rep.Diagnostics, list...)
	run.flush()
}

// flush logs diagnostics added since the last call.
func (run *moduleRun) flush() {
	for _, d := range run.rep.Diagnostics[run.logged:] {
		kv := []any{"file", d.Path, "code", d.Code}
		if d.Cause != nil {
			kv = append(kv, "err", d.Cause)
		}
		switch d.Severity {
		case diag.SeverityError:
			run.log.Error(d.Message, kv...)
		case diag.SeverityWarning:
			run.log.Warn(d.Message, kv...)
		default:
			run.log.Info(d.Message, kv...)
		}
	}
	run.logged = len(run.rep.Diagnostics)
}

// fail abandons the directory with err.
func (run *moduleRun) fail(err error) {
	kind := Classify(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindEnvironment
	}
	run.rep.Status = StatusFailed
	run.rep.Kind = kind

	ectx := issue.NewErrorContext().
		WithOperation("build module " + run.rep.ModuleName).
		WithResource(run.m.Source).
		Wrap(err)
	if id, ok := issueFor(err); ok {
		ectx = ectx.WithIssue(id)
	}
	if se, ok := errors.AsType[*extract.StructuralError](err); ok {
		ectx = ectx.WithResource(se.Path.String()).
			WithSuggestion("keep exactly one function, filter or workflow per file")
	}
	run.rep.Err = ectx.BuildError()
	run.rep.Error = err.Error()

	kv := []any{"kind", kind, "err", err}
	if se, ok := errors.AsType[*extract.StructuralError](err); ok {
		kv = append(kv, "file", se.Path)
	}
	run.log.Error("Module abandoned", kv...)
}
