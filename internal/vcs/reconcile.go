// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/psmbuild/psmbuild/internal/diag"
	"github.com/psmbuild/psmbuild/pkg/types"
)

const (
	// SourceHistory marks content read from the last commit.
	SourceHistory Origin = "history"
	// SourceWorktree marks content read from the working tree.
	SourceWorktree Origin = "worktree"

	// DefaultExtension is the extension of definition source files.
	DefaultExtension = ".ps1"
)

type (
	// Origin tells where a resolved entry's content came from.
	Origin string

	// Entry is the content chosen for one definition name.
	Entry struct {
		Name    types.DefinitionName
		Path    types.FilesystemPath
		Content string
		Origin  Origin
	}

	// ResolvedContent maps definition names to their chosen content. It is
	// insertion-only: the first claim of a name wins and later claims are
	// refused. Names compare case-insensitively.
	ResolvedContent struct {
		order   []string
		entries map[string]Entry
	}

	// Options control how uncommitted work is treated.
	Options struct {
		// IncludeUncommitted scans modified and untracked files from the
		// working tree as-is instead of substituting committed content.
		IncludeUncommitted bool
		// Extension selects definition source files (DefaultExtension when
		// empty). Matching ignores case.
		Extension string
		// Match, when set, limits reconciliation to changes whose Rel it
		// accepts.
		Match func(rel string) bool
	}

	// Resolution is the outcome of reconciling one source directory.
	Resolution struct {
		// Historical holds committed content substituted for changed files.
		Historical *ResolvedContent
		// Changes lists every modified or untracked file under the directory,
		// whatever its extension.
		Changes []Change
		// Diagnostics announces every substitution and skip.
		Diagnostics diag.List

		excluded []types.FilesystemPath
	}
)

// NewResolvedContent returns an empty mapping.
func NewResolvedContent() *ResolvedContent {
	return &ResolvedContent{entries: make(map[string]Entry)}
}

// Claim records e unless its name is already present. It reports whether the
// entry was recorded.
func (rc *ResolvedContent) Claim(e Entry) bool {
	key := strings.ToLower(string(e.Name))
	if _, taken := rc.entries[key]; taken {
		return false
	}
	rc.order = append(rc.order, key)
	rc.entries[key] = e
	return true
}

// Get returns the entry claimed for name.
func (rc *ResolvedContent) Get(name types.DefinitionName) (Entry, bool) {
	e, ok := rc.entries[strings.ToLower(string(name))]
	return e, ok
}

// Entries returns the entries in claim order.
func (rc *ResolvedContent) Entries() []Entry {
	out := make([]Entry, 0, len(rc.order))
	for _, k := range rc.order {
		out = append(out, rc.entries[k])
	}
	return out
}

// Len returns the number of claimed names.
func (rc *ResolvedContent) Len() int { return len(rc.order) }

// Reconcile queries client for the changed files under dir and decides, for
// each changed definition source, whether its committed content replaces the
// working-tree content or the file is left out entirely.
//
// An error is returned only when version control cannot be queried at all;
// per-file lookup failures become warnings in Resolution.Diagnostics.
func Reconcile(ctx context.Context, client Client, dir string, opts Options) (*Resolution, error) {
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}

	changes, err := client.Changed(ctx, absDir)
	if err != nil {
		if _, ok := errors.AsType[*ClientError](err); ok {
			return nil, err
		}
		return nil, &ClientError{Dir: absDir, Err: err}
	}

	res := &Resolution{Historical: NewResolvedContent(), Changes: changes}
	for _, ch := range changes {
		if !strings.EqualFold(path.Ext(ch.Path.Slash()), ext) {
			continue
		}
		if opts.Match != nil && !opts.Match(ch.Rel) {
			continue
		}
		file := ch.Path.String()
		name := types.DefinitionNameFromPath(ch.Path)

		if opts.IncludeUncommitted {
			res.Diagnostics.Infof(diag.CodeUncommittedIncluded, file,
				"using %s working-tree content of %s", ch.Status, file)
			continue
		}

		content, showErr := client.Show(ctx, absDir, ch.Path)
		switch {
		case errors.Is(showErr, ErrNoHistory) || (showErr == nil && strings.TrimSpace(content) == ""):
			res.excluded = append(res.excluded, ch.Path)
			res.Diagnostics.Warnf(diag.CodeHistoryMissing, file, showErr,
				"skipping %s: %s file %s has no committed version", name, ch.Status, file)
		case showErr != nil:
			res.excluded = append(res.excluded, ch.Path)
			res.Diagnostics.Warnf(diag.CodeHistoryLookupFailed, file, showErr,
				"skipping %s: reading committed version of %s failed", name, file)
		default:
			entry := Entry{Name: name, Path: ch.Path, Content: content, Origin: SourceHistory}
			if !res.Historical.Claim(entry) {
				prev, _ := res.Historical.Get(name)
				res.excluded = append(res.excluded, ch.Path)
				res.Diagnostics.Warnf(diag.CodeNameClaimed, file, nil,
					"skipping %s: name %s already taken by %s", file, name, prev.Path)
				continue
			}
			res.Diagnostics.Infof(diag.CodeHistorySubstituted, file,
				"using committed content of %s instead of %s working-tree content", name, ch.Status)
		}
	}
	return res, nil
}

// Excluded returns the changed files that must not be scanned and have no
// committed fallback.
func (r *Resolution) Excluded() []types.FilesystemPath {
	return append([]types.FilesystemPath(nil), r.excluded...)
}

// IsExcluded reports whether the file at absPath must be left out of the
// working-tree scan.
func (r *Resolution) IsExcluded(absPath string) bool {
	for _, p := range r.excluded {
		if types.FilesystemPath(absPath).HasSuffixPath(p) {
			return true
		}
	}
	return false
}

// IsUnresolved reports whether the file at absPath is modified or untracked,
// whatever its extension.
func (r *Resolution) IsUnresolved(absPath string) bool {
	for _, ch := range r.Changes {
		if types.FilesystemPath(absPath).HasSuffixPath(ch.Path) {
			return true
		}
	}
	return false
}
