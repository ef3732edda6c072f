// SPDX-License-Identifier: MPL-2.0

package build

import (
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/psmbuild/psmbuild/internal/project"
)

// skipDirs are never descended into while scanning a source directory.
var skipDirs = []string{".git", ".hg", ".svn", "node_modules"}

// Scan returns the slash-separated paths, relative to m.Source, of the files
// selected by the module's include and exclude patterns, sorted.
func Scan(m project.Module) ([]string, error) {
	recursive := false
	for _, p := range m.Include {
		if strings.Contains(p, "/") || strings.Contains(p, "**") {
			recursive = true
			break
		}
	}

	var out []string
	err := doublestar.GlobWalk(os.DirFS(m.Source), "**", func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			if p == "." {
				return nil
			}
			if !recursive || slices.Contains(skipDirs, path.Base(p)) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && m.Match(p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
