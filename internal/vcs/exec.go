// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/psmbuild/psmbuild/pkg/types"
)

// ExecClient runs the git CLI. Every command targets the queried directory
// with "git -C <dir>", and stdout and stderr are captured separately so
// neither pipe can fill up while the other is read.
type ExecClient struct {
	binary string
}

// NewExecClient returns a client that runs binary ("git" when empty).
func NewExecClient(binary string) *ExecClient {
	if binary == "" {
		binary = "git"
	}
	return &ExecClient{binary: binary}
}

// run executes git in dir and returns stdout. Stderr is included in the
// error on failure.
func (c *ExecClient) run(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.binary, fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w (stderr: %s)",
			c.binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Changed implements Client. Paths come from "git diff --name-only HEAD"
// and "git ls-files --others", both NUL-separated and relative to the
// repository root; "git rev-parse --show-prefix" gives the directory's own
// place in the repository.
func (c *ExecClient) Changed(ctx context.Context, dir string) ([]Change, error) {
	prefix, err := c.run(ctx, dir, "rev-parse", "--show-prefix")
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}
	dirRel := strings.TrimSuffix(strings.TrimSpace(prefix), "/")

	var modified string
	if _, headErr := c.run(ctx, dir, "rev-parse", "--verify", "--quiet", "HEAD"); headErr == nil {
		modified, err = c.run(ctx, dir, "diff", "--name-only", "--no-renames", "-z", "HEAD", "--", ".")
	} else {
		// No commit yet: everything in the index is uncommitted.
		modified, err = c.run(ctx, dir, "ls-files", "--cached", "--full-name", "-z", "--", ".")
	}
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}
	untracked, err := c.run(ctx, dir, "ls-files", "--others", "--exclude-standard", "--full-name", "-z", "--", ".")
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}

	var changes []Change
	for _, p := range splitNUL(modified) {
		changes = append(changes, Change{Path: types.FilesystemPath(p), Rel: relativeTo(p, dirRel), Status: StatusModified})
	}
	for _, p := range splitNUL(untracked) {
		changes = append(changes, Change{Path: types.FilesystemPath(p), Rel: relativeTo(p, dirRel), Status: StatusUntracked})
	}
	sortChanges(changes)
	return changes, nil
}

// Show implements Client.
func (c *ExecClient) Show(ctx context.Context, dir string, path types.FilesystemPath) (string, error) {
	spec := "HEAD:" + path.Slash()
	if _, err := c.run(ctx, dir, "cat-file", "-e", spec); err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrNoHistory)
	}
	return c.run(ctx, dir, "show", spec)
}

func splitNUL(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\x00") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortChanges(changes []Change) {
	slices.SortFunc(changes, func(a, b Change) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})
}
