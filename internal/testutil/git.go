// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// GitRepo is a throwaway git working tree rooted in a test temp directory.
type GitRepo struct {
	t   testing.TB
	Dir string
}

// NewGitRepo initializes an empty repository in a fresh temp directory.
// The test is skipped when no git binary is on PATH.
func NewGitRepo(t testing.TB) *GitRepo {
	t.Helper()
	return NewGitRepoIn(t, "")
}

// NewGitRepoIn is NewGitRepo with the repository root at name inside the
// temp directory, so tests can choose the root's base name.
func NewGitRepoIn(t testing.TB, name string) *GitRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	if name != "" {
		dir = filepath.Join(dir, name)
		MustMkdirAll(t, dir, 0o755)
	}
	r := &GitRepo{t: t, Dir: dir}
	r.Git("init", "-q")
	return r
}

// Git runs a git command in the repository and returns its trimmed stdout.
// Author and committer identity are fixed and signing is disabled so commits
// work on any machine.
func (r *GitRepo) Git(args ...string) string {
	r.t.Helper()
	full := append([]string{
		"-C", r.Dir,
		"-c", "user.name=Test",
		"-c", "user.email=test@test.local",
		"-c", "commit.gpgsign=false",
		"-c", "core.autocrlf=false",
	}, args...)
	command := exec.Command("git", full...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	output, err := command.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		r.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(output))
}

// WriteFile writes content to a slash-separated path relative to the
// repository root, creating parent directories, and returns the absolute path.
func (r *GitRepo) WriteFile(rel, content string) string {
	r.t.Helper()
	path := r.Path(rel)
	MustWriteFile(r.t, path, content)
	return path
}

// Commit stages everything in the working tree and commits it.
func (r *GitRepo) Commit(msg string) {
	r.t.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-q", "-m", msg)
}

// Path joins slash-separated elements onto the repository root.
func (r *GitRepo) Path(rel string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(rel))
}
