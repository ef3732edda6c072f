// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/psmbuild/psmbuild/pkg/types"
)

// GoGitClient reads the repository in-process with go-git, so no git binary
// is needed. Opened repositories are cached per directory.
type GoGitClient struct {
	repos map[string]*openRepo
}

type openRepo struct {
	repo *git.Repository
	// dirRel is the queried directory relative to the worktree root.
	dirRel string
}

// NewGoGitClient returns a go-git backed client.
func NewGoGitClient() *GoGitClient {
	return &GoGitClient{repos: make(map[string]*openRepo)}
}

func (c *GoGitClient) open(dir string) (*openRepo, error) {
	if r, ok := c.repos[dir]; ok {
		return r, nil
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return nil, err
	}
	r := &openRepo{repo: repo, dirRel: filepath.ToSlash(rel)}
	c.repos[dir] = r
	return r, nil
}

// Changed implements Client using the worktree status.
func (c *GoGitClient) Changed(ctx context.Context, dir string) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := c.open(dir)
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}
	status, err := wt.Status()
	if err != nil {
		return nil, &ClientError{Dir: dir, Err: err}
	}

	var changes []Change
	for path, st := range status {
		if !isUnder(path, r.dirRel) {
			continue
		}
		ch := Change{Path: types.FilesystemPath(path), Rel: relativeTo(path, r.dirRel)}
		switch {
		case st.Worktree == git.Untracked:
			ch.Status = StatusUntracked
		case st.Staging == git.Unmodified && st.Worktree == git.Unmodified:
			continue
		default:
			ch.Status = StatusModified
		}
		changes = append(changes, ch)
	}
	sortChanges(changes)
	return changes, nil
}

// Show implements Client by reading the file from the HEAD commit tree.
func (c *GoGitClient) Show(ctx context.Context, dir string, path types.FilesystemPath) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, err := c.open(dir)
	if err != nil {
		return "", err
	}
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("%s: %w", path, ErrNoHistory)
		}
		return "", err
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	file, err := commit.File(path.Slash())
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", fmt.Errorf("%s: %w", path, ErrNoHistory)
		}
		return "", err
	}
	return file.Contents()
}
