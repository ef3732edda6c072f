// SPDX-License-Identifier: MPL-2.0

// Package vcs decides, per definition source file, whether the working-tree
// content or the last committed content is authoritative.
//
// A [Client] answers two questions about a directory: which files are
// modified or untracked, and what a file looked like at HEAD. [Reconcile]
// combines the answers into a [Resolution] according to the
// include-uncommitted policy. Clients exist for the git CLI ([ExecClient]),
// for an in-process go-git repository ([GoGitClient]) and for directories
// outside version control ([NoneClient]).
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/psmbuild/psmbuild/pkg/types"
)

const (
	// StatusModified is a tracked file with uncommitted changes (including
	// staged changes and deletions).
	StatusModified Status = "modified"
	// StatusUntracked is a file git does not track and does not ignore.
	StatusUntracked Status = "untracked"

	// BackendGit shells out to the git CLI.
	BackendGit Backend = "git"
	// BackendGoGit reads the repository in-process with go-git.
	BackendGoGit Backend = "go-git"
	// BackendNone treats every file as clean.
	BackendNone Backend = "none"
)

var (
	// ErrClientUnavailable is returned when version control cannot be queried
	// for a directory at all.
	ErrClientUnavailable = errors.New("version control client unavailable")
	// ErrNoHistory is returned by Client.Show when the file has no committed
	// version.
	ErrNoHistory = errors.New("no committed history")
	// ErrInvalidBackend is the sentinel error wrapped by InvalidBackendError.
	ErrInvalidBackend = errors.New("invalid vcs backend")
)

type (
	// Status is the working-tree state of a changed file.
	Status string

	// Change is one modified or untracked file.
	Change struct {
		// Path is relative to the repository root and slash-separated, so it is
		// a suffix of the file's absolute path.
		Path types.FilesystemPath
		// Rel is the slash-separated path relative to the queried directory.
		Rel    string
		Status Status
	}

	// Client queries a version control system.
	Client interface {
		// Changed lists modified and untracked files under dir.
		Changed(ctx context.Context, dir string) ([]Change, error)
		// Show returns the content of the repository-relative path at HEAD.
		// It returns an error wrapping ErrNoHistory when the file was never
		// committed.
		Show(ctx context.Context, dir string, path types.FilesystemPath) (string, error)
	}

	// Backend selects a Client implementation.
	Backend string

	// InvalidBackendError is returned when a Backend value is not recognized.
	InvalidBackendError struct {
		Value Backend
	}

	// ClientError reports that version control could not be queried for a
	// directory. It wraps ErrClientUnavailable and the underlying cause.
	ClientError struct {
		Dir string
		Err error
	}

	// NoneClient reports no changes and no history. It is used for source
	// trees that are not under version control.
	NoneClient struct{}
)

// String returns the string representation of the Backend.
func (b Backend) String() string { return string(b) }

// IsValid returns whether the Backend is one of the defined backends.
func (b Backend) IsValid() (bool, []error) {
	switch b {
	case BackendGit, BackendGoGit, BackendNone:
		return true, nil
	default:
		return false, []error{&InvalidBackendError{Value: b}}
	}
}

// Error implements the error interface for InvalidBackendError.
func (e *InvalidBackendError) Error() string {
	return fmt.Sprintf("invalid vcs backend %q (valid: git, go-git, none)", e.Value)
}

// Unwrap returns ErrInvalidBackend for errors.Is() compatibility.
func (e *InvalidBackendError) Unwrap() error { return ErrInvalidBackend }

// Error implements the error interface for ClientError.
func (e *ClientError) Error() string {
	return fmt.Sprintf("querying version control in %s: %v", e.Dir, e.Err)
}

// Unwrap returns ErrClientUnavailable and the cause.
func (e *ClientError) Unwrap() []error { return []error{ErrClientUnavailable, e.Err} }

// NewClient returns the Client for a backend. gitBinary overrides the git
// executable for BackendGit.
func NewClient(backend Backend, gitBinary string) (Client, error) {
	if ok, errs := backend.IsValid(); !ok {
		return nil, errs[0]
	}
	switch backend {
	case BackendGoGit:
		return NewGoGitClient(), nil
	case BackendNone:
		return NoneClient{}, nil
	default:
		return NewExecClient(gitBinary), nil
	}
}

// Changed implements Client.
func (NoneClient) Changed(context.Context, string) ([]Change, error) { return nil, nil }

// Show implements Client.
func (NoneClient) Show(_ context.Context, _ string, path types.FilesystemPath) (string, error) {
	return "", fmt.Errorf("%s: %w", path, ErrNoHistory)
}

func isUnder(repoRel, dirRel string) bool {
	if dirRel == "" || dirRel == "." {
		return true
	}
	return strings.HasPrefix(repoRel, dirRel+"/")
}

// relativeTo strips the queried directory's repository-relative prefix.
func relativeTo(repoRel, dirRel string) string {
	if dirRel == "" || dirRel == "." {
		return repoRel
	}
	return strings.TrimPrefix(repoRel, dirRel+"/")
}
