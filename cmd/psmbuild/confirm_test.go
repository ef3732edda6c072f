// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/psmbuild/psmbuild/internal/manifest"
)

func TestNewConfirmer(t *testing.T) {
	t.Parallel()

	ok, err := newConfirmer(true, nil, io.Discard).Confirm(t.Context(), "update?")
	if err != nil || !ok {
		t.Errorf("--yes confirmer = %v, %v; want true", ok, err)
	}

	if _, isAbort := newConfirmer(false, nil, io.Discard).(manifest.Abort); !isAbort {
		t.Error("no input should decline")
	}

	// A regular file is never a terminal.
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	c := newConfirmer(false, f, io.Discard)
	if _, isAbort := c.(manifest.Abort); !isAbort {
		t.Errorf("non-terminal input should decline, got %T", c)
	}
}
