// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// startWatcher runs w until the test ends and returns Run's result channel.
func startWatcher(t *testing.T, w *Watcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	return cancel, errCh
}

func stop(t *testing.T, cancel context.CancelFunc, errCh <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{})

	w, err := New(Config{
		Roots:    []string{dir},
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	for _, name := range []string{"Get-A.ps1", "Get-B.ps1", "Get-C.ps1"} {
		write(t, filepath.Join(dir, name), "function x { }")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)
	stop(t, cancel, errCh)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 debounced callback, got %d", calls)
	}
	for _, name := range []string{"Get-A.ps1", "Get-B.ps1", "Get-C.ps1"} {
		if want := filepath.Join(dir, name); !slices.Contains(collected, want) {
			t.Errorf("expected %q in changed files, got %v", want, collected)
		}
	}
	if !slices.IsSorted(collected) {
		t.Errorf("changed paths should be sorted: %v", collected)
	}
}

func TestWatcherMultipleRoots(t *testing.T) {
	t.Parallel()

	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	public := filepath.Join(base, "Public")
	private := filepath.Join(base, "Private")
	for _, d := range []string{public, private} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	fired := make(chan []string, 10)
	w, err := New(Config{
		Roots:    []string{public, private, public},
		Patterns: []string{"**/*.ps1"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := w.Roots(); len(got) != 2 {
		t.Errorf("Roots() = %v, want duplicates removed", got)
	}
	cancel, errCh := startWatcher(t, w)

	write(t, filepath.Join(private, "Get-Secret.PS1"), "function Get-Secret { }")

	select {
	case changed := <-fired:
		if !slices.Contains(changed, filepath.Join(private, "Get-Secret.PS1")) {
			t.Errorf("changed = %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	stop(t, cancel, errCh)
}

func TestWatcherIgnorePatterns(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan []string, 10)
	w, err := New(Config{
		Roots:    []string{dir},
		Ignore:   []string{"out/**"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	write(t, filepath.Join(dir, "out", "M.psm1"), "generated")
	write(t, filepath.Join(dir, "Get-A.ps1.tmp"), "partial")
	time.Sleep(200 * time.Millisecond)
	write(t, filepath.Join(dir, "Get-A.ps1"), "function Get-A { }")

	select {
	case changed := <-fired:
		for _, p := range changed {
			if strings.Contains(p, "M.psm1") || strings.HasSuffix(p, ".tmp") {
				t.Errorf("ignored file %s appeared in changed set", p)
			}
		}
		if !slices.Contains(changed, filepath.Join(dir, "Get-A.ps1")) {
			t.Errorf("expected Get-A.ps1 in changed set, got %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback on non-ignored file")
	}
	stop(t, cancel, errCh)
}

func TestWatcherPatternFiltering(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fired := make(chan []string, 10)
	w, err := New(Config{
		Roots:    []string{dir},
		Patterns: []string{"**/*.ps1", "**/*.psd1"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	write(t, filepath.Join(dir, "notes.txt"), "text")
	time.Sleep(200 * time.Millisecond)
	write(t, filepath.Join(dir, "Tools.psd1"), "@{}")

	select {
	case changed := <-fired:
		if slices.Contains(changed, filepath.Join(dir, "notes.txt")) {
			t.Error("non-matching file notes.txt appeared in changed set")
		}
		if !slices.Contains(changed, filepath.Join(dir, "Tools.psd1")) {
			t.Errorf("expected Tools.psd1 in changed set, got %v", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	stop(t, cancel, errCh)
}

func TestWatcherNewSubdirectory(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fired := make(chan []string, 10)
	w, err := New(Config{
		Roots:    []string{dir},
		Patterns: []string{"**/*.ps1"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	sub := filepath.Join(dir, "Public")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	write(t, filepath.Join(sub, "Get-A.ps1"), "function Get-A { }")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case changed := <-fired:
			if slices.Contains(changed, filepath.Join(sub, "Get-A.ps1")) {
				stop(t, cancel, errCh)
				return
			}
		case <-deadline:
			t.Fatal("file in a directory created after startup was not reported")
		}
	}
}

func TestWatcherContextCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Roots: []string{t.TempDir()}, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)
	stop(t, cancel, errCh)
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: DefaultIgnores()}
	tests := []struct {
		path    string
		ignored bool
	}{
		{".git/config", true},
		{".git/objects/ab/cd1234", true},
		{"sub/.hg/store", true},
		{"Get-A.ps1.swp", true},
		{"Get-A.ps1.swo", true},
		{"Get-A.ps1~", true},
		{"out/M.psm1.tmp", true},
		{".DS_Store", true},
		{"Get-A.ps1", false},
		{"Tools.psd1", false},
		{".gitignore", false},
	}
	for _, tt := range tests {
		if got := w.isIgnored(tt.path); got != tt.ignored {
			t.Errorf("isIgnored(%q) = %v, want %v", tt.path, got, tt.ignored)
		}
	}
}

func TestWatcherSkipIfBusy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu      sync.Mutex
		calls   int
		busy    bool
		overlap bool
	)
	firstCallDone := make(chan struct{})
	var logBuf bytes.Buffer
	logger := log.New(&logBuf)
	logger.SetLevel(log.DebugLevel)

	w, err := New(Config{
		Roots:    []string{dir},
		Debounce: 50 * time.Millisecond,
		Logger:   logger,
		OnChange: func(_ context.Context, _ []string) error {
			mu.Lock()
			if busy {
				overlap = true
			}
			busy = true
			calls++
			callNum := calls
			mu.Unlock()

			if callNum == 1 {
				time.Sleep(300 * time.Millisecond)
				close(firstCallDone)
			}
			mu.Lock()
			busy = false
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)

	write(t, filepath.Join(dir, "first.ps1"), "1")
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(dir, "second.ps1"), "2")

	select {
	case <-firstCallDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first callback")
	}
	time.Sleep(200 * time.Millisecond)
	stop(t, cancel, errCh)

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Error("callbacks ran concurrently")
	}
	if calls > 2 {
		t.Errorf("expected at most 2 callback invocations, got %d", calls)
	}
}

func TestWatcherInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Roots: []string{t.TempDir()}, Patterns: []string{"[invalid"}})
	if err == nil {
		t.Fatal("New() should reject an invalid glob pattern")
	}
	if !strings.Contains(err.Error(), "invalid watch pattern") {
		t.Errorf("error should mention the invalid watch pattern, got: %v", err)
	}
}

func TestWatcherDoubleRunError(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Roots: []string{t.TempDir()}, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cancel, errCh := startWatcher(t, w)
	time.Sleep(50 * time.Millisecond)

	err = w.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Run called more than once") {
		t.Errorf("second Run() = %v, want double-run error", err)
	}
	stop(t, cancel, errCh)
}
