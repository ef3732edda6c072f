// SPDX-License-Identifier: MPL-2.0

// Package watch reruns builds when module sources change.
//
// A Watcher monitors one or more root directories (the module source
// directories) and invokes a callback once the filesystem has been quiet for
// a debounce period. Events within the window are coalesced, so the callback
// fires once with the absolute paths of every changed file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce lets an editor's write-then-rename settle into one rebuild.
const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are never reported, whatever the caller's patterns. They
// cover VCS metadata, editor swap files and the temporary files of atomic
// writes.
var defaultIgnores = []string{
	"**/.git/**",
	"**/.hg/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/*.tmp",
	"**/.DS_Store",
}

// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories to watch recursively. At least one is
		// required.
		Roots []string

		// Patterns select which files trigger callbacks, matched against the
		// slash-separated path relative to the root. Matching ignores case.
		// An empty slice reports every non-ignored file.
		Patterns []string

		// Ignore are extra patterns, relative to the root, that never trigger
		// callbacks. They are merged with the built-in ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Zero or negative values use defaultDebounce.
		Debounce time.Duration

		// OnChange receives the sorted absolute paths changed during the
		// window. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives watcher notices. Nil discards them.
		Logger *log.Logger
	}

	// InvalidWatchConfigError collects every problem found in a Config.
	InvalidWatchConfigError struct {
		FieldErrors []error
	}

	// Watcher monitors the roots and fires a debounced callback when
	// matching files change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		ignores  []string
		log      *log.Logger
		debounce time.Duration
		started  atomic.Bool
	}
)

// Error implements the error interface.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate reports every empty root and every empty or malformed pattern.
func (c Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("no roots to watch"))
	}
	for _, r := range c.Roots {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, errors.New("root must not be empty"))
		}
	}
	errs = append(errs, patternErrors(c.Patterns, "watch")...)
	errs = append(errs, patternErrors(c.Ignore, "ignore")...)
	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

func patternErrors(patterns []string, label string) []error {
	var errs []error
	for _, pat := range patterns {
		switch {
		case pat == "":
			errs = append(errs, fmt.Errorf("empty %s pattern", label))
		case !doublestar.ValidatePattern(pat):
			errs = append(errs, fmt.Errorf("invalid %s pattern %q", label, pat))
		}
	}
	return errs
}

// New creates a Watcher and registers every non-ignored directory under the
// roots.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve root %q: %w", r, err)
		}
		if !slices.Contains(roots, abs) {
			roots = append(roots, abs)
		}
	}
	// Longest first, so nested roots win in rootOf.
	slices.SortFunc(roots, func(a, b string) int { return len(b) - len(a) })

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    roots,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		log:      logger,
		debounce: debounce,
	}
	for _, root := range roots {
		if err := w.addDirectories(root, root); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("Closing watcher after init failure", "err", closeErr)
			}
			return nil, err
		}
	}
	return w, nil
}

// Roots returns the absolute watched roots.
func (w *Watcher) Roots() []string { return slices.Clone(w.roots) }

// Run blocks until ctx is done, dispatching debounced callbacks. It returns
// nil on cancellation and an error when the watcher breaks down.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire hands the pending set to OnChange. A callback that outlasts the
	// debounce window is never run concurrently; the fire is retried later
	// so pending events are not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.log.Debug("Rebuild still running; deferring changes")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.log.Error("Rebuild failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("Closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			root, rel, ok := w.rootOf(evt.Name)
			if !ok || w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(root, evt.Name)
			}
			if !w.matchesPatterns(rel) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.log.Warn("Watcher error", "err", err)
		}
	}
}

// rootOf returns the watched root containing path and the slash-separated
// path relative to it.
func (w *Watcher) rootOf(path string) (root, rel string, ok bool) {
	for _, r := range w.roots {
		rp, err := filepath.Rel(r, path)
		if err != nil || rp == ".." || strings.HasPrefix(rp, ".."+string(filepath.Separator)) {
			continue
		}
		return r, filepath.ToSlash(rp), true
	}
	return "", "", false
}

// addDirectories registers start and every non-ignored directory below it.
// Ignore patterns are matched relative to root; watch patterns are applied
// when events arrive.
func (w *Watcher) addDirectories(root, start string) error {
	walkErr := filepath.WalkDir(start, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			w.log.Warn("Skipping inaccessible path", "path", path, "err", walkDirErr)
			return nil //nolint:nilerr // unreadable directories are left unwatched
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil //nolint:nilerr // skip paths that cannot be made relative
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk %s: %w", start, walkErr)
	}
	return nil
}

// maybeAddDir starts watching a directory created after the initial walk.
func (w *Watcher) maybeAddDir(root, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addDirectories(root, path); err != nil {
		w.log.Warn("Watching new directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matchesPatterns(rel string) bool {
	return len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	rel = strings.ToLower(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(strings.ToLower(pat), rel); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
