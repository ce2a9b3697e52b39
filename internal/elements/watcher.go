package elements

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher reloads the local element tables when one of their files changes.
// The parent directories are watched rather than the files so that editors
// which save by rename are still seen.
type Watcher struct {
	opts     Options
	store    *Store
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	onReload func(*Dataset, error)
	logger   *slog.Logger
}

// NewWatcher watches the files named by opts. It fails when opts names no
// file, i.e. the built-in table is in use.
func NewWatcher(store *Store, opts Options, logger *slog.Logger) (*Watcher, error) {
	files := make(map[string]bool)
	for _, p := range []string{opts.Path, opts.VelocityPath, opts.ReferencePath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = true
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no local element files to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]bool)
	for f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	return &Watcher{
		opts:     opts,
		store:    store,
		watcher:  fw,
		files:    files,
		debounce: defaultWatchDebounce,
		logger:   logger,
	}, nil
}

// OnReload registers fn to be called after every reload attempt.
func (w *Watcher) OnReload(fn func(*Dataset, error)) {
	w.onReload = fn
}

// Run handles file events until ctx is cancelled. Bursts of events within
// the debounce window cause a single reload.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("element file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("element watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

// reload re-reads every local file. A file that fails to parse leaves the
// current snapshot in place.
func (w *Watcher) reload() {
	w.store.Lock()
	ds, err := Load(w.opts, w.logger)
	if err == nil {
		w.store.Set(ds)
	}
	w.store.Unlock()

	if err != nil {
		w.logger.Warn("element reload failed, keeping current table", "error", err)
	} else {
		w.logger.Info("element tables reloaded from disk", "source", ds.Source, "bodies", ds.BodyCount())
	}
	if w.onReload != nil {
		w.onReload(ds, err)
	}
}
