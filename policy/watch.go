package policy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces the burst of events an editor save
// produces into one reload.
const DefaultReloadDebounce = 200 * time.Millisecond

// Watcher reloads a policy file when it changes on disk. The parent
// directory is watched so atomic rename-over saves are seen too.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher starts watching path. Events are only delivered once Run is
// called, but changes made after NewWatcher returns are not lost.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating policy watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, fs: fw, debounce: DefaultReloadDebounce}, nil
}

// Run delivers each successfully reloaded document to onReload and each
// load failure to onError, until ctx is done. On failure the caller should
// keep serving the previous document. Run closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onReload func(*Document), onError func(error)) error {
	defer func() { _ = w.fs.Close() }()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return errors.New("policy watcher closed")
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			doc, err := LoadFile(w.path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onReload(doc)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("policy watcher closed")
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

// Close stops the watcher without Run.
func (w *Watcher) Close() error { return w.fs.Close() }
