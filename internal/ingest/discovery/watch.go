// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/stereoingest/internal/logging"
)

// Watcher layers an optional fsnotify-driven convenience on top of the
// poll-driven due queue: create/write/rename events call DiscoverFile
// immediately instead of waiting for the next scan. It is never a
// substitute for polling (Non-goals) -- if the watcher dies, discovery
// degrades silently back to whatever scan cadence the caller still runs.
type Watcher struct {
	walker         *Walker
	fsw            *fsnotify.Watcher
	deleteOriginal bool
}

// NewWatcher constructs a Watcher rooted at root, recursively adding every
// subdirectory present at construction time. Subdirectories created later
// are not watched.
func NewWatcher(walker *Walker, root string, deleteOriginal bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{walker: walker, fsw: fsw, deleteOriginal: deleteOriginal}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return walkDirs(root, func(dir string) error {
		return w.fsw.Add(dir)
	})
}

// Serve processes events until ctx is done or the watcher is closed. It
// implements suture.Service so it can be supervised alongside the planner.
func (w *Watcher) Serve(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	go func(path string) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		if err := w.walker.DiscoverFile(path, w.deleteOriginal); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("watcher-triggered discovery failed")
		}
	}(event.Name)
}
