package preset

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/taskstorm/internal/log"
)

// Watcher invalidates a Store's cached documents when a watched root's
// preset files change on disk.
type Watcher struct {
	mu      sync.Mutex
	store   *Store
	logger  *log.Logger
	watcher *fsnotify.Watcher
	roots   map[string]bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher bound to the given store.
func NewWatcher(store *Store, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Null
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:   store,
		logger:  logger,
		watcher: fsw,
		roots:   make(map[string]bool),
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Watch starts watching a project root's directory for preset file changes.
func (w *Watcher) Watch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.roots[root] {
		return nil
	}
	if err := w.watcher.Add(root); err != nil {
		return err
	}
	w.roots[root] = true
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.closeCh)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// loop processes fsnotify events until closed.
func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if name != BaseFileName && name != UserFileName {
				continue
			}
			root := filepath.Dir(event.Name)
			w.logger.Debug("preset file %s changed (%s), invalidating %s", name, event.Op, root)
			w.store.Invalidate(root)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("preset watcher: %v", err)
		}
	}
}
