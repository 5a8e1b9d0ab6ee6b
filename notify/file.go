package notify

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"deckfm/logger"
)

const fileDebounce = 200 * time.Millisecond

// FileWatcher signals when the local queue log file changes. Used with the
// file store backend; it watches the directory so create-then-rename writes
// are seen too.
type FileWatcher struct {
	path    string
	updates chan struct{}
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewFileWatcher watches the log file at path.
func NewFileWatcher(path string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	fw := &FileWatcher{
		path:    path,
		updates: make(chan struct{}, 1),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go fw.run()
	return fw, nil
}

func (fw *FileWatcher) run() {
	var timer *time.Timer
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(fw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts from temp-file + rename writes.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fileDebounce, func() {
				logger.Debug("queue log changed (file)")
				signal(fw.updates)
			})
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("log watcher error", logger.ErrorField(err))
		}
	}
}

// Updates implements Notifier.
func (fw *FileWatcher) Updates() <-chan struct{} {
	return fw.updates
}

// Close implements Notifier.
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}
