package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceWindow coalesces the burst of write events many editors and
// deployment tools produce for a single logical save (write, chmod, rename
// into place) into one reload.
const debounceWindow = 200 * time.Millisecond

// Watcher reloads a config file on write events and hands the parsed result
// to onChange. It is grounded on the reference application's config
// hot-reload path, which watches its YAML file the same way with
// fsnotify and a debounce timer around repeated write events.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *zap.Logger
	done    chan struct{}
}

// Watch starts watching path for changes, invoking onChange with the newly
// loaded Config each time the file settles after a write. onChange is
// called from the watcher's own goroutine; callers that need to hand the
// result elsewhere should do so without blocking. The returned Watcher must
// be closed by the caller to stop watching.
func Watch(path string, log *zap.Logger, onChange func(*Config, error)) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fsw, log: log, done: make(chan struct{})}
	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func(*Config, error)) {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				cfg, err := Load(w.path)
				if err != nil {
					w.log.Warn("config reload failed", zap.String("path", w.path), zap.Error(err))
				} else {
					w.log.Info("config reloaded", zap.String("path", w.path))
				}
				onChange(cfg, err)
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
