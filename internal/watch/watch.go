// Package watch monitors pipeline input files and signals when any of them
// changes, enabling re-runs during iterative differential expression
// analysis.
package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change reports a modified input file.
type Change struct {
	Path string
}

// Watcher monitors a fixed set of input files using fsnotify. Events are
// debounced so editors that write in bursts trigger a single change.
type Watcher struct {
	Changes <-chan Change // read-only external channel

	files   map[string]struct{} // absolute paths being watched
	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given files. Directories containing
// the files are watched rather than the files themselves, so replace-by-
// rename writes are still observed.
func NewWatcher(paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		files[abs] = struct{}{}
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Changes: ch,
		files:   files,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start begins watching the parent directories of the input files.
func (w *Watcher) Start() error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			return err
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.emit(file)
				}
				return
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; !watched {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending[abs] = time.Now()
			}

		case now, ok := <-ticker.C:
			if !ok {
				return
			}
			for file, at := range pending {
				if now.Sub(at) >= debounce {
					delete(pending, file)
					w.emit(file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) emit(file string) {
	select {
	case w.changes <- Change{Path: file}:
	default: // drop when the consumer is mid-run and the buffer is full
	}
}
