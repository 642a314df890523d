package livestream

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// SegmentWatcher observes a session's output directory and emits the base
// filename of every playlist or segment that is created or modified. A burst
// of writes may collapse into fewer events; each filename that stabilizes is
// still reported at least once because ffmpeg rewrites the playlist after
// every segment.
type SegmentWatcher struct {
	fsw    *fsnotify.Watcher
	events chan string

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSegmentWatcher starts watching dir. The directory must already exist.
func NewSegmentWatcher(dir string) (*SegmentWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch directory %s", dir)
	}

	w := &SegmentWatcher{
		fsw:     fsw,
		events:  make(chan string, 256),
		stopped: make(chan struct{}),
	}
	go w.loop()

	return w, nil
}

// Events delivers artifact filenames. The channel is closed after Stop once
// all pending events have been delivered.
func (w *SegmentWatcher) Events() <-chan string {
	return w.events
}

// Stop ends the watch and releases the underlying watcher. Idempotent and
// safe to call even if no event ever fired.
func (w *SegmentWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		if err := w.fsw.Close(); err != nil {
			log.Printf("Watcher: close: %v", err)
		}
	})
}

func (w *SegmentWatcher) loop() {
	defer close(w.events)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !isArtifact(name) {
				continue
			}
			select {
			case w.events <- name:
			case <-w.stopped:
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher: %v", err)
		}
	}
}

func isArtifact(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".m3u8" || ext == ".ts"
}
