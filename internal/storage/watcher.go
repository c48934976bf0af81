package storage

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sys2dsl/engine/internal/logging"
)

// TheoryPackWatcher watches a directory of on-disk theory-pack files and
// invokes the caller's reload callback with the changed file's path on
// create/write events (Session passes one that decodes the file as a
// snapshot blob and applies it), debounced the way the teacher's MangleWatcher debounces rapid saves.
type TheoryPackWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	reload      func(path string) error
	debounce    time.Duration
	lastEvent   map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// WatchTheoryPack starts watching dir for file changes, calling reload(path)
// for each settled change. It returns immediately; call Stop to shut down.
func WatchTheoryPack(dir string, reload func(path string) error) (*TheoryPackWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	tw := &TheoryPackWatcher{
		watcher:   w,
		dir:       dir,
		reload:    reload,
		debounce:  500 * time.Millisecond,
		lastEvent: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go tw.run()
	return tw, nil
}

func (tw *TheoryPackWatcher) run() {
	defer close(tw.doneCh)
	log := logging.Named(logging.CategoryStorage)
	for {
		select {
		case <-tw.stopCh:
			return
		case ev, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if tw.debounced(ev.Name) {
				continue
			}
			if err := tw.reload(ev.Name); err != nil {
				log.Errorw("theory pack reload failed", "path", ev.Name, "error", err)
			}
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			log.Errorw("theory pack watch error", "error", err)
		}
	}
}

func (tw *TheoryPackWatcher) debounced(path string) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	now := time.Now()
	if last, ok := tw.lastEvent[path]; ok && now.Sub(last) < tw.debounce {
		tw.lastEvent[path] = now
		return true
	}
	tw.lastEvent[path] = now
	return false
}

// Stop shuts the watcher down and waits for its goroutine to exit.
func (tw *TheoryPackWatcher) Stop() error {
	close(tw.stopCh)
	err := tw.watcher.Close()
	<-tw.doneCh
	return err
}
