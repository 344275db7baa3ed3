package toolengine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 150 * time.Millisecond

// Watcher reloads a manifest directory when its files change.
// Callbacks run on the watcher goroutine, one at a time and in event order.
// Close waits for a reload in progress.
type Watcher struct {
	dir      string
	debounce time.Duration
	fsw      *fsnotify.Watcher

	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once

	onChange func([]PluginManifest)
	onError  func(error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// OnChange registers the callback receiving each reloaded manifest set.
func OnChange(fn func([]PluginManifest)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// OnError registers the callback receiving watch and reload errors.
func OnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	if dir == "" {
		return nil, errors.New("manifest dir is empty")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		dir:      dir,
		debounce: defaultDebounce,
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	return w, nil
}

// Start loads the directory once, reports it through OnChange and begins
// watching.
func (w *Watcher) Start() ([]PluginManifest, error) {
	manifests, err := LoadManifests(w.dir)
	if err != nil {
		return nil, err
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if w.onChange != nil {
		w.onChange(manifests)
	}
	w.started = true
	go w.loop()
	return manifests, nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.started {
			<-w.done
		}
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(err)
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	manifests, err := LoadManifests(w.dir)
	if err != nil {
		w.fail(err)
		return
	}
	log.Info().Str("dir", w.dir).Int("manifests", len(manifests)).Msg("toolengine: manifests reloaded")
	if w.onChange != nil {
		w.onChange(manifests)
	}
}

func (w *Watcher) fail(err error) {
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("dir", w.dir).Msg("toolengine: manifest reload failed")
	if w.onError != nil {
		w.onError(err)
	}
}
