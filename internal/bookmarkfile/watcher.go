package bookmarkfile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

const DefaultDebounce = 250 * time.Millisecond

var ErrAlreadyStarted = errors.New("watcher already started")

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits after the last filesystem
// event before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnEvent sets the callback receiving one bookmark event per external
// change detected in the reload diff.
func WithOnEvent(fn func(engine.BookmarkEvent)) WatcherOption {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// WithOnError sets the callback invoked on watch or reload errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watcher turns external edits of a Store's backing file into bookmark
// change events. It watches the file's directory rather than the file
// itself, so atomic rename-style rewrites are seen, and debounces bursts.
// Edits written by the store itself produce no events.
type Watcher struct {
	store    *Store
	debounce time.Duration
	onEvent  func(engine.BookmarkEvent)
	onError  func(error)

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	fsWatcher *fsnotify.Watcher
	timer     *time.Timer
	done      chan struct{}
}

func NewWatcher(store *Store, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		debounce: DefaultDebounce,
		onEvent:  func(engine.BookmarkEvent) {},
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.store.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.fsWatcher = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	_ = w.fsWatcher.Close()
	w.fsWatcher = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	targetFile := filepath.Base(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != targetFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}

	before := w.store.snapshot()
	changed, err := w.store.reloadIfChanged()
	if err != nil {
		w.onError(err)
		return
	}
	if !changed {
		return
	}
	for _, ev := range diffDocuments(before, w.store.snapshot()) {
		w.onEvent(ev)
	}
}

// diffDocuments derives one event per observable change between two
// generations of the document, attributed to the folder the entry lives in.
func diffDocuments(before, after document) []engine.BookmarkEvent {
	type located struct {
		folderID string
		index    int
		entry    entryNode
	}
	index := func(doc document) map[string]located {
		out := map[string]located{}
		for _, f := range doc.Folders {
			for i, e := range f.Entries {
				out[e.ID] = located{folderID: f.ID, index: i, entry: e}
			}
		}
		return out
	}
	old := index(before)
	cur := index(after)

	var events []engine.BookmarkEvent
	for _, f := range after.Folders {
		for i, e := range f.Entries {
			prev, existed := old[e.ID]
			switch {
			case !existed:
				events = append(events, engine.BookmarkEvent{
					Type: engine.BookmarkCreated, FolderID: f.ID, BookmarkID: e.ID, URL: e.URL,
				})
			case prev.entry.Title != e.Title || prev.entry.URL != e.URL:
				events = append(events, engine.BookmarkEvent{
					Type: engine.BookmarkChanged, FolderID: f.ID, BookmarkID: e.ID, URL: e.URL,
				})
			case prev.folderID != f.ID || prev.index != i:
				events = append(events, engine.BookmarkEvent{
					Type: engine.BookmarkMoved, FolderID: f.ID, BookmarkID: e.ID, URL: e.URL,
				})
			}
		}
	}
	for id, prev := range old {
		if _, still := cur[id]; !still {
			events = append(events, engine.BookmarkEvent{
				Type: engine.BookmarkRemoved, FolderID: prev.folderID, BookmarkID: id, URL: prev.entry.URL,
			})
		}
	}
	return events
}
