package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Options configures an Engine. Tabs and Bookmarks are required; a nil
// State falls back to an in-memory backend.
type Options struct {
	Tabs      TabProvider
	Bookmarks BookmarkStore
	State     StateBackend
	Logger    Logger
	OnEvent   func(Notification)
	Now       func() time.Time
}

// Engine owns the reconciliation state for every tracked window: the
// window<->folder mappings, per-folder pinned sets and last-used stamps,
// and the guard serializing passes. All mutation flows through it; there
// are no package-level singletons.
type Engine struct {
	tabs      TabProvider
	bookmarks BookmarkStore
	state     StateBackend
	logger    Logger
	onEvent   func(Notification)
	now       func() time.Time

	mu         sync.Mutex
	mappings   map[string]windowFolderMapping
	pinnedSets map[string][]string
	lastUsed   map[string]int64

	guard       *syncGuard
	wg          sync.WaitGroup
	lifecycleMu sync.Mutex
	closed      chan struct{}
	closeOnce   sync.Once
}

// New loads persisted bookkeeping, drops mappings whose window no longer
// exists (self-healing after an unclean shutdown), persists the pruned set,
// and returns a ready engine. A storage or provider failure here is fatal:
// the engine does not start on unreadable state.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Tabs == nil {
		return nil, fmt.Errorf("%w: tab provider is required", ErrInvalidInput)
	}
	if opts.Bookmarks == nil {
		return nil, fmt.Errorf("%w: bookmark store is required", ErrInvalidInput)
	}
	state := opts.State
	if state == nil {
		state = NewInMemoryStateBackend()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		tabs:       opts.Tabs,
		bookmarks:  opts.Bookmarks,
		state:      state,
		logger:     opts.Logger,
		onEvent:    opts.OnEvent,
		now:        now,
		mappings:   map[string]windowFolderMapping{},
		pinnedSets: map[string][]string{},
		lastUsed:   map[string]int64{},
		guard:      newSyncGuard(),
		closed:     make(chan struct{}),
	}

	snapshot, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	if snapshot != nil {
		snapshot.normalize()
		e.mappings = snapshot.Mappings
		e.pinnedSets = snapshot.PinnedSets
		e.lastUsed = snapshot.LastUsed
	}

	pruned, err := e.pruneDeadWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("prune stale mappings: %w", err)
	}
	if pruned {
		e.mu.Lock()
		snap := e.snapshotLocked()
		e.mu.Unlock()
		if err := state.Save(snap); err != nil {
			return nil, fmt.Errorf("persist pruned state: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) pruneDeadWindows(ctx context.Context) (bool, error) {
	windows, err := e.tabs.ListWindows(ctx)
	if err != nil {
		return false, err
	}
	live := make(map[string]struct{}, len(windows))
	for _, id := range windows {
		live[id] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pruned := false
	for windowID := range e.mappings {
		if _, ok := live[windowID]; !ok {
			delete(e.mappings, windowID)
			pruned = true
		}
	}
	return pruned, nil
}

// closedErr reports ErrEngineClosed once Close has begun; mutating entry
// points refuse new work after that point.
func (e *Engine) closedErr() error {
	select {
	case <-e.closed:
		return ErrEngineClosed
	default:
		return nil
	}
}

// Close stops the drain machinery and waits for any in-flight deferred pass.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.lifecycleMu.Lock()
		close(e.closed)
		e.lifecycleMu.Unlock()
		e.wg.Wait()
		if closer, ok := e.state.(stateBackendCloser); ok && closer != nil {
			_ = closer.Close()
		}
	})
}

// Associate records the window<->folder mapping, stamps the folder as used,
// persists, and triggers the initial tabs->bookmarks pass: the window's
// current tabs become the source of truth on first sync.
func (e *Engine) Associate(ctx context.Context, windowID, folderID, folderTitle string) error {
	if windowID == "" || folderID == "" {
		return ErrInvalidInput
	}
	if err := e.closedErr(); err != nil {
		return err
	}
	e.mu.Lock()
	for otherWindow, m := range e.mappings {
		if m.FolderID == folderID && otherWindow != windowID {
			e.mu.Unlock()
			return &FolderMappedError{FolderID: folderID, WindowID: otherWindow}
		}
	}
	e.mappings[windowID] = windowFolderMapping{FolderID: folderID, FolderTitle: folderTitle}
	e.lastUsed[folderID] = e.now().UnixMilli()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.state.Save(snap); err != nil {
		return fmt.Errorf("persist mapping: %w", err)
	}
	e.emit(Notification{Type: NoteMappingCreated, WindowID: windowID, FolderID: folderID, Detail: folderTitle})
	return e.runPass(ctx, passRequest{dir: tabsToBookmarks, id: windowID})
}

// CreateAndAssociate creates a fresh folder and delegates to Associate.
func (e *Engine) CreateAndAssociate(ctx context.Context, windowID, folderTitle string) (Folder, error) {
	if strings.TrimSpace(folderTitle) == "" {
		return Folder{}, ErrEmptyTitle
	}
	if err := e.closedErr(); err != nil {
		return Folder{}, err
	}
	folder, err := e.bookmarks.CreateFolder(ctx, folderTitle)
	if err != nil {
		return Folder{}, fmt.Errorf("create folder: %w", err)
	}
	e.emit(Notification{Type: NoteFolderCreated, FolderID: folder.ID, Detail: folder.Title})
	if err := e.Associate(ctx, windowID, folder.ID, folder.Title); err != nil {
		return Folder{}, err
	}
	return folder, nil
}

// Disassociate removes the mapping only. The durable view and its pinned
// set survive: unsyncing a window never deletes bookmarks.
func (e *Engine) Disassociate(windowID string) error {
	if err := e.closedErr(); err != nil {
		return err
	}
	e.mu.Lock()
	m, ok := e.mappings[windowID]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	delete(e.mappings, windowID)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.state.Save(snap); err != nil {
		return fmt.Errorf("persist unmapped state: %w", err)
	}
	e.emit(Notification{Type: NoteMappingRemoved, WindowID: windowID, FolderID: m.FolderID})
	return nil
}

// SyncTabsToBookmarks requests a tabs->bookmarks pass for the window. When a
// pass is already running the request is deferred and drained later.
func (e *Engine) SyncTabsToBookmarks(ctx context.Context, windowID string) error {
	if windowID == "" {
		return ErrInvalidInput
	}
	return e.runPass(ctx, passRequest{dir: tabsToBookmarks, id: windowID})
}

// SyncBookmarksToTabs requests a bookmarks->tabs pass for the folder.
func (e *Engine) SyncBookmarksToTabs(ctx context.Context, folderID string) error {
	if folderID == "" {
		return ErrInvalidInput
	}
	return e.runPass(ctx, passRequest{dir: bookmarksToTabs, id: folderID})
}

// HandleTabEvent is the entry point for tab provider notifications. Window
// removal unmaps without reconciling; per-tab removals during a window
// shutdown are ignored so teardown does not masquerade as user edits;
// excluded-scheme URLs never trigger a pass.
func (e *Engine) HandleTabEvent(ctx context.Context, ev TabEvent) error {
	if ev.Type == WindowRemoved {
		if err := e.Disassociate(ev.WindowID); err != nil && err != ErrNotFound {
			return err
		}
		return nil
	}
	if ev.Type == TabRemoved && ev.WindowClosing {
		return nil
	}
	if ev.URL != "" && excludedURL(ev.URL) {
		return nil
	}
	e.mu.Lock()
	_, tracked := e.mappings[ev.WindowID]
	e.mu.Unlock()
	if !tracked {
		return nil
	}
	return e.runPass(ctx, passRequest{dir: tabsToBookmarks, id: ev.WindowID})
}

// HandleBookmarkEvent is the entry point for bookmark store notifications.
func (e *Engine) HandleBookmarkEvent(ctx context.Context, ev BookmarkEvent) error {
	if ev.URL != "" && excludedURL(ev.URL) {
		return nil
	}
	if ev.FolderID == "" {
		return nil
	}
	if _, ok := e.windowForFolder(ev.FolderID); !ok {
		return nil
	}
	return e.runPass(ctx, passRequest{dir: bookmarksToTabs, id: ev.FolderID})
}

// windowForFolder resolves a folder to its mapped window by linear scan.
// Uniqueness is enforced at associate time, so the first match is the only
// one.
func (e *Engine) windowForFolder(folderID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for windowID, m := range e.mappings {
		if m.FolderID == folderID {
			return windowID, true
		}
	}
	return "", false
}

// Mappings returns the current associations, sorted by window identifier.
func (e *Engine) Mappings() []Mapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Mapping, 0, len(e.mappings))
	for windowID, m := range e.mappings {
		out = append(out, Mapping{WindowID: windowID, FolderID: m.FolderID, FolderTitle: m.FolderTitle})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowID < out[j].WindowID })
	return out
}

// FolderRanking lists the store's folders, most recently used first, each
// annotated with the window currently attached to it, if any.
func (e *Engine) FolderRanking(ctx context.Context) ([]RankedFolder, error) {
	folders, err := e.bookmarks.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	e.mu.Lock()
	windowByFolder := map[string]string{}
	for windowID, m := range e.mappings {
		windowByFolder[m.FolderID] = windowID
	}
	ranked := make([]RankedFolder, 0, len(folders))
	for _, folder := range folders {
		ranked = append(ranked, RankedFolder{
			Folder:     folder,
			LastUsedAt: e.lastUsed[folder.ID],
			WindowID:   windowByFolder[folder.ID],
		})
	}
	e.mu.Unlock()
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].LastUsedAt != ranked[j].LastUsedAt {
			return ranked[i].LastUsedAt > ranked[j].LastUsedAt
		}
		return ranked[i].Title < ranked[j].Title
	})
	return ranked, nil
}

func (e *Engine) Status() EngineStatus {
	running, pending := e.guard.status()
	e.mu.Lock()
	mappings := len(e.mappings)
	folders := len(e.pinnedSets)
	e.mu.Unlock()
	return EngineStatus{
		Mappings:       mappings,
		TrackedFolders: folders,
		PassRunning:    running,
		PendingPasses:  pending,
	}
}

// PinnedURLs returns the folder's stored pinned set. Read-only view for the
// presentation layer; reconciliation rewrites it wholesale.
func (e *Engine) PinnedURLs(folderID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.pinnedSets[folderID]...)
}

// snapshotLocked builds a persistable copy of the bookkeeping. Caller holds
// e.mu.
func (e *Engine) snapshotLocked() *persistedState {
	snap := &persistedState{
		Mappings:   make(map[string]windowFolderMapping, len(e.mappings)),
		PinnedSets: make(map[string][]string, len(e.pinnedSets)),
		LastUsed:   make(map[string]int64, len(e.lastUsed)),
	}
	for windowID, m := range e.mappings {
		snap.Mappings[windowID] = m
	}
	for folderID, urls := range e.pinnedSets {
		snap.PinnedSets[folderID] = append([]string(nil), urls...)
	}
	for folderID, ts := range e.lastUsed {
		snap.LastUsed[folderID] = ts
	}
	return snap
}

func (e *Engine) emit(n Notification) {
	if e.onEvent == nil {
		return
	}
	n.Timestamp = e.now().UTC()
	e.onEvent(n)
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
