package engine

import (
	"context"
	"fmt"
)

// OpenFolderWindow materializes a new window from a folder's entries,
// replaying the stored pinned set. The mapping is recorded before population
// so notifications fired mid-population already see a tracked window; the
// guard is held across population so they defer instead of interleaving.
// The window's default blank page is closed last. An empty folder still
// opens a window: just the blank page, mapped and stamped.
func (e *Engine) OpenFolderWindow(ctx context.Context, folderID, folderTitle string) (string, error) {
	if folderID == "" {
		return "", ErrInvalidInput
	}
	if err := e.closedErr(); err != nil {
		return "", err
	}
	if windowID, mapped := e.windowForFolder(folderID); mapped {
		return "", &FolderMappedError{FolderID: folderID, WindowID: windowID}
	}

	children, err := e.bookmarks.FolderChildren(ctx, folderID)
	if err != nil {
		return "", fmt.Errorf("list folder %s: %w", folderID, err)
	}
	entries := make([]Bookmark, 0, len(children))
	for _, entry := range children {
		if excludedURL(entry.URL) {
			continue
		}
		entries = append(entries, entry)
	}

	if err := e.guard.acquire(ctx); err != nil {
		return "", err
	}
	defer func() {
		next, ok := e.guard.exit()
		if ok {
			e.drain(next)
		}
	}()

	windowID, blankTabID, err := e.tabs.CreateWindow(ctx)
	if err != nil {
		return "", fmt.Errorf("create window: %w", err)
	}

	e.mu.Lock()
	e.mappings[windowID] = windowFolderMapping{FolderID: folderID, FolderTitle: folderTitle}
	e.lastUsed[folderID] = e.now().UnixMilli()
	pinnedSet := make(map[string]struct{}, len(e.pinnedSets[folderID]))
	for _, url := range e.pinnedSets[folderID] {
		pinnedSet[url] = struct{}{}
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()
	if err := e.state.Save(snap); err != nil {
		return "", fmt.Errorf("persist mapping: %w", err)
	}
	e.emit(Notification{Type: NoteMappingCreated, WindowID: windowID, FolderID: folderID, Detail: folderTitle})

	if len(entries) == 0 {
		e.emit(Notification{Type: NoteWindowOpened, WindowID: windowID, FolderID: folderID})
		return windowID, nil
	}

	for i, entry := range entries {
		_, pinned := pinnedSet[entry.URL]
		if _, err := e.tabs.CreateTab(ctx, windowID, entry.URL, i, pinned); err != nil {
			return "", fmt.Errorf("populate tab for %s: %w", entry.URL, err)
		}
	}
	if err := e.tabs.RemoveTab(ctx, blankTabID); err != nil {
		return "", fmt.Errorf("close blank page: %w", err)
	}
	e.emit(Notification{Type: NoteWindowOpened, WindowID: windowID, FolderID: folderID})
	return windowID, nil
}
