package engine

import (
	"context"
	"fmt"
)

// runPass is the single way a reconciliation executes. The guard admits or
// defers the request; guard release is unconditional so a failed pass can
// never deadlock future ones. On release, at most one deferred request is
// drained asynchronously, through its own direction.
func (e *Engine) runPass(ctx context.Context, req passRequest) error {
	if err := e.closedErr(); err != nil {
		return err
	}
	if !e.guard.enter(req) {
		return nil
	}
	var err error
	defer func() {
		next, ok := e.guard.exit()
		if ok {
			e.drain(next)
		}
	}()
	switch req.dir {
	case tabsToBookmarks:
		err = e.reconcileTabsToBookmarks(ctx, req.id)
	case bookmarksToTabs:
		err = e.reconcileBookmarksToTabs(ctx, req.id)
	}
	if err != nil {
		e.logf("reconciliation %s for %s failed: %v", req.dir, req.id, err)
		e.emit(Notification{Type: NotePassFailed, Detail: err.Error()})
		return err
	}
	e.emit(passCompletedNote(req))
	return nil
}

func passCompletedNote(req passRequest) Notification {
	n := Notification{Type: NotePassCompleted, Detail: req.dir.String()}
	if req.dir == tabsToBookmarks {
		n.WindowID = req.id
	} else {
		n.FolderID = req.id
	}
	return n
}

func (e *Engine) drain(req passRequest) {
	// The closed check and the Add must be one step relative to Close,
	// otherwise a drain racing shutdown can Add after Wait started and the
	// drained pass outlives the engine.
	e.lifecycleMu.Lock()
	select {
	case <-e.closed:
		e.lifecycleMu.Unlock()
		return
	default:
	}
	e.wg.Add(1)
	e.lifecycleMu.Unlock()
	go func() {
		defer e.wg.Done()
		// Errors are already logged inside runPass; a drained pass has
		// no caller to report to.
		_ = e.runPass(context.Background(), req)
	}()
}

// reconcileTabsToBookmarks projects the window's tabs onto its folder.
// Matched entries (by URL) are retained, retitled, and moved to a dense
// target index; missing ones are created; unmatched ones are removed; the
// folder's pinned set is replaced wholesale with what is pinned right now.
// A second tab sharing a URL collapses onto the first one's entry.
func (e *Engine) reconcileTabsToBookmarks(ctx context.Context, windowID string) error {
	e.mu.Lock()
	m, ok := e.mappings[windowID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	tabs, err := e.tabs.ListTabs(ctx, windowID)
	if err != nil {
		return fmt.Errorf("list tabs for %s: %w", windowID, err)
	}
	entries, err := e.bookmarks.FolderChildren(ctx, m.FolderID)
	if err != nil {
		return fmt.Errorf("list folder %s: %w", m.FolderID, err)
	}

	entryByURL := make(map[string]Bookmark, len(entries))
	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}
		if _, seen := entryByURL[entry.URL]; !seen {
			entryByURL[entry.URL] = entry
		}
	}

	// Creates and moves shift everything behind them, so snapshot indices
	// go stale mid-walk. order tracks the folder's effective item order and
	// is updated alongside every mutation.
	order := make([]string, len(entries))
	for i, entry := range entries {
		order[i] = entry.ID
	}

	retained := make(map[string]bool, len(entries))
	pinned := make([]string, 0, 4)
	pinnedSeen := map[string]struct{}{}
	target := 0
	for _, tab := range tabs {
		if excludedURL(tab.URL) {
			continue
		}
		if tab.Pinned {
			if _, dup := pinnedSeen[tab.URL]; !dup {
				pinnedSeen[tab.URL] = struct{}{}
				pinned = append(pinned, tab.URL)
			}
		}
		entry, exists := entryByURL[tab.URL]
		if exists && retained[entry.ID] {
			// Duplicate URL in the window: collapses onto the entry the
			// first tab already claimed.
			continue
		}
		if exists {
			retained[entry.ID] = true
			if entry.Title != tab.Title {
				if err := e.bookmarks.UpdateEntry(ctx, entry.ID, tab.Title); err != nil {
					return fmt.Errorf("retitle entry %s: %w", entry.ID, err)
				}
			}
			if idIndex(order, entry.ID) != target {
				if err := e.bookmarks.MoveEntry(ctx, entry.ID, target); err != nil {
					return fmt.Errorf("move entry %s: %w", entry.ID, err)
				}
				order = idMove(order, entry.ID, target)
			}
		} else {
			created, err := e.bookmarks.CreateEntry(ctx, m.FolderID, tab.Title, tab.URL, target)
			if err != nil {
				return fmt.Errorf("create entry for %s: %w", tab.URL, err)
			}
			retained[created.ID] = true
			entryByURL[tab.URL] = created
			order = idInsert(order, created.ID, target)
		}
		target++
	}

	for _, entry := range entries {
		if retained[entry.ID] {
			continue
		}
		if err := e.bookmarks.RemoveEntry(ctx, entry.ID); err != nil {
			return fmt.Errorf("remove entry %s: %w", entry.ID, err)
		}
	}

	e.mu.Lock()
	e.pinnedSets[m.FolderID] = pinned
	snap := e.snapshotLocked()
	e.mu.Unlock()
	if err := e.state.Save(snap); err != nil {
		return fmt.Errorf("persist pinned set: %w", err)
	}
	return nil
}

// reconcileBookmarksToTabs is the inverse projection. It resolves the folder
// to its mapped window (no-op when untracked), walks entries in folder
// order, and makes the window's tabs mirror them; the stored pinned set is
// consumed read-only to decide each tab's pinned flag. Excluded-scheme tabs
// are invisible to the diff and never closed.
func (e *Engine) reconcileBookmarksToTabs(ctx context.Context, folderID string) error {
	windowID, ok := e.windowForFolder(folderID)
	if !ok {
		return nil
	}

	entries, err := e.bookmarks.FolderChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("list folder %s: %w", folderID, err)
	}
	tabs, err := e.tabs.ListTabs(ctx, windowID)
	if err != nil {
		return fmt.Errorf("list tabs for %s: %w", windowID, err)
	}

	e.mu.Lock()
	pinnedSet := make(map[string]struct{}, len(e.pinnedSets[folderID]))
	for _, url := range e.pinnedSets[folderID] {
		pinnedSet[url] = struct{}{}
	}
	e.mu.Unlock()

	tabByURL := make(map[string]Tab, len(tabs))
	for _, tab := range tabs {
		if excludedURL(tab.URL) {
			continue
		}
		if _, seen := tabByURL[tab.URL]; !seen {
			tabByURL[tab.URL] = tab
		}
	}

	// Same effective-order tracking as the tab->bookmark direction; the
	// snapshot's tab indices are stale as soon as the first create lands.
	order := make([]string, len(tabs))
	for i, tab := range tabs {
		order[i] = tab.ID
	}

	retained := make(map[string]bool, len(tabs))
	target := 0
	for _, entry := range entries {
		if excludedURL(entry.URL) {
			continue
		}
		_, wantPinned := pinnedSet[entry.URL]
		tab, exists := tabByURL[entry.URL]
		if exists && retained[tab.ID] {
			continue
		}
		if exists {
			retained[tab.ID] = true
			if tab.Pinned != wantPinned {
				pinnedFlag := wantPinned
				if err := e.tabs.UpdateTab(ctx, tab.ID, TabUpdate{Pinned: &pinnedFlag}); err != nil {
					return fmt.Errorf("repin tab %s: %w", tab.ID, err)
				}
			}
			if idIndex(order, tab.ID) != target {
				if err := e.tabs.MoveTab(ctx, tab.ID, target); err != nil {
					return fmt.Errorf("move tab %s: %w", tab.ID, err)
				}
				order = idMove(order, tab.ID, target)
			}
		} else {
			created, err := e.tabs.CreateTab(ctx, windowID, entry.URL, target, wantPinned)
			if err != nil {
				return fmt.Errorf("create tab for %s: %w", entry.URL, err)
			}
			retained[created.ID] = true
			tabByURL[entry.URL] = created
			order = idInsert(order, created.ID, target)
		}
		target++
	}

	for _, tab := range tabs {
		if excludedURL(tab.URL) || retained[tab.ID] {
			continue
		}
		if err := e.tabs.RemoveTab(ctx, tab.ID); err != nil {
			return fmt.Errorf("close tab %s: %w", tab.ID, err)
		}
	}
	return nil
}

func idIndex(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// idInsert and idMove mirror the collaborators' index semantics: insert
// shifts everything at and behind the slot right; move removes first, then
// inserts at the clamped position.
func idInsert(order []string, id string, index int) []string {
	if index < 0 || index > len(order) {
		index = len(order)
	}
	order = append(order, "")
	copy(order[index+1:], order[index:])
	order[index] = id
	return order
}

func idMove(order []string, id string, index int) []string {
	cur := idIndex(order, id)
	if cur < 0 {
		return order
	}
	order = append(order[:cur], order[cur+1:]...)
	return idInsert(order, id, index)
}
