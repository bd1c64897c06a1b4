package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// fakeTabProvider keeps every window as an ordered tab slice and reindexes
// after each mutation, mirroring how a browser reports tab positions.
type fakeTabProvider struct {
	mu          sync.Mutex
	windows     map[string][]Tab
	nextTabID   int
	nextWinID   int
	listTabsErr error

	listTabsCalls  int
	createTabCalls int
	removeTabCalls int
	moveTabCalls   int

	listTabsGate chan struct{}
}

func newFakeTabProvider() *fakeTabProvider {
	return &fakeTabProvider{windows: map[string][]Tab{}}
}

func (p *fakeTabProvider) addWindow(tabs ...Tab) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextWinID++
	windowID := fmt.Sprintf("win-%d", p.nextWinID)
	for i := range tabs {
		p.nextTabID++
		tabs[i].ID = fmt.Sprintf("tab-%d", p.nextTabID)
	}
	p.windows[windowID] = tabs
	p.reindexLocked(windowID)
	return windowID
}

func (p *fakeTabProvider) reindexLocked(windowID string) {
	tabs := p.windows[windowID]
	for i := range tabs {
		tabs[i].WindowID = windowID
		tabs[i].Index = i
	}
}

func (p *fakeTabProvider) tabsOf(windowID string) []Tab {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Tab(nil), p.windows[windowID]...)
}

func (p *fakeTabProvider) ListWindows(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.windows))
	for id := range p.windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (p *fakeTabProvider) ListTabs(ctx context.Context, windowID string) ([]Tab, error) {
	if p.listTabsGate != nil {
		<-p.listTabsGate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listTabsCalls++
	if p.listTabsErr != nil {
		return nil, p.listTabsErr
	}
	tabs, ok := p.windows[windowID]
	if !ok {
		return nil, fmt.Errorf("window %s: %w", windowID, ErrNotFound)
	}
	return append([]Tab(nil), tabs...), nil
}

func (p *fakeTabProvider) CreateTab(ctx context.Context, windowID, url string, index int, pinned bool) (Tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createTabCalls++
	tabs, ok := p.windows[windowID]
	if !ok {
		return Tab{}, fmt.Errorf("window %s: %w", windowID, ErrNotFound)
	}
	p.nextTabID++
	tab := Tab{ID: fmt.Sprintf("tab-%d", p.nextTabID), URL: url, Title: url, Pinned: pinned}
	if index < 0 || index > len(tabs) {
		index = len(tabs)
	}
	tabs = append(tabs[:index], append([]Tab{tab}, tabs[index:]...)...)
	p.windows[windowID] = tabs
	p.reindexLocked(windowID)
	return p.windows[windowID][index], nil
}

func (p *fakeTabProvider) UpdateTab(ctx context.Context, tabID string, upd TabUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	windowID, i, ok := p.locateLocked(tabID)
	if !ok {
		return fmt.Errorf("tab %s: %w", tabID, ErrNotFound)
	}
	if upd.Title != nil {
		p.windows[windowID][i].Title = *upd.Title
	}
	if upd.Pinned != nil {
		p.windows[windowID][i].Pinned = *upd.Pinned
	}
	return nil
}

func (p *fakeTabProvider) MoveTab(ctx context.Context, tabID string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moveTabCalls++
	windowID, i, ok := p.locateLocked(tabID)
	if !ok {
		return fmt.Errorf("tab %s: %w", tabID, ErrNotFound)
	}
	tabs := p.windows[windowID]
	tab := tabs[i]
	tabs = append(tabs[:i], tabs[i+1:]...)
	if index < 0 || index > len(tabs) {
		index = len(tabs)
	}
	tabs = append(tabs[:index], append([]Tab{tab}, tabs[index:]...)...)
	p.windows[windowID] = tabs
	p.reindexLocked(windowID)
	return nil
}

func (p *fakeTabProvider) RemoveTab(ctx context.Context, tabID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeTabCalls++
	windowID, i, ok := p.locateLocked(tabID)
	if !ok {
		return fmt.Errorf("tab %s: %w", tabID, ErrNotFound)
	}
	tabs := p.windows[windowID]
	p.windows[windowID] = append(tabs[:i], tabs[i+1:]...)
	p.reindexLocked(windowID)
	return nil
}

func (p *fakeTabProvider) CreateWindow(ctx context.Context) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextWinID++
	windowID := fmt.Sprintf("win-%d", p.nextWinID)
	p.nextTabID++
	blank := Tab{ID: fmt.Sprintf("tab-%d", p.nextTabID), URL: "about:blank", Title: "New Tab"}
	p.windows[windowID] = []Tab{blank}
	p.reindexLocked(windowID)
	return windowID, blank.ID, nil
}

func (p *fakeTabProvider) locateLocked(tabID string) (string, int, bool) {
	for windowID, tabs := range p.windows {
		for i, tab := range tabs {
			if tab.ID == tabID {
				return windowID, i, true
			}
		}
	}
	return "", 0, false
}

// fakeBookmarkStore keeps each folder as an ordered entry slice, reindexed
// after each mutation.
type fakeBookmarkStore struct {
	mu           sync.Mutex
	folders      []Folder
	children     map[string][]Bookmark
	nextEntryID  int
	nextFolderID int

	createFolderErr error
	createEntryErr  error
}

func newFakeBookmarkStore() *fakeBookmarkStore {
	return &fakeBookmarkStore{children: map[string][]Bookmark{}}
}

func (s *fakeBookmarkStore) addFolder(title string, entries ...Bookmark) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFolderID++
	folderID := fmt.Sprintf("folder-%d", s.nextFolderID)
	s.folders = append(s.folders, Folder{ID: folderID, Title: title})
	for i := range entries {
		s.nextEntryID++
		entries[i].ID = fmt.Sprintf("bm-%d", s.nextEntryID)
	}
	s.children[folderID] = entries
	s.reindexLocked(folderID)
	return folderID
}

func (s *fakeBookmarkStore) reindexLocked(folderID string) {
	entries := s.children[folderID]
	for i := range entries {
		entries[i].FolderID = folderID
		entries[i].Index = i
	}
}

func (s *fakeBookmarkStore) entriesOf(folderID string) []Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Bookmark(nil), s.children[folderID]...)
}

func (s *fakeBookmarkStore) ListFolders(ctx context.Context) ([]Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Folder(nil), s.folders...), nil
}

func (s *fakeBookmarkStore) FolderChildren(ctx context.Context, folderID string) ([]Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.children[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	return append([]Bookmark(nil), entries...), nil
}

func (s *fakeBookmarkStore) CreateFolder(ctx context.Context, title string) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFolderErr != nil {
		return Folder{}, s.createFolderErr
	}
	s.nextFolderID++
	folder := Folder{ID: fmt.Sprintf("folder-%d", s.nextFolderID), Title: title}
	s.folders = append(s.folders, folder)
	s.children[folder.ID] = nil
	return folder, nil
}

func (s *fakeBookmarkStore) CreateEntry(ctx context.Context, folderID, title, url string, index int) (Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createEntryErr != nil {
		return Bookmark{}, s.createEntryErr
	}
	entries, ok := s.children[folderID]
	if !ok {
		return Bookmark{}, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	s.nextEntryID++
	entry := Bookmark{ID: fmt.Sprintf("bm-%d", s.nextEntryID), Title: title, URL: url}
	if index < 0 || index > len(entries) {
		index = len(entries)
	}
	entries = append(entries[:index], append([]Bookmark{entry}, entries[index:]...)...)
	s.children[folderID] = entries
	s.reindexLocked(folderID)
	return s.children[folderID][index], nil
}

func (s *fakeBookmarkStore) UpdateEntry(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folderID, i, ok := s.locateLocked(id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	s.children[folderID][i].Title = title
	return nil
}

func (s *fakeBookmarkStore) MoveEntry(ctx context.Context, id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folderID, i, ok := s.locateLocked(id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	entries := s.children[folderID]
	entry := entries[i]
	entries = append(entries[:i], entries[i+1:]...)
	if index < 0 || index > len(entries) {
		index = len(entries)
	}
	entries = append(entries[:index], append([]Bookmark{entry}, entries[index:]...)...)
	s.children[folderID] = entries
	s.reindexLocked(folderID)
	return nil
}

func (s *fakeBookmarkStore) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folderID, i, ok := s.locateLocked(id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	entries := s.children[folderID]
	s.children[folderID] = append(entries[:i], entries[i+1:]...)
	s.reindexLocked(folderID)
	return nil
}

func (s *fakeBookmarkStore) locateLocked(id string) (string, int, bool) {
	for folderID, entries := range s.children {
		for i, entry := range entries {
			if entry.ID == id {
				return folderID, i, true
			}
		}
	}
	return "", 0, false
}

func entryURLs(entries []Bookmark) []string {
	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		urls = append(urls, entry.URL)
	}
	return urls
}

func tabURLs(tabs []Tab) []string {
	urls := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		urls = append(urls, tab.URL)
	}
	return urls
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
