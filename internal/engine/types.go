package engine

import (
	"context"
	"strings"
	"time"
)

// Tab is one live item in a window, in window order.
type Tab struct {
	ID       string `json:"id"`
	WindowID string `json:"windowId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Index    int    `json:"index"`
	Pinned   bool   `json:"pinned"`
	Active   bool   `json:"active"`
}

// TabUpdate carries the mutable tab fields; nil means leave unchanged.
type TabUpdate struct {
	Title  *string
	Pinned *bool
}

// Bookmark is one durable entry in a folder, in folder order.
type Bookmark struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Index    int    `json:"index"`
}

type Folder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TabProvider is the window/tab side collaborator. CreateWindow returns the
// new window together with the identifier of its default blank page so the
// caller can close it after population.
type TabProvider interface {
	ListWindows(ctx context.Context) ([]string, error)
	ListTabs(ctx context.Context, windowID string) ([]Tab, error)
	CreateTab(ctx context.Context, windowID, url string, index int, pinned bool) (Tab, error)
	UpdateTab(ctx context.Context, tabID string, upd TabUpdate) error
	MoveTab(ctx context.Context, tabID string, index int) error
	RemoveTab(ctx context.Context, tabID string) error
	CreateWindow(ctx context.Context) (windowID, blankTabID string, err error)
}

// BookmarkStore is the durable side collaborator.
type BookmarkStore interface {
	ListFolders(ctx context.Context) ([]Folder, error)
	FolderChildren(ctx context.Context, folderID string) ([]Bookmark, error)
	CreateFolder(ctx context.Context, title string) (Folder, error)
	CreateEntry(ctx context.Context, folderID, title, url string, index int) (Bookmark, error)
	UpdateEntry(ctx context.Context, id, title string) error
	MoveEntry(ctx context.Context, id string, index int) error
	RemoveEntry(ctx context.Context, id string) error
}

type TabEventType string

const (
	TabCreated    TabEventType = "tab.created"
	TabRemoved    TabEventType = "tab.removed"
	TabUpdated    TabEventType = "tab.updated"
	TabMoved      TabEventType = "tab.moved"
	TabAttached   TabEventType = "tab.attached"
	WindowRemoved TabEventType = "window.removed"
)

// TabEvent is a change notification from the tab provider. WindowClosing is
// set on tab.removed events emitted while the whole window is shutting down,
// which must not trigger a reconciliation pass.
type TabEvent struct {
	Type          TabEventType `json:"type"`
	WindowID      string       `json:"windowId"`
	TabID         string       `json:"tabId,omitempty"`
	URL           string       `json:"url,omitempty"`
	WindowClosing bool         `json:"windowClosing,omitempty"`
}

type BookmarkEventType string

const (
	BookmarkCreated BookmarkEventType = "bookmark.created"
	BookmarkRemoved BookmarkEventType = "bookmark.removed"
	BookmarkChanged BookmarkEventType = "bookmark.changed"
	BookmarkMoved   BookmarkEventType = "bookmark.moved"
)

type BookmarkEvent struct {
	Type       BookmarkEventType `json:"type"`
	FolderID   string            `json:"folderId"`
	BookmarkID string            `json:"bookmarkId,omitempty"`
	URL        string            `json:"url,omitempty"`
}

// Notification is what the engine tells the presentation layer about itself.
type Notification struct {
	Type      string    `json:"type"`
	WindowID  string    `json:"windowId,omitempty"`
	FolderID  string    `json:"folderId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	NoteMappingCreated = "mapping.created"
	NoteMappingRemoved = "mapping.removed"
	NotePassCompleted  = "pass.completed"
	NotePassFailed     = "pass.failed"
	NoteWindowOpened   = "window.opened"
	NoteFolderCreated  = "folder.created"
)

// Mapping is the exported view of one window<->folder association.
type Mapping struct {
	WindowID    string `json:"windowId"`
	FolderID    string `json:"folderId"`
	FolderTitle string `json:"folderTitle"`
}

// RankedFolder is a folder annotated for dropdown display, most recently
// used first.
type RankedFolder struct {
	Folder
	LastUsedAt int64  `json:"lastUsedAt,omitempty"`
	WindowID   string `json:"windowId,omitempty"`
}

type EngineStatus struct {
	Mappings       int  `json:"mappings"`
	TrackedFolders int  `json:"trackedFolders"`
	PassRunning    bool `json:"passRunning"`
	PendingPasses  int  `json:"pendingPasses"`
}

type Logger interface {
	Printf(format string, args ...any)
}

var excludedSchemes = []string{
	"about:",
	"chrome:",
	"chrome-extension:",
	"moz-extension:",
	"edge:",
	"view-source:",
}

// excludedURL reports whether a URL must never cross the tab/bookmark
// boundary in either direction. Empty URLs are excluded too: a tab without
// a committed URL has nothing to join on.
func excludedURL(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return true
	}
	lower := strings.ToLower(url)
	for _, scheme := range excludedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
