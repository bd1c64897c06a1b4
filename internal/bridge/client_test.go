package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

func TestClientListTabsSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/windows/win-1/tabs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tabs": []engine.Tab{
				{ID: "tab-1", WindowID: "win-1", URL: "https://a.example", Title: "A", Index: 0},
				{ID: "tab-2", WindowID: "win-1", URL: "https://b.example", Title: "B", Index: 1, Pinned: true},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token", nil)
	tabs, err := client.ListTabs(context.Background(), "win-1")
	if err != nil {
		t.Fatalf("list tabs failed: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if len(tabs) != 2 || tabs[1].URL != "https://b.example" || !tabs[1].Pinned {
		t.Fatalf("unexpected tabs: %+v", tabs)
	}
}

func TestClientCreateTabPostsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tabs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			WindowID string `json:"windowId"`
			URL      string `json:"url"`
			Index    int    `json:"index"`
			Pinned   bool   `json:"pinned"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body failed: %v", err)
		}
		if body.WindowID != "win-1" || body.URL != "https://a.example" || body.Index != 3 || !body.Pinned {
			t.Errorf("unexpected body: %+v", body)
		}
		json.NewEncoder(w).Encode(engine.Tab{ID: "tab-9", WindowID: "win-1", URL: body.URL, Index: body.Index, Pinned: body.Pinned})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	tab, err := client.CreateTab(context.Background(), "win-1", "https://a.example", 3, true)
	if err != nil {
		t.Fatalf("create tab failed: %v", err)
	}
	if tab.ID != "tab-9" {
		t.Fatalf("unexpected tab: %+v", tab)
	}
}

func TestClientRetriesOnServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"windows": []string{"win-1"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	client.baseDelay = 0
	windows, err := client.ListWindows(context.Background())
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(windows) != 1 || windows[0] != "win-1" {
		t.Fatalf("unexpected windows: %v", windows)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "no such window"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	_, err := client.ListTabs(context.Background(), "win-404")
	if err == nil {
		t.Fatalf("expected error for 404")
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound || httpErr.Code != "not_found" {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected 404 to match engine.ErrNotFound, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt for a client error, got %d", got)
	}
}

func TestClientHonorsRetryAfterHeader(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"folders": []engine.Folder{{ID: "f1", Title: "Work"}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	client.baseDelay = 0
	folders, err := client.ListFolders(context.Background())
	if err != nil {
		t.Fatalf("expected retry after 429: %v", err)
	}
	if len(folders) != 1 || folders[0].ID != "f1" {
		t.Fatalf("unexpected folders: %v", folders)
	}
}

func TestClientPollEventsDecodesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cursor"); got != "cur_1" {
			t.Errorf("expected cursor cur_1, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("expected limit 50, got %q", got)
		}
		next := "cur_2"
		json.NewEncoder(w).Encode(EventFeed{
			TabEvents: []engine.TabEvent{
				{Type: engine.TabCreated, WindowID: "win-1", URL: "https://a.example"},
			},
			BookmarkEvents: []engine.BookmarkEvent{
				{Type: engine.BookmarkRemoved, FolderID: "f1", BookmarkID: "b1"},
			},
			NextCursor: &next,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	feed, err := client.PollEvents(context.Background(), "cur_1", 50)
	if err != nil {
		t.Fatalf("poll events failed: %v", err)
	}
	if len(feed.TabEvents) != 1 || feed.TabEvents[0].Type != engine.TabCreated {
		t.Fatalf("unexpected tab events: %+v", feed.TabEvents)
	}
	if len(feed.BookmarkEvents) != 1 || feed.BookmarkEvents[0].FolderID != "f1" {
		t.Fatalf("unexpected bookmark events: %+v", feed.BookmarkEvents)
	}
	if feed.NextCursor == nil || *feed.NextCursor != "cur_2" {
		t.Fatalf("unexpected cursor: %v", feed.NextCursor)
	}
}

func TestRetryDelayBacksOffExponentially(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", nil)
	d1 := client.retryDelay(1, "")
	d2 := client.retryDelay(2, "")
	d3 := client.retryDelay(3, "")
	if !(d1 < d2 && d2 < d3) {
		t.Fatalf("expected growing delays, got %v %v %v", d1, d2, d3)
	}
	if client.retryDelay(20, "") != client.maxDelay {
		t.Fatalf("expected delay capped at max")
	}
	if client.retryDelay(1, "1") != time.Second {
		t.Fatalf("expected Retry-After seconds to win")
	}
}
