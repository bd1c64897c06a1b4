// Package bridge talks to the browser bridge extension over its local HTTP
// API. The client implements both engine collaborator interfaces and a
// cursor-based event feed the daemon polls.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	return target == engine.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// EventFeed is one page of the bridge's change feed. A nil NextCursor means
// the feed is exhausted for now; the cursor is opaque to the daemon.
type EventFeed struct {
	TabEvents      []engine.TabEvent      `json:"tabEvents"`
	BookmarkEvents []engine.BookmarkEvent `json:"bookmarkEvents"`
	NextCursor     *string                `json:"nextCursor"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8377"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

func (c *Client) ListWindows(ctx context.Context) ([]string, error) {
	var out struct {
		Windows []string `json:"windows"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/windows", nil, &out); err != nil {
		return nil, err
	}
	return out.Windows, nil
}

func (c *Client) ListTabs(ctx context.Context, windowID string) ([]engine.Tab, error) {
	var out struct {
		Tabs []engine.Tab `json:"tabs"`
	}
	path := fmt.Sprintf("/v1/windows/%s/tabs", url.PathEscape(windowID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tabs, nil
}

func (c *Client) CreateTab(ctx context.Context, windowID, tabURL string, index int, pinned bool) (engine.Tab, error) {
	body := map[string]any{
		"windowId": windowID,
		"url":      tabURL,
		"index":    index,
		"pinned":   pinned,
	}
	var out engine.Tab
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tabs", body, &out); err != nil {
		return engine.Tab{}, err
	}
	return out, nil
}

func (c *Client) UpdateTab(ctx context.Context, tabID string, upd engine.TabUpdate) error {
	body := map[string]any{}
	if upd.Title != nil {
		body["title"] = *upd.Title
	}
	if upd.Pinned != nil {
		body["pinned"] = *upd.Pinned
	}
	path := fmt.Sprintf("/v1/tabs/%s", url.PathEscape(tabID))
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) MoveTab(ctx context.Context, tabID string, index int) error {
	path := fmt.Sprintf("/v1/tabs/%s/move", url.PathEscape(tabID))
	return c.doJSON(ctx, http.MethodPost, path, map[string]any{"index": index}, nil)
}

func (c *Client) RemoveTab(ctx context.Context, tabID string) error {
	path := fmt.Sprintf("/v1/tabs/%s", url.PathEscape(tabID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) CreateWindow(ctx context.Context) (string, string, error) {
	var out struct {
		WindowID   string `json:"windowId"`
		BlankTabID string `json:"blankTabId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/windows", map[string]any{}, &out); err != nil {
		return "", "", err
	}
	return out.WindowID, out.BlankTabID, nil
}

func (c *Client) ListFolders(ctx context.Context) ([]engine.Folder, error) {
	var out struct {
		Folders []engine.Folder `json:"folders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bookmarks/folders", nil, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

func (c *Client) FolderChildren(ctx context.Context, folderID string) ([]engine.Bookmark, error) {
	var out struct {
		Entries []engine.Bookmark `json:"entries"`
	}
	path := fmt.Sprintf("/v1/bookmarks/folders/%s/children", url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) CreateFolder(ctx context.Context, title string) (engine.Folder, error) {
	var out engine.Folder
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bookmarks/folders", map[string]any{"title": title}, &out); err != nil {
		return engine.Folder{}, err
	}
	return out, nil
}

func (c *Client) CreateEntry(ctx context.Context, folderID, title, entryURL string, index int) (engine.Bookmark, error) {
	body := map[string]any{
		"folderId": folderID,
		"title":    title,
		"url":      entryURL,
		"index":    index,
	}
	var out engine.Bookmark
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bookmarks/entries", body, &out); err != nil {
		return engine.Bookmark{}, err
	}
	return out, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id, title string) error {
	path := fmt.Sprintf("/v1/bookmarks/entries/%s", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPatch, path, map[string]any{"title": title}, nil)
}

func (c *Client) MoveEntry(ctx context.Context, id string, index int) error {
	path := fmt.Sprintf("/v1/bookmarks/entries/%s/move", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPost, path, map[string]any{"index": index}, nil)
}

func (c *Client) RemoveEntry(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/bookmarks/entries/%s", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// PollEvents fetches one page of the change feed starting at cursor.
func (c *Client) PollEvents(ctx context.Context, cursor string, limit int) (EventFeed, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/events"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out EventFeed
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return EventFeed{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payloadBytes) == 0 {
				return nil
			}
			return json.Unmarshal(payloadBytes, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payloadBytes, &errPayload)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
