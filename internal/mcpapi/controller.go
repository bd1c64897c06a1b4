// Package mcpapi exposes the tab-group engine as MCP tools so an
// assistant can list folders, sync windows, and open folder windows
// through the stdio transport.
package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stnma7e/bookmarktabgroups/internal/engine"
)

// Controller is the slice of daemon functionality the tools need. The
// stdio binary talks to a running tabgroupd over its HTTP API; tests
// substitute a fake.
type Controller interface {
	ListFolders(ctx context.Context) ([]engine.RankedFolder, error)
	Mappings(ctx context.Context) ([]engine.Mapping, error)
	Associate(ctx context.Context, windowID, folderID, folderTitle string) error
	Disassociate(ctx context.Context, windowID string) error
	OpenFolder(ctx context.Context, folderID, folderTitle string) (string, error)
	Status(ctx context.Context) (engine.EngineStatus, error)
}

// HTTPController implements Controller against a tabgroupd instance.
type HTTPController struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPController(baseURL, token string) *HTTPController {
	return &HTTPController{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPController) ListFolders(ctx context.Context) ([]engine.RankedFolder, error) {
	var resp struct {
		Folders []engine.RankedFolder `json:"folders"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/folders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Folders, nil
}

func (c *HTTPController) Mappings(ctx context.Context) ([]engine.Mapping, error) {
	var resp struct {
		Mappings []engine.Mapping `json:"mappings"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/windows", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Mappings, nil
}

func (c *HTTPController) Associate(ctx context.Context, windowID, folderID, folderTitle string) error {
	body := map[string]string{"folderId": folderID}
	if folderTitle != "" {
		body["folderTitle"] = folderTitle
	}
	return c.do(ctx, http.MethodPost, "/v1/windows/"+windowID+"/associate", body, nil)
}

func (c *HTTPController) Disassociate(ctx context.Context, windowID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/windows/"+windowID+"/association", nil, nil)
}

func (c *HTTPController) OpenFolder(ctx context.Context, folderID, folderTitle string) (string, error) {
	var body any
	if folderTitle != "" {
		body = map[string]string{"folderTitle": folderTitle}
	}
	var resp struct {
		WindowID string `json:"windowId"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/folders/"+folderID+"/open", body, &resp); err != nil {
		return "", err
	}
	return resp.WindowID, nil
}

func (c *HTTPController) Status(ctx context.Context) (engine.EngineStatus, error) {
	var status engine.EngineStatus
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &status); err != nil {
		return engine.EngineStatus{}, err
	}
	return status, nil
}

func (c *HTTPController) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &envelope) == nil && envelope.Message != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, envelope.Message, envelope.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
