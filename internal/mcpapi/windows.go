package mcpapi

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// SyncWindowTool handles the tabgroups_sync_window MCP tool.
type SyncWindowTool struct {
	ctrl Controller
}

func NewSyncWindowTool(ctrl Controller) *SyncWindowTool {
	return &SyncWindowTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for tabgroups_sync_window.
func (t *SyncWindowTool) Definition() mcp.Tool {
	return mcp.NewTool("tabgroups_sync_window",
		mcp.WithDescription(
			"Associate a browser window with a bookmark folder. The window's tabs replace the folder's entries and the two stay in sync.",
		),
		mcp.WithString("window_id",
			mcp.Required(),
			mcp.Description("ID of the window to sync"),
		),
		mcp.WithString("folder_id",
			mcp.Required(),
			mcp.Description("ID of the folder to sync it with"),
		),
		mcp.WithString("folder_title",
			mcp.Description("Folder title to record on the mapping"),
		),
	)
}

// Handle processes the tabgroups_sync_window tool call.
func (t *SyncWindowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windowID := req.GetString("window_id", "")
	folderID := req.GetString("folder_id", "")
	if windowID == "" {
		return mcp.NewToolResultError("'window_id' is required"), nil
	}
	if folderID == "" {
		return mcp.NewToolResultError("'folder_id' is required"), nil
	}
	folderTitle := req.GetString("folder_title", "")

	if err := t.ctrl.Associate(ctx, windowID, folderID, folderTitle); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to sync window: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Window `%s` is now synced with folder `%s`.", windowID, folderID)), nil
}

// UnsyncWindowTool handles the tabgroups_unsync_window MCP tool.
type UnsyncWindowTool struct {
	ctrl Controller
}

func NewUnsyncWindowTool(ctrl Controller) *UnsyncWindowTool {
	return &UnsyncWindowTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for tabgroups_unsync_window.
func (t *UnsyncWindowTool) Definition() mcp.Tool {
	return mcp.NewTool("tabgroups_unsync_window",
		mcp.WithDescription(
			"Remove a window's folder association. The folder and its bookmarks are kept as they are.",
		),
		mcp.WithString("window_id",
			mcp.Required(),
			mcp.Description("ID of the window to unsync"),
		),
	)
}

// Handle processes the tabgroups_unsync_window tool call.
func (t *UnsyncWindowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	windowID := req.GetString("window_id", "")
	if windowID == "" {
		return mcp.NewToolResultError("'window_id' is required"), nil
	}
	if err := t.ctrl.Disassociate(ctx, windowID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to unsync window: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Window `%s` unsynced. Its bookmarks were kept.", windowID)), nil
}
