package mcpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ListFoldersTool handles the tabgroups_list_folders MCP tool.
type ListFoldersTool struct {
	ctrl Controller
}

func NewListFoldersTool(ctrl Controller) *ListFoldersTool {
	return &ListFoldersTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for tabgroups_list_folders.
func (t *ListFoldersTool) Definition() mcp.Tool {
	return mcp.NewTool("tabgroups_list_folders",
		mcp.WithDescription(
			"List bookmark folders ordered by most recent use, marking the ones currently synced to a window.",
		),
	)
}

// Handle processes the tabgroups_list_folders tool call.
func (t *ListFoldersTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders, err := t.ctrl.ListFolders(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list folders: %v", err)), nil
	}
	if len(folders) == 0 {
		return mcp.NewToolResultText("No bookmark folders found."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Bookmark Folders\n\n")
	for _, folder := range folders {
		sb.WriteString(fmt.Sprintf("- **%s** (`%s`)", folder.Title, folder.ID))
		if folder.WindowID != "" {
			sb.WriteString(fmt.Sprintf(" — synced to window `%s`", folder.WindowID))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// OpenFolderTool handles the tabgroups_open_folder MCP tool.
type OpenFolderTool struct {
	ctrl Controller
}

func NewOpenFolderTool(ctrl Controller) *OpenFolderTool {
	return &OpenFolderTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for tabgroups_open_folder.
func (t *OpenFolderTool) Definition() mcp.Tool {
	return mcp.NewTool("tabgroups_open_folder",
		mcp.WithDescription(
			"Open a bookmark folder as a new browser window with one tab per entry, and keep the two in sync.",
		),
		mcp.WithString("folder_id",
			mcp.Required(),
			mcp.Description("ID of the folder to open"),
		),
		mcp.WithString("folder_title",
			mcp.Description("Folder title to record on the mapping"),
		),
	)
}

// Handle processes the tabgroups_open_folder tool call.
func (t *OpenFolderTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderID := req.GetString("folder_id", "")
	if folderID == "" {
		return mcp.NewToolResultError("'folder_id' is required"), nil
	}
	folderTitle := req.GetString("folder_title", "")

	windowID, err := t.ctrl.OpenFolder(ctx, folderID, folderTitle)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open folder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Folder `%s` opened as window `%s`.", folderID, windowID)), nil
}
