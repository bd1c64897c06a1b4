package mcpapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusTool handles the tabgroups_status MCP tool.
type StatusTool struct {
	ctrl Controller
}

func NewStatusTool(ctrl Controller) *StatusTool {
	return &StatusTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for tabgroups_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("tabgroups_status",
		mcp.WithDescription(
			"Show daemon status: synced windows, tracked folders, and whether a reconciliation pass is running.",
		),
	)
}

// Handle processes the tabgroups_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := t.ctrl.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get status: %v", err)), nil
	}
	mappings, err := t.ctrl.Mappings(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list mappings: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Tab Groups Status\n\n")
	sb.WriteString(fmt.Sprintf("- **Synced windows**: %d\n", status.Mappings))
	sb.WriteString(fmt.Sprintf("- **Tracked folders**: %d\n", status.TrackedFolders))
	sb.WriteString(fmt.Sprintf("- **Pass running**: %v\n", status.PassRunning))
	sb.WriteString(fmt.Sprintf("- **Pending passes**: %d\n", status.PendingPasses))

	if len(mappings) > 0 {
		sb.WriteString("\n### Mappings\n\n")
		for _, m := range mappings {
			title := m.FolderTitle
			if title == "" {
				title = m.FolderID
			}
			sb.WriteString(fmt.Sprintf("- window `%s` ↔ **%s** (`%s`)\n", m.WindowID, title, m.FolderID))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
