package mcpapi

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with all tab-group tools registered. This
// is the composition root: tools receive the controller here and
// nowhere else.
func New(ctrl Controller) *server.MCPServer {
	s := server.NewMCPServer(
		"tabgroups",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	listTool := NewListFoldersTool(ctrl)
	s.AddTool(listTool.Definition(), listTool.Handle)

	syncTool := NewSyncWindowTool(ctrl)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	unsyncTool := NewUnsyncWindowTool(ctrl)
	s.AddTool(unsyncTool.Definition(), unsyncTool.Handle)

	openTool := NewOpenFolderTool(ctrl)
	s.AddTool(openTool.Definition(), openTool.Handle)

	statusTool := NewStatusTool(ctrl)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	return s
}

func serverInstructions() string {
	return `Tab group tools for a browser whose windows mirror bookmark folders.

Use tabgroups_list_folders to discover folders, tabgroups_open_folder to
open one as a window, tabgroups_sync_window to bind an existing window to
a folder, and tabgroups_unsync_window to release it. Unsyncing never
deletes bookmarks. tabgroups_status reports the daemon's current state.`
}
