// tabgroups-mcp exposes a running tabgroupd as MCP tools over stdio.
//
// Usage:
//
//	tabgroups-mcp serve    # Start MCP server (stdio transport)
//
// The daemon address and token come from the same config file as
// tabgroupd, or from TABGROUPS_DAEMON_URL / TABGROUPS_TOKEN.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/stnma7e/bookmarktabgroups/internal/config"
	"github.com/stnma7e/bookmarktabgroups/internal/mcpapi"
)

func main() {
	daemonURL := flag.String("daemon-url", strings.TrimSpace(os.Getenv("TABGROUPS_DAEMON_URL")), "tabgroupd base URL")
	token := flag.String("token", strings.TrimSpace(os.Getenv("TABGROUPS_TOKEN")), "API bearer token")
	flag.Parse()

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case "serve":
		if err := run(*daemonURL, *token); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("tabgroups-mcp v%s\n", mcpapi.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\nUsage:\n  tabgroups-mcp serve    Start the MCP server (stdio transport)\n", command)
		os.Exit(1)
	}
}

func run(daemonURL, token string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if daemonURL == "" {
		daemonURL = "http://" + cfg.Listen
	}
	if token == "" {
		token = cfg.Token
	}

	ctrl := mcpapi.NewHTTPController(daemonURL, token)
	return server.ServeStdio(mcpapi.New(ctrl))
}
