// ABOUTME: MCP server subcommand
// ABOUTME: Serves run ledger tools, resources, and diagnostic prompts over stdio
package cli

import (
	"context"
	"database/sql"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/handlers"
)

// NewMCPServer registers the run ledger tools and resources.
func NewMCPServer(db *sql.DB, version string) *mcp.Server {
	runHandlers := handlers.NewRunHandlers(db)
	resourceHandlers := handlers.NewResourceHandlers(db)
	promptHandlers := handlers.NewPromptHandlers(db)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sync_runs",
		Description: "List recent sync runs with their counters, newest first, optionally filtered by flow",
	}, runHandlers.ListSyncRuns)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_sync_run",
		Description: "Get one sync run by ID, including platform rejection messages",
	}, runHandlers.GetSyncRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_sync_status",
		Description: "Get the last sync time and status of every flow (conversions, audience, export)",
	}, runHandlers.GetSyncStatus)

	server.AddResource(&mcp.Resource{
		URI:         "leadsync://runs",
		Name:        "runs",
		Description: "The 100 most recent sync runs",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         "leadsync://status",
		Name:        "status",
		Description: "Per-flow sync status",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "leadsync://runs/{id}",
		Name:        "run",
		Description: "A single sync run with its failure messages",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "diagnose-run",
		Description: "Explain one sync run and suggest next steps",
		Arguments: []*mcp.PromptArgument{
			{Name: "run_id", Description: "Run ID to diagnose", Required: true},
		},
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "flow-health",
		Description: "Review recent runs of one flow for trends",
		Arguments: []*mcp.PromptArgument{
			{Name: "flow", Description: "conversions, audience, or export", Required: true},
		},
	}, promptHandlers.GetPrompt)

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, db *sql.DB, version string) error {
	log.Println("Starting leadsync MCP server...")
	return NewMCPServer(db, version).Run(ctx, &mcp.StdioTransport{})
}
