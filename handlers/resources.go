// ABOUTME: MCP resource handlers for exposing the run ledger
// ABOUTME: Provides read-only JSON views of runs and flow status via leadsync:// URIs
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/db"
)

const uriScheme = "leadsync://"

type ResourceHandlers struct {
	db *sql.DB
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", uriScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")

	switch parts[0] {
	case "runs":
		if len(parts) == 1 || parts[1] == "" {
			return h.readRuns(uri)
		}
		return h.readRun(uri, parts[1])

	case "status":
		return h.readStatus(uri)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readRuns(uri string) (*mcp.ReadResourceResult, error) {
	runs, err := db.ListRuns(h.db, db.RunFilter{Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	out := make([]RunOutput, len(runs))
	for i := range runs {
		out[i] = runToOutput(&runs[i])
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readRun(uri, id string) (*mcp.ReadResourceResult, error) {
	run, err := db.GetRun(h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	if run == nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return jsonResource(uri, runToOutput(run))
}

func (h *ResourceHandlers) readStatus(uri string) (*mcp.ReadResourceResult, error) {
	flows, err := flowStatuses(h.db)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, flows)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
