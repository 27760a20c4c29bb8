// ABOUTME: MCP tool handlers over the sync run ledger
// ABOUTME: Lets an assistant list runs, inspect one run, and check per-flow status
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

type RunHandlers struct {
	db *sql.DB
}

func NewRunHandlers(database *sql.DB) *RunHandlers {
	return &RunHandlers{db: database}
}

type ListSyncRunsInput struct {
	Flow  string `json:"flow,omitempty" jsonschema:"Filter by flow (conversions, audience, export)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default 10)"`
}

type RunOutput struct {
	ID           string            `json:"id"`
	Flow         string            `json:"flow"`
	Phase        string            `json:"phase"`
	StartedAt    string            `json:"started_at"`
	FinishedAt   string            `json:"finished_at,omitempty"`
	Target       string            `json:"target,omitempty"`
	Result       models.SyncResult `json:"result"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Failures     []string          `json:"failures,omitempty"`
}

type ListSyncRunsOutput struct {
	Runs  []RunOutput `json:"runs"`
	Count int         `json:"count"`
}

func (h *RunHandlers) ListSyncRuns(ctx context.Context, req *mcp.CallToolRequest, input ListSyncRunsInput) (*mcp.CallToolResult, ListSyncRunsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 10
	}

	filter := db.RunFilter{Limit: input.Limit}
	if input.Flow != "" {
		flow, ok := models.ParseFlow(input.Flow)
		if !ok {
			return nil, ListSyncRunsOutput{}, fmt.Errorf("invalid flow: %s (valid: conversions, audience, export)", input.Flow)
		}
		filter.Flow = flow
	}

	runs, err := db.ListRuns(h.db, filter)
	if err != nil {
		return nil, ListSyncRunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]RunOutput, len(runs))
	for i := range runs {
		out[i] = runToOutput(&runs[i])
	}

	return &mcp.CallToolResult{}, ListSyncRunsOutput{Runs: out, Count: len(out)}, nil
}

type GetSyncRunInput struct {
	ID string `json:"id" jsonschema:"Run ID as printed in the run summary"`
}

func (h *RunHandlers) GetSyncRun(ctx context.Context, req *mcp.CallToolRequest, input GetSyncRunInput) (*mcp.CallToolResult, RunOutput, error) {
	if input.ID == "" {
		return nil, RunOutput{}, fmt.Errorf("id is required")
	}

	run, err := db.GetRun(h.db, input.ID)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, RunOutput{}, fmt.Errorf("run not found: %s", input.ID)
	}

	return &mcp.CallToolResult{}, runToOutput(run), nil
}

type GetSyncStatusInput struct{}

type FlowStatusOutput struct {
	Flow         string `json:"flow"`
	Status       string `json:"status"`
	LastSyncTime string `json:"last_sync_time"`
	LastRunID    string `json:"last_run_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type GetSyncStatusOutput struct {
	Flows []FlowStatusOutput `json:"flows"`
}

func (h *RunHandlers) GetSyncStatus(ctx context.Context, req *mcp.CallToolRequest, input GetSyncStatusInput) (*mcp.CallToolResult, GetSyncStatusOutput, error) {
	flows, err := flowStatuses(h.db)
	if err != nil {
		return nil, GetSyncStatusOutput{}, err
	}
	return &mcp.CallToolResult{}, GetSyncStatusOutput{Flows: flows}, nil
}

// flowStatuses reports every known flow, including ones that never ran.
func flowStatuses(database *sql.DB) ([]FlowStatusOutput, error) {
	states, err := db.GetAllSyncStates(database)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	byFlow := make(map[string]models.SyncState, len(states))
	for _, st := range states {
		byFlow[st.Service] = st
	}

	out := make([]FlowStatusOutput, 0, len(models.Flows))
	for _, flow := range models.Flows {
		st, ok := byFlow[string(flow)]
		if !ok {
			out = append(out, FlowStatusOutput{Flow: string(flow), Status: "never", LastSyncTime: "never"})
			continue
		}
		fs := FlowStatusOutput{
			Flow:         string(flow),
			Status:       st.Status,
			LastSyncTime: "never",
			LastRunID:    st.LastRunID,
			ErrorMessage: st.ErrorMessage,
		}
		if st.LastSyncTime != nil {
			fs.LastSyncTime = st.LastSyncTime.UTC().Format(time.RFC3339)
		}
		out = append(out, fs)
	}
	return out, nil
}

func runToOutput(run *models.SyncRun) RunOutput {
	out := RunOutput{
		ID:           run.ID,
		Flow:         string(run.Flow),
		Phase:        string(run.Phase),
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		Result:       run.Result,
		ErrorMessage: run.Error,
		Failures:     run.Failures,
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	if run.Target != nil {
		out.Target = run.Target.ResourceName
		if out.Target == "" {
			out.Target = run.Target.Name
		}
	}
	return out
}
