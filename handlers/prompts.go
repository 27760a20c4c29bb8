// ABOUTME: MCP prompt handlers for sync run diagnostics
// ABOUTME: Turns ledger entries into prompts that explain a run or a flow's health
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

type PromptHandlers struct {
	db *sql.DB
}

func NewPromptHandlers(database *sql.DB) *PromptHandlers {
	return &PromptHandlers{db: database}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "diagnose-run":
		return h.getDiagnoseRunPrompt(arguments)
	case "flow-health":
		return h.getFlowHealthPrompt(arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getDiagnoseRunPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	runID, ok := args["run_id"]
	if !ok || runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	run, err := db.GetRun(h.db, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	var promptText strings.Builder
	promptText.WriteString("Explain what happened in this CRM to Google Ads sync run and what the operator should do next.\n\n")
	writeRun(&promptText, run)

	if len(run.Failures) > 0 {
		promptText.WriteString("\nPlatform rejection messages:\n")
		for _, msg := range run.Failures {
			promptText.WriteString("- " + msg + "\n")
		}
	}

	promptText.WriteString("\nUnresolved deals have no linked contact in the CRM. Excluded deals had a contact without email or phone. ")
	promptText.WriteString("Duplicates are extra deals for a person already uploaded in this run.\n")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Diagnosis for %s run %s", run.Flow, run.ID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getFlowHealthPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	flowName := args["flow"]
	flow, ok := models.ParseFlow(flowName)
	if !ok {
		return nil, fmt.Errorf("invalid flow: %s (valid: conversions, audience, export)", flowName)
	}

	runs, err := db.ListRuns(h.db, db.RunFilter{Flow: flow, Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Review the recent %s sync runs below. Point out trends in match rate, ", flow))
	promptText.WriteString("rejections, and failures, and whether anything needs attention.\n\n")

	if len(runs) == 0 {
		promptText.WriteString("No runs have been recorded for this flow.\n")
	}
	for i := range runs {
		writeRun(&promptText, &runs[i])
		promptText.WriteString("\n")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Health of the %s flow", flow),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func writeRun(b *strings.Builder, run *models.SyncRun) {
	r := run.Result
	b.WriteString(fmt.Sprintf("Run %s (%s), started %s, ended in %s\n",
		run.ID, run.Flow, run.StartedAt.UTC().Format("2006-01-02 15:04 MST"), run.Phase))
	b.WriteString(fmt.Sprintf("  candidates %d, skipped %d, resolved %d, unresolved %d\n",
		r.TotalCandidateDeals, r.Skipped, r.Resolved, r.Unresolved))
	b.WriteString(fmt.Sprintf("  excluded %d, duplicates %d, prepared %d\n", r.Excluded, r.Duplicates, r.Prepared))
	b.WriteString(fmt.Sprintf("  attempted %d, uploaded %d, failed %d\n", r.Attempted, r.Uploaded, r.Failed))
	if run.Target != nil {
		b.WriteString(fmt.Sprintf("  target %s %q\n", run.Target.Kind, run.Target.Name))
	}
	if run.Error != "" {
		b.WriteString("  error: " + run.Error + "\n")
	}
}
