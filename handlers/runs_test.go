// ABOUTME: Run ledger tool and resource test suite
// ABOUTME: Seeds a temporary ledger and exercises the MCP handlers directly
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

func setupRunsTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedRun(t *testing.T, database *sql.DB, id string, flow models.Flow, started time.Time, failures ...string) {
	t.Helper()
	finished := started.Add(time.Minute)
	run := &models.SyncRun{
		ID:         id,
		Flow:       flow,
		Phase:      models.PhaseDone,
		Result:     models.SyncResult{Prepared: 3, Attempted: 3, Uploaded: 3 - len(failures), Failed: len(failures)},
		Target:     &models.Target{Kind: models.TargetConversionAction, Name: "Enrolled", ResourceName: "customers/1/conversionActions/2"},
		StartedAt:  started,
		FinishedAt: &finished,
		Failures:   failures,
	}
	if err := db.SaveRun(database, run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
}

func TestListSyncRuns(t *testing.T) {
	database := setupRunsTestDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedRun(t, database, "run-a", models.FlowConversions, base)
	seedRun(t, database, "run-b", models.FlowAudience, base.Add(time.Hour))
	seedRun(t, database, "run-c", models.FlowConversions, base.Add(2*time.Hour))

	h := NewRunHandlers(database)

	_, out, err := h.ListSyncRuns(context.Background(), &mcp.CallToolRequest{}, ListSyncRunsInput{})
	if err != nil {
		t.Fatalf("ListSyncRuns failed: %v", err)
	}
	if out.Count != 3 {
		t.Fatalf("Expected 3 runs, got %d", out.Count)
	}
	if out.Runs[0].ID != "run-c" {
		t.Errorf("Expected newest run first, got %s", out.Runs[0].ID)
	}

	_, out, err = h.ListSyncRuns(context.Background(), &mcp.CallToolRequest{}, ListSyncRunsInput{Flow: "conversions", Limit: 1})
	if err != nil {
		t.Fatalf("ListSyncRuns with filter failed: %v", err)
	}
	if out.Count != 1 || out.Runs[0].ID != "run-c" {
		t.Errorf("Expected only run-c, got %+v", out.Runs)
	}
	if out.Runs[0].Target != "customers/1/conversionActions/2" {
		t.Errorf("Expected target resource name, got %q", out.Runs[0].Target)
	}
}

func TestListSyncRunsInvalidFlow(t *testing.T) {
	h := NewRunHandlers(setupRunsTestDB(t))

	_, _, err := h.ListSyncRuns(context.Background(), &mcp.CallToolRequest{}, ListSyncRunsInput{Flow: "email"})
	if err == nil {
		t.Fatal("Expected error for unknown flow")
	}
}

func TestGetSyncRun(t *testing.T) {
	database := setupRunsTestDB(t)
	seedRun(t, database, "run-a", models.FlowConversions, time.Now().UTC(), "operation 1: invalid hashed email")

	h := NewRunHandlers(database)

	_, out, err := h.GetSyncRun(context.Background(), &mcp.CallToolRequest{}, GetSyncRunInput{ID: "run-a"})
	if err != nil {
		t.Fatalf("GetSyncRun failed: %v", err)
	}
	if out.Result.Failed != 1 {
		t.Errorf("Expected 1 failed record, got %d", out.Result.Failed)
	}
	if len(out.Failures) != 1 || out.Failures[0] != "operation 1: invalid hashed email" {
		t.Errorf("Expected stored failure message, got %v", out.Failures)
	}
	if out.FinishedAt == "" {
		t.Error("Expected finished_at to be set")
	}

	if _, _, err := h.GetSyncRun(context.Background(), &mcp.CallToolRequest{}, GetSyncRunInput{ID: "missing"}); err == nil {
		t.Error("Expected error for missing run")
	}
	if _, _, err := h.GetSyncRun(context.Background(), &mcp.CallToolRequest{}, GetSyncRunInput{}); err == nil {
		t.Error("Expected error for empty id")
	}
}

func TestGetSyncStatus(t *testing.T) {
	database := setupRunsTestDB(t)
	finished := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if err := db.MarkSyncComplete(database, "conversions", "run-a", finished); err != nil {
		t.Fatalf("MarkSyncComplete failed: %v", err)
	}
	msg := "failed to fetch deals"
	if err := db.UpdateSyncStatus(database, "audience", models.SyncStatusError, &msg); err != nil {
		t.Fatalf("UpdateSyncStatus failed: %v", err)
	}

	h := NewRunHandlers(database)
	_, out, err := h.GetSyncStatus(context.Background(), &mcp.CallToolRequest{}, GetSyncStatusInput{})
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if len(out.Flows) != 3 {
		t.Fatalf("Expected 3 flows, got %d", len(out.Flows))
	}

	byFlow := map[string]FlowStatusOutput{}
	for _, f := range out.Flows {
		byFlow[f.Flow] = f
	}

	if got := byFlow["conversions"]; got.Status != models.SyncStatusIdle || got.LastSyncTime != "2026-03-02T08:00:00Z" || got.LastRunID != "run-a" {
		t.Errorf("Unexpected conversions status: %+v", got)
	}
	if got := byFlow["audience"]; got.Status != models.SyncStatusError || got.ErrorMessage != msg {
		t.Errorf("Unexpected audience status: %+v", got)
	}
	if got := byFlow["export"]; got.Status != "never" || got.LastSyncTime != "never" {
		t.Errorf("Unexpected export status: %+v", got)
	}
}

func TestReadResource(t *testing.T) {
	database := setupRunsTestDB(t)
	seedRun(t, database, "run-a", models.FlowExport, time.Now().UTC())

	h := NewResourceHandlers(database)
	read := func(uri string) (*mcp.ReadResourceResult, error) {
		return h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	}

	res, err := read("leadsync://runs")
	if err != nil {
		t.Fatalf("Read runs failed: %v", err)
	}
	var runs []RunOutput
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &runs); err != nil {
		t.Fatalf("Invalid runs JSON: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("Unexpected runs resource: %+v", runs)
	}

	res, err = read("leadsync://runs/run-a")
	if err != nil {
		t.Fatalf("Read run failed: %v", err)
	}
	if res.Contents[0].MIMEType != "application/json" {
		t.Errorf("Expected JSON mime type, got %s", res.Contents[0].MIMEType)
	}

	if _, err := read("leadsync://status"); err != nil {
		t.Errorf("Read status failed: %v", err)
	}
	if _, err := read("leadsync://runs/missing"); err == nil {
		t.Error("Expected error for missing run")
	}
	if _, err := read("crm://contacts"); err == nil {
		t.Error("Expected error for foreign scheme")
	}
	if _, err := read("leadsync://contacts"); err == nil {
		t.Error("Expected error for unknown resource")
	}
}

func TestGetPrompt(t *testing.T) {
	database := setupRunsTestDB(t)
	seedRun(t, database, "run-a", models.FlowConversions, time.Now().UTC(), "operation 0: bad email hash")

	h := NewPromptHandlers(database)
	get := func(name string, args map[string]string) (*mcp.GetPromptResult, error) {
		return h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: name, Arguments: args}})
	}

	res, err := get("diagnose-run", map[string]string{"run_id": "run-a"})
	if err != nil {
		t.Fatalf("diagnose-run failed: %v", err)
	}
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "operation 0: bad email hash") {
		t.Errorf("Expected rejection message in prompt, got:\n%s", text)
	}
	if !strings.Contains(text, "attempted 3, uploaded 2, failed 1") {
		t.Errorf("Expected counters in prompt, got:\n%s", text)
	}

	res, err = get("flow-health", map[string]string{"flow": "audience"})
	if err != nil {
		t.Fatalf("flow-health failed: %v", err)
	}
	if !strings.Contains(res.Messages[0].Content.(*mcp.TextContent).Text, "No runs have been recorded") {
		t.Error("Expected empty-flow note")
	}

	if _, err := get("diagnose-run", nil); err == nil {
		t.Error("Expected error without run_id")
	}
	if _, err := get("flow-health", map[string]string{"flow": "email"}); err == nil {
		t.Error("Expected error for unknown flow")
	}
	if _, err := get("contact-summary", nil); err == nil {
		t.Error("Expected error for unknown prompt")
	}
}
