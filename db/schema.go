// ABOUTME: Run ledger schema definitions
// ABOUTME: Sync state per flow, run summaries, cached target resources, and upload failure diagnostics
package db

import (
	"database/sql"
	"fmt"
)

// Tables lists every table the ledger owns, in creation order.
var Tables = []string{"sync_state", "sync_runs", "sync_targets", "upload_failures"}

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_run_id TEXT,
	status TEXT NOT NULL DEFAULT 'idle',
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	flow TEXT NOT NULL,
	phase TEXT NOT NULL,
	target_kind TEXT,
	target_name TEXT,
	target_resource TEXT,
	result TEXT NOT NULL,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_flow_started ON sync_runs(flow, started_at);

CREATE TABLE IF NOT EXISTS sync_targets (
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	customer_id TEXT NOT NULL DEFAULT '',
	resource_name TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (kind, name, customer_id)
);

CREATE TABLE IF NOT EXISTS upload_failures (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	message TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (run_id) REFERENCES sync_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_upload_failures_run_id ON upload_failures(run_id);
`

// InitSchema creates any missing ledger tables. It is safe to call repeatedly.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
