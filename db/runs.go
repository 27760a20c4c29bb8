// ABOUTME: Database operations for the sync_runs and upload_failures tables
// ABOUTME: Persists run summaries and platform failure messages; never stores PII
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/leadsync/models"
)

// MaxStoredFailures caps the failure messages kept per run.
const MaxStoredFailures = 500

// RunFilter narrows ListRuns.
type RunFilter struct {
	Flow  models.Flow
	Limit int
}

// SaveRun inserts or replaces a run summary together with its failure messages.
func SaveRun(db *sql.DB, run *models.SyncRun) error {
	result, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	var kind, name, resource sql.NullString
	if run.Target != nil {
		kind = sql.NullString{String: run.Target.Kind, Valid: true}
		name = sql.NullString{String: run.Target.Name, Valid: true}
		resource = sql.NullString{String: run.Target.ResourceName, Valid: run.Target.ResourceName != ""}
	}
	var errorMsg sql.NullString
	if run.Error != "" {
		errorMsg = sql.NullString{String: run.Error, Valid: true}
	}
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO sync_runs (id, flow, phase, target_kind, target_name, target_resource, result, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			target_kind = excluded.target_kind,
			target_name = excluded.target_name,
			target_resource = excluded.target_resource,
			result = excluded.result,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at
	`, run.ID, string(run.Flow), string(run.Phase), kind, name, resource, string(result), errorMsg, run.StartedAt.UTC(), finishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM upload_failures WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear upload failures: %w", err)
	}

	now := time.Now().UTC()
	for i, msg := range run.Failures {
		if i >= MaxStoredFailures {
			break
		}
		_, err := tx.Exec(`
			INSERT INTO upload_failures (id, run_id, position, message, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.New().String(), run.ID, i, msg, now)
		if err != nil {
			return fmt.Errorf("failed to save upload failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, flow, phase, target_kind, target_name, target_resource, result, error_message, started_at, finished_at`

func scanRun(row rowScanner) (*models.SyncRun, error) {
	var run models.SyncRun
	var flow, phase, result string
	var kind, name, resource, errorMsg sql.NullString
	var finishedAt sql.NullTime

	if err := row.Scan(&run.ID, &flow, &phase, &kind, &name, &resource, &result, &errorMsg, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Flow = models.Flow(flow)
	run.Phase = models.Phase(phase)
	run.Error = errorMsg.String
	if kind.Valid {
		run.Target = &models.Target{Kind: kind.String, Name: name.String, ResourceName: resource.String}
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if err := json.Unmarshal([]byte(result), &run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	return &run, nil
}

// GetRun returns a run with its failure messages, or nil if id is unknown.
func GetRun(db *sql.DB, id string) (*models.SyncRun, error) {
	run, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := db.Query(`SELECT message FROM upload_failures WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("failed to scan upload failure: %w", err)
		}
		run.Failures = append(run.Failures, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload failures: %w", err)
	}

	return run, nil
}

// ListRuns returns run summaries newest first. Failure messages are not loaded.
func ListRuns(db *sql.DB, filter RunFilter) ([]models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs`
	var args []any
	if filter.Flow != "" {
		query += ` WHERE flow = ?`
		args = append(args, string(filter.Flow))
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// PruneRuns deletes runs started before cutoff and returns how many were removed.
func PruneRuns(db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM sync_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}
