// ABOUTME: Database operations for the sync_targets table
// ABOUTME: Caches resolved conversion action and user list resource names between runs
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// GetTarget returns the cached resource name for a target, or "" if none.
func GetTarget(db *sql.DB, kind, name, customerID string) (string, error) {
	var resource string
	err := db.QueryRow(`
		SELECT resource_name FROM sync_targets
		WHERE kind = ? AND name = ? AND customer_id = ?
	`, kind, name, customerID).Scan(&resource)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get target: %w", err)
	}
	return resource, nil
}

// SaveTarget caches a resolved resource name.
func SaveTarget(db *sql.DB, kind, name, customerID, resourceName string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO sync_targets (kind, name, customer_id, resource_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, name, customer_id) DO UPDATE SET
			resource_name = excluded.resource_name,
			updated_at = excluded.updated_at
	`, kind, name, customerID, resourceName, now, now)
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// ClearTargets drops every cached resource name so the next run searches again.
func ClearTargets(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM sync_targets`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear targets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared targets: %w", err)
	}
	return n, nil
}
