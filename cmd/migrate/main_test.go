// ABOUTME: Tests for ledger maintenance
// ABOUTME: Covers schema creation, dry runs, pruning, backups, and target cache reset
package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
)

func emptyLedger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	return path
}

func TestMaintainMissingFile(t *testing.T) {
	err := maintain(options{dbPath: filepath.Join(t.TempDir(), "nope.db")}, time.Now())
	assert.Error(t, err)
}

func TestMaintainCreatesSchema(t *testing.T) {
	path := emptyLedger(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, maintain(options{dbPath: path, dryRun: true, backup: true}, now))
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	tables, err := getCurrentTables(raw)
	require.NoError(t, err)
	assert.Equal(t, db.Tables, missingTables(tables), "dry run changes nothing")
	require.NoError(t, raw.Close())
	_, err = os.Stat(path + ".backup.20260301-120000")
	assert.True(t, os.IsNotExist(err), "dry run makes no backup")

	require.NoError(t, maintain(options{dbPath: path, backup: true}, now))
	assert.FileExists(t, path+".backup.20260301-120000")

	raw, err = sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	tables, err = getCurrentTables(raw)
	require.NoError(t, err)
	assert.Empty(t, missingTables(tables))
}

func TestMaintainPrunesAndResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ledger, err := db.OpenDatabase(path)
	require.NoError(t, err)

	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	for i, started := range []time.Time{now.AddDate(0, 0, -60), now.AddDate(0, 0, -1)} {
		require.NoError(t, db.SaveRun(ledger, &models.SyncRun{
			ID: string(rune('a' + i)), Flow: models.FlowConversions, Phase: models.PhaseDone, StartedAt: started,
		}))
	}
	require.NoError(t, db.SaveTarget(ledger, models.TargetUserList, "Enrolled", "123", "customers/123/userLists/1"))
	require.NoError(t, ledger.Close())

	require.NoError(t, maintain(options{dbPath: path, pruneDays: 30, resetTargets: true}, now))

	ledger, err = db.OpenDatabase(path)
	require.NoError(t, err)
	defer ledger.Close()

	runs, err := db.ListRuns(ledger, db.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	rn, err := db.GetTarget(ledger, models.TargetUserList, "Enrolled", "123")
	require.NoError(t, err)
	assert.Empty(t, rn)
}
