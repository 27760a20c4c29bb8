// ABOUTME: Maintenance utility for the run ledger database.
// ABOUTME: Creates missing tables, prunes old runs, and clears cached target resources.

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/db"
)

type options struct {
	dbPath       string
	dryRun       bool
	backup       bool
	pruneDays    int
	resetTargets bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dbPath, "db", config.DefaultDBPath(), "Path to the run ledger")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Show what would happen without making changes")
	flag.BoolVar(&opts.backup, "backup", true, "Create backup before changing the ledger")
	flag.IntVar(&opts.pruneDays, "prune-days", 0, "Delete runs older than this many days (0 keeps all)")
	flag.BoolVar(&opts.resetTargets, "reset-targets", false, "Forget cached conversion action and user list resources")
	flag.Parse()

	if err := maintain(opts, time.Now()); err != nil {
		log.Fatalf("Maintenance failed: %v", err)
	}

	log.Println("Ledger maintenance completed successfully")
}

func maintain(opts options, now time.Time) error {
	if _, err := os.Stat(opts.dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", opts.dbPath)
	}

	if opts.backup && !opts.dryRun {
		backupPath := fmt.Sprintf("%s.backup.%s", opts.dbPath, now.Format("20060102-150405"))
		log.Printf("Creating backup: %s", backupPath)

		input, err := os.ReadFile(opts.dbPath)
		if err != nil {
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		log.Printf("Backup created successfully")
	}

	database, err := sql.Open("sqlite3", opts.dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	tables, err := getCurrentTables(database)
	if err != nil {
		return fmt.Errorf("failed to get current tables: %w", err)
	}
	log.Printf("Current tables: %v", tables)

	missing := missingTables(tables)
	cutoff := now.AddDate(0, 0, -opts.pruneDays)

	if opts.dryRun {
		log.Printf("[DRY RUN] Would perform the following actions:")
		if len(missing) > 0 {
			log.Printf("[DRY RUN] - Create tables: %v", missing)
		} else {
			log.Printf("[DRY RUN] - Ledger tables already exist")
		}
		if opts.pruneDays > 0 {
			log.Printf("[DRY RUN] - Delete runs started before %s", cutoff.UTC().Format(time.RFC3339))
		}
		if opts.resetTargets {
			log.Printf("[DRY RUN] - Clear cached target resources")
		}
		return nil
	}

	if len(missing) > 0 {
		log.Printf("Creating ledger tables: %v", missing)
		if err := db.InitSchema(database); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	if opts.pruneDays > 0 {
		n, err := db.PruneRuns(database, cutoff)
		if err != nil {
			return err
		}
		log.Printf("Pruned %d run(s) started before %s", n, cutoff.UTC().Format(time.DateOnly))
	}

	if opts.resetTargets {
		n, err := db.ClearTargets(database)
		if err != nil {
			return err
		}
		log.Printf("Cleared %d cached target(s)", n)
	}

	return nil
}

func getCurrentTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func missingTables(existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}

	var missing []string
	for _, t := range db.Tables {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
