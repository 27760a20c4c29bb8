// ABOUTME: Entry point for the leadsync CLI
// ABOUTME: Routes to sync flows, run ledger commands, OAuth setup, or the MCP server
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/leadsync/cli"
	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/db"
)

const version = "0.4.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Run ledger path (default: ~/.local/share/leadsync/leadsync.db)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("leadsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "sync":
		flow, err := cli.ParseFlowArg(commandArgs)
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			printUsage()
			os.Exit(1)
		}
		if *dbPath != "" {
			_ = os.Setenv(config.EnvPrefix+"_DB_PATH", *dbPath)
		}
		os.Exit(cli.Main(flow))

	case "runs":
		database := openLedger(*dbPath)
		defer database.Close()
		if err := cli.RunsCommand(database, os.Stdout, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "status":
		database := openLedger(*dbPath)
		defer database.Close()
		if err := cli.StatusCommand(database, os.Stdout, commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "auth":
		if err := cli.AuthCommand(commandArgs); err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "mcp":
		database := openLedger(*dbPath)
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := cli.MCPCommand(ctx, database, version); err != nil {
			log.Fatalf("MCP server failed: %v", err)
		}

	case "version":
		fmt.Printf("leadsync version %s\n", version)

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func openLedger(dbPath string) *sql.DB {
	database, err := db.OpenDatabase(getDatabasePath(dbPath))
	if err != nil {
		log.Fatalf("Failed to open run ledger: %v", err)
	}
	return database
}

func getDatabasePath(dbPath string) string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv(config.EnvPrefix + "_DB_PATH"); env != "" {
		return env
	}
	return config.DefaultDBPath()
}

func printUsage() {
	fmt.Printf(`leadsync v%s - CRM enrollment to Google Ads sync

USAGE:
  leadsync [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Run ledger path (default: ~/.local/share/leadsync/leadsync.db)

COMMANDS:
  sync <flow>            Run one sync flow (conversions, audience, export)
  runs                   List past sync runs
  status                 Show the last sync of every flow
  auth                   Mint a Google Ads refresh token in the browser
  mcp                    Start MCP server over stdio
  version                Show version

SYNC FLOWS:
  leadsync sync conversions   Upload enrolled deals as enhanced conversions
  leadsync sync audience      Add enrolled contacts to a Customer Match list
  leadsync sync export        Write a Customer Match spreadsheet (LEADSYNC_EXPORT_PATH)

RUN LEDGER:
  leadsync runs
    --flow <flow>             Filter by flow
    --limit <n>               Max results (default: 20)
    --id <run-id>             Show one run with its rejection messages

  leadsync status

AUTH:
  leadsync auth
    --timeout <duration>      How long to wait for the callback (default: 5m)
    --no-browser              Print the URL without opening a browser

CONFIGURATION:
  Settings come from LEADSYNC_* environment variables, a .env file in the
  working directory, or ~/.config/leadsync/config.yaml. The environment wins.

  Required:   LEADSYNC_CRM_BASE_URL, LEADSYNC_CRM_API_KEY,
              LEADSYNC_CAMPAIGN_START, LEADSYNC_STAGE_ALLOWLIST
  Google Ads: LEADSYNC_ADS_DEVELOPER_TOKEN, LEADSYNC_ADS_CLIENT_ID,
              LEADSYNC_ADS_CLIENT_SECRET, LEADSYNC_ADS_REFRESH_TOKEN,
              LEADSYNC_ADS_CUSTOMER_ID, LEADSYNC_ADS_LOGIN_CUSTOMER_ID
  Targets:    LEADSYNC_CONVERSION_ACTION_NAME, LEADSYNC_AUDIENCE_LIST_NAME

EXAMPLES:
  # Upload this campaign's enrollments as conversions
  leadsync sync conversions

  # Check what the last runs did
  leadsync runs --limit 5

`, version)
}
