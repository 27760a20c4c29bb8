// ABOUTME: Writes enrolled CRM contacts to a Customer Match spreadsheet
// ABOUTME: Single-flow binary for cron and CI; exits non-zero when the run fails
package main

import (
	"os"

	"github.com/harperreed/leadsync/cli"
	"github.com/harperreed/leadsync/models"
)

func main() {
	os.Exit(cli.Main(models.FlowExport))
}
