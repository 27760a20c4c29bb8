// ABOUTME: Uploads enrolled CRM deals as Google Ads enhanced conversions
// ABOUTME: Single-flow binary for cron and CI; exits non-zero when the run fails
package main

import (
	"os"

	"github.com/harperreed/leadsync/cli"
	"github.com/harperreed/leadsync/models"
)

func main() {
	os.Exit(cli.Main(models.FlowConversions))
}
