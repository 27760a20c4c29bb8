// ABOUTME: Customer Match spreadsheet export of hashed identity records
// ABOUTME: Writes the Email, Phone, First Name, Last Name, Country, Zip template with excelize
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/harperreed/leadsync/models"
)

// SheetName is the worksheet holding the rows.
const SheetName = "Customers"

// Headers is the Customer Match upload template header row.
var Headers = []string{"Email", "Phone", "First Name", "Last Name", "Country", "Zip"}

// Row renders a record in template column order. Country and Zip are only
// present when the record carries a complete address.
func Row(r models.ConversionRecord) []string {
	row := []string{r.HashedEmail, r.HashedPhone, r.HashedFirstName, r.HashedLastName, "", ""}
	if r.HasAddress() {
		row[4] = r.CountryCode
		row[5] = r.PostalCode
	}
	return row
}

// WriteFile writes records to path, replacing any existing file atomically.
// It returns the number of data rows written.
func WriteFile(path string, records []models.ConversionRecord) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Headers); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	written := 0
	for i, r := range records {
		if !r.HasIdentifier() {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, written+2)
		if err != nil {
			return written, fmt.Errorf("failed to address row %d: %w", i, err)
		}
		row := Row(r)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return written, fmt.Errorf("failed to write row %d: %w", i, err)
		}
		written++
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".leadsync-export-*.xlsx")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("failed to move workbook into place: %w", err)
	}

	return written, nil
}
