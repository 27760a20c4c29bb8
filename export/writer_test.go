// ABOUTME: Tests for the Customer Match spreadsheet export
// ABOUTME: Reads written workbooks back with excelize to verify layout and filtering
package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/harperreed/leadsync/models"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)

	// GetRows drops trailing empty cells; pad back to the template width.
	for i := range rows {
		for len(rows[i]) < len(Headers) {
			rows[i] = append(rows[i], "")
		}
	}
	return rows
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrolled.xlsx")
	records := []models.ConversionRecord{
		{HashedEmail: "e1", HashedPhone: "p1"},
		{HashedPhone: "p2", HashedFirstName: "f2", HashedLastName: "l2", PostalCode: "00100", CountryCode: "KE"},
		{HashedFirstName: "only-names"},
	}

	n, err := WriteFile(path, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "records without email or phone are skipped")

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{"e1", "p1", "", "", "", ""}, rows[1])
	assert.Equal(t, []string{"", "p2", "f2", "l2", "KE", "00100"}, rows[2])
}

func TestWriteFileReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrolled.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0600))

	n, err := WriteFile(path, []models.ConversionRecord{{HashedEmail: "e1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, readRows(t, path), 2)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".leadsync-export-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteFileMissingDirectory(t *testing.T) {
	_, err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.xlsx"), nil)
	assert.Error(t, err)
}

func TestRowOmitsPartialAddress(t *testing.T) {
	row := Row(models.ConversionRecord{HashedEmail: "e", HashedFirstName: "f", PostalCode: "00100", CountryCode: "KE"})
	assert.Equal(t, []string{"e", "", "f", "", "", ""}, row)
}
