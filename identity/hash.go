// ABOUTME: One-way SHA-256 hashing of identifiers for privacy-preserving matching
// ABOUTME: Each identifier class is hashed on its own; fields are never concatenated
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/harperreed/leadsync/models"
)

// Hash returns the hex SHA-256 of the lowercased, trimmed value. An empty value
// hashes to "" so absent identifiers stay absent.
func Hash(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// HashRecord converts a normalized record into an upload record. Postal code
// and region travel in clear text and only when both names are present, which
// is how Google Ads expects address identifiers.
func HashRecord(r NormalizedRecord, currency, region string) models.ConversionRecord {
	out := models.ConversionRecord{
		HashedEmail:     Hash(r.Email),
		HashedPhone:     Hash(r.Phone),
		HashedFirstName: Hash(r.FirstName),
		HashedLastName:  Hash(r.LastName),
		ConversionTime:  r.ConversionTime,
		OrderID:         r.OrderID,
		Value:           r.Value,
		Currency:        currency,
	}

	if out.HashedFirstName != "" && out.HashedLastName != "" && r.PostalCode != "" {
		out.PostalCode = r.PostalCode
		out.CountryCode = region
	}

	return out
}
