// ABOUTME: Normalized per-deal identity records built from a resolved CRM contact
// ABOUTME: These hold raw PII and must not outlive the hashing step
package identity

import (
	"time"

	"github.com/harperreed/leadsync/models"
)

// NormalizedRecord is a resolved deal with its contact's canonical identifiers.
// Empty fields mean the identifier is absent.
type NormalizedRecord struct {
	Email          string
	Phone          string
	FirstName      string
	LastName       string
	PostalCode     string
	OrderID        string
	ConversionTime time.Time
	Value          float64
}

// Matchable reports whether the record has an email or a phone.
func (r NormalizedRecord) Matchable() bool {
	return r.Email != "" || r.Phone != ""
}

// Key is the deduplication key: the normalized email, or the phone for
// records that have no email.
func (r NormalizedRecord) Key() string {
	if r.Email != "" {
		return "email:" + r.Email
	}
	if r.Phone != "" {
		return "phone:" + r.Phone
	}
	return ""
}

// Normalizer builds NormalizedRecords from deals and their contacts.
type Normalizer struct {
	Phone PhoneNormalizer
}

// Normalize returns the record for deal as converted by contact. The boolean is
// false when neither email nor phone survives normalization.
func (n Normalizer) Normalize(deal models.Deal, contact models.Contact) (NormalizedRecord, bool) {
	first, last := Names(contact.Attributes)

	rec := NormalizedRecord{
		Email:          NormalizeEmail(contact.Email),
		Phone:          n.Phone.Normalize(PhoneFields.Lookup(contact.Attributes)),
		FirstName:      NormalizeName(first),
		LastName:       NormalizeName(last),
		PostalCode:     NormalizePostalCode(PostalCodeFields.Lookup(contact.Attributes)),
		OrderID:        deal.ID,
		ConversionTime: deal.CreatedAt,
		Value:          deal.Amount,
	}

	if !rec.Matchable() {
		return NormalizedRecord{}, false
	}
	return rec, true
}
