// ABOUTME: Prioritized lookup of identity fields across loosely named CRM attributes
// ABOUTME: Each identifier class lists the attribute keys it may live under, best first
package identity

import (
	"sort"
	"strings"
)

// FieldLookup is an ordered list of attribute keys. The first key holding a
// non-blank value wins. Keys match case-insensitively.
type FieldLookup []string

// Known CRM attribute variants. Add new variants here with a test case.
var (
	PhoneFields      = FieldLookup{"phone", "phone_number", "mobile", "mobile_phone", "mobile_number", "whatsapp", "whatsapp_number", "telephone"}
	FirstNameFields  = FieldLookup{"first_name", "firstname", "given_name", "fname"}
	LastNameFields   = FieldLookup{"last_name", "lastname", "surname", "family_name", "lname"}
	FullNameFields   = FieldLookup{"name", "full_name", "fullname", "display_name"}
	PostalCodeFields = FieldLookup{"postal_code", "postcode", "zip", "zip_code", "zipcode"}
)

// Lookup returns the trimmed value of the first present key, or "".
func (f FieldLookup) Lookup(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}

	for _, key := range f {
		if v, ok := attrs[key]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}

	// Slow path for CRMs that capitalize their keys. Keys are walked in sorted
	// order so case variants of one key always resolve the same way.
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	folded := make(map[string]string, len(attrs))
	for _, k := range keys {
		v := strings.TrimSpace(attrs[k])
		if v == "" {
			continue
		}
		lk := strings.ToLower(k)
		if _, seen := folded[lk]; !seen {
			folded[lk] = v
		}
	}
	for _, key := range f {
		if v := strings.TrimSpace(folded[key]); v != "" {
			return v
		}
	}

	return ""
}

// Names extracts first and last name, splitting a full name when the
// dedicated fields are missing.
func Names(attrs map[string]string) (first, last string) {
	first = FirstNameFields.Lookup(attrs)
	last = LastNameFields.Lookup(attrs)
	if first != "" && last != "" {
		return first, last
	}

	parts := strings.Fields(FullNameFields.Lookup(attrs))
	if len(parts) == 0 {
		return first, last
	}
	if first == "" {
		first = parts[0]
	}
	if last == "" && len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}
