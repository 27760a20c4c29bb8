// ABOUTME: Identifier canonicalization for email addresses and phone numbers
// ABOUTME: Produces E.164 phones and lowercase emails; empty string means no usable value
package identity

import (
	"strings"
)

const (
	minE164Digits = 8
	maxE164Digits = 15
)

// NormalizeEmail lowercases and trims an email address. An empty result means
// the contact has no email. NormalizeEmail is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PhoneNormalizer turns local and international phone representations into E.164.
type PhoneNormalizer struct {
	// CountryCode is the dialing code without '+', e.g. "254".
	CountryCode string
	// SubscriberLength is the national number length without the trunk '0'.
	SubscriberLength int
}

// Normalize returns the E.164 form of s, or "" when s cannot be a phone number.
func (n PhoneNormalizer) Normalize(s string) string {
	digits := digitsOnly(s)
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, "00"):
		// international call prefix
		digits = digits[2:]
	case n.SubscriberLength > 0 && len(digits) == n.SubscriberLength+1 && digits[0] == '0':
		digits = n.CountryCode + digits[1:]
	case n.SubscriberLength > 0 && len(digits) == n.SubscriberLength && digits[0] != '0':
		digits = n.CountryCode + digits
	}

	if len(digits) < minE164Digits || len(digits) > maxE164Digits || digits[0] == '0' {
		return ""
	}

	return "+" + digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeName trims a personal name and collapses inner whitespace.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizePostalCode trims a postal code and removes inner spaces.
func NormalizePostalCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
