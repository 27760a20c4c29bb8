// ABOUTME: Tests for identifier normalization, field lookup, deduplication, and hashing
// ABOUTME: Covers the email/phone canonical forms and first-occurrence dedupe policy
package identity

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/models"
)

var kenya = PhoneNormalizer{CountryCode: "254", SubscriberLength: 9}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice@Example.com", "alice@example.com"},
		{"  bob@example.com\t", "bob@example.com"},
		{"ALICE@EXAMPLE.COM", "alice@example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		result := NormalizeEmail(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalizeEmailIdempotent(t *testing.T) {
	for _, in := range []string{" A@X.com ", "b@y.org", "", "MiXeD.Case@Host.IO"} {
		once := NormalizeEmail(in)
		assert.Equal(t, once, NormalizeEmail(once), "input %q", in)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0712345678", "+254712345678"},
		{"712345678", "+254712345678"},
		{"+254 712 345 678", "+254712345678"},
		{"254-712-345-678", "+254712345678"},
		{"00254712345678", "+254712345678"},
		{"(0712) 345-678", "+254712345678"},
		{"+447911123456", "+447911123456"},
		{"", ""},
		{"n/a", ""},
		{"12345", ""},
		{"1234567890123456", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, kenya.Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalizeNameAndPostal(t *testing.T) {
	assert.Equal(t, "mary jane", NormalizeName("  Mary   Jane "))
	assert.Equal(t, "SW1A1AA", NormalizePostalCode(" sw1a 1aa "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestFieldLookupPriority(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string]string
		expected string
	}{
		{"nil attrs", nil, ""},
		{"primary key", map[string]string{"phone": "0711", "mobile": "0722"}, "0711"},
		{"blank primary falls through", map[string]string{"phone": "  ", "mobile": "0722"}, "0722"},
		{"whatsapp variant", map[string]string{"whatsapp_number": "0733"}, "0733"},
		{"capitalized key", map[string]string{"Phone_Number": " 0744 "}, "0744"},
		{"unknown key", map[string]string{"fax": "0755"}, ""},
		{"case variants pick sorted key", map[string]string{"Phone": "0711111111", "PHONE": "0722222222"}, "0722222222"},
		{"blank case variant falls through", map[string]string{"PHONE": " ", "Phone": "0711111111"}, "0711111111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PhoneFields.Lookup(tt.attrs))
		})
	}
}

func TestFieldLookupCaseVariantsStable(t *testing.T) {
	attrs := map[string]string{"Phone": "0711111111", "PHONE": "0722222222", "Mobile": "0733333333"}
	first := PhoneFields.Lookup(attrs)
	for i := 0; i < 200; i++ {
		require.Equal(t, first, PhoneFields.Lookup(attrs), "lookup must not depend on map order")
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]string
		first string
		last  string
	}{
		{"dedicated fields", map[string]string{"first_name": "Ada", "last_name": "Lovelace"}, "Ada", "Lovelace"},
		{"full name split", map[string]string{"name": "Grace Brewster Hopper"}, "Grace", "Brewster Hopper"},
		{"single full name", map[string]string{"name": "Cher"}, "Cher", ""},
		{"first plus full", map[string]string{"firstname": "Alan", "full_name": "Alan Turing"}, "Alan", "Turing"},
		{"nothing", map[string]string{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := Names(tt.attrs)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestNormalizerExcludesUnmatchable(t *testing.T) {
	n := Normalizer{Phone: kenya}
	deal := models.Deal{ID: "10", CreatedAt: time.Now()}

	_, ok := n.Normalize(deal, models.Contact{ID: "1", Attributes: map[string]string{"phone": "not a number"}})
	assert.False(t, ok, "contact with no email and unparseable phone must be excluded")

	rec, ok := n.Normalize(deal, models.Contact{ID: "2", Attributes: map[string]string{"mobile": "0712345678"}})
	require.True(t, ok)
	assert.Equal(t, "+254712345678", rec.Phone)
	assert.Equal(t, "10", rec.OrderID)
}

func TestDedupeFirstOccurrenceWins(t *testing.T) {
	records := []NormalizedRecord{
		{Email: "a@x.com", OrderID: "3"},
		{Email: "b@x.com", OrderID: "2"},
		{Email: "a@x.com", OrderID: "1"},
		{Phone: "+254712345678", OrderID: "4"},
		{Phone: "+254712345678", OrderID: "5"},
		{OrderID: "6"},
	}

	kept, dropped := Dedupe(records)

	want := []NormalizedRecord{
		{Email: "a@x.com", OrderID: "3"},
		{Email: "b@x.com", OrderID: "2"},
		{Phone: "+254712345678", OrderID: "4"},
	}
	if diff := cmp.Diff(want, kept); diff != "" {
		t.Errorf("Dedupe mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, dropped)
}

func TestDedupeEmailKeyIgnoresPhone(t *testing.T) {
	records := []NormalizedRecord{
		{Email: "a@x.com", Phone: "+254700000001", OrderID: "1"},
		{Email: "a@x.com", Phone: "+254700000002", OrderID: "2"},
	}

	kept, dropped := Dedupe(records)
	require.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].OrderID)
	assert.Equal(t, 1, dropped)
}

func TestHash(t *testing.T) {
	assert.Equal(t, "478abec7430569163161dfea8513b8ce89d05f559456a26e945c66e1fe55a29d", Hash("a@x.com"))
	assert.Equal(t, Hash("a@x.com"), Hash("  A@X.com "), "hash lowercases and trims")
	assert.Equal(t, Hash("+254712345678"), Hash("+254712345678"), "hash is deterministic")
	assert.Equal(t, "7e68ed1fbff891757a23ef26f54dd9de094c47613a21f736deb30c14b70e8127", Hash("+254712345678"))
	assert.Equal(t, "", Hash(""))
	assert.Equal(t, "", Hash("   "))
}

func TestHashRecordFieldsIndependently(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NormalizedRecord{
		Email:          "alice@example.com",
		FirstName:      "alice",
		LastName:       "smith",
		PostalCode:     "00100",
		OrderID:        "42",
		ConversionTime: when,
		Value:          1500,
	}

	out := HashRecord(rec, "KES", "KE")

	assert.Equal(t, "ff8d9819fc0e12bf0d24892e45987e249a28dce836a85cad60e28eaaa8c6d976", out.HashedEmail)
	assert.Empty(t, out.HashedPhone)
	assert.Equal(t, Hash("alice"), out.HashedFirstName)
	assert.Equal(t, Hash("smith"), out.HashedLastName)
	assert.NotEqual(t, Hash("alicesmith"), out.HashedFirstName)
	assert.Equal(t, "00100", out.PostalCode)
	assert.Equal(t, "KE", out.CountryCode)
	assert.Equal(t, "42", out.OrderID)
	assert.Equal(t, when, out.ConversionTime)
	assert.Equal(t, "KES", out.Currency)
	assert.True(t, out.HasAddress())
}

func TestHashRecordDropsPartialAddress(t *testing.T) {
	out := HashRecord(NormalizedRecord{Email: "a@x.com", FirstName: "alice", PostalCode: "00100"}, "KES", "KE")
	assert.Empty(t, out.PostalCode)
	assert.Empty(t, out.CountryCode)
	assert.False(t, out.HasAddress())
}
