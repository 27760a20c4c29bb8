// ABOUTME: Wire form of hashed user identifiers shared by conversions and customer match
// ABOUTME: Address info is only sent when both hashed names and a postal code are present
package ads

import "github.com/harperreed/leadsync/models"

type addressInfo struct {
	HashedFirstName string `json:"hashedFirstName"`
	HashedLastName  string `json:"hashedLastName"`
	PostalCode      string `json:"postalCode"`
	CountryCode     string `json:"countryCode"`
}

type userIdentifier struct {
	HashedEmail       string       `json:"hashedEmail,omitempty"`
	HashedPhoneNumber string       `json:"hashedPhoneNumber,omitempty"`
	AddressInfo       *addressInfo `json:"addressInfo,omitempty"`
}

// userIdentifiers emits one identifier per populated field, as the API
// accepts only one oneof member per UserIdentifier.
func userIdentifiers(r models.ConversionRecord) []userIdentifier {
	var ids []userIdentifier
	if r.HashedEmail != "" {
		ids = append(ids, userIdentifier{HashedEmail: r.HashedEmail})
	}
	if r.HashedPhone != "" {
		ids = append(ids, userIdentifier{HashedPhoneNumber: r.HashedPhone})
	}
	if r.HasAddress() {
		ids = append(ids, userIdentifier{AddressInfo: &addressInfo{
			HashedFirstName: r.HashedFirstName,
			HashedLastName:  r.HashedLastName,
			PostalCode:      r.PostalCode,
			CountryCode:     r.CountryCode,
		}})
	}
	return ids
}
