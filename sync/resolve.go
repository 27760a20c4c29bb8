// ABOUTME: Joins conversion deals to the contacts fetched in the same run
// ABOUTME: A deal whose linked contacts were not fetched is unresolved, not failed
package sync

import "github.com/harperreed/leadsync/models"

// ContactIndex maps contact ids to contacts for one run.
type ContactIndex map[string]models.Contact

// IndexContacts indexes contacts by id. The first contact seen for an id wins.
func IndexContacts(contacts []models.Contact) ContactIndex {
	idx := make(ContactIndex, len(contacts))
	for _, c := range contacts {
		if c.ID == "" {
			continue
		}
		if _, exists := idx[c.ID]; !exists {
			idx[c.ID] = c
		}
	}
	return idx
}

// Resolve returns the first linked contact of deal that is in the index.
func (idx ContactIndex) Resolve(deal models.Deal) (models.Contact, bool) {
	for _, id := range deal.LinkedContactIDs {
		if c, ok := idx[id]; ok {
			return c, true
		}
	}
	return models.Contact{}, false
}
