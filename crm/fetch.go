// ABOUTME: Sequential offset pagination over CRM resources and the contact/deal wire formats
// ABOUTME: Any page failure aborts the whole fetch so no partial universe reaches the join
package crm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/leadsync/models"
)

// SortNewestFirst orders deals by creation time, most recent first. Dedupe
// keeps the first record per person, so this ordering decides which deal wins.
const SortNewestFirst = "-created_at"

// Query bounds a paginated fetch.
type Query struct {
	PageSize      int
	Ceiling       int
	ModifiedSince *time.Time
	Sort          string
}

// FetchAll pages through resource one request at a time until a short page
// or the ceiling. Pages are never fetched concurrently.
func FetchAll[T any](ctx context.Context, c *Client, resource string, q Query) ([]T, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	ceiling := q.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}

	var all []T
	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(offset))
		if q.ModifiedSince != nil {
			params.Set("modifiedSince", q.ModifiedSince.UTC().Format(time.RFC3339))
		}
		if q.Sort != "" {
			params.Set("sort", q.Sort)
		}

		var page []T
		if err := c.get(ctx, resource, params, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch %s at offset %d: %w", resource, offset, err)
		}

		all = append(all, page...)
		c.logger.Debug("fetched page",
			zap.String("resource", resource),
			zap.Int("offset", offset),
			zap.Int("records", len(page)))

		if len(all) >= ceiling {
			if len(all) > ceiling || len(page) == pageSize {
				c.logger.Warn("fetch ceiling reached, remaining records ignored",
					zap.String("resource", resource),
					zap.Int("ceiling", ceiling))
			}
			all = all[:ceiling]
			break
		}
		if len(page) < pageSize {
			break
		}
	}

	return all, nil
}

type contactWire struct {
	ID         flexID                `json:"id"`
	Email      flexString            `json:"email"`
	Attributes map[string]flexString `json:"attributes"`
	ModifiedAt flexString            `json:"modifiedAt"`
}

type dealWire struct {
	ID         flexID `json:"id"`
	Attributes struct {
		DealStage flexString `json:"deal_stage"`
		CreatedAt flexString `json:"created_at"`
		Amount    flexString `json:"amount"`
	} `json:"attributes"`
	LinkedContactIDs []flexID `json:"linkedContactsIds"`
}

// FetchContacts returns every contact matching q. A nil q.ModifiedSince
// fetches the whole contact universe.
func (c *Client) FetchContacts(ctx context.Context, q Query) ([]models.Contact, error) {
	wire, err := FetchAll[contactWire](ctx, c, "contacts", q)
	if err != nil {
		return nil, err
	}

	contacts := make([]models.Contact, 0, len(wire))
	for _, w := range wire {
		modified, err := parseTime(string(w.ModifiedAt))
		if err != nil {
			c.logger.Debug("ignoring contact modifiedAt", zap.String("contact_id", string(w.ID)), zap.Error(err))
		}

		attrs := make(map[string]string, len(w.Attributes))
		for k, v := range w.Attributes {
			attrs[k] = string(v)
		}

		contacts = append(contacts, models.Contact{
			ID:         string(w.ID),
			Email:      string(w.Email),
			Attributes: attrs,
			ModifiedAt: modified,
		})
	}
	return contacts, nil
}

// FetchDeals returns every deal in the order the CRM sorted them.
func (c *Client) FetchDeals(ctx context.Context, q Query) ([]models.Deal, error) {
	wire, err := FetchAll[dealWire](ctx, c, "deals", q)
	if err != nil {
		return nil, err
	}

	deals := make([]models.Deal, 0, len(wire))
	for _, w := range wire {
		created, err := parseTime(string(w.Attributes.CreatedAt))
		if err != nil {
			c.logger.Debug("ignoring deal created_at", zap.String("deal_id", string(w.ID)), zap.Error(err))
		}

		var amount float64
		if raw := strings.TrimSpace(string(w.Attributes.Amount)); raw != "" {
			if amount, err = strconv.ParseFloat(raw, 64); err != nil {
				c.logger.Debug("ignoring deal amount", zap.String("deal_id", string(w.ID)), zap.Error(err))
				amount = 0
			}
		}

		linked := make([]string, 0, len(w.LinkedContactIDs))
		for _, id := range w.LinkedContactIDs {
			if id != "" {
				linked = append(linked, string(id))
			}
		}

		deals = append(deals, models.Deal{
			ID:               string(w.ID),
			StageID:          string(w.Attributes.DealStage),
			LinkedContactIDs: linked,
			CreatedAt:        created,
			Amount:           amount,
		})
	}
	return deals, nil
}
