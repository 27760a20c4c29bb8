// ABOUTME: GAQL search with page-token pagination and exact-name resource lookups
// ABOUTME: Finds conversion actions and user lists by name without trusting partial matches
package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type searchRequest struct {
	Query     string `json:"query"`
	PageToken string `json:"pageToken,omitempty"`
}

type searchResponse struct {
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"nextPageToken"`
}

// Search runs a GAQL query and returns every result row across pages.
func (c *Client) Search(ctx context.Context, query string) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	req := searchRequest{Query: query}
	for {
		var resp searchResponse
		if err := c.post(ctx, c.customerPath("/googleAds:search"), req, &resp); err != nil {
			return nil, fmt.Errorf("failed to search: %w", err)
		}
		rows = append(rows, resp.Results...)
		if resp.NextPageToken == "" {
			return rows, nil
		}
		req.PageToken = resp.NextPageToken
	}
}

// QuoteString renders s as a single-quoted GAQL string literal.
func QuoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

type namedResource struct {
	ResourceName string `json:"resourceName"`
	Name         string `json:"name"`
}

// FindConversionAction returns the resource name of the non-removed conversion
// action called name. ok is false when none exists.
func (c *Client) FindConversionAction(ctx context.Context, name string) (resourceName string, ok bool, err error) {
	query := "SELECT conversion_action.resource_name, conversion_action.name FROM conversion_action" +
		" WHERE conversion_action.name = " + QuoteString(name) +
		" AND conversion_action.status != 'REMOVED'"

	rows, err := c.Search(ctx, query)
	if err != nil {
		return "", false, err
	}
	return firstExact(rows, "conversionAction", name)
}

// FindUserList returns the resource name of the open user list called name.
func (c *Client) FindUserList(ctx context.Context, name string) (resourceName string, ok bool, err error) {
	query := "SELECT user_list.resource_name, user_list.name FROM user_list" +
		" WHERE user_list.name = " + QuoteString(name) +
		" AND user_list.account_user_list_status = 'ENABLED'"

	rows, err := c.Search(ctx, query)
	if err != nil {
		return "", false, err
	}
	return firstExact(rows, "userList", name)
}

// firstExact picks the first row whose field has exactly name. GAQL equality
// is already exact; the check guards against servers that ignore the filter.
func firstExact(rows []json.RawMessage, field, name string) (string, bool, error) {
	for _, row := range rows {
		var wrapper map[string]namedResource
		if err := json.Unmarshal(row, &wrapper); err != nil {
			return "", false, fmt.Errorf("failed to decode %s row: %w", field, err)
		}
		res, ok := wrapper[field]
		if ok && res.Name == name && res.ResourceName != "" {
			return res.ResourceName, true, nil
		}
	}
	return "", false, nil
}
