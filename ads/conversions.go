// ABOUTME: Enhanced conversions for leads via customers:uploadClickConversions
// ABOUTME: Sends one partial-failure request per batch and reports rejected indices
package ads

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
)

// ConversionTimeLayout is the timestamp format Google Ads expects.
const ConversionTimeLayout = "2006-01-02 15:04:05-07:00"

type clickConversion struct {
	ConversionAction   string           `json:"conversionAction"`
	ConversionDateTime string           `json:"conversionDateTime"`
	ConversionValue    float64          `json:"conversionValue"`
	CurrencyCode       string           `json:"currencyCode,omitempty"`
	OrderID            string           `json:"orderId,omitempty"`
	UserIdentifiers    []userIdentifier `json:"userIdentifiers"`
}

type uploadClickConversionsRequest struct {
	Conversions    []clickConversion `json:"conversions"`
	PartialFailure bool              `json:"partialFailure"`
}

type uploadClickConversionsResponse struct {
	PartialFailureError *Status `json:"partialFailureError"`
}

// UploadClickConversions uploads records as conversions of conversionAction in
// a single request. Rejected records come back in the PartialFailure, not as an error.
func (c *Client) UploadClickConversions(ctx context.Context, conversionAction string, records []models.ConversionRecord) (PartialFailure, error) {
	req := uploadClickConversionsRequest{
		Conversions:    make([]clickConversion, 0, len(records)),
		PartialFailure: true,
	}
	for _, r := range records {
		req.Conversions = append(req.Conversions, clickConversion{
			ConversionAction:   conversionAction,
			ConversionDateTime: r.ConversionTime.Format(ConversionTimeLayout),
			ConversionValue:    r.Value,
			CurrencyCode:       r.Currency,
			OrderID:            r.OrderID,
			UserIdentifiers:    userIdentifiers(r),
		})
	}

	var resp uploadClickConversionsResponse
	if err := c.post(ctx, c.customerPath(":uploadClickConversions"), req, &resp); err != nil {
		return PartialFailure{}, fmt.Errorf("failed to upload conversions: %w", err)
	}
	return ParsePartialFailure(resp.PartialFailureError), nil
}
