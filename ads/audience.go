// ABOUTME: Customer Match audiences: CRM-based user lists and offline user data jobs
// ABOUTME: A job is created, filled with member operations, then run asynchronously
package ads

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
)

// MaxLifespanDays is the longest membership lifespan Google Ads allows.
const MaxLifespanDays = 540

type crmBasedUserList struct {
	UploadKeyType string `json:"uploadKeyType"`
}

type userList struct {
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	MembershipLifeSpan int              `json:"membershipLifeSpan"`
	CRMBasedUserList   crmBasedUserList `json:"crmBasedUserList"`
}

type userListOperation struct {
	Create userList `json:"create"`
}

type mutateUserListsRequest struct {
	Operations []userListOperation `json:"operations"`
}

type mutateResponse struct {
	Results []struct {
		ResourceName string `json:"resourceName"`
	} `json:"results"`
}

// CreateUserList creates a contact-info Customer Match list and returns its
// resource name. lifespanDays is clamped to MaxLifespanDays.
func (c *Client) CreateUserList(ctx context.Context, name string, lifespanDays int) (string, error) {
	if lifespanDays <= 0 || lifespanDays > MaxLifespanDays {
		lifespanDays = MaxLifespanDays
	}
	req := mutateUserListsRequest{Operations: []userListOperation{{
		Create: userList{
			Name:               name,
			Description:        "Customer Match list synced from CRM deals",
			MembershipLifeSpan: lifespanDays,
			CRMBasedUserList:   crmBasedUserList{UploadKeyType: "CONTACT_INFO"},
		},
	}}}

	var resp mutateResponse
	if err := c.post(ctx, c.customerPath("/userLists:mutate"), req, &resp); err != nil {
		return "", fmt.Errorf("failed to create user list: %w", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].ResourceName == "" {
		return "", fmt.Errorf("failed to create user list: empty mutate response")
	}
	return resp.Results[0].ResourceName, nil
}

type offlineUserDataJob struct {
	Type                          string `json:"type"`
	CustomerMatchUserListMetadata struct {
		UserList string `json:"userList"`
	} `json:"customerMatchUserListMetadata"`
}

type createJobRequest struct {
	Job offlineUserDataJob `json:"job"`
}

type createJobResponse struct {
	ResourceName string `json:"resourceName"`
}

// CreateCustomerMatchJob creates an offline user data job feeding userList.
func (c *Client) CreateCustomerMatchJob(ctx context.Context, userList string) (string, error) {
	var req createJobRequest
	req.Job.Type = "CUSTOMER_MATCH_USER_LIST"
	req.Job.CustomerMatchUserListMetadata.UserList = userList

	var resp createJobResponse
	if err := c.post(ctx, c.customerPath("/offlineUserDataJobs:create"), req, &resp); err != nil {
		return "", fmt.Errorf("failed to create offline user data job: %w", err)
	}
	if resp.ResourceName == "" {
		return "", fmt.Errorf("failed to create offline user data job: empty response")
	}
	return resp.ResourceName, nil
}

type userData struct {
	UserIdentifiers []userIdentifier `json:"userIdentifiers"`
}

type jobOperation struct {
	Create userData `json:"create"`
}

type addOperationsRequest struct {
	EnablePartialFailure bool           `json:"enablePartialFailure"`
	Operations           []jobOperation `json:"operations"`
}

type addOperationsResponse struct {
	PartialFailureError *Status `json:"partialFailureError"`
}

// AddJobOperations adds one member per record to job.
func (c *Client) AddJobOperations(ctx context.Context, job string, records []models.ConversionRecord) (PartialFailure, error) {
	req := addOperationsRequest{
		EnablePartialFailure: true,
		Operations:           make([]jobOperation, 0, len(records)),
	}
	for _, r := range records {
		req.Operations = append(req.Operations, jobOperation{Create: userData{UserIdentifiers: userIdentifiers(r)}})
	}

	var resp addOperationsResponse
	if err := c.post(ctx, job+":addOperations", req, &resp); err != nil {
		return PartialFailure{}, fmt.Errorf("failed to add job operations: %w", err)
	}
	return ParsePartialFailure(resp.PartialFailureError), nil
}

// RunJob starts processing job. Google Ads processes it asynchronously; the
// returned operation name can be polled but the sync does not wait for it.
func (c *Client) RunJob(ctx context.Context, job string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if err := c.post(ctx, job+":run", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("failed to run offline user data job: %w", err)
	}
	return resp.Name, nil
}
