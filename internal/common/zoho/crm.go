// Package zoho is a minimal Zoho CRM v2 client for creating leads.
package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	commonhttp "leadflow/internal/common/http"
)

const (
	DefaultAPIDomain = "https://www.zohoapis.com"
	LeadSource       = "Slack Bot"

	errorBodyLimit = 512
)

type CRMClient struct {
	httpClient *commonhttp.Client
}

// Lead is one record of the Leads module.
type Lead struct {
	LastName    string `json:"Last_Name"`
	FirstName   string `json:"First_Name,omitempty"`
	Phone       string `json:"Phone,omitempty"`
	City        string `json:"City,omitempty"`
	LeadSource  string `json:"Lead_Source"`
	Description string `json:"Description,omitempty"`
}

type CreateLeadResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

// Succeeded reports whether the first record was accepted.
func (r *CreateLeadResponse) Succeeded() bool {
	return len(r.Data) > 0 && r.Data[0].Code == "SUCCESS"
}

func (r *CreateLeadResponse) RecordID() string {
	if len(r.Data) == 0 {
		return ""
	}
	return r.Data[0].Details.ID
}

func (r *CreateLeadResponse) Message() string {
	if len(r.Data) == 0 {
		return "no data in response"
	}
	return r.Data[0].Message
}

func NewCRMClient(timeout time.Duration) *CRMClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CRMClient{httpClient: commonhttp.NewClient(timeout)}
}

// LeadsURL is the Leads endpoint under an installation's API domain.
func LeadsURL(apiDomain string) string {
	if apiDomain == "" {
		apiDomain = DefaultAPIDomain
	}
	return strings.TrimRight(apiDomain, "/") + "/crm/v2/Leads"
}

// CreateLead posts a single lead. A response that Zoho rejected is returned
// with a nil error; callers check Succeeded.
func (c *CRMClient) CreateLead(ctx context.Context, apiDomain, accessToken string, lead Lead) (*CreateLeadResponse, interface{}, error) {
	payload := map[string]interface{}{
		"data": []Lead{lead},
	}

	resp, err := c.httpClient.PostJSON(ctx, LeadsURL(apiDomain), map[string]string{
		"Authorization": "Zoho-oauthtoken " + accessToken,
	}, payload)
	if err != nil {
		return nil, nil, err
	}

	var raw interface{}
	if err := resp.Decode(&raw); err != nil {
		body := resp.Snippet(errorBodyLimit)
		return nil, body, fmt.Errorf("create lead: %w: %s", err, body)
	}

	var createResp CreateLeadResponse
	if err := json.Unmarshal(resp.Body, &createResp); err != nil {
		return nil, raw, fmt.Errorf("create lead (status %d): unexpected response shape: %w", resp.StatusCode, err)
	}
	return &createResp, raw, nil
}
