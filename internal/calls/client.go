package calls

import (
	"context"
	"errors"
	"net/url"

	"github.com/callsight/console/internal/api"
)

// ErrMissingCompany is returned when a lookup is attempted without a
// company id, which happens when the current user has none assigned.
var ErrMissingCompany = errors.New("calls: no company id")

// Client fetches call records through the API gateway. Authorization is
// entirely server-side: a lapsed session surfaces as a 401 *api.Error,
// never as an implicit refresh or retry.
type Client struct {
	api *api.Client
}

// NewClient creates a calls client on top of the gateway client.
func NewClient(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// CompanyCalls returns all call records for a company.
func (c *Client) CompanyCalls(ctx context.Context, companyID string) ([]CallRecord, error) {
	if companyID == "" {
		return nil, ErrMissingCompany
	}

	var records []CallRecord
	if err := c.api.Get(ctx, "/calls/company/"+url.PathEscape(companyID), &records); err != nil {
		return nil, err
	}

	return records, nil
}

// ActiveCompanyCalls returns the calls currently in flight for a company.
func (c *Client) ActiveCompanyCalls(ctx context.Context, companyID string) ([]CallRecord, error) {
	if companyID == "" {
		return nil, ErrMissingCompany
	}

	var records []CallRecord
	if err := c.api.Get(ctx, "/calls/company/"+url.PathEscape(companyID)+"/active", &records); err != nil {
		return nil, err
	}

	return records, nil
}
