package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

const (
	defaultAPIBase    = "https://api.xero.com/api.xro/2.0"
	connectionsURL    = "https://api.xero.com/connections"
	tenantHeader      = "Xero-tenant-id"
	invoiceTypeAccRec = "ACCREC" // accounts receivable
	xeroDateFormat    = "2006-01-02"
	requestTimeout    = 30 * time.Second
)

// Client calls the Xero Accounting API on behalf of one connected
// organisation. Requests authenticate through the token source, which
// refreshes and persists tokens transparently.
type Client struct {
	auth     *Authenticator
	apiBase  string
	connsURL string
}

// NewClient creates an accounting API client backed by the authenticator
func NewClient(auth *Authenticator) *Client {
	return &Client{auth: auth, apiBase: defaultAPIBase, connsURL: connectionsURL}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server
func NewClientWithBaseURL(auth *Authenticator, apiBase, connsURL string) *Client {
	return &Client{auth: auth, apiBase: apiBase, connsURL: connsURL}
}

type accountsResponse struct {
	Accounts []struct {
		AccountID string `json:"AccountID"`
		Name      string `json:"Name"`
		Code      string `json:"Code"`
	} `json:"Accounts"`
}

type trackingCategoriesResponse struct {
	TrackingCategories []struct {
		TrackingCategoryID string `json:"TrackingCategoryID"`
		Name               string `json:"Name"`
		Options            []struct {
			TrackingOptionID string `json:"TrackingOptionID"`
			Name             string `json:"Name"`
		} `json:"Options"`
	} `json:"TrackingCategories"`
}

type invoicesResponse struct {
	Invoices []struct {
		InvoiceID string `json:"InvoiceID"`
	} `json:"Invoices"`
}

// Connection is one organisation the token is authorised for
type Connection struct {
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
}

// GetAccounts fetches the chart of accounts keyed by account name
func (c *Client) GetAccounts(ctx context.Context) (models.AccountTable, error) {
	var resp accountsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.apiBase+"/Accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}

	table := make(models.AccountTable, len(resp.Accounts))
	for _, acc := range resp.Accounts {
		table[acc.Name] = models.AccountRef{AccountID: acc.AccountID, Code: acc.Code}
	}
	return table, nil
}

// GetTrackingCategories fetches the classification taxonomy, preserving the
// option order the API returned
func (c *Client) GetTrackingCategories(ctx context.Context) (models.CategoryMapping, error) {
	var resp trackingCategoriesResponse
	if err := c.doJSON(ctx, http.MethodGet, c.apiBase+"/TrackingCategories", nil, &resp); err != nil {
		return models.CategoryMapping{}, fmt.Errorf("fetching tracking categories: %w", err)
	}

	mapping := models.CategoryMapping{}
	for _, cat := range resp.TrackingCategories {
		category := models.TrackingCategory{ID: cat.TrackingCategoryID, Name: cat.Name}
		for _, opt := range cat.Options {
			category.Options = append(category.Options, models.TrackingOption{
				ID:   opt.TrackingOptionID,
				Name: opt.Name,
			})
		}
		mapping.Categories = append(mapping.Categories, category)
	}
	return mapping, nil
}

// CreateInvoice serializes the draft into Xero's invoice schema and creates
// it, returning the new invoice id
func (c *Client) CreateInvoice(ctx context.Context, draft models.InvoiceDraft) (string, error) {
	payload := map[string]interface{}{
		"Invoices": []interface{}{serializeInvoice(draft)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding invoice: %w", err)
	}

	var resp invoicesResponse
	if err := c.doJSON(ctx, http.MethodPost, c.apiBase+"/Invoices", body, &resp); err != nil {
		return "", fmt.Errorf("creating invoice: %w", err)
	}
	if len(resp.Invoices) == 0 {
		return "", fmt.Errorf("creating invoice: ledger returned no invoice record")
	}
	return resp.Invoices[0].InvoiceID, nil
}

// GetConnections lists the organisations the token can act for; used during
// the connect flow to resolve the tenant id
func (c *Client) GetConnections(ctx context.Context, token *oauth2.Token) ([]Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.connsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building connections request: %w", err)
	}
	token.SetAuthHeader(req)

	httpClient := &http.Client{Timeout: requestTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching connections: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading connections response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connections endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var conns []Connection
	if err := json.Unmarshal(raw, &conns); err != nil {
		return nil, fmt.Errorf("decoding connections: %w", err)
	}
	return conns, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out interface{}) error {
	source, tenantID, err := c.auth.TokenSource(ctx)
	if err != nil {
		return err
	}
	token, err := source.Token()
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set(tenantHeader, tenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := &http.Client{Timeout: requestTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ledger API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading ledger response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger API returned %d for %s %s: %s", resp.StatusCode, method, url, raw)
	}
	return json.Unmarshal(raw, out)
}

// serializeInvoice maps the domain draft onto Xero's invoice schema. Line
// tracking refs only carry resolved ids; unresolved branches were already
// omitted upstream.
func serializeInvoice(draft models.InvoiceDraft) map[string]interface{} {
	lines := make([]map[string]interface{}, 0, len(draft.LineItems))
	for _, item := range draft.LineItems {
		line := map[string]interface{}{
			"Description": item.Description,
			"Quantity":    item.Quantity,
			"UnitAmount":  item.UnitAmount.InexactFloat64(),
			"TaxType":     item.TaxType,
		}
		if item.AccountCode != nil {
			line["AccountCode"] = *item.AccountCode
		}
		if len(item.Tracking) > 0 {
			tracking := make([]map[string]interface{}, 0, len(item.Tracking))
			for _, ref := range item.Tracking {
				tracking = append(tracking, map[string]interface{}{
					"TrackingCategoryID": ref.CategoryID,
					"TrackingOptionID":   ref.OptionID,
				})
			}
			line["Tracking"] = tracking
		}
		lines = append(lines, line)
	}

	return map[string]interface{}{
		"Type":         invoiceTypeAccRec,
		"Contact":      map[string]interface{}{"ContactID": draft.ContactRef},
		"Date":         draft.IssueDate.Format(xeroDateFormat),
		"DueDate":      draft.DueDate.Format(xeroDateFormat),
		"Reference":    draft.Reference,
		"CurrencyCode": draft.Currency,
		"Status":       draft.Status,
		"LineItems":    lines,
	}
}
