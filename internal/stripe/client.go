// Package stripe is the payment-processor adapter. It deserializes the
// processor's loosely-typed API payloads into the typed domain records the
// engine consumes; no raw payload crosses this boundary.
package stripe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// Client is a minimal Stripe REST client covering just the endpoints the
// reconciler needs: balance transaction listing, charges, refunds, customers.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Stripe client authenticated with the given secret key
func NewClient(secretKey string) *Client {
	return &Client{
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = baseURL
	return c
}

type balanceTransaction struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      int64           `json:"amount"`
	Fee         int64           `json:"fee"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Source      json.RawMessage `json:"source"` // id string, or expanded object
}

type balanceTransactionList struct {
	Data    []balanceTransaction `json:"data"`
	HasMore bool                 `json:"has_more"`
}

type charge struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	Description string `json:"description"`
}

type refund struct {
	ID     string `json:"id"`
	Charge string `json:"charge"`
	Amount int64  `json:"amount"`
}

type customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ListPayoutTransactions fetches one page of a payout's balance transactions.
// startingAfter is the previous page's last record id, or "" for the first
// page.
func (c *Client) ListPayoutTransactions(ctx context.Context, payoutID, startingAfter string, limit int) (models.TransactionPage, error) {
	params := url.Values{}
	params.Set("payout", payoutID)
	params.Set("limit", strconv.Itoa(limit))
	if startingAfter != "" {
		params.Set("starting_after", startingAfter)
	}

	var list balanceTransactionList
	if err := c.get(ctx, "/balance_transactions?"+params.Encode(), &list); err != nil {
		return models.TransactionPage{}, err
	}

	page := models.TransactionPage{HasMore: list.HasMore}
	for _, bt := range list.Data {
		kind, ok := mapKind(bt.Type)
		if !ok {
			continue
		}
		page.Transactions = append(page.Transactions, models.Transaction{
			ID:          bt.ID,
			Kind:        kind,
			AmountMinor: bt.Amount,
			FeeMinor:    bt.Fee,
			Currency:    bt.Currency,
			SourceRef:   sourceID(bt.Source),
			Description: bt.Description,
		})
	}
	return page, nil
}

// GetChargeDetail fetches a charge and resolves its customer's email. The
// processor keeps metadata insertion-ordered in its JSON; decoding preserves
// that order by re-scanning the raw object.
func (c *Client) GetChargeDetail(ctx context.Context, chargeID string) (models.ChargeDetail, error) {
	raw, err := c.getRaw(ctx, "/charges/"+chargeID)
	if err != nil {
		return models.ChargeDetail{}, err
	}

	var ch charge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return models.ChargeDetail{}, fmt.Errorf("decoding charge %s: %w", chargeID, err)
	}

	metadata, err := orderedMetadata(raw)
	if err != nil {
		return models.ChargeDetail{}, fmt.Errorf("decoding charge %s metadata: %w", chargeID, err)
	}

	detail := models.ChargeDetail{
		Description: ch.Description,
		Metadata:    metadata,
	}

	if ch.Customer != "" {
		var cust customer
		if err := c.get(ctx, "/customers/"+ch.Customer, &cust); err != nil {
			return models.ChargeDetail{}, err
		}
		detail.CustomerEmail = cust.Email
	}
	if detail.CustomerEmail == "" {
		detail.CustomerEmail = "N/A"
	}
	return detail, nil
}

// GetRefundDetail fetches a refund and its originating charge reference
func (c *Client) GetRefundDetail(ctx context.Context, refundID string) (models.RefundDetail, error) {
	var rf refund
	if err := c.get(ctx, "/refunds/"+refundID, &rf); err != nil {
		return models.RefundDetail{}, err
	}
	return models.RefundDetail{ChargeID: rf.Charge, AmountMinor: rf.Amount}, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	raw, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling processor API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading processor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("processor API returned %d for %s: %s", resp.StatusCode, path, body)
	}
	return body, nil
}

// mapKind translates the processor's balance transaction type into the
// engine's transaction kinds. Unknown types are skipped by the caller.
func mapKind(t string) (models.TransactionKind, bool) {
	switch t {
	case "charge", "payment":
		return models.KindCharge, true
	case "refund", "payment_refund":
		return models.KindRefund, true
	case "stripe_fee":
		return models.KindFee, true
	default:
		return "", false
	}
}

// sourceID accepts either a plain id string or an expanded source object
func sourceID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// orderedMetadata extracts the charge's metadata object preserving key order,
// which encoding/json's map decoding would lose
func orderedMetadata(raw []byte) ([]models.MetadataPair, error) {
	var envelope struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Metadata) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Metadata))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("metadata is not an object")
	}

	var pairs []models.MetadataPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		pairs = append(pairs, models.MetadataPair{Key: key, Value: value})
	}
	return pairs, nil
}
