// Package bkash verifies payments against the bKash search-transaction API.
package bkash

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/payment"
)

// Config holds the bKash merchant credentials and endpoint.
type Config struct {
	// BaseURL of the tokenized checkout API, e.g.
	// https://tokenized.sandbox.bka.sh/v1.2.0-beta.
	BaseURL string
	// AppKey and Token authenticate API calls. Token refresh is handled by
	// whoever constructs the client; this adapter only verifies.
	AppKey string
	Token  string
	// Timeout bounds the verification call.
	Timeout time.Duration
}

// Client implements payment.Verifier for bKash.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ payment.Verifier = (*Client)(nil)

// New creates a bKash verification client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// searchResponse is the subset of the bKash search-transaction payload this
// adapter reads. bKash calls the transaction identifier "trxID" and the
// merchant reference "merchantInvoiceNumber".
type searchResponse struct {
	TrxID                 string          `json:"trxID"`
	TransactionStatus     string          `json:"transactionStatus"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	MerchantInvoiceNumber string          `json:"merchantInvoiceNumber"`
}

// Verify searches the transaction by trxID and normalizes the response.
// Only the "Completed" status verifies; unknown statuses never do.
func (c *Client) Verify(ctx context.Context, req payment.Request) (*payment.Result, error) {
	payload, err := json.Marshal(map[string]string{"trxID": req.TransactionID})
	if err != nil {
		return nil, errors.Wrap(err, "encode search request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/tokenized/checkout/general/searchTransaction",
		bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build search request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.cfg.Token)
	httpReq.Header.Set("X-App-Key", c.cfg.AppKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call search API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("search API returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}

	result := &payment.Result{
		Provider:       payment.MethodBkash,
		TransactionID:  req.TransactionID,
		Amount:         body.Amount,
		Currency:       body.Currency,
		ReferenceID:    body.MerchantInvoiceNumber,
		ProviderStatus: body.TransactionStatus,
	}

	if body.TransactionStatus != "Completed" {
		return result, nil
	}
	if !req.ExpectedAmount.IsZero() && !body.Amount.Equal(req.ExpectedAmount) {
		return result, nil
	}

	result.Verified = true
	return result, nil
}
