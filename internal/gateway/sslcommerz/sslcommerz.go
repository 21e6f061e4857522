// Package sslcommerz verifies payments against the SSLCommerz validation API.
package sslcommerz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/payment"
)

// Statuses SSLCommerz reports for a confirmed transaction. Anything else,
// including statuses this code has never seen, is treated as not verified.
var verifiedStatuses = map[string]struct{}{
	"VALID":     {},
	"VALIDATED": {},
}

// Config holds the merchant credentials and endpoint for the validation API.
type Config struct {
	// BaseURL of the validator, e.g. https://sandbox.sslcommerz.com.
	BaseURL string
	// StoreID and StorePassword authenticate the merchant.
	StoreID       string
	StorePassword string
	// Timeout bounds the verification call. A timed-out call is a
	// verification failure, never an assumed success.
	Timeout time.Duration
}

// Client implements payment.Verifier for SSLCommerz.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ payment.Verifier = (*Client)(nil)

// New creates an SSLCommerz verification client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// validationResponse is the subset of the SSLCommerz validator payload this
// adapter reads. SSLCommerz calls the transaction identifier "val_id" in
// requests and reports both "val_id" and the merchant "tran_id" back.
type validationResponse struct {
	Status   string          `json:"status"`
	TranID   string          `json:"tran_id"`
	ValID    string          `json:"val_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	TranDate string          `json:"tran_date"`
}

// Verify calls the validation endpoint with the client-reported val_id and
// normalizes the response. Provider rejections and amount mismatches come
// back as Verified=false; transport failures are returned as errors for the
// caller to treat as verification failure.
func (c *Client) Verify(ctx context.Context, req payment.Request) (*payment.Result, error) {
	q := url.Values{}
	q.Set("val_id", req.TransactionID)
	q.Set("store_id", c.cfg.StoreID)
	q.Set("store_passwd", c.cfg.StorePassword)
	q.Set("format", "json")

	endpoint := c.cfg.BaseURL + "/validator/api/validationserverAPI.php?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build validation request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call validation API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("validation API returned status %d", resp.StatusCode)
	}

	var body validationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode validation response")
	}

	result := &payment.Result{
		Provider:       payment.MethodSSLCommerz,
		TransactionID:  req.TransactionID,
		Amount:         body.Amount,
		Currency:       body.Currency,
		ReferenceID:    body.TranID,
		ProviderStatus: body.Status,
	}

	if _, ok := verifiedStatuses[body.Status]; !ok {
		return result, nil
	}
	if !req.ExpectedAmount.IsZero() && !body.Amount.Equal(req.ExpectedAmount) {
		return result, nil
	}

	result.Verified = true
	return result, nil
}
