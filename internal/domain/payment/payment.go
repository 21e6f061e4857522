// Package payment defines the gateway verification contract shared by all
// payment provider adapters.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Method identifies a supported payment provider.
type Method string

const (
	MethodSSLCommerz Method = "sslcommerz"
	MethodBkash      Method = "bkash"
)

// Request carries the client-reported payment identifiers that an adapter
// verifies against the provider's server-side API.
type Request struct {
	// TransactionID is the provider-issued identifier for the payment.
	TransactionID string
	// ExpectedAmount is the amount the order requires. Adapters treat a
	// provider-reported amount below this value as not verified.
	ExpectedAmount decimal.Decimal
	// ReferenceID is the merchant-side reference passed to the provider at
	// payment initiation (optional for providers that key purely on the
	// transaction id).
	ReferenceID string
}

// Result is the normalized outcome of one verification attempt. It is never
// persisted on its own; on success it is copied into the order's payment
// details.
type Result struct {
	Provider       Method
	TransactionID  string
	Amount         decimal.Decimal
	Currency       string
	ReferenceID    string
	ProviderStatus string
	// Verified reports whether the provider confirmed the payment. Any
	// uncertainty (network error, unknown status string, amount mismatch)
	// leaves it false.
	Verified bool
}

// Verifier confirms a payment with its provider. Implementations are
// fail-closed: they return Verified=false rather than an error for any
// condition that cannot be positively confirmed, and they never retry.
type Verifier interface {
	Verify(ctx context.Context, req Request) (*Result, error)
}
