package sslcommerz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/checkout/internal/domain/payment"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:       srv.URL,
		StoreID:       "teststore",
		StorePassword: "testpass",
	})
}

func TestVerify_Valid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VAL-123", r.URL.Query().Get("val_id"))
		assert.Equal(t, "teststore", r.URL.Query().Get("store_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"VALID","tran_id":"ORD-1","val_id":"VAL-123","amount":"1060.00","currency":"BDT"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{
		TransactionID:  "VAL-123",
		ExpectedAmount: decimal.RequireFromString("1060.00"),
	})
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.Equal(t, payment.MethodSSLCommerz, res.Provider)
	assert.Equal(t, "VALID", res.ProviderStatus)
	assert.Equal(t, "ORD-1", res.ReferenceID)
	assert.Equal(t, "BDT", res.Currency)
}

func TestVerify_ProviderRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"INVALID_TRANSACTION","amount":"0"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{TransactionID: "VAL-404"})
	require.NoError(t, err)

	assert.False(t, res.Verified)
	assert.Equal(t, "INVALID_TRANSACTION", res.ProviderStatus)
}

func TestVerify_UnknownStatusNotVerified(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"PENDING_REVIEW","amount":"1060.00"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{
		TransactionID:  "VAL-1",
		ExpectedAmount: decimal.RequireFromString("1060.00"),
	})
	require.NoError(t, err)
	assert.False(t, res.Verified, "unrecognized provider statuses are fail-closed")
}

func TestVerify_AmountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"VALID","amount":"999.00","currency":"BDT"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{
		TransactionID:  "VAL-1",
		ExpectedAmount: decimal.RequireFromString("1060.00"),
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerify_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Verify(context.Background(), payment.Request{TransactionID: "VAL-1"})
	require.Error(t, err)
}

func TestVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})

	_, err := client.Verify(context.Background(), payment.Request{TransactionID: "VAL-1"})
	require.Error(t, err, "a timed-out verification is a failure, not a success")
}
