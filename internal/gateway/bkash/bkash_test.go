package bkash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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
		BaseURL: srv.URL,
		AppKey:  "app-key",
		Token:   "token",
	})
}

func TestVerify_Completed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "token", r.Header.Get("Authorization"))
		assert.Equal(t, "app-key", r.Header.Get("X-App-Key"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TRX9A7", req["trxID"])

		_, _ = w.Write([]byte(`{"trxID":"TRX9A7","transactionStatus":"Completed","amount":"560.00","currency":"BDT","merchantInvoiceNumber":"INV-42"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{
		TransactionID:  "TRX9A7",
		ExpectedAmount: decimal.RequireFromString("560.00"),
	})
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.Equal(t, payment.MethodBkash, res.Provider)
	assert.Equal(t, "INV-42", res.ReferenceID)
}

func TestVerify_NonCompletedStatus(t *testing.T) {
	for _, status := range []string{"Initiated", "Cancelled", "Failed", "Refunded", "SomethingNew"} {
		t.Run(status, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"trxID":             "TRX1",
					"transactionStatus": status,
					"amount":            "560.00",
				})
			})

			res, err := client.Verify(context.Background(), payment.Request{
				TransactionID:  "TRX1",
				ExpectedAmount: decimal.RequireFromString("560.00"),
			})
			require.NoError(t, err)
			assert.False(t, res.Verified)
		})
	}
}

func TestVerify_AmountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"trxID":"TRX1","transactionStatus":"Completed","amount":"100.00"}`))
	})

	res, err := client.Verify(context.Background(), payment.Request{
		TransactionID:  "TRX1",
		ExpectedAmount: decimal.RequireFromString("560.00"),
	})
	require.NoError(t, err)
	assert.False(t, res.Verified)
}

func TestVerify_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.Verify(context.Background(), payment.Request{TransactionID: "TRX1"})
	require.Error(t, err)
}
