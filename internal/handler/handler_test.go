package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/address"
	"github.com/verdantlabs/checkout/internal/domain/auth"
	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/discount"
	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
	"github.com/verdantlabs/checkout/internal/domain/product"
)

// --- Mock implementations ---

type stubProducts struct {
	byID map[string]product.Product
}

func (s *stubProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *stubProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubAddresses struct {
	byID map[string]address.Address
}

func (s *stubAddresses) FindForUser(_ context.Context, userID, addressID string) (*address.Address, error) {
	a, ok := s.byID[addressID]
	if !ok || a.UserID != userID {
		return nil, address.ErrNotFound
	}
	return &a, nil
}

type stubRates struct {
	rate decimal.Decimal
}

func (s *stubRates) Lookup(_ context.Context, _ string) (decimal.Decimal, error) {
	return s.rate, nil
}

type stubDiscounts struct {
	byCode map[string]*discount.Discount
}

func (s *stubDiscounts) FindByCode(_ context.Context, code string) (*discount.Discount, error) {
	d, ok := s.byCode[code]
	if !ok {
		return nil, discount.ErrNotFound
	}
	return d, nil
}

func (s *stubDiscounts) ConsumeUsage(_ context.Context, id string) error {
	return nil
}

type stubOrders struct {
	byTxID map[string]*order.Order
}

func newStubOrders() *stubOrders {
	return &stubOrders{byTxID: make(map[string]*order.Order)}
}

func (s *stubOrders) Create(_ context.Context, o *order.Order) (*order.Order, bool, error) {
	if existing, ok := s.byTxID[o.PaymentDetails.TransactionID]; ok {
		return existing, false, nil
	}
	s.byTxID[o.PaymentDetails.TransactionID] = o
	return o, true, nil
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	for _, o := range s.byTxID {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *stubOrders) FindByTransactionID(_ context.Context, txID string) (*order.Order, error) {
	o, ok := s.byTxID[txID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status order.Status, entry order.TimelineEntry) (*order.Order, error) {
	o, err := s.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	o.Status = status
	o.Timeline = append(o.Timeline, entry)
	return o, nil
}

type stubAttempts struct{}

func (stubAttempts) Record(_ context.Context, _ checkout.Attempt) error { return nil }

func (stubAttempts) MarkCompleted(_ context.Context, _, _ string) error { return nil }

func (stubAttempts) ListDangling(_ context.Context, _ time.Time) ([]checkout.Attempt, error) {
	return nil, nil
}

type stubVerifier struct {
	verified bool
}

func (s *stubVerifier) Verify(_ context.Context, req payment.Request) (*payment.Result, error) {
	return &payment.Result{
		Provider:      payment.MethodSSLCommerz,
		TransactionID: req.TransactionID,
		Amount:        req.ExpectedAmount,
		Currency:      "BDT",
		Verified:      s.verified,
	}, nil
}

type stubAPIKeys struct {
	byHash map[string]auth.APIKeyInfo
}

func (s *stubAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := s.byHash[hash]
	if !ok {
		return nil, errUnauthorized
	}
	return &info, nil
}

// --- Fixture ---

const (
	testPepper   = "test-pepper"
	userKey      = "user-key"
	adminKey     = "admin-key"
	fixtureTxID  = "TXN-1001"
	fixtureTotal = "1060"
)

func keyHash(pepper, key string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	srv    *httptest.Server
	orders *stubOrders
}

func newFixture(t *testing.T, verified bool) *fixture {
	t.Helper()

	registry := payment.NewRegistry()
	registry.Register(payment.MethodSSLCommerz, &stubVerifier{verified: verified})

	products := &stubProducts{byID: map[string]product.Product{
		"p1": {ID: "p1", Name: "Keyboard", Price: decimal.NewFromInt(500), Category: "electronics"},
		"p2": {ID: "p2", Name: "Mouse", Price: decimal.NewFromInt(250), Category: "electronics"},
	}}
	addresses := &stubAddresses{byID: map[string]address.Address{
		"a1": {ID: "a1", UserID: "u1", Name: "Rahim", Line1: "12 Road 5", Area: "dhaka", City: "Dhaka"},
	}}
	discounts := &stubDiscounts{byCode: map[string]*discount.Discount{
		"SAVE10": {
			ID: "d1", Code: "SAVE10", Type: discount.TypePercentage,
			Value:       decimal.NewFromInt(10),
			MinPurchase: decimal.NewFromInt(500),
			MaxDiscount: decimal.NewFromInt(200),
			Active:      true,
		},
	}}
	orders := newStubOrders()

	lg := zap.NewNop()
	svc := checkout.NewService(registry, products, addresses,
		&stubRates{rate: decimal.NewFromInt(60)}, discounts, orders, stubAttempts{}, lg)

	apikeys := &stubAPIKeys{byHash: map[string]auth.APIKeyInfo{
		keyHash(testPepper, userKey):  {ID: "k1", KeyHash: keyHash(testPepper, userKey), UserID: "u1"},
		keyHash(testPepper, adminKey): {ID: "k2", KeyHash: keyHash(testPepper, adminKey), UserID: "admin", Admin: true},
	}}

	h := NewHandler(svc, order.NewLifecycle(orders), discounts, lg)
	sec := NewSecurityHandler(apikeys, []byte(testPepper))

	srv := httptest.NewServer(Routes(h, sec))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path, apiKey string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func completionBody() map[string]any {
	return map[string]any{
		"orderData": map[string]any{
			"items": []map[string]any{
				{"productId": "p1", "quantity": 2},
			},
			"addressId": "a1",
		},
		"paymentDetails": map[string]any{
			"provider":      "sslcommerz",
			"transactionId": fixtureTxID,
		},
	}
}

// --- Tests ---

func TestCompletePayment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, true)

		resp, body := f.do(t, http.MethodPost, "/api/payment/complete", userKey, completionBody())

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, "paid", body["paymentStatus"])
		assert.Equal(t, fixtureTotal, body["total"])
		assert.NotEmpty(t, body["orderId"])
		assert.NotEmpty(t, body["orderNumber"])
	})

	t.Run("gateway rejection yields no order", func(t *testing.T) {
		f := newFixture(t, false)

		resp, body := f.do(t, http.MethodPost, "/api/payment/complete", userKey, completionBody())

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "PAYMENT_VERIFICATION_FAILED", body["error"])
		assert.Empty(t, f.orders.byTxID)
	})

	t.Run("idempotent replay returns first order", func(t *testing.T) {
		f := newFixture(t, true)

		_, first := f.do(t, http.MethodPost, "/api/payment/complete", userKey, completionBody())
		resp, second := f.do(t, http.MethodPost, "/api/payment/complete", userKey, completionBody())

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, first["orderId"], second["orderId"])
		assert.Len(t, f.orders.byTxID, 1)
	})

	t.Run("missing transaction id", func(t *testing.T) {
		f := newFixture(t, true)

		body := completionBody()
		body["paymentDetails"].(map[string]any)["transactionId"] = ""
		resp, _ := f.do(t, http.MethodPost, "/api/payment/complete", userKey, body)

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("foreign address is not found", func(t *testing.T) {
		f := newFixture(t, true)

		body := completionBody()
		body["orderData"].(map[string]any)["addressId"] = "someone-elses"
		resp, _ := f.do(t, http.MethodPost, "/api/payment/complete", userKey, body)

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("requires api key", func(t *testing.T) {
		f := newFixture(t, true)

		resp, _ := f.do(t, http.MethodPost, "/api/payment/complete", "", completionBody())

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects unknown api key", func(t *testing.T) {
		f := newFixture(t, true)

		resp, _ := f.do(t, http.MethodPost, "/api/payment/complete", "bogus", completionBody())

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestValidateDiscount(t *testing.T) {
	t.Run("valid code quotes capped amount", func(t *testing.T) {
		f := newFixture(t, true)

		resp, body := f.do(t, http.MethodPost, "/api/discounts/validate", "", map[string]any{
			"code":      "SAVE10",
			"cartTotal": 3000,
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["valid"])
		d := body["discount"].(map[string]any)
		assert.Equal(t, "percentage", d["type"])
		assert.Equal(t, "200", d["amount"])
	})

	t.Run("below minimum purchase", func(t *testing.T) {
		f := newFixture(t, true)

		resp, body := f.do(t, http.MethodPost, "/api/discounts/validate", "", map[string]any{
			"code":      "SAVE10",
			"cartTotal": 100,
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["valid"])
		assert.Contains(t, body["message"], "minimum purchase")
	})

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t, true)

		resp, body := f.do(t, http.MethodPost, "/api/discounts/validate", "", map[string]any{
			"code":      "NOPE",
			"cartTotal": 3000,
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["valid"])
	})
}

func TestOrderEndpoints(t *testing.T) {
	placeOrder := func(t *testing.T, f *fixture) string {
		_, body := f.do(t, http.MethodPost, "/api/payment/complete", userKey, completionBody())
		id, _ := body["orderId"].(string)
		require.NotEmpty(t, id)
		return id
	}

	t.Run("owner reads order", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, body := f.do(t, http.MethodGet, "/api/orders/"+id, userKey, nil)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, id, body["orderId"])
		assert.Len(t, body["timeline"], 1)
	})

	t.Run("foreign order is not found", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, _ := f.do(t, http.MethodGet, "/api/orders/"+id, adminKey, nil)

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("admin advances status", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, body := f.do(t, http.MethodPatch, "/api/orders/"+id+"/status", adminKey, map[string]any{
			"status":      "processing",
			"description": "picked by warehouse",
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "processing", body["status"])
		assert.Len(t, body["timeline"], 2)
	})

	t.Run("non-admin cannot change status", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, _ := f.do(t, http.MethodPatch, "/api/orders/"+id+"/status", userKey, map[string]any{
			"status": "processing",
		})

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("illegal transition leaves order untouched", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, body := f.do(t, http.MethodPatch, "/api/orders/"+id+"/status", adminKey, map[string]any{
			"status": "delivered",
		})

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_TRANSITION", body["error"])

		resp, body = f.do(t, http.MethodGet, "/api/orders/"+id, userKey, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "pending", body["status"])
		assert.Len(t, body["timeline"], 1)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		f := newFixture(t, true)
		id := placeOrder(t, f)

		resp, _ := f.do(t, http.MethodPatch, "/api/orders/"+id+"/status", adminKey, map[string]any{
			"status": "teleported",
		})

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
