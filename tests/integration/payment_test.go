//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func completionBody() map[string]any {
	return map[string]any{
		"orderData": map[string]any{
			"items": []map[string]any{
				{"productId": "prod-kb-01", "quantity": 1},
			},
			"addressId": "demo-address",
		},
		"paymentDetails": map[string]any{
			"provider":      "sslcommerz",
			"transactionId": "INTEGRATION-TXN-1",
		},
	}
}

func TestCompletePayment_RequiresAuth(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/payment/complete", completionBody(), "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

// The test environment points the gateway at an unreachable address, so
// verification must fail closed: a 400 with the verification error code and
// no order created.
func TestCompletePayment_FailsClosedWhenGatewayUnreachable(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/payment/complete", completionBody(), userAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != "PAYMENT_VERIFICATION_FAILED" {
		t.Errorf("error code: got %q, want PAYMENT_VERIFICATION_FAILED", body.Code)
	}
}

func TestCompletePayment_ValidationError(t *testing.T) {
	body := completionBody()
	body["orderData"].(map[string]any)["items"] = []map[string]any{}

	resp := doJSON(t, http.MethodPost, "/api/payment/complete", body, userAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateOrderStatus_RequiresAdmin(t *testing.T) {
	resp := doJSON(t, http.MethodPatch, "/api/orders/some-order/status", map[string]any{
		"status": "processing",
	}, userAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/orders/missing-order", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("X-API-Key", userAPIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
