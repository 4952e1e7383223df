package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinkflag/backend/internal/services"
)

const testWebhookSecret = "webhook-test-secret"

func signWebhookBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestWebhookHandler(service *MockPurchaseGranter) *WebhookHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWebhookHandler(service, testWebhookSecret, nil, logger)
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest("POST", "/webhooks/purchase", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-RevenueCat-Signature", signature)
	}
	return req
}

func TestWebhookHandler_InitialPurchase(t *testing.T) {
	var gotUserID, gotProductID, gotTransactionID string
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			gotUserID = userID
			gotProductID = productID
			gotTransactionID = transactionID
			return &services.GrantResult{Credits: 13, CreditsAdded: 10}, nil
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"type": "INITIAL_PURCHASE", "app_user_id": "user123", "product_id": "pink_flag_10_searches", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user123", gotUserID)
	assert.Equal(t, "pink_flag_10_searches", gotProductID)
	assert.Equal(t, "txn_1", gotTransactionID)

	var resp PurchaseWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 10, resp.CreditsAdded)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	called := false
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			called = true
			return nil, nil
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"type": "INITIAL_PURCHASE", "app_user_id": "user123", "product_id": "pink_flag_10_searches", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, "deadbeef"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called, "an unverified event must never grant credits")
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	handler := newTestWebhookHandler(&MockPurchaseGranter{})

	body := `{"event": {"type": "INITIAL_PURCHASE"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_NonPurchaseEventIgnored(t *testing.T) {
	called := false
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			called = true
			return nil, nil
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"type": "CANCELLATION", "app_user_id": "user123", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestWebhookHandler_RenewalUsesEventID(t *testing.T) {
	var gotTransactionID string
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			gotTransactionID = transactionID
			return &services.GrantResult{Credits: 3, CreditsAdded: 3}, nil
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"id": "evt_9", "type": "RENEWAL", "app_user_id": "user123", "product_id": "pink_flag_3_searches"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "evt_9", gotTransactionID)
}

func TestWebhookHandler_DuplicateDelivery(t *testing.T) {
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			return &services.GrantResult{Credits: 13, Duplicate: true}, nil
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"type": "INITIAL_PURCHASE", "app_user_id": "user123", "product_id": "pink_flag_10_searches", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp PurchaseWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
	assert.Equal(t, 0, resp.CreditsAdded)
}

func TestWebhookHandler_UnknownProductAcknowledged(t *testing.T) {
	service := &MockPurchaseGranter{
		GrantPurchaseFunc: func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
			return nil, services.ErrUnknownProduct
		},
	}
	handler := newTestWebhookHandler(service)

	body := `{"event": {"type": "INITIAL_PURCHASE", "app_user_id": "user123", "product_id": "gold_plan", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestWebhookHandler_MissingUserID(t *testing.T) {
	handler := newTestWebhookHandler(&MockPurchaseGranter{})

	body := `{"event": {"type": "INITIAL_PURCHASE", "product_id": "pink_flag_10_searches", "transaction_id": "txn_1"}}`
	w := httptest.NewRecorder()

	handler.HandlePurchase(w, webhookRequest(body, signWebhookBody(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
