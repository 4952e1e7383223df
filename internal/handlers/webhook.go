package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pinkflag/backend/internal/services"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// maxWebhookBodyBytes caps webhook payloads at 1MB.
const maxWebhookBodyBytes = 1 << 20

// purchaseEventTypes are the billing event types that grant credits. All
// other event types are acknowledged and ignored.
var purchaseEventTypes = map[string]bool{
	"INITIAL_PURCHASE":      true,
	"RENEWAL":               true,
	"NON_RENEWING_PURCHASE": true,
}

// PurchaseGranter defines the interface for applying verified purchases
type PurchaseGranter interface {
	GrantPurchase(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error)
}

// WebhookHandler handles purchase webhook HTTP requests
type WebhookHandler struct {
	service PurchaseGranter
	secret  string
	ips     *pkghttp.IPConfig
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service PurchaseGranter, secret string, ips *pkghttp.IPConfig, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  secret,
		ips:     ips,
		logger:  logger,
	}
}

// purchaseWebhookPayload is the billing provider's event envelope. Only the
// fields we act on are decoded.
type purchaseWebhookPayload struct {
	Event struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		AppUserID     string `json:"app_user_id"`
		ProductID     string `json:"product_id"`
		TransactionID string `json:"transaction_id"`
	} `json:"event"`
}

// PurchaseWebhookResponse acknowledges a webhook delivery
type PurchaseWebhookResponse struct {
	Status       string `json:"status"`
	CreditsAdded int    `json:"credits_added,omitempty"`
	Duplicate    bool   `json:"duplicate,omitempty"`
}

// HandlePurchase verifies and applies a purchase event. Ignored events still
// return 200 so the billing provider stops redelivering them.
//
// @Summary Apply a purchase webhook event
// @Accept json
// @Produce json
// @Success 200 {object} PurchaseWebhookResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /webhooks/purchase [post]
func (h *WebhookHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		h.logger.Error("purchase webhook received but no secret is configured")
		pkghttp.WriteServiceUnavailable(w, "service_unavailable", "Purchase webhooks are not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Could not read request body")
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-RevenueCat-Signature")) {
		h.logger.Warn("purchase webhook signature verification failed",
			slog.String("remote_ip", h.ips.ClientIP(r)),
		)
		pkghttp.WriteUnauthorized(w, "Invalid webhook signature")
		return
	}

	var payload purchaseWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid webhook payload")
		return
	}

	event := payload.Event
	if !purchaseEventTypes[event.Type] {
		h.logger.Info("ignoring non-purchase webhook event", slog.String("event_type", event.Type))
		pkghttp.WriteJSON(w, http.StatusOK, PurchaseWebhookResponse{Status: "ignored"})
		return
	}

	transactionID := event.TransactionID
	if transactionID == "" {
		transactionID = event.ID
	}
	if event.AppUserID == "" || transactionID == "" {
		pkghttp.WriteBadRequest(w, "Webhook event is missing app_user_id or transaction_id")
		return
	}

	result, err := h.service.GrantPurchase(r.Context(), event.AppUserID, event.ProductID, transactionID)
	if err != nil {
		if errors.Is(err, services.ErrUnknownProduct) {
			// Acknowledged so the provider stops retrying; the event is
			// preserved in their dashboard for manual review.
			h.logger.Error("purchase webhook for unknown product",
				slog.String("product_id", event.ProductID),
				slog.String("transaction_id", transactionID),
			)
			pkghttp.WriteJSON(w, http.StatusOK, PurchaseWebhookResponse{Status: "ignored"})
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, PurchaseWebhookResponse{
		Status:       "ok",
		CreditsAdded: result.CreditsAdded,
		Duplicate:    result.Duplicate,
	})
}

// verifySignature checks the HMAC-SHA256 hex signature over the raw body.
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
