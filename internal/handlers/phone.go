package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// PhoneLookupService defines the interface for reverse phone lookup logic
type PhoneLookupService interface {
	LookupPhone(ctx context.Context, userID, number string) (*services.PhoneLookupOutput, error)
}

// PhoneHandler handles reverse phone lookup HTTP requests
type PhoneHandler struct {
	service PhoneLookupService
}

// NewPhoneHandler creates a new PhoneHandler
func NewPhoneHandler(service PhoneLookupService) *PhoneHandler {
	return &PhoneHandler{service: service}
}

// PhoneLookupRequest represents the request body for a phone lookup
type PhoneLookupRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=25"`
}

// PhoneLookupResponse represents a completed phone lookup
type PhoneLookupResponse struct {
	Result           *providers.PhoneResult `json:"result"`
	CreditsRemaining int                    `json:"credits_remaining"`
}

// LookupPhone runs a reverse phone lookup, charging two credits
//
// @Summary Reverse lookup a phone number
// @Accept json
// @Param request body PhoneLookupRequest true "Phone lookup request"
// @Produce json
// @Success 200 {object} PhoneLookupResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} InsufficientCreditsResponse
// @Router /api/phone/lookup [post]
func (h *PhoneHandler) LookupPhone(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req PhoneLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Normalization happens before the debit so a malformed number never
	// costs a credit.
	number := normalizePhoneNumber(req.PhoneNumber)
	if len(number) < 10 {
		pkghttp.WriteBadRequest(w, "Phone number must contain at least 10 digits")
		return
	}

	out, err := h.service.LookupPhone(r.Context(), claims.UserID(), number)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, PhoneLookupResponse{
		Result:           out.Result,
		CreditsRemaining: out.CreditsRemaining,
	})
}

// normalizePhoneNumber strips everything but digits.
func normalizePhoneNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
