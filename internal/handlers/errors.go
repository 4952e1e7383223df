package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/providers"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// InsufficientCreditsResponse tells the client how many credits they hold so
// the app can surface a purchase prompt with the exact shortfall.
type InsufficientCreditsResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	CurrentCredits int    `json:"current_credits"`
}

// writeLookupError maps a lookup service error to an HTTP response. Provider
// failures that triggered a refund say so; the client must know the charge
// did not stick.
func writeLookupError(w http.ResponseWriter, err error) {
	var insufficient *models.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		pkghttp.WriteJSON(w, http.StatusPaymentRequired, InsufficientCreditsResponse{
			Error:          "insufficient_credits",
			Message:        fmt.Sprintf("Insufficient credits. You have %d credit(s) remaining.", insufficient.Credits),
			CurrentCredits: insufficient.Credits,
		})
		return
	}

	if errors.Is(err, models.ErrNotConfigured) {
		pkghttp.WriteServiceUnavailable(w, "service_unavailable", "This lookup is not available right now.")
		return
	}

	var provErr *providers.Error
	if errors.As(err, &provErr) {
		writeProviderError(w, provErr)
		return
	}

	if errors.Is(err, models.ErrBadRequest) {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if errors.Is(err, models.ErrNotFound) {
		pkghttp.WriteNotFound(w, "Not found")
		return
	}

	pkghttp.WriteInternalError(w, "Internal server error")
}

func writeProviderError(w http.ResponseWriter, provErr *providers.Error) {
	switch provErr.Outcome {
	case providers.OutcomeMaintenance:
		pkghttp.WriteServiceUnavailable(w, "provider_maintenance",
			"The lookup provider is down for maintenance. Your credit has been refunded.")
	case providers.OutcomeTimeout:
		pkghttp.WriteGatewayTimeout(w, "provider_timeout",
			"The lookup provider timed out. Your credit has been refunded.")
	case providers.OutcomeRateLimited:
		pkghttp.WriteTooManyRequests(w,
			"The lookup provider is receiving too many requests. Please try again in a moment.")
	case providers.OutcomeBadInput:
		pkghttp.WriteBadRequest(w, "The lookup provider rejected the request.")
	default:
		pkghttp.WriteBadGateway(w, "provider_error",
			"The lookup provider returned an error. Your credit has been refunded.")
	}
}
