package handlers

import (
	"net/http"

	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// ProviderStatus reports which lookup providers are configured. Provider
// configuration is static for the process lifetime.
type ProviderStatus struct {
	NameSearch  bool `json:"name_search"`
	PhoneLookup bool `json:"phone_lookup"`
	ImageSearch bool `json:"image_search"`
}

// StatusResponse represents the API status
type StatusResponse struct {
	Status    string         `json:"status"`
	Providers ProviderStatus `json:"providers"`
}

// StatusHandler reports API and provider availability
type StatusHandler struct {
	providers ProviderStatus
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(providers ProviderStatus) *StatusHandler {
	return &StatusHandler{providers: providers}
}

// GetStatus returns provider availability
//
// @Summary Get API status
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /api/status [get]
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		Providers: h.providers,
	})
}
