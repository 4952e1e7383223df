package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// NameSearchService defines the interface for name search business logic
type NameSearchService interface {
	SearchByName(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error)
}

// SearchHandler handles name search HTTP requests
type SearchHandler struct {
	service NameSearchService
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service NameSearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// NameSearchRequest represents the request body for a name search
type NameSearchRequest struct {
	FirstName   string `json:"firstName" validate:"required,min=1,max=100"`
	LastName    string `json:"lastName" validate:"required,min=1,max=100"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=20"`
	ZipCode     string `json:"zipCode" validate:"omitempty,max=10"`
}

// NameSearchResponse represents a completed name search
type NameSearchResponse struct {
	Results          []providers.NameResult `json:"results"`
	Count            int                    `json:"count"`
	CreditsRemaining int                    `json:"creditsRemaining"`
}

// SearchByName runs a name search, charging one credit
//
// @Summary Search the offender registries by name
// @Accept json
// @Param request body NameSearchRequest true "Name search request"
// @Produce json
// @Success 200 {object} NameSearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} InsufficientCreditsResponse
// @Router /api/search/name [post]
func (h *SearchHandler) SearchByName(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req NameSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.service.SearchByName(r.Context(), claims.UserID(), providers.NameQuery{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		ZipCode:     req.ZipCode,
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}

	results := out.Results
	if results == nil {
		results = []providers.NameResult{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, NameSearchResponse{
		Results:          results,
		Count:            len(results),
		CreditsRemaining: out.CreditsRemaining,
	})
}
