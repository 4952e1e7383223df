package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/models"
	pkghttp "github.com/pinkflag/backend/pkg/http"
)

// CreditReader defines the interface for credit balance and history reads
type CreditReader interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error)
}

// CreditsHandler handles credit balance and search history HTTP requests
type CreditsHandler struct {
	service CreditReader
}

// NewCreditsHandler creates a new CreditsHandler
func NewCreditsHandler(service CreditReader) *CreditsHandler {
	return &CreditsHandler{service: service}
}

// BalanceResponse represents the user's credit balance
type BalanceResponse struct {
	Credits int `json:"credits"`
}

// SearchRecordResponse represents one past lookup in the history listing
type SearchRecordResponse struct {
	ID           string  `json:"id"`
	SearchType   string  `json:"search_type"`
	Query        string  `json:"query"`
	Cost         int     `json:"cost"`
	Status       string  `json:"status"`
	ResultsCount *int    `json:"results_count,omitempty"`
	RefundReason *string `json:"refund_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// HistoryResponse represents a page of past lookups
type HistoryResponse struct {
	Searches []*SearchRecordResponse `json:"searches"`
	Count    int                     `json:"count"`
}

// searchModelToResponse converts a search model to a response DTO
func searchModelToResponse(search *models.Search) *SearchRecordResponse {
	return &SearchRecordResponse{
		ID:           search.ID,
		SearchType:   search.SearchType,
		Query:        search.Query,
		Cost:         search.Cost,
		Status:       search.Status,
		ResultsCount: search.ResultsCount,
		RefundReason: search.RefundReason,
		CreatedAt:    search.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GetBalance returns the caller's credit balance
//
// @Summary Get credit balance
// @Produce json
// @Success 200 {object} BalanceResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/credits [get]
func (h *CreditsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	credits, err := h.service.GetBalance(r.Context(), claims.UserID())
	if err != nil {
		if err == models.ErrNotFound {
			pkghttp.WriteNotFound(w, "Profile not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, BalanceResponse{Credits: credits})
}

// ListSearches returns the caller's lookup history, newest first
//
// @Summary List past lookups
// @Param limit query int false "Limit (default 20)" default(20)
// @Param offset query int false "Offset (default 0)" default(0)
// @Produce json
// @Success 200 {object} HistoryResponse
// @Router /api/searches [get]
func (h *CreditsHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			pkghttp.WriteBadRequest(w, "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	searches, err := h.service.History(r.Context(), claims.UserID(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := HistoryResponse{
		Searches: make([]*SearchRecordResponse, len(searches)),
		Count:    len(searches),
	}
	for i, search := range searches {
		response.Searches[i] = searchModelToResponse(search)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}
