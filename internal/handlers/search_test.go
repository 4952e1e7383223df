package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
)

func TestSearchHandler_SearchByName(t *testing.T) {
	service := &MockNameSearchService{
		SearchByNameFunc: func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
			assert.Equal(t, "user123", userID)
			assert.Equal(t, "Jane", q.FirstName)
			assert.Equal(t, "Doe", q.LastName)
			return &services.NameSearchOutput{
				Results:          []providers.NameResult{{FullName: "Jane Doe"}},
				CreditsRemaining: 4,
			}, nil
		},
	}
	handler := NewSearchHandler(service)

	body := `{"firstName": "Jane", "lastName": "Doe"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/search/name", strings.NewReader(body)), "user123")
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp NameSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 4, resp.CreditsRemaining)
	assert.Equal(t, "Jane Doe", resp.Results[0].FullName)
}

func TestSearchHandler_MissingLastName(t *testing.T) {
	called := false
	service := &MockNameSearchService{
		SearchByNameFunc: func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
			called = true
			return nil, nil
		},
	}
	handler := NewSearchHandler(service)

	body := `{"firstName": "Jane"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/search/name", strings.NewReader(body)), "user123")
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called, "invalid input must never reach the service")
}

func TestSearchHandler_Unauthenticated(t *testing.T) {
	handler := NewSearchHandler(&MockNameSearchService{})

	req := httptest.NewRequest("POST", "/api/search/name", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchHandler_InsufficientCredits(t *testing.T) {
	service := &MockNameSearchService{
		SearchByNameFunc: func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
			return nil, &models.InsufficientCreditsError{Credits: 1}
		},
	}
	handler := NewSearchHandler(service)

	body := `{"firstName": "Jane", "lastName": "Doe"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/search/name", strings.NewReader(body)), "user123")
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var resp InsufficientCreditsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_credits", resp.Error)
	assert.Equal(t, 1, resp.CurrentCredits)
}

func TestSearchHandler_ProviderMaintenance(t *testing.T) {
	service := &MockNameSearchService{
		SearchByNameFunc: func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
			return nil, &providers.Error{Outcome: providers.OutcomeMaintenance, Status: 503}
		},
	}
	handler := NewSearchHandler(service)

	body := `{"firstName": "Jane", "lastName": "Doe"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/search/name", strings.NewReader(body)), "user123")
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refunded")
}

func TestSearchHandler_EmptyResults(t *testing.T) {
	service := &MockNameSearchService{
		SearchByNameFunc: func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
			return &services.NameSearchOutput{Results: nil, CreditsRemaining: 4}, nil
		},
	}
	handler := NewSearchHandler(service)

	body := `{"firstName": "Jane", "lastName": "Doe"}`
	req := withTestUser(httptest.NewRequest("POST", "/api/search/name", strings.NewReader(body)), "user123")
	w := httptest.NewRecorder()

	handler.SearchByName(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}
