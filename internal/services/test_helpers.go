package services

import (
	"context"
	"time"

	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/providers"
)

// MockLedgerStore implements LedgerStore and CreditLedger for testing
type MockLedgerStore struct {
	DebitFunc        func(ctx context.Context, userID, searchType, query string, cost int) (*models.DebitResult, error)
	RefundFunc       func(ctx context.Context, userID, searchID, reason string, amount int) (int, error)
	FinalizeFunc     func(ctx context.Context, searchID string, resultsCount int, providersTried []string) error
	GetProfileFunc   func(ctx context.Context, userID string) (*models.Profile, error)
	ListSearchesFunc func(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error)
	AddPurchaseFunc  func(ctx context.Context, purchase *models.CreditPurchase) (int, bool, error)
}

func (m *MockLedgerStore) Debit(ctx context.Context, userID, searchType, query string, cost int) (*models.DebitResult, error) {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, userID, searchType, query, cost)
	}
	return &models.DebitResult{SearchID: "search_test", Remaining: 0}, nil
}

func (m *MockLedgerStore) Refund(ctx context.Context, userID, searchID, reason string, amount int) (int, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, userID, searchID, reason, amount)
	}
	return amount, nil
}

func (m *MockLedgerStore) Finalize(ctx context.Context, searchID string, resultsCount int, providersTried []string) error {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, searchID, resultsCount, providersTried)
	}
	return nil
}

func (m *MockLedgerStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockLedgerStore) ListSearches(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error) {
	if m.ListSearchesFunc != nil {
		return m.ListSearchesFunc(ctx, userID, limit, offset)
	}
	return []*models.Search{}, nil
}

func (m *MockLedgerStore) AddPurchase(ctx context.Context, purchase *models.CreditPurchase) (int, bool, error) {
	if m.AddPurchaseFunc != nil {
		return m.AddPurchaseFunc(ctx, purchase)
	}
	return purchase.CreditsAdded, false, nil
}

// MockNameSearcher implements NameSearcher for testing
type MockNameSearcher struct {
	SearchFunc func(ctx context.Context, q providers.NameQuery) ([]providers.NameResult, []string, error)
}

func (m *MockNameSearcher) Search(ctx context.Context, q providers.NameQuery) ([]providers.NameResult, []string, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	return []providers.NameResult{}, []string{providers.ProviderMock}, nil
}

// MockPhoneLookuper implements PhoneLookuper for testing
type MockPhoneLookuper struct {
	LookupFunc     func(ctx context.Context, number string) (*providers.PhoneResult, error)
	ConfiguredFunc func() bool
}

func (m *MockPhoneLookuper) Lookup(ctx context.Context, number string) (*providers.PhoneResult, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, number)
	}
	return &providers.PhoneResult{PhoneNumber: number}, nil
}

func (m *MockPhoneLookuper) Configured() bool {
	if m.ConfiguredFunc != nil {
		return m.ConfiguredFunc()
	}
	return true
}

// MockImageSearcher implements ImageSearcher for testing
type MockImageSearcher struct {
	SearchByURLFunc  func(ctx context.Context, imageURL string) (*providers.ImageResult, error)
	SearchByDataFunc func(ctx context.Context, data []byte, filename string) (*providers.ImageResult, error)
	ConfiguredFunc   func() bool
}

func (m *MockImageSearcher) SearchByURL(ctx context.Context, imageURL string) (*providers.ImageResult, error) {
	if m.SearchByURLFunc != nil {
		return m.SearchByURLFunc(ctx, imageURL)
	}
	return &providers.ImageResult{}, nil
}

func (m *MockImageSearcher) SearchByData(ctx context.Context, data []byte, filename string) (*providers.ImageResult, error) {
	if m.SearchByDataFunc != nil {
		return m.SearchByDataFunc(ctx, data, filename)
	}
	return &providers.ImageResult{}, nil
}

func (m *MockImageSearcher) Configured() bool {
	if m.ConfiguredFunc != nil {
		return m.ConfiguredFunc()
	}
	return true
}

// NewTestProfile creates a profile with the given balance
func NewTestProfile(userID string, credits int) *models.Profile {
	now := time.Now()
	return &models.Profile{
		UserID:    userID,
		Credits:   credits,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestSearch creates a pending search record
func NewTestSearch(id, userID, searchType string, cost int) *models.Search {
	now := time.Now()
	return &models.Search{
		ID:         id,
		UserID:     userID,
		SearchType: searchType,
		Query:      "test query",
		Cost:       cost,
		Status:     models.SearchStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestSearchCompleted creates a completed search record
func NewTestSearchCompleted(id, userID, searchType string, cost, resultsCount int) *models.Search {
	search := NewTestSearch(id, userID, searchType, cost)
	search.Status = models.SearchStatusCompleted
	search.ResultsCount = &resultsCount
	return search
}
