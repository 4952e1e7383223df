package handlers

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/services"
)

// MockNameSearchService implements NameSearchService for testing
type MockNameSearchService struct {
	SearchByNameFunc func(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error)
}

func (m *MockNameSearchService) SearchByName(ctx context.Context, userID string, q providers.NameQuery) (*services.NameSearchOutput, error) {
	if m.SearchByNameFunc != nil {
		return m.SearchByNameFunc(ctx, userID, q)
	}
	return &services.NameSearchOutput{Results: []providers.NameResult{}}, nil
}

// MockPhoneLookupService implements PhoneLookupService for testing
type MockPhoneLookupService struct {
	LookupPhoneFunc func(ctx context.Context, userID, number string) (*services.PhoneLookupOutput, error)
}

func (m *MockPhoneLookupService) LookupPhone(ctx context.Context, userID, number string) (*services.PhoneLookupOutput, error) {
	if m.LookupPhoneFunc != nil {
		return m.LookupPhoneFunc(ctx, userID, number)
	}
	return &services.PhoneLookupOutput{Result: &providers.PhoneResult{PhoneNumber: number}}, nil
}

// MockReverseImageService implements ReverseImageService for testing
type MockReverseImageService struct {
	SearchImageFunc func(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error)
}

func (m *MockReverseImageService) SearchImage(ctx context.Context, userID string, in services.ImageInput) (*services.ImageSearchOutput, error) {
	if m.SearchImageFunc != nil {
		return m.SearchImageFunc(ctx, userID, in)
	}
	return &services.ImageSearchOutput{Result: &providers.ImageResult{}}, nil
}

// MockCreditReader implements CreditReader for testing
type MockCreditReader struct {
	GetBalanceFunc func(ctx context.Context, userID string) (int, error)
	HistoryFunc    func(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error)
}

func (m *MockCreditReader) GetBalance(ctx context.Context, userID string) (int, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, userID)
	}
	return 0, models.ErrNotFound
}

func (m *MockCreditReader) History(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, limit, offset)
	}
	return []*models.Search{}, nil
}

// MockPurchaseGranter implements PurchaseGranter for testing
type MockPurchaseGranter struct {
	GrantPurchaseFunc func(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error)
}

func (m *MockPurchaseGranter) GrantPurchase(ctx context.Context, userID, productID, transactionID string) (*services.GrantResult, error) {
	if m.GrantPurchaseFunc != nil {
		return m.GrantPurchaseFunc(ctx, userID, productID, transactionID)
	}
	return &services.GrantResult{}, nil
}

// withTestUser injects verified claims so handlers see an authenticated
// request without running the auth middleware.
func withTestUser(r *http.Request, userID string) *http.Request {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
	ctx := context.WithValue(r.Context(), auth.UserContextKey, claims)
	return r.WithContext(ctx)
}
