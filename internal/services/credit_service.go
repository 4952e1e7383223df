package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pinkflag/backend/internal/models"
	pkglogger "github.com/pinkflag/backend/pkg/logger"
)

// ErrUnknownProduct is returned when a purchase webhook names a product we
// have no credit mapping for.
var ErrUnknownProduct = errors.New("unknown product id")

// productCredits maps billing product IDs to granted credits.
var productCredits = map[string]int{
	"pink_flag_3_searches":  3,
	"pink_flag_10_searches": 10,
	"pink_flag_25_searches": 25,
}

// CreditLedger defines the ledger operations for balance reads and grants.
type CreditLedger interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ListSearches(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error)
	AddPurchase(ctx context.Context, purchase *models.CreditPurchase) (int, bool, error)
}

// GrantResult is the outcome of a purchase credit grant.
type GrantResult struct {
	Credits      int
	CreditsAdded int
	Duplicate    bool
}

// CreditService exposes balance reads, search history and purchase grants.
type CreditService struct {
	ledger CreditLedger
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
}

func NewCreditService(ledger CreditLedger, logger *slog.Logger, audit *pkglogger.AuditLogger) *CreditService {
	return &CreditService{
		ledger: ledger,
		logger: logger,
		audit:  audit,
	}
}

// GetBalance returns the user's current credit balance.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (int, error) {
	profile, err := s.ledger.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		s.logger.Error("failed to get profile", slog.String("user_id", userID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	return profile.Credits, nil
}

// History returns the user's lookup history, newest first.
func (s *CreditService) History(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	searches, err := s.ledger.ListSearches(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list searches", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return searches, nil
}

// GrantPurchase credits a verified purchase to the user's balance. A
// transaction ID seen before returns the current balance with
// Duplicate=true and credits nothing, so webhook redeliveries are safe.
func (s *CreditService) GrantPurchase(ctx context.Context, userID, productID, transactionID string) (*GrantResult, error) {
	creditsToAdd, ok := productCredits[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	purchase := &models.CreditPurchase{
		UserID:        userID,
		TransactionID: transactionID,
		ProductID:     productID,
		CreditsAdded:  creditsToAdd,
		Notes:         fmt.Sprintf("Purchase of %d credits via %s", creditsToAdd, productID),
	}

	credits, duplicate, err := s.ledger.AddPurchase(ctx, purchase)
	if err != nil {
		s.logger.Error("failed to apply purchase",
			slog.String("user_id", userID),
			slog.String("transaction_id", transactionID),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}

	if duplicate {
		s.logger.Info("duplicate purchase transaction ignored",
			slog.String("user_id", userID),
			slog.String("transaction_id", transactionID),
		)
		return &GrantResult{Credits: credits, Duplicate: true}, nil
	}

	s.audit.LogCreditEvent(pkglogger.CreditEvent{
		EventType:     "grant",
		UserID:        userID,
		TransactionID: transactionID,
		Amount:        creditsToAdd,
	})

	return &GrantResult{Credits: credits, CreditsAdded: creditsToAdd}, nil
}
