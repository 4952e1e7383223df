package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pinkflag/backend/internal/config"
	"github.com/pinkflag/backend/internal/metrics"
	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/providers"
	pkglogger "github.com/pinkflag/backend/pkg/logger"
)

// LedgerStore defines the ledger operations the orchestrator invokes. The
// store owns all balance mutations; the orchestrator never caches or shadows
// balances.
type LedgerStore interface {
	Debit(ctx context.Context, userID, searchType, query string, cost int) (*models.DebitResult, error)
	Refund(ctx context.Context, userID, searchID, reason string, amount int) (int, error)
	Finalize(ctx context.Context, searchID string, resultsCount int, providersTried []string) error
}

// NameSearcher defines the name registry provider interface
type NameSearcher interface {
	Search(ctx context.Context, q providers.NameQuery) ([]providers.NameResult, []string, error)
}

// PhoneLookuper defines the phone intelligence provider interface
type PhoneLookuper interface {
	Lookup(ctx context.Context, number string) (*providers.PhoneResult, error)
	Configured() bool
}

// ImageSearcher defines the reverse image search provider interface
type ImageSearcher interface {
	SearchByURL(ctx context.Context, imageURL string) (*providers.ImageResult, error)
	SearchByData(ctx context.Context, data []byte, filename string) (*providers.ImageResult, error)
	Configured() bool
}

// BookkeepingResult reports a best-effort settlement operation. A failed
// refund or finalize is not an error to the caller: the lookup outcome is
// already decided and a bookkeeping failure must not compound it.
type BookkeepingResult struct {
	Applied      bool
	AlreadyFinal bool
	Remaining    int
}

// NameSearchOutput is a completed name search.
type NameSearchOutput struct {
	Results          []providers.NameResult
	CreditsRemaining int
}

// PhoneLookupOutput is a completed phone lookup.
type PhoneLookupOutput struct {
	Result           *providers.PhoneResult
	CreditsRemaining int
}

// ImageSearchOutput is a completed reverse image search.
type ImageSearchOutput struct {
	Result           *providers.ImageResult
	Message          string
	CreditsRemaining int
}

// ImageInput is either an image URL or uploaded bytes, never both.
type ImageInput struct {
	URL      string
	Data     []byte
	Filename string
}

// LookupService sequences every paid lookup: Debit, provider call, then
// Finalize on success or a classified Refund on failure. The debit always
// happens before the provider call; settlement always happens after the call
// resolves.
type LookupService struct {
	ledger  LedgerStore
	names   NameSearcher
	phones  PhoneLookuper
	images  ImageSearcher
	credits config.CreditsConfig
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

func NewLookupService(
	ledger LedgerStore,
	names NameSearcher,
	phones PhoneLookuper,
	images ImageSearcher,
	credits config.CreditsConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *LookupService {
	return &LookupService{
		ledger:  ledger,
		names:   names,
		phones:  phones,
		images:  images,
		credits: credits,
		logger:  logger,
		audit:   audit,
	}
}

// SearchByName runs a credit-metered name search.
func (s *LookupService) SearchByName(ctx context.Context, userID string, q providers.NameQuery) (*NameSearchOutput, error) {
	cost := s.credits.Cost(models.SearchTypeName)
	query := strings.TrimSpace(q.FirstName + " " + q.LastName)

	debit, err := s.ledger.Debit(ctx, userID, models.SearchTypeName, query, cost)
	if err != nil {
		return nil, err
	}
	s.logDebit(userID, debit, models.SearchTypeName, cost, pkglogger.SanitizedQuery(query))

	// The provider call is detached from the client's context: a client
	// disconnect after the debit must not strand the search in pending.
	// The provider client's own timeout bounds the call.
	callCtx := context.WithoutCancel(ctx)

	results, tried, callErr := s.names.Search(callCtx, q)
	if callErr != nil {
		return nil, s.settleFailure(callCtx, userID, debit, models.SearchTypeName, cost, callErr)
	}

	s.finalize(callCtx, debit.SearchID, len(results), tried)
	metrics.LookupsTotal.WithLabelValues(models.SearchTypeName, "completed").Inc()

	return &NameSearchOutput{Results: results, CreditsRemaining: debit.Remaining}, nil
}

// LookupPhone runs a credit-metered reverse phone lookup. The number must
// already be normalized to digits by the caller.
func (s *LookupService) LookupPhone(ctx context.Context, userID, number string) (*PhoneLookupOutput, error) {
	if !s.phones.Configured() {
		return nil, models.ErrNotConfigured
	}

	cost := s.credits.Cost(models.SearchTypePhone)

	debit, err := s.ledger.Debit(ctx, userID, models.SearchTypePhone, number, cost)
	if err != nil {
		return nil, err
	}
	s.logDebit(userID, debit, models.SearchTypePhone, cost, pkglogger.SanitizedPhone(number))

	callCtx := context.WithoutCancel(ctx)

	result, callErr := s.phones.Lookup(callCtx, number)
	if callErr != nil {
		return nil, s.settleFailure(callCtx, userID, debit, models.SearchTypePhone, cost, callErr)
	}

	resultsCount := 0
	if result.CallerName != nil || result.Carrier != nil || result.LineType != nil {
		resultsCount = 1
	}
	s.finalize(callCtx, debit.SearchID, resultsCount, []string{providers.ProviderPhoneLookup})
	metrics.LookupsTotal.WithLabelValues(models.SearchTypePhone, "completed").Inc()

	return &PhoneLookupOutput{Result: result, CreditsRemaining: debit.Remaining}, nil
}

// SearchImage runs a credit-metered reverse image search.
func (s *LookupService) SearchImage(ctx context.Context, userID string, in ImageInput) (*ImageSearchOutput, error) {
	if !s.images.Configured() {
		return nil, models.ErrNotConfigured
	}

	cost := s.credits.Cost(models.SearchTypeImage)
	query := in.URL
	if query == "" {
		query = "upload:" + in.Filename
	}

	debit, err := s.ledger.Debit(ctx, userID, models.SearchTypeImage, query, cost)
	if err != nil {
		return nil, err
	}
	s.logDebit(userID, debit, models.SearchTypeImage, cost, pkglogger.SanitizedQuery(query))

	callCtx := context.WithoutCancel(ctx)

	var result *providers.ImageResult
	var callErr error
	if in.URL != "" {
		result, callErr = s.images.SearchByURL(callCtx, in.URL)
	} else {
		result, callErr = s.images.SearchByData(callCtx, in.Data, in.Filename)
	}
	if callErr != nil {
		return nil, s.settleFailure(callCtx, userID, debit, models.SearchTypeImage, cost, callErr)
	}

	s.finalize(callCtx, debit.SearchID, result.TotalMatches, []string{providers.ProviderImageSearch})
	metrics.LookupsTotal.WithLabelValues(models.SearchTypeImage, "completed").Inc()

	return &ImageSearchOutput{
		Result:           result,
		Message:          imageMatchMessage(result.TotalMatches),
		CreditsRemaining: debit.Remaining,
	}, nil
}

// RefundStale refunds a search the reaper found stranded in pending. A search
// that reached a terminal state since it was listed is left alone.
func (s *LookupService) RefundStale(ctx context.Context, search *models.Search) BookkeepingResult {
	if search.Terminal() {
		return BookkeepingResult{AlreadyFinal: true}
	}
	return s.refund(ctx, search.UserID, search.ID, models.RefundReasonUnknown, search.Cost)
}

// settleFailure classifies the provider failure, refunds when the policy
// calls for it, and returns the classified error for the transport layer.
func (s *LookupService) settleFailure(ctx context.Context, userID string, debit *models.DebitResult, kind string, cost int, callErr error) error {
	var provErr *providers.Error
	if !errors.As(callErr, &provErr) {
		// Unexpected failure after the debit: refundable by contract.
		provErr = &providers.Error{Outcome: providers.OutcomeUnknown, Err: callErr}
	}

	outcome := provErr.Outcome
	metrics.LookupsTotal.WithLabelValues(kind, outcome.String()).Inc()

	if !s.shouldRefund(outcome) {
		s.logger.Info("provider failure, no refund per policy",
			slog.String("search_id", debit.SearchID),
			slog.String("kind", kind),
			slog.String("outcome", outcome.String()),
		)
		return provErr
	}

	s.refund(ctx, userID, debit.SearchID, outcome.RefundReason(), cost)
	return provErr
}

// shouldRefund applies the refund policy: provider outage modes always
// refund, rate limits and bad input only when configured to.
func (s *LookupService) shouldRefund(outcome providers.Outcome) bool {
	switch outcome {
	case providers.OutcomeRateLimited:
		return s.credits.RefundOnRateLimit
	case providers.OutcomeBadInput:
		return s.credits.RefundOnBadInput
	}
	return outcome.Refundable()
}

// refund is best-effort: a failed refund is logged and swallowed, the user
// already saw the provider failure and a second error helps nobody.
func (s *LookupService) refund(ctx context.Context, userID, searchID, reason string, amount int) BookkeepingResult {
	remaining, err := s.ledger.Refund(ctx, userID, searchID, reason, amount)
	if err != nil {
		if errors.Is(err, models.ErrSearchFinal) {
			return BookkeepingResult{AlreadyFinal: true}
		}
		s.logger.Error("credit refund failed, proceeding without it",
			slog.String("user_id", userID),
			slog.String("search_id", searchID),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return BookkeepingResult{}
	}

	metrics.RefundsTotal.WithLabelValues(reason).Inc()
	s.audit.LogCreditEvent(pkglogger.CreditEvent{
		EventType: "refund",
		UserID:    userID,
		SearchID:  searchID,
		Amount:    amount,
		Reason:    reason,
	})

	return BookkeepingResult{Applied: true, Remaining: remaining}
}

// finalize is bookkeeping only: a failure must not undo the debit or fail
// the response, the lookup already succeeded.
func (s *LookupService) finalize(ctx context.Context, searchID string, resultsCount int, providersTried []string) BookkeepingResult {
	err := s.ledger.Finalize(ctx, searchID, resultsCount, providersTried)
	if err != nil {
		if errors.Is(err, models.ErrSearchFinal) {
			return BookkeepingResult{AlreadyFinal: true}
		}
		s.logger.Warn("failed to finalize search record",
			slog.String("search_id", searchID),
			slog.Any("error", err),
		)
		return BookkeepingResult{}
	}
	return BookkeepingResult{Applied: true}
}

func (s *LookupService) logDebit(userID string, debit *models.DebitResult, kind string, cost int, safeQuery string) {
	metrics.CreditsSpent.WithLabelValues(kind).Add(float64(cost))
	s.audit.LogCreditEvent(pkglogger.CreditEvent{
		EventType: "debit",
		UserID:    userID,
		SearchID:  debit.SearchID,
		Amount:    cost,
		Query:     safeQuery,
	})
}

func imageMatchMessage(totalMatches int) string {
	switch totalMatches {
	case 0:
		return "No matches found. This image appears to be original or not indexed."
	case 1:
		return "1 match found. This image appears elsewhere online."
	}
	return fmt.Sprintf("%d matches found. This image appears on multiple websites.", totalMatches)
}
