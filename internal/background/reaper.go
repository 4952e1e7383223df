package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/services"
)

// reapBatchSize bounds one sweep so a large backlog cannot hold a sweep
// open indefinitely.
const reapBatchSize = 100

// StaleSearchLister finds searches stuck in pending
type StaleSearchLister interface {
	StalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.Search, error)
}

// StaleRefunder settles a stranded pending search
type StaleRefunder interface {
	RefundStale(ctx context.Context, search *models.Search) services.BookkeepingResult
}

// PendingReaper periodically refunds searches stranded in pending. A search
// can strand when the process dies between the debit and settlement; the
// reaper is the backstop that keeps every debit eventually terminal.
type PendingReaper struct {
	ledger   StaleSearchLister
	lookups  StaleRefunder
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

// NewPendingReaper creates a new pending reaper
func NewPendingReaper(
	ledger StaleSearchLister,
	lookups StaleRefunder,
	logger *slog.Logger,
	interval time.Duration,
	maxAge time.Duration,
) *PendingReaper {
	return &PendingReaper{
		ledger:   ledger,
		lookups:  lookups,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic reaping task
func (pr *PendingReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	// Run immediately on startup to settle anything stranded by the
	// previous process.
	pr.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			pr.runSweep(ctx)
		case <-pr.stopCh:
			pr.logger.Info("pending reaper stopped")
			return
		case <-ctx.Done():
			pr.logger.Info("pending reaper context cancelled")
			return
		}
	}
}

// runSweep refunds every search stuck in pending beyond maxAge
func (pr *PendingReaper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stale, err := pr.ledger.StalePending(sweepCtx, pr.maxAge, reapBatchSize)
	if err != nil {
		pr.logger.Error("failed to list stale pending searches", slog.Any("error", err))
		return
	}
	if len(stale) == 0 {
		return
	}

	refunded := 0
	for _, search := range stale {
		result := pr.lookups.RefundStale(sweepCtx, search)
		if result.Applied {
			refunded++
			pr.logger.Warn("refunded stranded pending search",
				slog.String("search_id", search.ID),
				slog.String("user_id", search.UserID),
				slog.String("search_type", search.SearchType),
				slog.Int("cost", search.Cost),
			)
		}
	}

	pr.logger.Info("pending sweep completed",
		slog.Int("stale", len(stale)),
		slog.Int("refunded", refunded),
	)
}

// Stop signals the reaper to stop
func (pr *PendingReaper) Stop() {
	close(pr.stopCh)
}
