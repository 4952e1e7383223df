package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinkflag/backend/internal/models"
	"github.com/pinkflag/backend/internal/repositories"
)

func setupLedger(t *testing.T) (*TestDB, *repositories.LedgerRepository, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		testDB.Teardown(context.Background())
	})

	return testDB, repositories.NewLedgerRepository(testDB.DB), ctx
}

func TestLedger_DebitAndFinalize(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 5))

	debit, err := ledger.Debit(ctx, "user-1", models.SearchTypeName, "Jane Doe", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, debit.Remaining)

	require.NoError(t, ledger.Finalize(ctx, debit.SearchID, 3, []string{"offender_registry"}))

	search, err := ledger.GetSearch(ctx, debit.SearchID)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusCompleted, search.Status)
	require.NotNil(t, search.ResultsCount)
	assert.Equal(t, 3, *search.ResultsCount)
	assert.Equal(t, []string{"offender_registry"}, search.ProvidersTried)

	profile, err := ledger.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, profile.Credits)
}

func TestLedger_DebitRefundSymmetry(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 5))

	debit, err := ledger.Debit(ctx, "user-1", models.SearchTypePhone, "5551234567", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, debit.Remaining)

	remaining, err := ledger.Refund(ctx, "user-1", debit.SearchID, models.RefundReasonTimeout, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	search, err := ledger.GetSearch(ctx, debit.SearchID)
	require.NoError(t, err)
	assert.Equal(t, models.SearchStatusRefunded, search.Status)
	require.NotNil(t, search.RefundReason)
	assert.Equal(t, models.RefundReasonTimeout, *search.RefundReason)
}

func TestLedger_DoubleRefundIsRejected(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 5))

	debit, err := ledger.Debit(ctx, "user-1", models.SearchTypeImage, "upload:a.jpg", 1)
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, "user-1", debit.SearchID, models.RefundReasonNetwork, 1)
	require.NoError(t, err)

	_, err = ledger.Refund(ctx, "user-1", debit.SearchID, models.RefundReasonNetwork, 1)
	assert.ErrorIs(t, err, models.ErrSearchFinal)

	// The second attempt must not have moved money.
	profile, err := ledger.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, profile.Credits)
}

func TestLedger_RefundAfterFinalizeIsRejected(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 5))

	debit, err := ledger.Debit(ctx, "user-1", models.SearchTypeName, "Jane Doe", 1)
	require.NoError(t, err)

	require.NoError(t, ledger.Finalize(ctx, debit.SearchID, 0, []string{"mock"}))

	_, err = ledger.Refund(ctx, "user-1", debit.SearchID, models.RefundReasonUnknown, 1)
	assert.ErrorIs(t, err, models.ErrSearchFinal)
}

func TestLedger_InsufficientCreditsWritesNothing(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 1))

	_, err := ledger.Debit(ctx, "user-1", models.SearchTypePhone, "5551234567", 2)

	var insufficientErr *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, 1, insufficientErr.Credits)

	// No pending row and no balance change.
	pending, err := CountSearches(ctx, testDB.Pool, "user-1", models.SearchStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	profile, err := ledger.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Credits)
}

func TestLedger_ConcurrentDebitsNeverOverspend(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 3))

	const workers = 10
	var wg sync.WaitGroup
	successes := make(chan string, workers)
	failures := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			debit, err := ledger.Debit(ctx, "user-1", models.SearchTypeName, "Jane Doe", 1)
			if err != nil {
				failures <- err
				return
			}
			successes <- debit.SearchID
		}()
	}
	wg.Wait()
	close(successes)
	close(failures)

	// Exactly 3 credits existed, so exactly 3 debits can win.
	assert.Len(t, successes, 3)
	assert.Len(t, failures, workers-3)
	for err := range failures {
		var insufficientErr *models.InsufficientCreditsError
		assert.True(t, errors.As(err, &insufficientErr), "unexpected error: %v", err)
	}

	profile, err := ledger.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.Credits)

	pending, err := CountSearches(ctx, testDB.Pool, "user-1", models.SearchStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestLedger_ContendedDebitLoserSeesBalance(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 2))

	// Both callers race for the same last 2 credits. The loser blocks on the
	// winner's row lock and must come back with the drained balance, not a
	// serialization failure.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(ctx, "user-1", models.SearchTypePhone, "5551234567", 2)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		losses++
		var insufficientErr *models.InsufficientCreditsError
		require.True(t, errors.As(err, &insufficientErr), "unexpected error: %v", err)
		assert.Equal(t, 0, insufficientErr.Credits)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	profile, err := ledger.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.Credits)
}

func TestLedger_PurchaseIdempotency(t *testing.T) {
	_, ledger, ctx := setupLedger(t)

	purchase := &models.CreditPurchase{
		UserID:        "user-1",
		TransactionID: "txn-1",
		ProductID:     "pink_flag_10_searches",
		CreditsAdded:  10,
		Notes:         "Purchase of 10 credits via pink_flag_10_searches",
	}

	// First delivery creates the profile and credits it.
	credits, duplicate, err := ledger.AddPurchase(ctx, purchase)
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, 10, credits)

	// Redelivery credits nothing.
	replay := &models.CreditPurchase{
		UserID:        "user-1",
		TransactionID: "txn-1",
		ProductID:     "pink_flag_10_searches",
		CreditsAdded:  10,
	}
	credits, duplicate, err = ledger.AddPurchase(ctx, replay)
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, 10, credits)
}

func TestLedger_StalePending(t *testing.T) {
	testDB, ledger, ctx := setupLedger(t)

	require.NoError(t, SeedProfile(ctx, testDB.Pool, "user-1", 5))

	debit, err := ledger.Debit(ctx, "user-1", models.SearchTypePhone, "5551234567", 2)
	require.NoError(t, err)

	// Not stale yet.
	stale, err := ledger.StalePending(ctx, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Age the row past the cutoff.
	_, err = testDB.Pool.Exec(ctx, `
		UPDATE searches SET created_at = NOW() - INTERVAL '10 minutes' WHERE id = $1
	`, debit.SearchID)
	require.NoError(t, err)

	stale, err = ledger.StalePending(ctx, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, debit.SearchID, stale[0].ID)

	// The reaper's refund path settles it.
	remaining, err := ledger.Refund(ctx, stale[0].UserID, stale[0].ID, models.RefundReasonUnknown, stale[0].Cost)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}
