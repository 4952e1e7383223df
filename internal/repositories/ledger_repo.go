package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/pinkflag/backend/internal/database"
	"github.com/pinkflag/backend/internal/models"
)

// LedgerRepository owns all Account and Search mutations. Debit, Refund and
// Finalize each run as a single transaction so that concurrent requests for
// the same user serialize on the profile row and the balance can never go
// negative. Callers never touch balances directly.
type LedgerRepository struct {
	db *database.DB
}

func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// rowScanner interface for scanning search rows (single row or rows iterator)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const searchColumns = `id, user_id, search_type, query, cost, status, results_count, refund_reason, providers_tried, created_at, updated_at`

func scanSearchRow(scanner rowScanner) (*models.Search, error) {
	var search models.Search
	var resultsCount *int
	var refundReason *string

	err := scanner.Scan(
		&search.ID, &search.UserID, &search.SearchType, &search.Query,
		&search.Cost, &search.Status, &resultsCount, &refundReason,
		pq.Array(&search.ProvidersTried),
		&search.CreatedAt, &search.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	search.ResultsCount = resultsCount
	search.RefundReason = refundReason

	return &search, nil
}

func scanSearchRows(rows pgx.Rows) ([]*models.Search, error) {
	defer rows.Close()

	searches := make([]*models.Search, 0)

	for rows.Next() {
		search, err := scanSearchRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		searches = append(searches, search)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return searches, nil
}

// GetProfile returns the credit profile for a user.
func (r *LedgerRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, credits, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`

	var profile models.Profile
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&profile.UserID, &profile.Credits, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &profile, nil
}

// Debit atomically checks the balance, decrements it by cost and records a
// pending search. If the balance cannot cover the cost, nothing is written
// and an InsufficientCreditsError carrying the current balance is returned.
func (r *LedgerRepository) Debit(ctx context.Context, userID, searchType, query string, cost int) (*models.DebitResult, error) {
	if cost <= 0 {
		return nil, fmt.Errorf("invalid debit cost %d", cost)
	}

	// Read committed on purpose: a debit that blocks on the row lock re-reads
	// the winner's committed balance once it acquires the lock, so losers get
	// InsufficientCreditsError instead of a serialization failure.
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin debit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent debits for the same user on the profile row.
	var credits int
	err = tx.QueryRow(ctx, `SELECT credits FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&credits)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if credits < cost {
		return nil, &models.InsufficientCreditsError{Credits: credits}
	}

	// Conditional update as a second guard: even if locking semantics ever
	// change, the balance cannot be driven below zero.
	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET credits = credits - $1, updated_at = now()
		WHERE user_id = $2 AND credits >= $1
	`, cost, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if tag.RowsAffected() != 1 {
		return nil, &models.InsufficientCreditsError{Credits: credits}
	}

	searchID := uuid.New().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO searches (id, user_id, search_type, query, cost, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, searchID, userID, searchType, query, cost, models.SearchStatusPending)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}

	return &models.DebitResult{SearchID: searchID, Remaining: credits - cost}, nil
}

// Refund credits back the cost of a failed search and marks it refunded with
// the given reason. A search already in a terminal state returns
// models.ErrSearchFinal and moves no money, which keeps retried error paths
// from double-crediting.
func (r *LedgerRepository) Refund(ctx context.Context, userID, searchID, reason string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("invalid refund amount %d", amount)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM searches WHERE id = $1 AND user_id = $2 FOR UPDATE
	`, searchID, userID).Scan(&status)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	if status != models.SearchStatusPending {
		return 0, models.ErrSearchFinal
	}

	_, err = tx.Exec(ctx, `
		UPDATE searches SET status = $1, refund_reason = $2, updated_at = now()
		WHERE id = $3
	`, models.SearchStatusRefunded, reason, searchID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE profiles SET credits = credits + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING credits
	`, amount, userID).Scan(&remaining)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit refund: %w", err)
	}

	return remaining, nil
}

// Finalize marks a pending search completed and stores the result count and
// the providers attempted. It moves no money. A terminal search returns
// models.ErrSearchFinal.
func (r *LedgerRepository) Finalize(ctx context.Context, searchID string, resultsCount int, providersTried []string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM searches WHERE id = $1 FOR UPDATE`, searchID).Scan(&status)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if status != models.SearchStatusPending {
		return models.ErrSearchFinal
	}

	_, err = tx.Exec(ctx, `
		UPDATE searches
		SET status = $1, results_count = $2, providers_tried = $3, updated_at = now()
		WHERE id = $4
	`, models.SearchStatusCompleted, resultsCount, pq.Array(providersTried), searchID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit finalize: %w", err)
	}

	return nil
}

// GetSearch retrieves a single search record.
func (r *LedgerRepository) GetSearch(ctx context.Context, id string) (*models.Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE id = $1`
	return scanSearchRow(r.db.Pool.QueryRow(ctx, query, id))
}

// ListSearches returns a user's search history, newest first.
func (r *LedgerRepository) ListSearches(ctx context.Context, userID string, limit, offset int) ([]*models.Search, error) {
	query := `
		SELECT ` + searchColumns + `
		FROM searches WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}

	return scanSearchRows(rows)
}

// AddPurchase credits a purchase to the user's balance, creating the profile
// if necessary. The purchase transaction ID is unique: a replayed webhook
// delivery returns the current balance with duplicate=true and credits
// nothing.
func (r *LedgerRepository) AddPurchase(ctx context.Context, purchase *models.CreditPurchase) (int, bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin purchase transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	purchase.ID = uuid.New().String()
	purchase.CreatedAt = time.Now()

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_purchases (id, user_id, transaction_id, product_id, credits_added, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, purchase.ID, purchase.UserID, purchase.TransactionID, purchase.ProductID,
		purchase.CreditsAdded, purchase.Notes, purchase.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// Already processed; report current balance without crediting.
			_ = tx.Rollback(ctx)
			profile, getErr := r.GetProfile(ctx, purchase.UserID)
			if getErr != nil {
				return 0, true, getErr
			}
			return profile.Credits, true, nil
		}
		return 0, false, database.MapPostgresError(err)
	}

	var credits int
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (user_id, credits, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id)
		DO UPDATE SET credits = profiles.credits + EXCLUDED.credits, updated_at = now()
		RETURNING credits
	`, purchase.UserID, purchase.CreditsAdded).Scan(&credits)
	if err != nil {
		return 0, false, database.MapPostgresError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return credits, false, nil
}

// StalePending returns searches stuck in pending longer than maxAge, oldest
// first. The background reaper refunds these so a crash between debit and
// settlement never strands a charge.
func (r *LedgerRepository) StalePending(ctx context.Context, maxAge time.Duration, limit int) ([]*models.Search, error) {
	cutoff := time.Now().Add(-maxAge)

	query := `
		SELECT ` + searchColumns + `
		FROM searches
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, models.SearchStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale searches: %w", err)
	}

	return scanSearchRows(rows)
}
