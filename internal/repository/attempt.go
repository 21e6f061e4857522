package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/payment"
)

const (
	// Replays of the same transaction overwrite nothing; the first attempt
	// row stands.
	recordAttemptSQL = `INSERT INTO payment_attempts
		(transaction_id, provider, user_id, amount, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transaction_id) DO NOTHING`

	completeAttemptSQL = `UPDATE payment_attempts
		SET order_id = $2, completed_at = NOW()
		WHERE transaction_id = $1`

	listDanglingAttemptsSQL = `SELECT transaction_id, provider, user_id, amount,
		reference_id, created_at
		FROM payment_attempts
		WHERE order_id IS NULL AND created_at < $1
		ORDER BY created_at`
)

var _ checkout.AttemptLog = (*AttemptRepository)(nil)

// AttemptRepository persists payment attempt records: the idempotency
// breadcrumbs reconciliation uses to find captures that never became orders.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns an AttemptRepository that uses the given pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Record upserts the attempt keyed by transaction id.
func (r *AttemptRepository) Record(ctx context.Context, a checkout.Attempt) error {
	_, err := r.pool.Exec(ctx, recordAttemptSQL,
		a.TransactionID, string(a.Provider), a.UserID, a.Amount, a.ReferenceID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording payment attempt %q: %w", a.TransactionID, err)
	}
	return nil
}

// MarkCompleted links the attempt to the order it produced.
func (r *AttemptRepository) MarkCompleted(ctx context.Context, transactionID, orderID string) error {
	_, err := r.pool.Exec(ctx, completeAttemptSQL, transactionID, orderID)
	if err != nil {
		return fmt.Errorf("completing payment attempt %q: %w", transactionID, err)
	}
	return nil
}

// ListDangling returns attempts older than cutoff with no linked order.
func (r *AttemptRepository) ListDangling(ctx context.Context, cutoff time.Time) ([]checkout.Attempt, error) {
	rows, err := r.pool.Query(ctx, listDanglingAttemptsSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing dangling payment attempts: %w", err)
	}
	return pgx.CollectRows(rows, scanAttempt)
}

func scanAttempt(row pgx.CollectableRow) (checkout.Attempt, error) {
	var (
		a        checkout.Attempt
		provider string
	)
	err := row.Scan(&a.TransactionID, &provider, &a.UserID, &a.Amount,
		&a.ReferenceID, &a.CreatedAt)
	a.Provider = payment.Method(provider)
	return a, err
}
