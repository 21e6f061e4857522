package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
)

const (
	// The partial unique index on payment_transaction_id makes the insert a
	// no-op when the same gateway transaction already produced an order.
	createOrderSQL = `INSERT INTO orders
		(id, number, user_id, items, address, subtotal, shipping, discount, total,
		 payment_method, payment_status, payment_details, status, timeline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (payment_transaction_id) DO NOTHING`

	selectOrderSQL = `SELECT id, number, user_id, items, address, subtotal, shipping,
		discount, total, payment_method, payment_status, payment_details, status,
		timeline, created_at FROM orders`

	getOrderByIDSQL = selectOrderSQL + ` WHERE id = $1`

	getOrderByTransactionSQL = selectOrderSQL + ` WHERE payment_transaction_id = $1`

	updateOrderStatusSQL = `UPDATE orders
		SET status = $2, timeline = timeline || $3::jsonb
		WHERE id = $1
		RETURNING id, number, user_id, items, address, subtotal, shipping, discount,
			total, payment_method, payment_status, payment_details, status, timeline,
			created_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Item and
// address snapshots, payment details, and the timeline live in JSONB columns;
// payment_transaction_id is a generated column over payment_details used for
// the idempotency constraint.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. When an order for the same payment transaction
// already exists, it returns that order with created=false instead of
// inserting a duplicate.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (*order.Order, bool, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling order address: %w", err)
	}
	detailsJSON, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling payment details: %w", err)
	}
	timelineJSON, err := json.Marshal(o.Timeline)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling timeline: %w", err)
	}
	var discountJSON []byte
	if o.Discount != nil {
		discountJSON, err = json.Marshal(o.Discount)
		if err != nil {
			return nil, false, fmt.Errorf("marshaling applied discount: %w", err)
		}
	}

	tag, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.UserID, itemsJSON, addressJSON,
		o.Subtotal, o.Shipping, discountJSON, o.Total,
		string(o.PaymentMethod), string(o.PaymentStatus), detailsJSON,
		string(o.Status), timelineJSON, o.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := r.FindByTransactionID(ctx, o.PaymentDetails.TransactionID)
		if err != nil {
			return nil, false, fmt.Errorf("loading conflicting order for transaction %q: %w",
				o.PaymentDetails.TransactionID, err)
		}
		return existing, false, nil
	}

	return o, true, nil
}

// GetByID returns an order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.queryOne(ctx, getOrderByIDSQL, id)
}

// FindByTransactionID returns the order paid for by the given gateway
// transaction, or order.ErrNotFound.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	return r.queryOne(ctx, getOrderByTransactionSQL, transactionID)
}

// UpdateStatus sets the status and appends the timeline entry in one
// statement, so the timeline can only ever grow.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, entry order.TimelineEntry) (*order.Order, error) {
	entryJSON, err := json.Marshal([]order.TimelineEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("marshaling timeline entry: %w", err)
	}

	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, string(status), entryJSON)
	if err != nil {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}
	return &o, nil
}

func (r *OrderRepository) queryOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		addressJSON   []byte
		discountJSON  []byte
		detailsJSON   []byte
		timelineJSON  []byte
		paymentMethod string
		paymentStatus string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &itemsJSON, &addressJSON,
		&o.Subtotal, &o.Shipping, &discountJSON, &o.Total,
		&paymentMethod, &paymentStatus, &detailsJSON,
		&status, &timelineJSON, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	if err := json.Unmarshal(detailsJSON, &o.PaymentDetails); err != nil {
		return o, fmt.Errorf("unmarshaling payment details: %w", err)
	}
	if err := json.Unmarshal(timelineJSON, &o.Timeline); err != nil {
		return o, fmt.Errorf("unmarshaling timeline: %w", err)
	}
	if len(discountJSON) > 0 {
		o.Discount = &order.AppliedDiscount{}
		if err := json.Unmarshal(discountJSON, o.Discount); err != nil {
			return o, fmt.Errorf("unmarshaling applied discount: %w", err)
		}
	}

	o.PaymentMethod = payment.Method(paymentMethod)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	return o, nil
}
