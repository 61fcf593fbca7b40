package db

import (
	"context"
	"time"

	"airtel-gateway/internal/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const orderColumns = `id, reference, amount, currency, state, provider_ref, failure_message, note, stock_reduced, created_at, updated_at`

const attemptColumns = `correlation_id, order_id, amount, currency, msisdn, state, created_at, updated_at`

// OrderRepository persists orders and payment attempts. Terminal
// transitions lock the attempt row so only the first terminal observation
// takes effect.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *payment.Order) error {
	query := `INSERT INTO orders (id, reference, amount, currency, state, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, now(), now())`
	_, err := r.pool.Exec(ctx, query, order.ID, order.Reference, order.Amount, order.Currency, order.State)
	return errors.Wrap(err, "insert order")
}

func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*payment.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

func (r *OrderRepository) FindOrderByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*payment.Order, error) {
	query := `SELECT o.id, o.reference, o.amount, o.currency, o.state, o.provider_ref, o.failure_message, o.note, o.stock_reduced, o.created_at, o.updated_at
	          FROM orders o JOIN payment_attempts a ON a.order_id = o.id
	          WHERE a.correlation_id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, correlationID))
}

func (r *OrderRepository) GetPendingAttempt(ctx context.Context, orderID uuid.UUID) (*payment.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE order_id = $1 AND state = $2`
	return scanAttempt(r.pool.QueryRow(ctx, query, orderID, payment.AttemptPending))
}

func (r *OrderRepository) FindAttempt(ctx context.Context, correlationID uuid.UUID) (*payment.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE correlation_id = $1`
	return scanAttempt(r.pool.QueryRow(ctx, query, correlationID))
}

// CreateAttempt inserts the attempt and moves the order to
// pending_confirmation in one transaction. The partial unique index on
// payment_attempts guarantees at most one pending attempt per order.
func (r *OrderRepository) CreateAttempt(ctx context.Context, attempt *payment.Attempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO payment_attempts (correlation_id, order_id, amount, currency, msisdn, state, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	_, err = tx.Exec(ctx, insert, attempt.CorrelationID, attempt.OrderID, attempt.Amount, attempt.Currency,
		attempt.Msisdn, attempt.State, attempt.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert payment attempt")
	}

	update := `UPDATE orders SET state = $2, updated_at = now() WHERE id = $1`
	_, err = tx.Exec(ctx, update, attempt.OrderID, payment.OrderPendingConfirmation)
	if err != nil {
		return errors.Wrap(err, "update order state")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// ConfirmAttempt marks the order paid, records the provider reference,
// reduces stock and confirms the attempt, all in one transaction. Returns
// applied=false with the existing state when the attempt is already
// terminal.
func (r *OrderRepository) ConfirmAttempt(ctx context.Context, correlationID uuid.UUID, providerRef string) (payment.Transition, error) {
	return r.applyTerminal(ctx, correlationID, payment.AttemptConfirmed, func(tx pgx.Tx, orderID uuid.UUID) error {
		query := `UPDATE orders SET state = $2, provider_ref = $3, stock_reduced = true, updated_at = now() WHERE id = $1`
		_, err := tx.Exec(ctx, query, orderID, payment.OrderPaid, providerRef)
		return errors.Wrap(err, "mark order paid")
	})
}

// RejectAttempt marks the order failed with the provider message and
// rejects the attempt.
func (r *OrderRepository) RejectAttempt(ctx context.Context, correlationID uuid.UUID, message string) (payment.Transition, error) {
	return r.applyTerminal(ctx, correlationID, payment.AttemptRejected, func(tx pgx.Tx, orderID uuid.UUID) error {
		query := `UPDATE orders SET state = $2, failure_message = $3, updated_at = now() WHERE id = $1`
		_, err := tx.Exec(ctx, query, orderID, payment.OrderFailed, message)
		return errors.Wrap(err, "mark order failed")
	})
}

// NoteUnknownStatus appends an operator-visible note without touching the
// order state.
func (r *OrderRepository) NoteUnknownStatus(ctx context.Context, correlationID uuid.UUID, rawStatus, message string) error {
	query := `UPDATE orders o SET note = concat_ws(E'\n', o.note, $2), updated_at = now()
	          FROM payment_attempts a
	          WHERE a.order_id = o.id AND a.correlation_id = $1`
	note := "Received unknown transaction status: " + rawStatus
	if message != "" {
		note += ". Message: " + message
	}

	tag, err := r.pool.Exec(ctx, query, correlationID, note)
	if err != nil {
		return errors.Wrap(err, "append order note")
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrAttemptNotFound
	}
	return nil
}

func (r *OrderRepository) applyTerminal(ctx context.Context, correlationID uuid.UUID, to payment.AttemptState, mutateOrder func(pgx.Tx, uuid.UUID) error) (payment.Transition, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return payment.Transition{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	var state payment.AttemptState

	query := `SELECT order_id, state FROM payment_attempts WHERE correlation_id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, query, correlationID).Scan(&orderID, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Transition{}, payment.ErrAttemptNotFound
		}
		return payment.Transition{}, errors.Wrap(err, "select attempt for update")
	}

	if state.Terminal() {
		return payment.Transition{Applied: false, State: state, OrderID: orderID}, nil
	}

	if err := mutateOrder(tx, orderID); err != nil {
		return payment.Transition{}, err
	}

	update := `UPDATE payment_attempts SET state = $2, updated_at = now() WHERE correlation_id = $1`
	if _, err := tx.Exec(ctx, update, correlationID, to); err != nil {
		return payment.Transition{}, errors.Wrap(err, "update attempt state")
	}

	if err := tx.Commit(ctx); err != nil {
		return payment.Transition{}, errors.Wrap(err, "commit tx")
	}

	return payment.Transition{Applied: true, State: to, OrderID: orderID}, nil
}

func scanOrder(row pgx.Row) (*payment.Order, error) {
	var o payment.Order
	err := row.Scan(&o.ID, &o.Reference, &o.Amount, &o.Currency, &o.State, &o.ProviderRef,
		&o.FailureMessage, &o.Note, &o.StockReduced, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func scanAttempt(row pgx.Row) (*payment.Attempt, error) {
	var a payment.Attempt
	err := row.Scan(&a.CorrelationID, &a.OrderID, &a.Amount, &a.Currency, &a.Msisdn, &a.State, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrAttemptNotFound
		}
		return nil, errors.Wrap(err, "scan payment attempt")
	}
	return &a, nil
}
