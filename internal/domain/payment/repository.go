package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines payment data access
type Repository interface {
	NextInvID(ctx context.Context) (int64, error)
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByInvID(ctx context.Context, invID int64) (*Payment, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Payment, error)
	// MarkPaid flips a pending payment to paid and records the event atomically.
	// It reports false when the payment was no longer pending.
	MarkPaid(ctx context.Context, id uuid.UUID, rawCallback []byte) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	CreateEvent(ctx context.Context, paymentID uuid.UUID, eventType string, payload []byte) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates payment repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// NextInvID allocates the next RoboKassa invoice number from the database sequence
func (r *repository) NextInvID(ctx context.Context) (int64, error) {
	var invID int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('robokassa_invoice_seq')`).Scan(&invID); err != nil {
		return 0, fmt.Errorf("failed to generate invoice id: %w", err)
	}
	return invID, nil
}

func (r *repository) Create(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (id, inv_id, kind, amount, currency, description, email, status, is_test,
		                      payment_url, external_id, raw_init_payload, created_by, created_at, updated_at)
		VALUES (:id, :inv_id, :kind, :amount, :currency, :description, :email, :status, :is_test,
		        :payment_url, :external_id, :raw_init_payload, :created_by, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetByInvID(ctx context.Context, invID int64) (*Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE inv_id = $1`, invID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment by inv_id: %w", err)
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, status Status, limit, offset int) ([]*Payment, error) {
	query := `
		SELECT * FROM payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var payments []*Payment
	err := r.db.SelectContext(ctx, &payments, query, string(status), limit, offset)
	return payments, err
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, rawCallback []byte) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, paid_at = NOW(), updated_at = NOW(), raw_callback_payload = $3
		WHERE id = $1 AND status = $4`,
		id, StatusPaid, rawCallback, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := insertEvent(ctx, tx, id, EventResultSucceeded, rawCallback); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *repository) CreateEvent(ctx context.Context, paymentID uuid.UUID, eventType string, payload []byte) error {
	return insertEvent(ctx, r.db, paymentID, eventType, payload)
}

func insertEvent(ctx context.Context, exec sqlx.ExecerContext, paymentID uuid.UUID, eventType string, payload []byte) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO payment_events (id, payment_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), paymentID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment event: %w", err)
	}
	return nil
}
