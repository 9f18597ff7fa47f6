package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Repository interface {
	CreateRecord(ctx context.Context, rec *Record) error
	GetRecord(ctx context.Context, sessionID uuid.UUID) (*Record, error)

	// MarkCreated stores the identifiers of the remote payment. It only
	// applies while no external payment id is set and reports whether it did.
	MarkCreated(ctx context.Context, sessionID uuid.UUID, orderID string, externalPaymentID int64) (bool, error)

	// UpdateStatus stores status unless the record is already terminal and
	// reports whether a row changed.
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, status Status) (bool, error)

	SaveNotification(
		ctx context.Context,
		sessionID uuid.UUID,
		paymentID string,
		payload json.RawMessage,
	) (notificationID int64, err error)
	MarkNotificationProcessed(ctx context.Context, notificationID int64, ack string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRecord(ctx context.Context, rec *Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	contact, err := json.Marshal(rec.Contact)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}

	const q = `
	INSERT INTO payment_records (
		session_id,
		locale,
		currency_code,
		total_amount,
		ext_order_id,
		items,
		customer_contact
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at;
	`

	return r.db.QueryRowContext(
		ctx,
		q,
		rec.SessionID,
		rec.Locale,
		rec.CurrencyCode,
		rec.TotalAmount,
		rec.ExtOrderID,
		string(items),
		string(contact),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repository) GetRecord(ctx context.Context, sessionID uuid.UUID) (*Record, error) {
	const q = `
	SELECT
		session_id,
		order_id,
		external_payment_id,
		gopay_status,
		locale,
		currency_code,
		total_amount,
		ext_order_id,
		items,
		customer_contact,
		created_at,
		updated_at
	FROM payment_records
	WHERE session_id = $1;
	`

	var (
		rec       Record
		orderID   sql.NullString
		paymentID sql.NullInt64
		status    sql.NullString
		items     []byte
		contact   []byte
	)

	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&rec.SessionID,
		&orderID,
		&paymentID,
		&status,
		&rec.Locale,
		&rec.CurrencyCode,
		&rec.TotalAmount,
		&rec.ExtOrderID,
		&items,
		&contact,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if orderID.Valid {
		rec.OrderID = &orderID.String
	}
	if paymentID.Valid {
		rec.ExternalPaymentID = &paymentID.Int64
	}
	if status.Valid {
		s := Status(status.String)
		rec.GoPayStatus = &s
	}
	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(contact, &rec.Contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}

	return &rec, nil
}

func (r *repository) MarkCreated(
	ctx context.Context,
	sessionID uuid.UUID,
	orderID string,
	externalPaymentID int64,
) (bool, error) {

	const q = `
	UPDATE payment_records
	SET order_id = $2,
		external_payment_id = $3,
		gopay_status = $4,
		updated_at = now()
	WHERE session_id = $1
	  AND external_payment_id IS NULL;
	`

	res, err := r.db.ExecContext(ctx, q, sessionID, orderID, externalPaymentID, string(StatusCreated))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, sessionID uuid.UUID, status Status) (bool, error) {
	const q = `
	UPDATE payment_records
	SET gopay_status = $2,
		updated_at = now()
	WHERE session_id = $1
	  AND (gopay_status IS NULL OR gopay_status NOT IN ('PAID', 'CANCELED', 'TIMEOUTED'));
	`

	res, err := r.db.ExecContext(ctx, q, sessionID, string(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) SaveNotification(
	ctx context.Context,
	sessionID uuid.UUID,
	paymentID string,
	payload json.RawMessage,
) (int64, error) {

	const q = `
	INSERT INTO payment_notifications (
		provider,
		session_id,
		payment_id,
		payload
	)
	VALUES ($1, $2, $3, $4)
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q, "GOPAY", sessionID, paymentID, string(payload)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) MarkNotificationProcessed(ctx context.Context, notificationID int64, ack string) error {
	const q = `
	UPDATE payment_notifications
	SET processed_at = now(),
		acknowledgement = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, notificationID, ack)
	return err
}
