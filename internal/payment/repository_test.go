package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_CreateRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	rec := newTestRecord()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_records`).
			WithArgs(
				rec.SessionID, "en", "CZK", rec.TotalAmount, "000123",
				`[{"name":"Mug","quantity":2,"unit_total":"241"}]`,
				`{"email":"jan@example.com","first_name":"Jan","last_name":"Novak"}`,
			).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		err := repo.CreateRecord(context.Background(), rec)
		assert.NoError(t, err)
		assert.Equal(t, now, rec.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_records`).
			WillReturnError(errors.New("database error"))

		err := repo.CreateRecord(context.Background(), rec)
		assert.Error(t, err)
	})
}

func TestRepository_GetRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()
	now := time.Now()
	columns := []string{
		"session_id", "order_id", "external_payment_id", "gopay_status",
		"locale", "currency_code", "total_amount", "ext_order_id",
		"items", "customer_contact", "created_at", "updated_at",
	}

	t.Run("Success_Created", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_records WHERE session_id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				id.String(), "000123", int64(3000006529), "CREATED",
				"cs", "CZK", "241.00", "000123",
				[]byte(`[{"name":"Mug","quantity":2,"unit_total":"241.00"}]`),
				[]byte(`{"email":"jan@example.com","first_name":"Jan","last_name":"Novak"}`),
				now, now,
			))

		rec, err := repo.GetRecord(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.SessionID)
		require.NotNil(t, rec.OrderID)
		assert.Equal(t, "000123", *rec.OrderID)
		require.NotNil(t, rec.ExternalPaymentID)
		assert.Equal(t, int64(3000006529), *rec.ExternalPaymentID)
		require.NotNil(t, rec.GoPayStatus)
		assert.Equal(t, StatusCreated, *rec.GoPayStatus)
		assert.True(t, decimal.RequireFromString("241").Equal(rec.TotalAmount))
		require.Len(t, rec.Items, 1)
		assert.Equal(t, "Jan", rec.Contact.FirstName)
	})

	t.Run("Success_Fresh", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_records`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				id.String(), nil, nil, nil,
				"cs", "CZK", "10", "000124",
				[]byte(`[]`), []byte(`{}`),
				now, now,
			))

		rec, err := repo.GetRecord(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, rec.OrderID)
		assert.Nil(t, rec.ExternalPaymentID)
		assert.Nil(t, rec.GoPayStatus)
		assert.Equal(t, LifecycleNew, Project(*rec))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_records`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetRecord(context.Background(), id)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("CorruptItems", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM payment_records`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				id.String(), nil, nil, nil,
				"cs", "CZK", "10", "000124",
				[]byte(`{not-json`), []byte(`{}`),
				now, now,
			))

		_, err := repo.GetRecord(context.Background(), id)
		assert.ErrorContains(t, err, "decode items")
	})
}

func TestRepository_MarkCreated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records SET order_id = \$2.*AND external_payment_id IS NULL`).
			WithArgs(id, "000123", int64(42), "CREATED").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkCreated(context.Background(), id, "000123", 42)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AlreadySet", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records`).
			WithArgs(id, "000123", int64(42), "CREATED").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.MarkCreated(context.Background(), id, "000123", 42)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records`).
			WillReturnError(errors.New("db error"))

		_, err := repo.MarkCreated(context.Background(), id, "000123", 42)
		assert.Error(t, err)
	})
}

func TestRepository_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records SET gopay_status = \$2.*NOT IN \('PAID', 'CANCELED', 'TIMEOUTED'\)`).
			WithArgs(id, "PAID").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateStatus(context.Background(), id, StatusPaid)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("TerminalKept", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records SET gopay_status`).
			WithArgs(id, "CANCELED").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.UpdateStatus(context.Background(), id, StatusCanceled)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_records SET gopay_status`).
			WithArgs(id, "PAID").
			WillReturnError(errors.New("db error"))

		_, err := repo.UpdateStatus(context.Background(), id, StatusPaid)
		assert.Error(t, err)
	})
}

func TestRepository_Notifications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	id := uuid.New()
	payload := json.RawMessage(`{"id":"42","token":"t"}`)

	t.Run("Save", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_notifications`).
			WithArgs("GOPAY", id, "42", string(payload)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		nid, err := repo.SaveNotification(ctx, id, "42", payload)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), nid)
	})

	t.Run("SaveError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO payment_notifications`).
			WillReturnError(errors.New("db error"))

		_, err := repo.SaveNotification(ctx, id, "42", payload)
		assert.Error(t, err)
	})

	t.Run("MarkProcessed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payment_notifications SET processed_at = now\(\)`).
			WithArgs(int64(7), "SUCCESS").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkNotificationProcessed(ctx, 7, "SUCCESS")
		assert.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
