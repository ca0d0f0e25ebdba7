package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

func newLedgerForTest(t *testing.T) (*LedgerService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	balances := NewVendorBalanceService(db)
	return NewLedgerService(db, balances), mock, func() { db.Close() }
}

func thirdPartyVendorRow(rate float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"vendor_id", "name", "type", "commission_rate"}).
		AddRow("VND1", "Cantina", models.VendorTypeThirdParty, rate)
}

func TestLedgerService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("new completed purchase credits vendor net of commission", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
			WithArgs("VND1").
			WillReturnRows(thirdPartyVendorRow(0.10))
		mock.ExpectExec("INSERT INTO vendor_financials").
			WithArgs("VND1", int64(900), int64(900)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		changed, err := service.Save(ctx, &models.Transaction{
			TransactionID:   "TX1",
			Gateway:         "stone",
			TerminalID:      "POS-001",
			Amount:          1000,
			Status:          models.TxStatusCompleted,
			Type:            models.TxTypePurchase,
			PaymentMethod:   models.MethodCredit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
		})
		assert.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replay of completed transaction changes nothing", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectCommit()

		changed, err := service.Save(ctx, &models.Transaction{
			TransactionID:   "TX1",
			Amount:          1000,
			Status:          models.TxStatusCompleted,
			Type:            models.TxTypePurchase,
			PaymentMethod:   models.MethodCredit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
		})
		assert.NoError(t, err)
		assert.False(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending to completed transition applies balance once", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX2").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusPending))
		mock.ExpectExec("UPDATE transactions SET status = \\$2, updated_at = NOW\\(\\) WHERE transaction_id = \\$1").
			WithArgs("TX2", models.TxStatusCompleted).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
			WithArgs("VND1").
			WillReturnRows(thirdPartyVendorRow(0.10))
		mock.ExpectExec("INSERT INTO vendor_financials").
			WithArgs("VND1", int64(450), int64(450)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		changed, err := service.Save(ctx, &models.Transaction{
			TransactionID:   "TX2",
			Amount:          500,
			Status:          models.TxStatusCompleted,
			Type:            models.TxTypePurchase,
			PaymentMethod:   models.MethodDebit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
		})
		assert.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed to failed updates status without balance effect", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX3").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectExec("UPDATE transactions SET status = \\$2, updated_at = NOW\\(\\) WHERE transaction_id = \\$1").
			WithArgs("TX3", models.TxStatusFailed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := service.Save(ctx, &models.Transaction{
			TransactionID:   "TX3",
			Amount:          500,
			Status:          models.TxStatusFailed,
			Type:            models.TxTypePurchase,
			PaymentMethod:   models.MethodCredit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
		})
		assert.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed purchase is stored without balance effect", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX4").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		changed, err := service.Save(ctx, &models.Transaction{
			TransactionID:   "TX4",
			Amount:          500,
			Status:          models.TxStatusFailed,
			Type:            models.TxTypePurchase,
			PaymentMethod:   models.MethodCredit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
		})
		assert.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_GetByID_NotFound(t *testing.T) {
	service, mock, cleanup := newLedgerForTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT").
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := service.GetByID(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_SaveRefund(t *testing.T) {
	ctx := context.Background()
	original := &models.Transaction{
		TransactionID: "TX1",
		Amount:        1000,
		Status:        models.TxStatusCompleted,
		Type:          models.TxTypePurchase,
		VendorID:      "VND1",
	}
	newRefund := func() *models.Transaction {
		return &models.Transaction{
			TransactionID:   "RF1",
			Amount:          -1000,
			Status:          models.TxStatusCompleted,
			Type:            models.TxTypeRefund,
			PaymentMethod:   models.MethodCredit,
			TransactionDate: time.Now(),
			VendorID:        "VND1",
			SchoolID:        "SCH1",
			Metadata:        map[string]any{models.MetaOriginalTransactionID: "TX1"},
		}
	}

	t.Run("locks the original and stores the reversal", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("RF1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
			WithArgs("VND1").
			WillReturnRows(thirdPartyVendorRow(0.10))
		mock.ExpectExec("INSERT INTO vendor_financials").
			WithArgs("VND1", int64(-900), int64(-900)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := service.SaveRefund(ctx, original, newRefund())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refund that landed concurrently is seen under the lock", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1000))
		mock.ExpectRollback()

		err := service.SaveRefund(ctx, original, newRefund())
		assert.ErrorIs(t, err, ErrRefundExceedsOriginal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("original row gone returns not found", func(t *testing.T) {
		service, mock, cleanup := newLedgerForTest(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := service.SaveRefund(ctx, original, newRefund())
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_SumRefunded(t *testing.T) {
	service, mock, cleanup := newLedgerForTest(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
		WithArgs(models.TxTypeRefund, "TX1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(600))

	total, err := service.SumRefunded(context.Background(), "TX1")
	assert.NoError(t, err)
	assert.Equal(t, int64(600), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
