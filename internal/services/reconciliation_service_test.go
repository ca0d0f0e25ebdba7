package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

func newReconciliationForTest(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	balances := NewVendorBalanceService(db)
	ledger := NewLedgerService(db, balances)
	terminals := NewTerminalService(db)
	service := NewReconciliationService(ledger, terminals, audit.NewAuditLogger())

	return service, mock, func() { db.Close() }
}

func terminalRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"terminal_id", "serial_number", "model", "gateway", "vendor_id", "school_id",
		"status", "connection_status", "last_sync_at", "firmware_version",
		"battery_level", "created_at", "updated_at",
	}).AddRow("POS-001", "SN123", "S920", "stone", "VND1", "SCH1",
		models.TerminalStatusActive, models.ConnectionOffline, nil, "1.0.0", nil, now, now)
}

func expectTerminalFetch(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT terminal_id, serial_number, model, gateway").
		WithArgs("POS-001").
		WillReturnRows(terminalRow())
}

func expectMarkSynced(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE terminals").
		WithArgs("POS-001", models.TerminalStatusActive, models.ConnectionOnline).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestReconciliationService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("valid batch item is saved and heartbeat fires", func(t *testing.T) {
		service, mock, cleanup := newReconciliationForTest(t)
		defer cleanup()

		expectTerminalFetch(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
			WithArgs("VND1").
			WillReturnRows(sqlmock.NewRows([]string{"vendor_id", "name", "type", "commission_rate"}).
				AddRow("VND1", "Cantina", models.VendorTypeThirdParty, 0.10))
		mock.ExpectExec("INSERT INTO vendor_financials").
			WithArgs("VND1", int64(2295), int64(2295)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		expectMarkSynced(mock)

		result, err := service.Reconcile(ctx, "POS-001", []ReportedTransaction{
			{
				TransactionID:   "TX1",
				Amount:          2550,
				PaymentMethod:   models.MethodCredit,
				TransactionDate: time.Now(),
				VendorID:        "VND1",
				SchoolID:        "SCH1",
			},
		})
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.ProcessedCount)
		assert.Empty(t, result.Mismatched)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("incomplete item is mismatched, rest of batch proceeds", func(t *testing.T) {
		service, mock, cleanup := newReconciliationForTest(t)
		defer cleanup()

		expectTerminalFetch(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX2").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
			WithArgs("VND1").
			WillReturnRows(sqlmock.NewRows([]string{"vendor_id", "name", "type", "commission_rate"}).
				AddRow("VND1", "Cantina", models.VendorTypeOwn, nil))
		mock.ExpectExec("INSERT INTO vendor_financials").
			WithArgs("VND1", int64(500), int64(0)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		expectMarkSynced(mock)

		result, err := service.Reconcile(ctx, "POS-001", []ReportedTransaction{
			{
				// vendor_id missing
				TransactionID: "TX-BAD",
				Amount:        100,
				PaymentMethod: models.MethodCredit,
				SchoolID:      "SCH1",
			},
			{
				TransactionID:   "TX2",
				Amount:          500,
				PaymentMethod:   models.MethodDebit,
				TransactionDate: time.Now(),
				VendorID:        "VND1",
				SchoolID:        "SCH1",
			},
		})
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.ProcessedCount)
		assert.Len(t, result.Mismatched, 1)
		assert.Equal(t, "TX-BAD", result.Mismatched[0].TransactionID)
		assert.Equal(t, 0, result.Mismatched[0].Index)
		assert.Equal(t, "Incomplete transaction data", result.Mismatched[0].Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed batch is idempotent", func(t *testing.T) {
		service, mock, cleanup := newReconciliationForTest(t)
		defer cleanup()

		expectTerminalFetch(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectCommit()

		expectMarkSynced(mock)

		result, err := service.Reconcile(ctx, "POS-001", []ReportedTransaction{
			{
				TransactionID:   "TX1",
				Amount:          2550,
				PaymentMethod:   models.MethodCredit,
				TransactionDate: time.Now(),
				VendorID:        "VND1",
				SchoolID:        "SCH1",
			},
		})
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 0, result.ProcessedCount)
		assert.Empty(t, result.Mismatched)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status drift counts as processed on replay", func(t *testing.T) {
		service, mock, cleanup := newReconciliationForTest(t)
		defer cleanup()

		expectTerminalFetch(mock)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectExec("UPDATE transactions SET status = \\$2, updated_at = NOW\\(\\) WHERE transaction_id = \\$1").
			WithArgs("TX1", models.TxStatusCancelled).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		expectMarkSynced(mock)

		result, err := service.Reconcile(ctx, "POS-001", []ReportedTransaction{
			{
				TransactionID:   "TX1",
				Amount:          2550,
				Status:          models.TxStatusCancelled,
				PaymentMethod:   models.MethodCredit,
				TransactionDate: time.Now(),
				VendorID:        "VND1",
				SchoolID:        "SCH1",
			},
		})
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.ProcessedCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown terminal fails the batch", func(t *testing.T) {
		service, mock, cleanup := newReconciliationForTest(t)
		defer cleanup()

		mock.ExpectQuery("SELECT terminal_id, serial_number, model, gateway").
			WithArgs("POS-MISSING").
			WillReturnError(sql.ErrNoRows)

		_, err := service.Reconcile(ctx, "POS-MISSING", []ReportedTransaction{})
		assert.ErrorIs(t, err, ErrTerminalNotFound)
	})
}
