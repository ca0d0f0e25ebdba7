package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

func newRefundForTest(t *testing.T, gatewayURL string) (*RefundService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	balances := NewVendorBalanceService(db)
	ledger := NewLedgerService(db, balances)
	factory := gateway.NewFactory(map[string]gateway.Config{
		"stone": {BaseURL: gatewayURL, APIKey: "test-key"},
	})
	service := NewRefundService(ledger, factory, audit.NewAuditLogger())

	return service, mock, func() { db.Close() }
}

func purchaseRow(transactionID string, amount int64, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"transaction_id", "gateway", "terminal_id", "device_id", "amount", "status", "type",
		"payment_method", "card_brand", "installments", "authorization_code", "nsu",
		"transaction_date", "vendor_id", "school_id", "student_id", "metadata", "created_at", "updated_at",
	}).AddRow(transactionID, "stone", "POS-001", nil, amount, status, models.TxTypePurchase,
		models.MethodCredit, "visa", 1, "AUTH1", "000001", now, "VND1", "SCH1", nil, nil, now, now)
}

func expectRefundSave(mock sqlmock.Sqlmock, refundID string, netDelta int64) {
	mock.ExpectBegin()
	// the original row's lock and the re-check of the cumulative sum
	mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
		WithArgs("TX1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
		WithArgs(models.TxTypeRefund, "TX1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
		WithArgs(refundID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT vendor_id, COALESCE\\(name, ''\\), type, commission_rate").
		WithArgs("VND1").
		WillReturnRows(sqlmock.NewRows([]string{"vendor_id", "name", "type", "commission_rate"}).
			AddRow("VND1", "Cantina", models.VendorTypeThirdParty, 0.10))
	mock.ExpectExec("INSERT INTO vendor_financials").
		WithArgs("VND1", netDelta, netDelta).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestRefundService_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("full refund reverses the original", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/charges/TX1/refunds", r.URL.Path)
			fmt.Fprint(w, `{"id": "RF999", "status": "refunded"}`)
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		expectRefundSave(mock, "RF999", int64(-900))

		refund, err := service.Refund(ctx, "TX1", nil, "wrong item")
		assert.NoError(t, err)
		assert.Equal(t, "RF999", refund.TransactionID)
		assert.Equal(t, int64(-1000), refund.Amount)
		assert.Equal(t, models.TxTypeRefund, refund.Type)
		assert.Equal(t, "TX1", refund.OriginalTransactionID())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refund id falls back when gateway returns none", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status": "refunded"}`)
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		expectRefundSave(mock, "RF-TX1", int64(-900))

		refund, err := service.Refund(ctx, "TX1", nil, "")
		assert.NoError(t, err)
		assert.Equal(t, "RF-TX1", refund.TransactionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial refund pro-rates the reversal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": "RF100", "status": "refunded"}`)
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		expectRefundSave(mock, "RF100", int64(-360))

		amount := int64(400)
		refund, err := service.Refund(ctx, "TX1", &amount, "partial return")
		assert.NoError(t, err)
		assert.Equal(t, int64(-400), refund.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cumulative refunds cannot exceed the original", func(t *testing.T) {
		gatewayCalled := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gatewayCalled = true
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(700))

		amount := int64(400)
		_, err := service.Refund(ctx, "TX1", &amount, "")
		assert.ErrorIs(t, err, ErrRefundExceedsOriginal)
		assert.False(t, gatewayCalled)
	})

	t.Run("refund racing past the early check is rejected at save", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": "RF2", "status": "refunded"}`)
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
		// another refund commits between the early check and the save
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT status FROM transactions WHERE transaction_id = \\$1 FOR UPDATE").
			WithArgs("TX1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1000))
		mock.ExpectRollback()

		_, err := service.Refund(ctx, "TX1", nil, "")
		assert.ErrorIs(t, err, ErrRefundExceedsOriginal)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending purchase is not refundable", func(t *testing.T) {
		service, mock, cleanup := newRefundForTest(t, "http://unused")
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusPending))

		_, err := service.Refund(ctx, "TX1", nil, "")
		assert.ErrorIs(t, err, ErrNotRefundable)
	})

	t.Run("gateway decline leaves the ledger untouched", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": "RF1", "status": "denied"}`)
		}))
		defer server.Close()

		service, mock, cleanup := newRefundForTest(t, server.URL)
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("TX1").
			WillReturnRows(purchaseRow("TX1", 1000, models.TxStatusCompleted))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(-amount\\), 0\\)").
			WithArgs(models.TxTypeRefund, "TX1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

		_, err := service.Refund(ctx, "TX1", nil, "")
		assert.ErrorIs(t, err, ErrRefundDeclined)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown transaction", func(t *testing.T) {
		service, mock, cleanup := newRefundForTest(t, "http://unused")
		defer cleanup()

		mock.ExpectQuery("SELECT").
			WithArgs("MISSING").
			WillReturnError(sql.ErrNoRows)

		_, err := service.Refund(ctx, "MISSING", nil, "")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}
