package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// LedgerService is the authoritative, append-mostly store of payment-gateway
// transactions, keyed by transaction_id. Saves are idempotent on that id: a
// repeat save updates the mutable status field, it never creates a duplicate
// row.
type LedgerService struct {
	db       *sql.DB
	balances *VendorBalanceService
}

func NewLedgerService(db *sql.DB, balances *VendorBalanceService) *LedgerService {
	return &LedgerService{db: db, balances: balances}
}

const transactionColumns = `
        transaction_id, gateway, terminal_id, device_id, amount, status, type,
        payment_method, card_brand, installments, authorization_code, nsu,
        transaction_date, vendor_id, school_id, student_id, metadata, created_at, updated_at`

// Save persists the transaction in its own unit of work. When the save moves
// the row into status=completed, the vendor balance effect is applied inside
// the same database transaction: ledger write and balance write commit or
// roll back together. The bool reports whether ledger state changed: a row
// was inserted or its status overwritten. A replay whose stored status
// already matches is a no-op and returns false.
func (s *LedgerService) Save(ctx context.Context, tx *models.Transaction) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	changed, err := s.SaveTx(dbTx, tx)
	if err != nil {
		return false, err
	}

	if err := dbTx.Commit(); err != nil {
		return false, err
	}
	return changed, nil
}

// SaveTx is Save within a caller-owned database transaction.
func (s *LedgerService) SaveTx(dbTx *sql.Tx, tx *models.Transaction) (bool, error) {
	if tx.TransactionDate.IsZero() {
		tx.TransactionDate = time.Now()
	}

	var priorStatus string
	found := true
	err := dbTx.QueryRow(
		`SELECT status FROM transactions WHERE transaction_id = $1 FOR UPDATE`,
		tx.TransactionID,
	).Scan(&priorStatus)
	if err == sql.ErrNoRows {
		found = false
	} else if err != nil {
		return false, err
	}

	if found {
		// Repeat id: controlled update of the mutable field only.
		if priorStatus != tx.Status {
			if _, err := dbTx.Exec(
				`UPDATE transactions SET status = $2, updated_at = NOW() WHERE transaction_id = $1`,
				tx.TransactionID, tx.Status,
			); err != nil {
				return false, err
			}
		}
	} else {
		_, err := dbTx.Exec(`
            INSERT INTO transactions
            (transaction_id, gateway, terminal_id, device_id, amount, status, type,
             payment_method, card_brand, installments, authorization_code, nsu,
             transaction_date, vendor_id, school_id, student_id, metadata, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
        `, tx.TransactionID, tx.Gateway, tx.TerminalID, tx.DeviceID, tx.Amount, tx.Status,
			tx.Type, tx.PaymentMethod, tx.CardBrand, tx.Installments, tx.AuthorizationCode,
			tx.NSU, tx.TransactionDate, tx.VendorID, tx.SchoolID, tx.StudentID, tx.Metadata)
		if err != nil {
			return false, err
		}
	}

	changed := !found || priorStatus != tx.Status

	// The balance effect fires once, on the transition into completed.
	if tx.Status == models.TxStatusCompleted && (!found || priorStatus != models.TxStatusCompleted) {
		switch tx.Type {
		case models.TxTypePurchase:
			return changed, s.balances.ApplyPurchaseTx(dbTx, tx)
		case models.TxTypeRefund:
			return changed, s.balances.ApplyRefundTx(dbTx, tx)
		}
	}

	return changed, nil
}

// SaveRefund stores a refund row after re-checking the over-refund guard
// under the original row's lock. Two concurrent refunds of the same purchase
// serialize on that lock; the loser sees the winner's row in the cumulative
// sum and gets ErrRefundExceedsOriginal.
func (s *LedgerService) SaveRefund(ctx context.Context, original, refund *models.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	var originalStatus string
	err = dbTx.QueryRow(
		`SELECT status FROM transactions WHERE transaction_id = $1 FOR UPDATE`,
		original.TransactionID,
	).Scan(&originalStatus)
	if err == sql.ErrNoRows {
		return ErrTransactionNotFound
	}
	if err != nil {
		return err
	}

	var alreadyRefunded int64
	if err := dbTx.QueryRow(`
        SELECT COALESCE(SUM(-amount), 0)
        FROM transactions
        WHERE type = $1 AND metadata->>'original_transaction_id' = $2
    `, models.TxTypeRefund, original.TransactionID).Scan(&alreadyRefunded); err != nil {
		return err
	}
	// refund.Amount is negative; -refund.Amount is the requested value.
	if alreadyRefunded-refund.Amount > original.Amount {
		return ErrRefundExceedsOriginal
	}

	if _, err := s.SaveTx(dbTx, refund); err != nil {
		return err
	}

	return dbTx.Commit()
}

// GetByID fetches one transaction by its transaction_id.
func (s *LedgerService) GetByID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+transactionColumns+`
        FROM transactions
        WHERE transaction_id = $1
    `, transactionID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetVendorTransactions lists the vendor's most recent transactions.
func (s *LedgerService) GetVendorTransactions(ctx context.Context, vendorID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT `+transactionColumns+`
        FROM transactions
        WHERE vendor_id = $1
        ORDER BY transaction_date DESC
        LIMIT $2
    `, vendorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

// SumRefunded returns the cumulative amount already refunded against the
// given original transaction, as a positive number.
func (s *LedgerService) SumRefunded(ctx context.Context, originalTransactionID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(-amount), 0)
        FROM transactions
        WHERE type = $1 AND metadata->>'original_transaction_id' = $2
    `, models.TxTypeRefund, originalTransactionID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(
		&tx.TransactionID, &tx.Gateway, &tx.TerminalID, &tx.DeviceID, &tx.Amount,
		&tx.Status, &tx.Type, &tx.PaymentMethod, &tx.CardBrand, &tx.Installments,
		&tx.AuthorizationCode, &tx.NSU, &tx.TransactionDate, &tx.VendorID,
		&tx.SchoolID, &tx.StudentID, &tx.Metadata, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
