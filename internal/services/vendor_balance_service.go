package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// VendorBalanceService applies the financial effect of completed transactions
// to vendor balances. It is the only writer of vendor_financials. Third-party
// vendors are credited net of the platform commission; own vendors get the
// full amount with no pending transfer accrual.
type VendorBalanceService struct {
	db *sql.DB
}

func NewVendorBalanceService(db *sql.DB) *VendorBalanceService {
	return &VendorBalanceService{db: db}
}

// ApplyPurchaseTx credits the vendor for a completed purchase inside the
// caller's database transaction, so the ledger write and the balance write
// commit or roll back together.
func (s *VendorBalanceService) ApplyPurchaseTx(dbTx *sql.Tx, tx *models.Transaction) error {
	if tx.Type != models.TxTypePurchase {
		return nil
	}

	vendor, err := s.fetchVendorTx(dbTx, tx.VendorID)
	if err != nil {
		return err
	}

	if vendor.Type == models.VendorTypeThirdParty {
		net := tx.Amount - commissionOn(tx.Amount, vendor.EffectiveCommissionRate())
		return s.applyDeltaTx(dbTx, tx.VendorID, net, net)
	}

	return s.applyDeltaTx(dbTx, tx.VendorID, tx.Amount, 0)
}

// ApplyRefundTx mirrors ApplyPurchaseTx with the sign inverted: it debits the
// same net amount that was credited at purchase time, keyed off the vendor's
// commission rate. Partial refunds pro-rate the commission.
func (s *VendorBalanceService) ApplyRefundTx(dbTx *sql.Tx, tx *models.Transaction) error {
	if tx.Type != models.TxTypeRefund {
		return nil
	}
	if tx.Amount >= 0 {
		return fmt.Errorf("refund amount must be negative, got %d", tx.Amount)
	}

	vendor, err := s.fetchVendorTx(dbTx, tx.VendorID)
	if err != nil {
		return err
	}

	magnitude := -tx.Amount
	if vendor.Type == models.VendorTypeThirdParty {
		net := magnitude - commissionOn(magnitude, vendor.EffectiveCommissionRate())
		return s.applyDeltaTx(dbTx, tx.VendorID, -net, -net)
	}

	return s.applyDeltaTx(dbTx, tx.VendorID, -magnitude, 0)
}

// GetFinancials returns the vendor's current balance row.
func (s *VendorBalanceService) GetFinancials(ctx context.Context, vendorID string) (*models.VendorFinancials, error) {
	fin := &models.VendorFinancials{}
	err := s.db.QueryRowContext(ctx, `
        SELECT vendor_id, balance, pending_transfer, last_transfer_date, next_transfer_date,
               COALESCE(transfer_frequency, ''), COALESCE(payment_method, ''), updated_at
        FROM vendor_financials
        WHERE vendor_id = $1
    `, vendorID).Scan(
		&fin.VendorID, &fin.Balance, &fin.PendingTransfer, &fin.LastTransferDate,
		&fin.NextTransferDate, &fin.TransferFrequency, &fin.PaymentMethod, &fin.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	return fin, nil
}

// GetCommissionTiers returns the vendor's declared tiers. The tiers are not
// consulted by the commission calculation, which reads only the vendor's flat
// commission_rate.
func (s *VendorBalanceService) GetCommissionTiers(ctx context.Context, vendorID string) ([]models.CommissionTier, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, vendor_id, min_sales_amount, max_sales_amount, commission_rate
        FROM vendor_commission_tiers
        WHERE vendor_id = $1
        ORDER BY min_sales_amount
    `, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := []models.CommissionTier{}
	for rows.Next() {
		var t models.CommissionTier
		if err := rows.Scan(&t.ID, &t.VendorID, &t.MinSalesAmount, &t.MaxSalesAmount, &t.CommissionRate); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (s *VendorBalanceService) fetchVendorTx(dbTx *sql.Tx, vendorID string) (*models.Vendor, error) {
	vendor := &models.Vendor{}
	err := dbTx.QueryRow(`
        SELECT vendor_id, COALESCE(name, ''), type, commission_rate
        FROM vendors
        WHERE vendor_id = $1
    `, vendorID).Scan(&vendor.VendorID, &vendor.Name, &vendor.Type, &vendor.CommissionRate)
	if err == sql.ErrNoRows {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// applyDeltaTx adds the deltas with a single atomic upsert. Concurrent sales
// for the same vendor serialize on the row instead of losing updates.
func (s *VendorBalanceService) applyDeltaTx(dbTx *sql.Tx, vendorID string, balanceDelta, pendingDelta int64) error {
	_, err := dbTx.Exec(`
        INSERT INTO vendor_financials (vendor_id, balance, pending_transfer, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (vendor_id) DO UPDATE
        SET balance = vendor_financials.balance + EXCLUDED.balance,
            pending_transfer = vendor_financials.pending_transfer + EXCLUDED.pending_transfer,
            updated_at = NOW()
    `, vendorID, balanceDelta, pendingDelta)
	return err
}

func commissionOn(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}
