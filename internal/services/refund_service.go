package services

import (
	"context"
	"log"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// RefundService orchestrates refunds: it validates against the ledger, asks
// the originating gateway to reverse the charge, and only then records the
// reversal.
type RefundService struct {
	ledger   *LedgerService
	gateways *gateway.Factory
	auditor  *audit.AuditLogger
}

func NewRefundService(ledger *LedgerService, gateways *gateway.Factory, auditor *audit.AuditLogger) *RefundService {
	return &RefundService{ledger: ledger, gateways: gateways, auditor: auditor}
}

// Refund reverses a completed purchase, fully or partially. amount is the
// minor-unit value to return; nil means the full original amount. The refund
// is stored as its own ledger row with a negative amount; the original row is
// never touched.
func (s *RefundService) Refund(ctx context.Context, originalID string, amount *int64, reason string) (*models.Transaction, error) {
	original, err := s.ledger.GetByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.Type != models.TxTypePurchase || original.Status != models.TxStatusCompleted {
		return nil, ErrNotRefundable
	}

	refundAmount := original.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return nil, ErrNotRefundable
	}

	// Early reject before touching the gateway. SaveRefund re-checks under
	// the original row's lock, which is what serializes concurrent refunds.
	alreadyRefunded, err := s.ledger.SumRefunded(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if alreadyRefunded+refundAmount > original.Amount {
		return nil, ErrRefundExceedsOriginal
	}

	adapter, err := s.gateways.Adapter(original.Gateway)
	if err != nil {
		return nil, err
	}

	res, err := adapter.RefundPayment(ctx, original.TransactionID, refundAmount)
	if err != nil {
		s.auditor.LogError(original.TransactionID, original.TerminalID, err)
		return nil, err
	}
	if res.Status != models.TxStatusCompleted {
		log.Printf("[REFUND] Gateway %s declined refund of %s: status %s",
			original.Gateway, original.TransactionID, res.Status)
		return nil, ErrRefundDeclined
	}

	refundID := res.RefundID
	if refundID == "" {
		refundID = "RF-" + original.TransactionID
	}

	refund := &models.Transaction{
		TransactionID:   refundID,
		Gateway:         original.Gateway,
		TerminalID:      original.TerminalID,
		DeviceID:        original.DeviceID,
		Amount:          -refundAmount,
		Status:          models.TxStatusCompleted,
		Type:            models.TxTypeRefund,
		PaymentMethod:   original.PaymentMethod,
		CardBrand:       original.CardBrand,
		TransactionDate: time.Now(),
		VendorID:        original.VendorID,
		SchoolID:        original.SchoolID,
		StudentID:       original.StudentID,
		Metadata: map[string]any{
			models.MetaOriginalTransactionID: original.TransactionID,
			"reason":                         reason,
		},
	}

	if err := s.ledger.SaveRefund(ctx, original, refund); err != nil {
		return nil, err
	}

	s.auditor.LogRefund(refund.TransactionID, original.TransactionID, refund.VendorID, refundAmount, refund.Status)
	return refund, nil
}
