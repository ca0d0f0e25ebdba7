package services

import (
	"context"
	"log"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// ReportedTransaction is one item of an offline batch uploaded by a terminal.
// Terminals capture sales while disconnected and replay them here.
type ReportedTransaction struct {
	TransactionID     string         `json:"transaction_id" validate:"required"`
	Gateway           string         `json:"gateway"`
	DeviceID          *string        `json:"device_id,omitempty"`
	Amount            int64          `json:"amount"`
	Status            string         `json:"status"`
	Type              string         `json:"type"`
	PaymentMethod     string         `json:"payment_method"`
	CardBrand         string         `json:"card_brand"`
	Installments      int            `json:"installments"`
	AuthorizationCode string         `json:"authorization_code"`
	NSU               string         `json:"nsu"`
	TransactionDate   time.Time      `json:"transaction_date"`
	VendorID          string         `json:"vendor_id"`
	SchoolID          string         `json:"school_id"`
	StudentID         *string        `json:"student_id,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Mismatch records a batch item the engine could not accept, by position.
type Mismatch struct {
	TransactionID string `json:"transaction_id"`
	Index         int    `json:"index"`
	Reason        string `json:"reason"`
}

// ReconcileResult summarizes one batch.
type ReconcileResult struct {
	Success        bool       `json:"success"`
	ProcessedCount int        `json:"processed_count"`
	Mismatched     []Mismatch `json:"mismatched"`
}

// ReconciliationService replays offline terminal batches into the ledger.
type ReconciliationService struct {
	ledger    *LedgerService
	terminals *TerminalService
	auditor   *audit.AuditLogger
}

func NewReconciliationService(ledger *LedgerService, terminals *TerminalService, auditor *audit.AuditLogger) *ReconciliationService {
	return &ReconciliationService{ledger: ledger, terminals: terminals, auditor: auditor}
}

// Reconcile processes a batch sequentially in submission order. Items that
// fail are recorded as mismatches and do not stop the rest of the batch;
// Success reports that the batch was processed, not that every item matched.
// The terminal heartbeat fires after every batch, mismatches included.
func (s *ReconciliationService) Reconcile(ctx context.Context, terminalID string, reported []ReportedTransaction) (*ReconcileResult, error) {
	terminal, err := s.terminals.GetByID(ctx, terminalID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Success: true, Mismatched: []Mismatch{}}

	for i, item := range reported {
		if reason, ok := s.validate(item); !ok {
			result.Mismatched = append(result.Mismatched, Mismatch{
				TransactionID: item.TransactionID,
				Index:         i,
				Reason:        reason,
			})
			continue
		}

		tx := s.toTransaction(terminal, item)
		changed, err := s.ledger.Save(ctx, tx)
		if err != nil {
			log.Printf("[RECONCILIATION] Failed to save transaction %s from terminal %s: %v",
				item.TransactionID, terminalID, err)
			s.auditor.LogError(item.TransactionID, terminalID, err)
			result.Mismatched = append(result.Mismatched, Mismatch{
				TransactionID: item.TransactionID,
				Index:         i,
				Reason:        err.Error(),
			})
			continue
		}
		// An item whose stored state already matches is neither processed
		// nor mismatched; a replayed batch counts zero.
		if changed {
			result.ProcessedCount++
		}
	}

	if err := s.terminals.MarkSynced(ctx, terminalID); err != nil {
		log.Printf("[RECONCILIATION] Failed to mark terminal %s synced: %v", terminalID, err)
	}

	s.auditor.LogReconciliation(terminalID, result.ProcessedCount, len(result.Mismatched))
	return result, nil
}

// validate rejects items missing the fields the ledger cannot do without.
func (s *ReconciliationService) validate(item ReportedTransaction) (string, bool) {
	if item.TransactionID == "" || item.Amount == 0 ||
		item.PaymentMethod == "" || item.VendorID == "" || item.SchoolID == "" {
		return "Incomplete transaction data", false
	}
	return "", true
}

func (s *ReconciliationService) toTransaction(terminal *models.Terminal, item ReportedTransaction) *models.Transaction {
	status := item.Status
	if status == "" {
		// Offline terminals only persist sales they actually approved.
		status = models.TxStatusCompleted
	}
	txType := item.Type
	if txType == "" {
		txType = models.TxTypePurchase
	}
	gateway := item.Gateway
	if gateway == "" {
		gateway = terminal.Gateway
	}

	return &models.Transaction{
		TransactionID:     item.TransactionID,
		Gateway:           gateway,
		TerminalID:        terminal.TerminalID,
		DeviceID:          item.DeviceID,
		Amount:            item.Amount,
		Status:            status,
		Type:              txType,
		PaymentMethod:     item.PaymentMethod,
		CardBrand:         item.CardBrand,
		Installments:      item.Installments,
		AuthorizationCode: item.AuthorizationCode,
		NSU:               item.NSU,
		TransactionDate:   item.TransactionDate,
		VendorID:          item.VendorID,
		SchoolID:          item.SchoolID,
		StudentID:         item.StudentID,
		Metadata:          item.Metadata,
	}
}
