package services

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// PaymentRequest is a live sale captured by an online terminal.
type PaymentRequest struct {
	TerminalID    string         `json:"terminal_id" validate:"required"`
	Amount        int64          `json:"amount" validate:"required,gt=0"`
	PaymentMethod string         `json:"payment_method" validate:"required,oneof=credit debit pix voucher other"`
	Installments  int            `json:"installments" validate:"omitempty,gte=1,lte=12"`
	StudentID     *string        `json:"student_id,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PaymentService charges a live sale through the terminal's gateway and
// records the outcome in the ledger.
type PaymentService struct {
	ledger    *LedgerService
	terminals *TerminalService
	gateways  *gateway.Factory
	redis     *redis.Client
	auditor   *audit.AuditLogger
}

func NewPaymentService(ledger *LedgerService, terminals *TerminalService, gateways *gateway.Factory, redisClient *redis.Client, auditor *audit.AuditLogger) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		terminals: terminals,
		gateways:  gateways,
		redis:     redisClient,
		auditor:   auditor,
	}
}

// Process authorizes the sale with the terminal's assigned provider. The
// outcome is persisted whatever the provider answered; completed sales are
// queued for settlement.
func (s *PaymentService) Process(ctx context.Context, req PaymentRequest) (*models.Transaction, error) {
	terminal, err := s.terminals.GetByID(ctx, req.TerminalID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.gateways.Adapter(terminal.Gateway)
	if err != nil {
		return nil, err
	}

	res, err := adapter.ProcessPayment(ctx, gateway.PaymentRequest{
		Amount:       req.Amount,
		Method:       req.PaymentMethod,
		TerminalID:   terminal.TerminalID,
		Installments: req.Installments,
		Description:  req.Description,
	})
	if err != nil {
		s.auditor.LogError("", terminal.TerminalID, err)
		return nil, err
	}

	txDate := res.Date
	if txDate.IsZero() {
		txDate = time.Now()
	}

	tx := &models.Transaction{
		TransactionID:     res.TransactionID,
		Gateway:           terminal.Gateway,
		TerminalID:        terminal.TerminalID,
		Amount:            req.Amount,
		Status:            res.Status,
		Type:              models.TxTypePurchase,
		PaymentMethod:     req.PaymentMethod,
		CardBrand:         res.CardBrand,
		Installments:      req.Installments,
		AuthorizationCode: res.AuthorizationCode,
		NSU:               res.NSU,
		TransactionDate:   txDate,
		VendorID:          terminal.VendorID,
		SchoolID:          terminal.SchoolID,
		StudentID:         req.StudentID,
		Metadata:          req.Metadata,
	}

	if _, err := s.ledger.Save(ctx, tx); err != nil {
		return nil, err
	}

	if tx.Status == models.TxStatusCompleted {
		s.queueForSettlement(ctx, tx.TransactionID)
	}

	s.auditor.LogPayment(tx.TransactionID, tx.TerminalID, tx.VendorID, tx.Amount, tx.Status)
	return tx, nil
}

func (s *PaymentService) queueForSettlement(ctx context.Context, transactionID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.RPush(ctx, settlementQueueKey, transactionID).Err(); err != nil {
		log.Printf("[PAYMENT] Failed to queue transaction %s for settlement: %v", transactionID, err)
	}
}
