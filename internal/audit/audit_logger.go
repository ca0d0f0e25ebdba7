package audit

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	TerminalID    string    `json:"terminal_id,omitempty"`
	VendorID      string    `json:"vendor_id,omitempty"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogPayment(transactionID, terminalID, vendorID string, amount int64, status string) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "PAYMENT",
		TransactionID: transactionID,
		TerminalID:    terminalID,
		VendorID:      vendorID,
		Amount:        amount,
		Status:        status,
	})
}

func (a *AuditLogger) LogRefund(transactionID, originalID, vendorID string, amount int64, status string) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "REFUND",
		TransactionID: transactionID,
		VendorID:      vendorID,
		Amount:        amount,
		Status:        status,
		Details:       map[string]string{"original_transaction_id": originalID},
	})
}

func (a *AuditLogger) LogReconciliation(terminalID string, processed, mismatched int) {
	a.log(AuditEvent{
		Timestamp:  time.Now(),
		EventType:  "RECONCILIATION",
		TerminalID: terminalID,
		Status:     "SUCCESS",
		Details: map[string]int{
			"processed":  processed,
			"mismatched": mismatched,
		},
	})
}

func (a *AuditLogger) LogSettlement(transactionID, messageID string, amount int64) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "SETTLEMENT",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "SENT",
		Details:       map[string]string{"message_id": messageID},
	})
}

func (a *AuditLogger) LogError(transactionID, terminalID string, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		TerminalID:    terminalID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
