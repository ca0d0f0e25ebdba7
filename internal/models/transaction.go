package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusCancelled = "cancelled"
	TxStatusRefunded  = "refunded"
)

// Transaction types
const (
	TxTypePurchase     = "purchase"
	TxTypeRefund       = "refund"
	TxTypeCancellation = "cancellation"
)

// Payment methods
const (
	MethodCredit  = "credit"
	MethodDebit   = "debit"
	MethodPix     = "pix"
	MethodVoucher = "voucher"
	MethodOther   = "other"
)

// Metadata key linking a refund to the transaction it reverses.
const MetaOriginalTransactionID = "original_transaction_id"

// Transaction is one ledger entry. TransactionID is the primary identity:
// re-submitting the same id updates the row (status only), it never creates
// a duplicate.
type Transaction struct {
	ID                int       `json:"id" db:"id"`
	TransactionID     string    `json:"transaction_id" db:"transaction_id"`
	Gateway           string    `json:"gateway" db:"gateway"`
	TerminalID        string    `json:"terminal_id" db:"terminal_id"`
	DeviceID          *string   `json:"device_id,omitempty" db:"device_id"`
	Amount            int64     `json:"amount" db:"amount"` // minor units, negative for refunds
	Status            string    `json:"status" db:"status"`
	Type              string    `json:"type" db:"type"`
	PaymentMethod     string    `json:"payment_method" db:"payment_method"`
	CardBrand         string    `json:"card_brand,omitempty" db:"card_brand"`
	Installments      int       `json:"installments,omitempty" db:"installments"`
	AuthorizationCode string    `json:"authorization_code,omitempty" db:"authorization_code"`
	NSU               string    `json:"nsu,omitempty" db:"nsu"`
	TransactionDate   time.Time `json:"transaction_date" db:"transaction_date"`
	VendorID          string    `json:"vendor_id" db:"vendor_id"`
	SchoolID          string    `json:"school_id" db:"school_id"`
	StudentID         *string   `json:"student_id,omitempty" db:"student_id"`
	Metadata          Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// OriginalTransactionID returns the id of the purchase this refund reverses,
// or "" when the transaction is not a refund.
func (t *Transaction) OriginalTransactionID() string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata[MetaOriginalTransactionID].(string); ok {
		return v
	}
	return ""
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
