package models

import (
	"time"
)

// Vendor types
const (
	VendorTypeOwn        = "own"
	VendorTypeThirdParty = "third_party"
)

// DefaultCommissionRate applies when a third-party vendor has no explicit rate.
const DefaultCommissionRate = 0.10

// Vendor is the read model of the vendor directory consumed by the engine.
type Vendor struct {
	VendorID       string   `json:"vendor_id" db:"vendor_id"`
	Name           string   `json:"name" db:"name"`
	Type           string   `json:"type" db:"type"`
	CommissionRate *float64 `json:"commission_rate,omitempty" db:"commission_rate"`
}

// EffectiveCommissionRate returns the vendor's flat commission rate, falling
// back to the platform default.
func (v *Vendor) EffectiveCommissionRate() float64 {
	if v.CommissionRate != nil {
		return *v.CommissionRate
	}
	return DefaultCommissionRate
}

// VendorFinancials holds a vendor's accrued balance. Mutated exclusively by
// the balance updater; read by payout tooling.
type VendorFinancials struct {
	VendorID          string     `json:"vendor_id" db:"vendor_id"`
	Balance           int64      `json:"balance" db:"balance"`
	PendingTransfer   int64      `json:"pending_transfer" db:"pending_transfer"`
	LastTransferDate  *time.Time `json:"last_transfer_date,omitempty" db:"last_transfer_date"`
	NextTransferDate  *time.Time `json:"next_transfer_date,omitempty" db:"next_transfer_date"`
	TransferFrequency string     `json:"transfer_frequency" db:"transfer_frequency"`
	PaymentMethod     string     `json:"payment_method" db:"payment_method"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// CommissionTier is declared tier data for a vendor. The tiers are fetchable
// but the commission calculation currently reads only Vendor.CommissionRate.
type CommissionTier struct {
	ID             int     `json:"id" db:"id"`
	VendorID       string  `json:"vendor_id" db:"vendor_id"`
	MinSalesAmount int64   `json:"min_sales_amount" db:"min_sales_amount"`
	MaxSalesAmount *int64  `json:"max_sales_amount,omitempty" db:"max_sales_amount"`
	CommissionRate float64 `json:"commission_rate" db:"commission_rate"`
}
