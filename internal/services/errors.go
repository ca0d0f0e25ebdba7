package services

import "errors"

var (
	// ErrTransactionNotFound is returned when a ledger lookup misses.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTerminalNotFound is returned for operations on unknown terminals.
	ErrTerminalNotFound = errors.New("terminal not found")

	// ErrTerminalExists is returned when registering a duplicate terminal_id.
	ErrTerminalExists = errors.New("terminal already registered")

	// ErrVendorNotFound is returned when the vendor directory has no entry
	// for a transaction's vendor_id.
	ErrVendorNotFound = errors.New("vendor not found")

	// ErrRefundDeclined is returned when the gateway did not complete the
	// refund. No local state is written in that case.
	ErrRefundDeclined = errors.New("refund declined by gateway")

	// ErrRefundExceedsOriginal guards against duplicate refunds and partial
	// refunds whose cumulative total would exceed the original purchase.
	ErrRefundExceedsOriginal = errors.New("refund exceeds original transaction amount")

	// ErrNotRefundable is returned when the refund target is not a
	// completed purchase.
	ErrNotRefundable = errors.New("transaction is not refundable")
)
