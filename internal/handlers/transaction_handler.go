package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

type TransactionHandler struct {
	ledger   *services.LedgerService
	balances *services.VendorBalanceService
}

func NewTransactionHandler(ledger *services.LedgerService, balances *services.VendorBalanceService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, balances: balances}
}

// GetTransaction fetches one ledger entry
// @Summary Get transaction
// @Description Fetch a single ledger entry by gateway transaction id
// @Tags transactions
// @Produce json
// @Param transactionID path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{transactionID} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")

	tx, err := h.ledger.GetByID(r.Context(), transactionID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

// ListVendorTransactions lists a vendor's ledger entries
// @Summary List vendor transactions
// @Description List a vendor's ledger entries, newest first
// @Tags transactions
// @Produce json
// @Param vendorID path string true "Vendor ID"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} models.Transaction
// @Router /vendors/{vendorID}/transactions [get]
func (h *TransactionHandler) ListVendorTransactions(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			services.SendErrorResponse(w, "Invalid limit", http.StatusBadRequest, nil)
			return
		}
		limit = parsed
	}

	transactions, err := h.ledger.GetVendorTransactions(r.Context(), vendorID, limit)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetVendorFinancials returns a vendor's running financials
// @Summary Get vendor balance
// @Description Return a vendor's running balance and pending transfer
// @Tags vendors
// @Produce json
// @Param vendorID path string true "Vendor ID"
// @Success 200 {object} models.VendorFinancials
// @Failure 404 {object} services.ErrorResponse
// @Router /vendors/{vendorID}/financials [get]
func (h *TransactionHandler) GetVendorFinancials(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	financials, err := h.balances.GetFinancials(r.Context(), vendorID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(financials)
}

// GetCommissionTiers returns a vendor's configured commission tiers
// @Summary Get commission tiers
// @Description Return a vendor's volume-based commission tiers
// @Tags vendors
// @Produce json
// @Param vendorID path string true "Vendor ID"
// @Success 200 {array} models.CommissionTier
// @Router /vendors/{vendorID}/commission-tiers [get]
func (h *TransactionHandler) GetCommissionTiers(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	tiers, err := h.balances.GetCommissionTiers(r.Context(), vendorID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tiers)
}
