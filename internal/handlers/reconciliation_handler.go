package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

type ReconciliationHandler struct {
	service   *services.ReconciliationService
	validator *services.ValidationHelper
}

func NewReconciliationHandler(service *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type reconcileRequest struct {
	Transactions []services.ReportedTransaction `json:"transactions" validate:"required"`
}

// Reconcile replays an offline batch from a terminal
// @Summary Reconcile terminal batch
// @Description Replay a batch of offline transactions captured by a terminal
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param terminalID path string true "Terminal ID"
// @Param request body reconcileRequest true "Offline batch"
// @Success 200 {object} services.ReconcileResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /terminals/{terminalID}/reconcile [post]
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalID")

	var req reconcileRequest

	r.Body = http.MaxBytesReader(w, r.Body, 4_194_304)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.Reconcile(r.Context(), terminalID, req.Transactions)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
