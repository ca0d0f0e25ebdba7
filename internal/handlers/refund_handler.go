package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

type RefundHandler struct {
	service   *services.RefundService
	validator *services.ValidationHelper
}

func NewRefundHandler(service *services.RefundService) *RefundHandler {
	return &RefundHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type refundRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Amount        *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason        string `json:"reason,omitempty"`
}

// CreateRefund reverses a completed purchase
// @Summary Create refund
// @Description Reverse a completed purchase, fully or partially
// @Tags refunds
// @Accept json
// @Produce json
// @Param request body refundRequest true "Refund request"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /refunds [post]
func (h *RefundHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
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

	refund, err := h.service.Refund(r.Context(), req.TransactionID, req.Amount, req.Reason)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(refund)
}
