package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

type PixHandler struct {
	service   *services.PixService
	validator *services.ValidationHelper
}

func NewPixHandler(service *services.PixService) *PixHandler {
	return &PixHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type createPixChargeRequest struct {
	TerminalID string `json:"terminal_id" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

// CreatePixCharge issues a Pix charge with a QR code
// @Summary Create Pix charge
// @Description Issue a short-lived Pix charge for a terminal, returned as a QR code
// @Tags pix
// @Accept json
// @Produce json
// @Param request body createPixChargeRequest true "Charge request"
// @Success 201 {object} object{charge=services.PixCharge,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /pix/charges [post]
func (h *PixHandler) CreatePixCharge(w http.ResponseWriter, r *http.Request) {
	var req createPixChargeRequest

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

	charge, qrImage, err := h.service.CreateCharge(r.Context(), req.TerminalID, req.Amount)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"charge":  charge,
		"qrImage": qrImage,
	})
}

// ConsumePixCharge redeems a Pix charge
// @Summary Consume Pix charge
// @Description Redeem a Pix charge; a charge can be consumed exactly once
// @Tags pix
// @Produce json
// @Param chargeID path string true "Charge ID"
// @Success 200 {object} services.PixCharge
// @Failure 400 {object} services.ErrorResponse
// @Router /pix/charges/{chargeID}/consume [post]
func (h *PixHandler) ConsumePixCharge(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "chargeID")

	charge, err := h.service.ConsumeCharge(r.Context(), chargeID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(charge)
}
