package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

type TerminalHandler struct {
	service   *services.TerminalService
	validator *services.ValidationHelper
}

func NewTerminalHandler(service *services.TerminalService) *TerminalHandler {
	return &TerminalHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type registerTerminalRequest struct {
	TerminalID   string `json:"terminal_id" validate:"required"`
	SerialNumber string `json:"serial_number" validate:"required"`
	Model        string `json:"model"`
	Gateway      string `json:"gateway" validate:"required,oneof=stone mercadopago pagseguro other"`
	VendorID     string `json:"vendor_id" validate:"required"`
	SchoolID     string `json:"school_id" validate:"required"`
}

type updateTerminalStatusRequest struct {
	Status           string  `json:"status" validate:"required,oneof=active inactive maintenance"`
	FirmwareVersion  *string `json:"firmware_version,omitempty"`
	BatteryLevel     *int    `json:"battery_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	ConnectionStatus *string `json:"connection_status,omitempty" validate:"omitempty,oneof=online offline"`
}

// RegisterTerminal registers a new point-of-sale terminal
// @Summary Register terminal
// @Description Register a terminal and assign it a gateway, vendor and school
// @Tags terminals
// @Accept json
// @Produce json
// @Param request body registerTerminalRequest true "Terminal registration"
// @Success 201 {object} models.Terminal
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /terminals [post]
func (h *TerminalHandler) RegisterTerminal(w http.ResponseWriter, r *http.Request) {
	var req registerTerminalRequest

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

	terminal := &models.Terminal{
		TerminalID:   req.TerminalID,
		SerialNumber: req.SerialNumber,
		Model:        req.Model,
		Gateway:      req.Gateway,
		VendorID:     req.VendorID,
		SchoolID:     req.SchoolID,
	}

	if err := h.service.Register(r.Context(), terminal); err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(terminal)
}

// GetTerminal fetches one terminal
// @Summary Get terminal
// @Description Fetch a terminal by id
// @Tags terminals
// @Produce json
// @Param terminalID path string true "Terminal ID"
// @Success 200 {object} models.Terminal
// @Failure 404 {object} services.ErrorResponse
// @Router /terminals/{terminalID} [get]
func (h *TerminalHandler) GetTerminal(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalID")

	terminal, err := h.service.GetByID(r.Context(), terminalID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(terminal)
}

// ListTerminals lists terminals, optionally filtered
// @Summary List terminals
// @Description List terminals, optionally filtered by vendor or school
// @Tags terminals
// @Produce json
// @Param vendor_id query string false "Vendor ID"
// @Param school_id query string false "School ID"
// @Success 200 {array} models.Terminal
// @Router /terminals [get]
func (h *TerminalHandler) ListTerminals(w http.ResponseWriter, r *http.Request) {
	filter := models.TerminalFilter{
		VendorID: r.URL.Query().Get("vendor_id"),
		SchoolID: r.URL.Query().Get("school_id"),
	}

	terminals, err := h.service.List(r.Context(), filter)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(terminals)
}

// UpdateTerminalStatus merge-updates a terminal's operational state
// @Summary Update terminal status
// @Description Update a terminal's status; omitted fields keep their value
// @Tags terminals
// @Accept json
// @Produce json
// @Param terminalID path string true "Terminal ID"
// @Param request body updateTerminalStatusRequest true "Status update"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /terminals/{terminalID}/status [patch]
func (h *TerminalHandler) UpdateTerminalStatus(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalID")

	var req updateTerminalStatusRequest

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

	updated, err := h.service.UpdateStatus(r.Context(), terminalID, req.Status, models.TerminalStatusFields{
		FirmwareVersion:  req.FirmwareVersion,
		BatteryLevel:     req.BatteryLevel,
		ConnectionStatus: req.ConnectionStatus,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": updated})
}
