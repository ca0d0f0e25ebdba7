package handlers

import (
	"errors"
	"net/http"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/services"
)

// sendServiceError translates service and gateway failures to HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	var gwErr *gateway.GatewayError
	var unsupported *gateway.UnsupportedProviderError

	switch {
	case errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrTerminalNotFound),
		errors.Is(err, services.ErrVendorNotFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrTerminalExists),
		errors.Is(err, services.ErrRefundExceedsOriginal),
		errors.Is(err, services.ErrNotRefundable):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, services.ErrRefundDeclined):
		services.SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	case errors.As(err, &gwErr):
		services.SendErrorResponse(w, err.Error(), http.StatusBadGateway, nil)
	case errors.As(err, &unsupported):
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
	default:
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
	}
}
