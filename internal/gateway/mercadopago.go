package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// mercadoPagoGateway talks to the Mercado Pago payments API. Amounts on the
// wire are decimal currency units; the ledger works in minor units.
type mercadoPagoGateway struct {
	cfg    Config
	client *http.Client
}

func newMercadoPagoGateway(cfg Config) *mercadoPagoGateway {
	return &mercadoPagoGateway{
		cfg:    cfg,
		client: cfg.httpClient(),
	}
}

var mercadoPagoStatuses = map[string]string{
	"approved":   models.TxStatusCompleted,
	"rejected":   models.TxStatusFailed,
	"in_process": models.TxStatusPending,
	"pending":    models.TxStatusPending,
	"cancelled":  models.TxStatusCancelled,
	"refunded":   models.TxStatusRefunded,
}

var mercadoPagoMethods = map[string]string{
	models.MethodCredit:  "credit_card",
	models.MethodDebit:   "debit_card",
	models.MethodPix:     "pix",
	models.MethodVoucher: "ticket",
	models.MethodOther:   "account_money",
}

func (g *mercadoPagoGateway) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	method, ok := mercadoPagoMethods[req.Method]
	if !ok {
		method = "account_money"
	}

	payload := map[string]any{
		"transaction_amount": float64(req.Amount) / 100,
		"payment_method_id":  method,
		"installments":       max(req.Installments, 1),
		"description":        req.Description,
		"external_reference": req.TerminalID,
	}

	var resp struct {
		ID                 int64     `json:"id"`
		Status             string    `json:"status"`
		AuthorizationCode  string    `json:"authorization_code"`
		DateCreated        time.Time `json:"date_created"`
		PaymentMethodID    string    `json:"payment_method_id"`
		PointOfInteraction struct {
			TransactionData struct {
				TicketNumber string `json:"ticket_number"`
			} `json:"transaction_data"`
		} `json:"point_of_interaction"`
	}

	if err := g.do(ctx, http.MethodPost, "/v1/payments", payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderMercadoPago, Op: "process_payment", Err: err}
	}

	return &PaymentResult{
		TransactionID:     strconv.FormatInt(resp.ID, 10),
		Status:            mapStatus(resp.Status, mercadoPagoStatuses),
		AuthorizationCode: resp.AuthorizationCode,
		NSU:               resp.PointOfInteraction.TransactionData.TicketNumber,
		Date:              resp.DateCreated,
	}, nil
}

func (g *mercadoPagoGateway) RefundPayment(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	payload := map[string]any{"amount": float64(amount) / 100}

	var resp struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/v1/payments/%s/refunds", transactionID)
	if err := g.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderMercadoPago, Op: "refund_payment", Err: err}
	}

	status := models.TxStatusFailed
	if resp.Status == "approved" {
		status = models.TxStatusCompleted
	}
	return &RefundResult{Status: status, RefundID: strconv.FormatInt(resp.ID, 10)}, nil
}

func (g *mercadoPagoGateway) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/v1/payments/%s", transactionID)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderMercadoPago, Op: "get_transaction_status", Err: err}
	}

	return &StatusResult{Status: mapStatus(resp.Status, mercadoPagoStatuses)}, nil
}

func (g *mercadoPagoGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	if method == http.MethodPost {
		req.Header.Set("X-Idempotency-Key", uuid.New().String())
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mercadopago API returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
