package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// pagSeguroGateway talks to the PagSeguro (PagBank) charges API.
type pagSeguroGateway struct {
	cfg    Config
	client *http.Client
}

func newPagSeguroGateway(cfg Config) *pagSeguroGateway {
	return &pagSeguroGateway{
		cfg:    cfg,
		client: cfg.httpClient(),
	}
}

var pagSeguroStatuses = map[string]string{
	"PAID":        models.TxStatusCompleted,
	"AUTHORIZED":  models.TxStatusPending,
	"IN_ANALYSIS": models.TxStatusPending,
	"WAITING":     models.TxStatusPending,
	"DECLINED":    models.TxStatusFailed,
	"CANCELED":    models.TxStatusCancelled,
}

func (g *pagSeguroGateway) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	payload := map[string]any{
		"reference_id": req.TerminalID,
		"description":  req.Description,
		"amount": map[string]any{
			"value":    req.Amount,
			"currency": "BRL",
		},
		"payment_method": map[string]any{
			"type":         paymentMethodType(req.Method),
			"installments": max(req.Installments, 1),
		},
	}

	var resp struct {
		ID              string    `json:"id"`
		Status          string    `json:"status"`
		CreatedAt       time.Time `json:"created_at"`
		PaymentResponse struct {
			Code      string `json:"code"`
			Reference string `json:"reference"`
		} `json:"payment_response"`
	}

	if err := g.do(ctx, http.MethodPost, "/charges", payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderPagSeguro, Op: "process_payment", Err: err}
	}

	return &PaymentResult{
		TransactionID:     resp.ID,
		Status:            mapStatus(resp.Status, pagSeguroStatuses),
		AuthorizationCode: resp.PaymentResponse.Code,
		NSU:               resp.PaymentResponse.Reference,
		Date:              resp.CreatedAt,
	}, nil
}

func (g *pagSeguroGateway) RefundPayment(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	payload := map[string]any{
		"amount": map[string]any{"value": amount},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/charges/%s/cancel", transactionID)
	if err := g.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderPagSeguro, Op: "refund_payment", Err: err}
	}

	status := models.TxStatusFailed
	if resp.Status == "CANCELED" || resp.Status == "REFUNDED" {
		status = models.TxStatusCompleted
	}
	return &RefundResult{Status: status, RefundID: resp.ID}, nil
}

func (g *pagSeguroGateway) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/charges/%s", transactionID)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderPagSeguro, Op: "get_transaction_status", Err: err}
	}

	return &StatusResult{Status: mapStatus(resp.Status, pagSeguroStatuses)}, nil
}

func paymentMethodType(method string) string {
	switch method {
	case models.MethodCredit:
		return "CREDIT_CARD"
	case models.MethodDebit:
		return "DEBIT_CARD"
	case models.MethodPix:
		return "PIX"
	case models.MethodVoucher:
		return "BOLETO"
	default:
		return "CREDIT_CARD"
	}
}

func (g *pagSeguroGateway) do(ctx context.Context, method, path string, payload, out any) error {
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

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("pagseguro API returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
