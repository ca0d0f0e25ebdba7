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

// stoneGateway talks to the Stone acquiring API.
type stoneGateway struct {
	cfg    Config
	client *http.Client
}

func newStoneGateway(cfg Config) *stoneGateway {
	return &stoneGateway{
		cfg:    cfg,
		client: cfg.httpClient(),
	}
}

var stoneStatuses = map[string]string{
	"approved": models.TxStatusCompleted,
	"denied":   models.TxStatusFailed,
	"pending":  models.TxStatusPending,
	"canceled": models.TxStatusCancelled,
	"refunded": models.TxStatusRefunded,
}

func (g *stoneGateway) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	payload := map[string]any{
		"merchant_id":     g.cfg.MerchantID,
		"amount":          req.Amount,
		"payment_method":  req.Method,
		"terminal_id":     req.TerminalID,
		"installments":    req.Installments,
		"soft_descriptor": req.Description,
	}

	var resp struct {
		ID                string    `json:"id"`
		Status            string    `json:"status"`
		AuthorizationCode string    `json:"authorization_code"`
		NSU               string    `json:"nsu"`
		CardBrand         string    `json:"card_brand"`
		CreatedAt         time.Time `json:"created_at"`
	}

	if err := g.do(ctx, http.MethodPost, "/v1/charges", payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderStone, Op: "process_payment", Err: err}
	}

	return &PaymentResult{
		TransactionID:     resp.ID,
		Status:            mapStatus(resp.Status, stoneStatuses),
		AuthorizationCode: resp.AuthorizationCode,
		NSU:               resp.NSU,
		CardBrand:         resp.CardBrand,
		Date:              resp.CreatedAt,
	}, nil
}

func (g *stoneGateway) RefundPayment(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	payload := map[string]any{"amount": amount}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/v1/charges/%s/refunds", transactionID)
	if err := g.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderStone, Op: "refund_payment", Err: err}
	}

	status := models.TxStatusFailed
	if resp.Status == "refunded" || resp.Status == "approved" {
		status = models.TxStatusCompleted
	}
	return &RefundResult{Status: status, RefundID: resp.ID}, nil
}

func (g *stoneGateway) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/v1/charges/%s", transactionID)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderStone, Op: "get_transaction_status", Err: err}
	}

	return &StatusResult{Status: mapStatus(resp.Status, stoneStatuses)}, nil
}

func (g *stoneGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
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
		return fmt.Errorf("stone API returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
