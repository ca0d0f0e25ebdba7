package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// genericGateway covers acquirers without a dedicated adapter. The wire shape
// is the engine's own vocabulary, so no status mapping is needed; partners
// integrating under the "other" provider implement this contract.
type genericGateway struct {
	cfg    Config
	client *http.Client
}

func newGenericGateway(cfg Config) *genericGateway {
	return &genericGateway{
		cfg:    cfg,
		client: cfg.httpClient(),
	}
}

func (g *genericGateway) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	payload := map[string]any{
		"amount":         req.Amount,
		"payment_method": req.Method,
		"terminal_id":    req.TerminalID,
		"installments":   req.Installments,
		"description":    req.Description,
	}

	var resp struct {
		TransactionID     string    `json:"transaction_id"`
		Status            string    `json:"status"`
		AuthorizationCode string    `json:"authorization_code"`
		NSU               string    `json:"nsu"`
		Date              time.Time `json:"date"`
	}

	if err := g.do(ctx, http.MethodPost, "/payments", payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderOther, Op: "process_payment", Err: err}
	}

	return &PaymentResult{
		TransactionID:     resp.TransactionID,
		Status:            resp.Status,
		AuthorizationCode: resp.AuthorizationCode,
		NSU:               resp.NSU,
		Date:              resp.Date,
	}, nil
}

func (g *genericGateway) RefundPayment(ctx context.Context, transactionID string, amount int64) (*RefundResult, error) {
	payload := map[string]any{"amount": amount}

	var resp struct {
		RefundID string `json:"refund_id"`
		Status   string `json:"status"`
	}

	path := fmt.Sprintf("/payments/%s/refund", transactionID)
	if err := g.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderOther, Op: "refund_payment", Err: err}
	}

	return &RefundResult{Status: resp.Status, RefundID: resp.RefundID}, nil
}

func (g *genericGateway) GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	var resp struct {
		Status string `json:"status"`
	}

	path := fmt.Sprintf("/payments/%s", transactionID)
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderOther, Op: "get_transaction_status", Err: err}
	}

	return &StatusResult{Status: resp.Status}, nil
}

func (g *genericGateway) do(ctx context.Context, method, path string, payload, out any) error {
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
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider API returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
