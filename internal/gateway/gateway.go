package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// DefaultTimeout bounds every outbound gateway call unless overridden.
const DefaultTimeout = 30 * time.Second

// DefaultMaxIdleConns caps idle keep-alive connections per provider host.
const DefaultMaxIdleConns = 10

// Providers supported by the factory.
const (
	ProviderStone       = "stone"
	ProviderMercadoPago = "mercadopago"
	ProviderPagSeguro   = "pagseguro"
	ProviderOther       = "other"
)

// PaymentRequest describes a single live charge initiated from a terminal.
type PaymentRequest struct {
	Amount       int64  // minor units
	Method       string // credit | debit | pix | voucher | other
	TerminalID   string
	Installments int
	Description  string
}

// PaymentResult is the provider's answer to ProcessPayment.
type PaymentResult struct {
	TransactionID     string
	Status            string // models.TxStatus*
	AuthorizationCode string
	NSU               string
	CardBrand         string
	Date              time.Time
}

// RefundResult is the provider's answer to RefundPayment.
type RefundResult struct {
	Status   string // models.TxStatus*
	RefundID string
}

// StatusResult is the provider's answer to GetTransactionStatus.
type StatusResult struct {
	Status string // models.TxStatus*
}

// PaymentGateway is the capability every provider adapter implements. Callers
// never branch on provider type after construction; they own retry policy —
// adapters make exactly one attempt per call.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount int64) (*RefundResult, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (*StatusResult, error)
}

// Config holds the connection settings for one provider.
type Config struct {
	BaseURL      string
	APIKey       string
	MerchantID   string
	Timeout      time.Duration
	MaxIdleConns int
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// httpClient builds the client every adapter uses: per-call timeout plus a
// bounded keep-alive pool against the provider host.
func (c Config) httpClient() *http.Client {
	maxIdle := c.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdleConns
	}
	return &http.Client{
		Timeout: c.timeout(),
		Transport: &http.Transport{
			MaxIdleConns:        maxIdle,
			MaxIdleConnsPerHost: maxIdle,
		},
	}
}

// GatewayError wraps a network failure, timeout or provider rejection on an
// adapter call. Retryable by the caller.
type GatewayError struct {
	Provider string
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// UnsupportedProviderError is returned by New for unknown provider
// identifiers. Fatal configuration error, not retryable.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported payment provider: %q", e.Provider)
}

// New constructs the adapter for the given provider identifier.
func New(provider string, cfg Config) (PaymentGateway, error) {
	switch provider {
	case ProviderStone:
		return newStoneGateway(cfg), nil
	case ProviderMercadoPago:
		return newMercadoPagoGateway(cfg), nil
	case ProviderPagSeguro:
		return newPagSeguroGateway(cfg), nil
	case ProviderOther:
		return newGenericGateway(cfg), nil
	default:
		return nil, &UnsupportedProviderError{Provider: provider}
	}
}

// Factory resolves adapters from a per-provider config table. The refund
// coordinator uses it to rebuild the adapter that originated a transaction.
type Factory struct {
	configs map[string]Config
}

func NewFactory(configs map[string]Config) *Factory {
	return &Factory{configs: configs}
}

// Adapter returns the configured adapter for provider.
func (f *Factory) Adapter(provider string) (PaymentGateway, error) {
	cfg, ok := f.configs[provider]
	if !ok {
		return nil, &UnsupportedProviderError{Provider: provider}
	}
	return New(provider, cfg)
}

// mapStatus normalizes a provider status string to the ledger vocabulary.
// Unknown provider statuses are treated as pending.
func mapStatus(raw string, table map[string]string) string {
	if s, ok := table[raw]; ok {
		return s
	}
	return models.TxStatusPending
}
