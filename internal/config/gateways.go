package config

import (
	"os"
	"strconv"
	"time"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/gateway"
)

// GatewaySettings holds connection settings for every payment provider the
// platform can route to, plus defaults shared across providers.
type GatewaySettings struct {
	Timeout   time.Duration
	Providers map[string]gateway.Config
}

// LoadGatewaySettings reads the per-provider environment. Each provider gets
// the shared timeout unless it sets its own.
func LoadGatewaySettings() *GatewaySettings {
	timeout := getEnvAsDuration("GATEWAY_TIMEOUT", gateway.DefaultTimeout)
	maxIdleConns := getEnvAsInt("GATEWAY_MAX_IDLE_CONNS", gateway.DefaultMaxIdleConns)

	return &GatewaySettings{
		Timeout: timeout,
		Providers: map[string]gateway.Config{
			gateway.ProviderStone: {
				BaseURL:      getEnv("STONE_API_URL", "https://api.stone.com.br"),
				APIKey:       getEnv("STONE_API_KEY", ""),
				MerchantID:   getEnv("STONE_MERCHANT_ID", ""),
				Timeout:      getEnvAsDuration("STONE_TIMEOUT", timeout),
				MaxIdleConns: maxIdleConns,
			},
			gateway.ProviderMercadoPago: {
				BaseURL:      getEnv("MERCADOPAGO_API_URL", "https://api.mercadopago.com"),
				APIKey:       getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
				MerchantID:   getEnv("MERCADOPAGO_COLLECTOR_ID", ""),
				Timeout:      getEnvAsDuration("MERCADOPAGO_TIMEOUT", timeout),
				MaxIdleConns: maxIdleConns,
			},
			gateway.ProviderPagSeguro: {
				BaseURL:      getEnv("PAGSEGURO_API_URL", "https://api.pagseguro.com"),
				APIKey:       getEnv("PAGSEGURO_API_TOKEN", ""),
				MerchantID:   getEnv("PAGSEGURO_ACCOUNT_ID", ""),
				Timeout:      getEnvAsDuration("PAGSEGURO_TIMEOUT", timeout),
				MaxIdleConns: maxIdleConns,
			},
			gateway.ProviderOther: {
				BaseURL:      getEnv("GENERIC_GATEWAY_URL", "http://localhost:9090"),
				APIKey:       getEnv("GENERIC_GATEWAY_KEY", ""),
				Timeout:      timeout,
				MaxIdleConns: maxIdleConns,
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
