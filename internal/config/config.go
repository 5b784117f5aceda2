package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Chain
	RPCURL          string
	ChainID         string // hex, e.g. "0xaa36a7"
	ContractAddress string
	ENSRegistry     string

	// Provider
	ProviderPollInterval time.Duration // accountsChanged/chainChanged emulation
	TxPollInterval       time.Duration // receipt polling
	TxWaitTimeout        time.Duration

	// Catalog backend
	CatalogBaseURL string
	CatalogTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Server
	APIPort string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RPCURL:          getEnv("RPC_URL", "http://localhost:8545"),
		ChainID:         getEnv("CHAIN_ID", "0xaa36a7"),
		ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
		ENSRegistry:     getEnv("ENS_REGISTRY_ADDRESS", "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"),

		ProviderPollInterval: time.Duration(getEnvInt("PROVIDER_POLL_INTERVAL_MS", 4000)) * time.Millisecond,
		TxPollInterval:       time.Duration(getEnvInt("TX_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		TxWaitTimeout:        time.Duration(getEnvInt("TX_WAIT_TIMEOUT_SECONDS", 300)) * time.Second,

		CatalogBaseURL: getEnv("CATALOG_BASE_URL", "http://localhost:3001/api"),
		CatalogTimeout: time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 15)) * time.Second,

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		APIPort: getEnv("API_PORT", "3000"),
	}
}

func (c *Config) Validate(log *zap.Logger) {
	if c.ContractAddress == "" {
		log.Warn("CONTRACT_ADDRESS is not set, on-chain operations will fail")
	}
	if c.RPCURL == "http://localhost:8545" {
		log.Warn("RPC_URL is default, point it at a real node in production")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
