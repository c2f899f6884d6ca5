package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Mpesa     MpesaConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Pending   PendingConfig
	Status    StatusConfig
	Analytics AnalyticsConfig
	Store     StoreConfig
	LogLevel  string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// MpesaConfig holds M-Pesa provider configuration
type MpesaConfig struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
	Initiator        string
	SecurityCred     string
	PartyA           string
	IdentifierType   string
	ResultURL        string
	TimeoutURL       string
	RequestTimeout   time.Duration
	StatusRetries    int
	StatusRetryDelay time.Duration
}

// BasicAuth returns the base64 consumer key/secret pair for token issuance
func (c *MpesaConfig) BasicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// RateLimitConfig holds abuse-control configuration
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// PendingConfig holds pending payment tracking configuration
type PendingConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// StatusConfig holds status read cache and poller configuration
type StatusConfig struct {
	CacheTTL     time.Duration
	PollInterval time.Duration
	PollCutoff   time.Duration
}

// AnalyticsConfig holds event batching configuration
type AnalyticsConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// StoreConfig holds durable store configuration
type StoreConfig struct {
	DBPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Mpesa: MpesaConfig{
			BaseURL:          getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:      getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:   getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:        getEnv("MPESA_SHORTCODE", ""),
			Passkey:          getEnv("MPESA_PASSKEY", ""),
			CallbackURL:      getEnv("MPESA_CALLBACK_URL", ""),
			AccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "PAYMENT_GATEWAY"),
			TransactionDesc:  getEnv("MPESA_TRANSACTION_DESC", "Push payment"),
			Initiator:        getEnv("MPESA_INITIATOR", "testapiuser"),
			SecurityCred:     getEnv("MPESA_SECURITY_CREDENTIAL", ""),
			PartyA:           getEnv("MPESA_PARTY_A", ""),
			IdentifierType:   getEnv("MPESA_IDENTIFIER_TYPE", "4"),
			ResultURL:        getEnv("MPESA_RESULT_URL", ""),
			TimeoutURL:       getEnv("MPESA_TIMEOUT_URL", ""),
			RequestTimeout:   parseDuration(getEnv("MPESA_REQUEST_TIMEOUT", "10s"), 10*time.Second),
			StatusRetries:    parseInt(getEnv("MPESA_STATUS_RETRIES", "3"), 3),
			StatusRetryDelay: parseDuration(getEnv("MPESA_STATUS_RETRY_DELAY", "5s"), 5*time.Second),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: parseInt(getEnv("RATE_LIMIT_MAX_ATTEMPTS", "5"), 5),
			Window:      parseDuration(getEnv("RATE_LIMIT_WINDOW", "15m"), 15*time.Minute),
		},
		Pending: PendingConfig{
			TTL:           parseDuration(getEnv("PENDING_TTL", "15m"), 15*time.Minute),
			SweepInterval: parseDuration(getEnv("PENDING_SWEEP_INTERVAL", "5m"), 5*time.Minute),
		},
		Status: StatusConfig{
			CacheTTL:     parseDuration(getEnv("STATUS_CACHE_TTL", "2m"), 2*time.Minute),
			PollInterval: parseDuration(getEnv("STATUS_POLL_INTERVAL", "30s"), 30*time.Second),
			PollCutoff:   parseDuration(getEnv("STATUS_POLL_CUTOFF", "30s"), 30*time.Second),
		},
		Analytics: AnalyticsConfig{
			BatchSize:     parseInt(getEnv("ANALYTICS_BATCH_SIZE", "10"), 10),
			FlushInterval: parseDuration(getEnv("ANALYTICS_FLUSH_INTERVAL", "5s"), 5*time.Second),
		},
		Store: StoreConfig{
			DBPath: getEnv("STORE_DB_PATH", "./db/gateway.db"),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	// Validate required provider fields
	if config.Mpesa.ConsumerKey == "" || config.Mpesa.ConsumerSecret == "" {
		return nil, fmt.Errorf("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required")
	}
	if config.Mpesa.ShortCode == "" {
		return nil, fmt.Errorf("MPESA_SHORTCODE is required")
	}
	if config.Mpesa.Passkey == "" {
		return nil, fmt.Errorf("MPESA_PASSKEY is required")
	}
	if config.Mpesa.CallbackURL == "" {
		return nil, fmt.Errorf("MPESA_CALLBACK_URL is required")
	}

	return config, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
