package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"agrirent/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Admins     []string         `yaml:"admins"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Booking    BookingConfig    `yaml:"booking"`
	Payment    PaymentConfig    `yaml:"payment"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
	ClientCAFile      string `yaml:"client_ca_file"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	HeaderParty  string         `yaml:"header_party"`
	HeaderName   string         `yaml:"header_name"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// Timezone decides which calendar day "today" is.
	Timezone string `yaml:"timezone"`
}

// Location resolves the configured timezone, UTC when unset.
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

// TelegramConfig drives the optional ops-chat notifier.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile      string          `yaml:"credentials_file"`
	BookingSpreadsheetID string          `yaml:"bookings_spreadsheet_id"`
	BookingSheetName     string          `yaml:"bookings_sheet_name"`
	SyncRetry            SyncRetryConfig `yaml:"sync_retry"`
}

// SyncRetryConfig tunes ledger sync retries. Zero values fall back to the
// worker defaults.
type SyncRetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelaySeconds int     `yaml:"base_delay_seconds"`
	MaxDelaySeconds  int     `yaml:"max_delay_seconds"`
	Jitter           float64 `yaml:"jitter"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.BookingSpreadsheetID != ""
}

type CatalogConfig struct {
	SeedFile string `yaml:"seed_file"`
	// CacheTTL in seconds.
	CacheTTL int `yaml:"cache_ttl"`
}

type BookingConfig struct {
	MaxBookingDays    int `yaml:"max_booking_days"`
	MaxRentalDays     int `yaml:"max_rental_days"`
	DraftTTL          int `yaml:"draft_ttl"`
	RateLimitRequests int `yaml:"rate_limit_requests"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type PaymentConfig struct {
	DelayMillis int `yaml:"delay_ms"`
	// IdempotencyTTL is a Go duration string, e.g. "24h".
	IdempotencyTTL string `yaml:"idempotency_ttl"`
}

// IdempotencyWindow parses IdempotencyTTL, 24h when empty or invalid.
func (p PaymentConfig) IdempotencyWindow() time.Duration {
	if d, err := time.ParseDuration(p.IdempotencyTTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return errors.New("telegram chat_id is required when bot_token is set")
	}

	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}

	if c.Payment.DelayMillis < 0 {
		return errors.New("payment delay must not be negative")
	}

	if r := c.Google.SyncRetry; r.MaxAttempts < 0 || r.BaseDelaySeconds < 0 || r.MaxDelaySeconds < 0 || r.Jitter < 0 || r.Jitter > 1 {
		return errors.New("google sync_retry values must be non-negative and jitter at most 1")
	}

	if c.Booking.MaxRentalDays < 0 || c.Booking.MaxBookingDays < 0 {
		return errors.New("booking limits must not be negative")
	}

	if c.API.Auth.Enabled && c.API.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}

	seen := make(map[string]bool, len(c.Admins))
	for _, id := range c.Admins {
		if id == "" {
			return errors.New("admin id must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate admin id: %s", id)
		}
		seen[id] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "agrirent"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderParty == "" {
		c.API.Auth.HeaderParty = "x-party-id"
	}
	if c.API.Auth.HeaderName == "" {
		c.API.Auth.HeaderName = "x-party-name"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Catalog.SeedFile == "" {
		c.Catalog.SeedFile = "configs/equipment.yaml"
	}
	if c.Catalog.CacheTTL == 0 {
		c.Catalog.CacheTTL = models.CatalogCacheTTL
	}

	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.MaxRentalDays == 0 {
		c.Booking.MaxRentalDays = models.DefaultMaxRentalDays
	}
	if c.Booking.DraftTTL == 0 {
		c.Booking.DraftTTL = models.DefaultDraftTTL
	}
	if c.Booking.RateLimitRequests == 0 {
		c.Booking.RateLimitRequests = models.RateLimitRequests
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = models.RateLimitWindow
	}

	if c.Payment.IdempotencyTTL == "" {
		c.Payment.IdempotencyTTL = "24h"
	}

	if c.Google.BookingSheetName == "" {
		c.Google.BookingSheetName = "Bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./data/exports"
	}
}
