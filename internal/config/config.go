package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/loanvault/document-consent-api/internal/models"
)

// EnvPrefix is prepended to every environment override, e.g. LOANDOCS_SERVER_PORT
const EnvPrefix = "LOANDOCS"

// Storage backends
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabasesConfig `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cibil     CibilConfig     `mapstructure:"cibil"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabasesConfig holds all database configurations
type DatabasesConfig struct {
	LoanDocs DatabaseConfig `mapstructure:"loandocs"`
}

// DatabaseConfig holds individual database configuration
type DatabaseConfig struct {
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RuntimeConfig holds demo/live switches
type RuntimeConfig struct {
	DemoMode  bool   `mapstructure:"demo_mode"`
	DemoOTP   string `mapstructure:"demo_otp"`
	ExposeOTP bool   `mapstructure:"expose_otp"`
}

// BatchConfig holds the consent batch timings and limits
type BatchConfig struct {
	OTPTTL              time.Duration `mapstructure:"otp_ttl"`
	OTPMaxAttempts      int           `mapstructure:"otp_max_attempts"`
	ConsentTTL          time.Duration `mapstructure:"consent_ttl"`
	EstimatedProcessing time.Duration `mapstructure:"estimated_processing"`
	WorkerStartDelay    time.Duration `mapstructure:"worker_start_delay"`
	DocumentLatency     time.Duration `mapstructure:"document_latency"`
	DocumentTTL         time.Duration `mapstructure:"document_ttl"`
	MaxDownloads        int           `mapstructure:"max_downloads"`
}

// WorkerConfig sizes the document generation dispatcher
type WorkerConfig struct {
	QueueSize   int `mapstructure:"queue_size"`
	Concurrency int `mapstructure:"concurrency"`
}

// SchedulerConfig controls the periodic expiry sweep
type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CleanupSpec string `mapstructure:"cleanup_spec"`
}

// CibilConfig points at the upstream PAN/CIBIL consent service
type CibilConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// RateLimitConfig throttles the OTP endpoints per client
type RateLimitConfig struct {
	OTPRequestsPerSecond float64 `mapstructure:"otp_rps"`
	OTPBurst             int     `mapstructure:"otp_burst"`
}

var globalConfig *Config

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("deployment")
		v.SetConfigType("yaml")
		v.AddConfigPath("./repository/conf")
		v.AddConfigPath("./cmd/server/repository/conf")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	globalConfig = &config
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.hostname", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.loandocs.hostname", "")
	v.SetDefault("database.loandocs.port", 3306)
	v.SetDefault("database.loandocs.user", "")
	v.SetDefault("database.loandocs.password", "")
	v.SetDefault("database.loandocs.database", "")
	v.SetDefault("database.loandocs.max_open_conns", 25)
	v.SetDefault("database.loandocs.max_idle_conns", 5)
	v.SetDefault("database.loandocs.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.backend", StorageMemory)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("runtime.demo_mode", true)
	v.SetDefault("runtime.demo_otp", models.DefaultDemoOTP)
	v.SetDefault("runtime.expose_otp", true)

	v.SetDefault("batch.otp_ttl", 5*time.Minute)
	v.SetDefault("batch.otp_max_attempts", 3)
	v.SetDefault("batch.consent_ttl", 24*time.Hour)
	v.SetDefault("batch.estimated_processing", 10*time.Minute)
	v.SetDefault("batch.worker_start_delay", 5*time.Second)
	v.SetDefault("batch.document_latency", 200*time.Millisecond)
	v.SetDefault("batch.document_ttl", models.DefaultDocumentTTL)
	v.SetDefault("batch.max_downloads", models.DefaultMaxDownloads)

	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.concurrency", 2)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cleanup_spec", "@every 1m")

	v.SetDefault("cibil.base_url", "")
	v.SetDefault("cibil.timeout", 10*time.Second)
	v.SetDefault("cibil.retry_count", 2)

	v.SetDefault("rate_limit.otp_rps", 1.0)
	v.SetDefault("rate_limit.otp_burst", 5)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case StorageMemory:
	case StorageMySQL:
		if config.Database.LoanDocs.Hostname == "" {
			return fmt.Errorf("database hostname is required")
		}
		if config.Database.LoanDocs.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %q", config.Storage.Backend)
	}

	if config.Batch.OTPTTL <= 0 {
		return fmt.Errorf("batch.otp_ttl must be positive")
	}
	if config.Batch.OTPMaxAttempts <= 0 {
		return fmt.Errorf("batch.otp_max_attempts must be positive")
	}
	if config.Batch.ConsentTTL <= 0 {
		return fmt.Errorf("batch.consent_ttl must be positive")
	}
	if config.Batch.MaxDownloads <= 0 {
		return fmt.Errorf("batch.max_downloads must be positive")
	}

	if config.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive")
	}
	if config.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive")
	}

	if config.Scheduler.Enabled && config.Scheduler.CleanupSpec == "" {
		return fmt.Errorf("scheduler.cleanup_spec is required when the scheduler is enabled")
	}

	if !config.Runtime.DemoMode && config.Cibil.BaseURL == "" {
		return fmt.Errorf("cibil.base_url is required when demo mode is off")
	}

	if config.RateLimit.OTPRequestsPerSecond <= 0 || config.RateLimit.OTPBurst <= 0 {
		return fmt.Errorf("rate_limit.otp_rps and rate_limit.otp_burst must be positive")
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// SetGlobal sets the global configuration (for testing purposes)
func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

// GetDSN returns the database connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		d.User,
		d.Password,
		d.Hostname,
		d.Port,
		d.Database,
	)
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}

// RuntimeMode builds the demo/live switch handed to the OTP verifier and worker
func (c *Config) RuntimeMode() models.RuntimeMode {
	mode := models.LiveMode()
	if c.Runtime.DemoMode {
		mode = models.DemoModeWithOTP(c.Runtime.DemoOTP)
	}
	mode.ExposeOTP = c.Runtime.ExposeOTP
	mode.DocumentLatency = c.Batch.DocumentLatency
	return mode
}
