package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Provider   ProviderConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Replay     ReplayConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver        string
	MigrateOnBoot bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	ReplayTTL time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type EncryptionConfig struct {
	Key string
}

type ProviderConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	APIVersion    string
	WebhookSecret string
	Timeout       time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
}

type TLSConfig struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

type FirebaseConfig struct {
	CredentialsFile string
	// MessagesFile optionally overrides push notification copy.
	MessagesFile string
}

// ReplayConfig drives the background retry of failed webhook events.
type ReplayConfig struct {
	Enabled     bool
	Interval    time.Duration
	Workers     int
	QueueSize   int
	BatchSize   int
	MaxAttempts int
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
	SampleRatio  float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	replayTTL, err := time.ParseDuration(getEnv("WEBHOOK_REPLAY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_REPLAY_TTL: %w", err)
	}

	providerTimeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	providerAttempts, err := strconv.Atoi(getEnv("PROVIDER_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_MAX_ATTEMPTS: %w", err)
	}
	providerBackoff, err := time.ParseDuration(getEnv("PROVIDER_RETRY_BACKOFF", "250ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RETRY_BACKOFF: %w", err)
	}

	replayInterval, err := time.ParseDuration(getEnv("REPLAY_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPLAY_INTERVAL: %w", err)
	}
	replayWorkers, err := getIntEnv("REPLAY_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	replayBatch, err := getIntEnv("REPLAY_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	replayAttempts, err := getIntEnv("REPLAY_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
	}

	// Parse allowed hosts (comma-separated list)
	var allowedHosts []string
	if allowedHostsStr := getEnv("ALLOWED_HOSTS", ""); allowedHostsStr != "" {
		for _, host := range strings.Split(allowedHostsStr, ",") {
			host = strings.TrimSpace(host)
			if host != "" {
				allowedHosts = append(allowedHosts, host)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
			MigrateOnBoot: getBoolEnv("MIGRATE_ON_BOOT", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "ledgerlink"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ledgerlink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        redisDB,
			ReplayTTL: replayTTL,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Provider: ProviderConfig{
			BaseURL:       strings.TrimRight(getEnv("PROVIDER_BASE_URL", "https://development.knotapi.com"), "/"),
			ClientID:      getEnv("PROVIDER_CLIENT_ID", ""),
			ClientSecret:  getEnv("PROVIDER_CLIENT_SECRET", ""),
			APIVersion:    getEnv("PROVIDER_API_VERSION", "2.0"),
			WebhookSecret: getEnv("PROVIDER_WEBHOOK_SECRET", ""),
			Timeout:       providerTimeout,
			MaxAttempts:   providerAttempts,
			RetryBackoff:  providerBackoff,
		},
		TLS: TLSConfig{
			Enabled:  getBoolEnv("TLS_ENABLED", false),
			CertPath: getEnv("TLS_CERT_PATH", ""),
			KeyPath:  getEnv("TLS_KEY_PATH", ""),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "ledgerlink-api"),
			Environment:  getEnv("APP_ENV", "development"),
			OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_ENDPOINT")),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
			SampleRatio:  sampleRatio,
		},
		Replay: ReplayConfig{
			Enabled:     getBoolEnv("REPLAY_ENABLED", false),
			Interval:    replayInterval,
			Workers:     replayWorkers,
			QueueSize:   replayBatch,
			BatchSize:   replayBatch,
			MaxAttempts: replayAttempts,
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Provider.WebhookSecret == "" {
		return nil, fmt.Errorf("PROVIDER_WEBHOOK_SECRET is required")
	}
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Provider.MaxAttempts < 1 {
		return nil, fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.Replay.Enabled && (cfg.Replay.Interval <= 0 || cfg.Replay.Workers < 1 || cfg.Replay.BatchSize < 1) {
		return nil, fmt.Errorf("REPLAY_INTERVAL, REPLAY_WORKERS and REPLAY_BATCH_SIZE must be positive when REPLAY_ENABLED=true")
	}

	switch cfg.Storage.Driver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q (want postgres or memory)", cfg.Storage.Driver)
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
