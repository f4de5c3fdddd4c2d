package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// Config holds every setting the api, engine and archiver roles read at startup
type Config struct {
	Database      DatabaseConfig     `json:"database"`
	Server        ServerConfig       `json:"server"`
	Security      SecurityConfig     `json:"security"`
	JWT           JWTConfig          `json:"jwt"`
	Ingest        IngestConfig       `json:"ingest"`
	Cache         CacheConfig        `json:"cache"`
	Engine        EngineConfig       `json:"engine"`
	Archive       ArchiveConfig      `json:"archive"`
	Notifications NotificationConfig `json:"notifications"`
	Logging       LoggingConfig      `json:"logging"`
	Metrics       MetricsConfig      `json:"metrics"`
	Deployment    DeploymentConfig   `json:"deployment"`
}

type DatabaseConfig struct {
	URL             string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN returns a libpq key/value connection string. DATABASE_URL wins over the
// discrete fields when set.
func (c DatabaseConfig) DSN() (string, error) {
	if c.URL != "" {
		dsn, err := pq.ParseURL(c.URL)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		return dsn, nil
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode), nil
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	AllowedOrigins   []string      `json:"allowed_origins"`
	AllowedMethods   []string      `json:"allowed_methods"`
	AllowedHeaders   []string      `json:"allowed_headers"`
	AllowCredentials bool          `json:"allow_credentials"`
	CORSMaxAge       int           `json:"cors_max_age"`
	GlobalRateLimit  int           `json:"global_rate_limit"`
	BidRateLimit     int           `json:"bid_rate_limit"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
}

type JWTConfig struct {
	SecretKey      string        `json:"-"`
	PrivateKey     string        `json:"-"` // RSA private key in PEM format, only needed to mint tokens
	PublicKey      string        `json:"public_key"`
	UseRSAKeys     bool          `json:"use_rsa_keys"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// IngestConfig guards the auction ingestion endpoint
type IngestConfig struct {
	APIKeyHeader string `json:"api_key_header"`
	APIKeyHash   string `json:"-"` // bcrypt
}

type CacheConfig struct {
	Enabled     bool   `json:"enabled"`
	RedisURL    string `json:"redis_url"`
	RedisDB     int    `json:"redis_db"`
	RedisPrefix string `json:"redis_prefix"`
	Password    string `json:"-"`
}

// EngineConfig tunes the expiration and award engine
type EngineConfig struct {
	TickInterval    time.Duration `json:"tick_interval"`
	BatchSize       int           `json:"batch_size"`
	ClaimStaleAfter time.Duration `json:"claim_stale_after"`
	BackoffBase     time.Duration `json:"backoff_base"`
	BackoffMax      time.Duration `json:"backoff_max"`
	UseRedisLock    bool          `json:"use_redis_lock"`
	LockTTL         time.Duration `json:"lock_ttl"`
}

type ArchiveConfig struct {
	Interval  time.Duration  `json:"interval"`
	Grace     time.Duration  `json:"grace"`
	BatchSize int            `json:"batch_size"`
	DynamoDB  DynamoDBConfig `json:"dynamodb"`
}

type DynamoDBConfig struct {
	Enabled   bool   `json:"enabled"`
	TableName string `json:"table_name"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
}

type NotificationConfig struct {
	QueueSize    int    `json:"queue_size"`
	Workers      int    `json:"workers"`
	RedisChannel string `json:"redis_channel"`
	LogProvider  bool   `json:"log_provider"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
}

// LoadConfig reads the process environment, after merging a .env file when one
// exists, and validates the result.
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "freight_bidding"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 500*time.Millisecond),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1024*1024),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-API-Key"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 1200),
			BidRateLimit:     getEnvInt("BID_RATE_LIMIT", 120),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:     getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:      getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:     getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 12*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "freight-bidding"),
			Audience:       getEnvString("JWT_AUDIENCE", "freight-bidding-api"),
		},
		Ingest: IngestConfig{
			APIKeyHeader: getEnvString("INGEST_API_KEY_HEADER", "X-API-Key"),
			APIKeyHash:   getEnvString("INGEST_API_KEY_HASH", ""),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "freight:"),
			Password:    getEnvString("REDIS_PASSWORD", ""),
		},
		Engine: EngineConfig{
			TickInterval:    getEnvDuration("ENGINE_TICK_INTERVAL", 5*time.Second),
			BatchSize:       getEnvInt("ENGINE_BATCH_SIZE", 100),
			ClaimStaleAfter: getEnvDuration("ENGINE_CLAIM_STALE_AFTER", 30*time.Second),
			BackoffBase:     getEnvDuration("ENGINE_BACKOFF_BASE", 2*time.Second),
			BackoffMax:      getEnvDuration("ENGINE_BACKOFF_MAX", 5*time.Minute),
			UseRedisLock:    getEnvBool("ENGINE_USE_REDIS_LOCK", false),
			LockTTL:         getEnvDuration("ENGINE_LOCK_TTL", 30*time.Second),
		},
		Archive: ArchiveConfig{
			Interval:  getEnvDuration("ARCHIVE_INTERVAL", 10*time.Minute),
			Grace:     getEnvDuration("ARCHIVE_GRACE", time.Hour),
			BatchSize: getEnvInt("ARCHIVE_BATCH_SIZE", 200),
			DynamoDB: DynamoDBConfig{
				Enabled:   getEnvBool("ARCHIVE_DYNAMODB_ENABLED", false),
				TableName: getEnvString("ARCHIVE_DYNAMODB_TABLE", "freight_archive"),
				Region:    getEnvString("AWS_REGION", "us-east-1"),
				Endpoint:  getEnvString("ARCHIVE_DYNAMODB_ENDPOINT", ""),
				AccessKey: getEnvString("AWS_ACCESS_KEY_ID", ""),
				SecretKey: getEnvString("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Notifications: NotificationConfig{
			QueueSize:    getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
			Workers:      getEnvInt("NOTIFY_WORKERS", 2),
			RedisChannel: getEnvString("NOTIFY_REDIS_CHANNEL", ""),
			LogProvider:  getEnvBool("NOTIFY_LOG_PROVIDER", true),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/freight-bidding/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "development"),
			Version:     getEnvString("VERSION", "dev"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile merges path into the environment without overriding variables
// that are already set
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateConfig reports every problem at once
func ValidateConfig(cfg *Config) error {
	var problems []string

	if cfg.Database.URL != "" {
		if _, err := pq.ParseURL(cfg.Database.URL); err != nil {
			problems = append(problems, "DATABASE_URL is not a valid postgres URL")
		}
	} else {
		if cfg.Database.Host == "" {
			problems = append(problems, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			problems = append(problems, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			problems = append(problems, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			problems = append(problems, "DB_USER is required")
		}
	}

	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PublicKey == "" {
			problems = append(problems, "JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is set")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		problems = append(problems, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		problems = append(problems, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		problems = append(problems, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		problems = append(problems, "JWT_AUDIENCE is required")
	}

	if cfg.Ingest.APIKeyHash == "" {
		problems = append(problems, "INGEST_API_KEY_HASH is required")
	} else if !strings.HasPrefix(cfg.Ingest.APIKeyHash, "$2") {
		problems = append(problems, "INGEST_API_KEY_HASH must be a bcrypt hash")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		problems = append(problems, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		problems = append(problems, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		problems = append(problems, "SERVER_WRITE_TIMEOUT must be positive")
	}

	if cfg.Engine.TickInterval <= 0 {
		problems = append(problems, "ENGINE_TICK_INTERVAL must be positive")
	}
	if cfg.Engine.BatchSize <= 0 {
		problems = append(problems, "ENGINE_BATCH_SIZE must be positive")
	}
	if cfg.Engine.ClaimStaleAfter <= 0 {
		problems = append(problems, "ENGINE_CLAIM_STALE_AFTER must be positive")
	}
	if cfg.Engine.BackoffBase <= 0 || cfg.Engine.BackoffMax < cfg.Engine.BackoffBase {
		problems = append(problems, "ENGINE_BACKOFF_BASE must be positive and not exceed ENGINE_BACKOFF_MAX")
	}
	if cfg.Engine.UseRedisLock && !cfg.Cache.Enabled {
		problems = append(problems, "ENGINE_USE_REDIS_LOCK requires CACHE_ENABLED")
	}

	if cfg.Archive.Interval <= 0 {
		problems = append(problems, "ARCHIVE_INTERVAL must be positive")
	}
	if cfg.Archive.Grace < 0 {
		problems = append(problems, "ARCHIVE_GRACE must not be negative")
	}
	if cfg.Archive.DynamoDB.Enabled && cfg.Archive.DynamoDB.TableName == "" {
		problems = append(problems, "ARCHIVE_DYNAMODB_TABLE is required when the mirror is enabled")
	}

	if cfg.Notifications.QueueSize <= 0 || cfg.Notifications.Workers <= 0 {
		problems = append(problems, "NOTIFY_QUEUE_SIZE and NOTIFY_WORKERS must be positive")
	}
	if cfg.Notifications.RedisChannel != "" && !cfg.Cache.Enabled {
		problems = append(problems, "NOTIFY_REDIS_CHANNEL requires CACHE_ENABLED")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		problems = append(problems, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}
