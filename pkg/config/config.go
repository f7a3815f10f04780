package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Dashboard DashboardConfig
	History   HistoryConfig
	Registry  RegistryConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	ResetCodeTTL      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig points at the S3-compatible bucket holding uploaded audit documents.
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string
}

// DashboardConfig tunes the dashboard aggregation behaviour.
type DashboardConfig struct {
	Enabled            bool
	CacheTTL           time.Duration
	StaleAuditAfter    time.Duration
	ConformityTarget   int
	HighPriorityBelow  int
	MaxPriorityActions int
	ActivityFeedLimit  int
}

// HistoryConfig governs the Redis fallback mirror for history reads.
type HistoryConfig struct {
	MirrorSize int
	MirrorTTL  time.Duration
}

// RegistryConfig controls the per-user document registry.
type RegistryConfig struct {
	Enabled       bool
	RetentionDays int
}

// ReportsConfig configures asynchronous report export.
type ReportsConfig struct {
	Enabled           bool
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		ResetCodeTTL:      parseDuration(v.GetString("RESET_CODE_TTL"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Endpoint:  v.GetString("STORAGE_ENDPOINT"),
		Region:    v.GetString("STORAGE_REGION"),
		Bucket:    v.GetString("STORAGE_BUCKET"),
		AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
		SecretKey: v.GetString("STORAGE_SECRET_KEY"),
		UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		PublicURL: v.GetString("STORAGE_PUBLIC_URL"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:            v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL:           parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		StaleAuditAfter:    parseDuration(v.GetString("DASHBOARD_STALE_AUDIT_AFTER"), 6*30*24*time.Hour),
		ConformityTarget:   v.GetInt("DASHBOARD_CONFORMITY_TARGET"),
		HighPriorityBelow:  v.GetInt("DASHBOARD_HIGH_PRIORITY_BELOW"),
		MaxPriorityActions: v.GetInt("DASHBOARD_MAX_PRIORITY_ACTIONS"),
		ActivityFeedLimit:  v.GetInt("DASHBOARD_ACTIVITY_FEED_LIMIT"),
	}

	cfg.History = HistoryConfig{
		MirrorSize: v.GetInt("HISTORY_MIRROR_SIZE"),
		MirrorTTL:  parseDuration(v.GetString("HISTORY_MIRROR_TTL"), 24*time.Hour),
	}

	cfg.Registry = RegistryConfig{
		Enabled:       v.GetBool("ENABLE_REGISTRY"),
		RetentionDays: v.GetInt("REGISTRY_RETENTION_DAYS"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mase_audit")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("RESET_CODE_TTL", "15m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
	v.SetDefault("STORAGE_REGION", "eu-west-1")
	v.SetDefault("STORAGE_BUCKET", "documents")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_USE_SSL", false)
	v.SetDefault("STORAGE_PUBLIC_URL", "")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_STALE_AUDIT_AFTER", "4320h")
	v.SetDefault("DASHBOARD_CONFORMITY_TARGET", 80)
	v.SetDefault("DASHBOARD_HIGH_PRIORITY_BELOW", 60)
	v.SetDefault("DASHBOARD_MAX_PRIORITY_ACTIONS", 5)
	v.SetDefault("DASHBOARD_ACTIVITY_FEED_LIMIT", 10)

	v.SetDefault("HISTORY_MIRROR_SIZE", 5)
	v.SetDefault("HISTORY_MIRROR_TTL", "24h")

	v.SetDefault("ENABLE_REGISTRY", true)
	v.SetDefault("REGISTRY_RETENTION_DAYS", 30)

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
