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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Org        OrgConfig
	Ledger     LedgerConfig
	Events     EventsConfig
	Cache      CacheConfig
	Overview   OverviewConfig
	Statements StatementsConfig
	CORS       CORSConfig
	Log        LogConfig
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

// JWTConfig holds the shared secret used to verify caller identity
// tokens. Tokens are issued by an external identity provider; this
// service only validates them.
type JWTConfig struct {
	Secret string
}

// OrgConfig identifies the organization's privileged accounts and the
// governance defaults applied before any owner override is stored.
type OrgConfig struct {
	OwnerAccount     string
	TreasuryAccount  string
	BoardSeeds       []string
	AdminKeyHash     string
	ProposalDuration time.Duration
}

// LedgerConfig points at the external settlement service.
type LedgerConfig struct {
	BaseURL string
	APIKey  string
	Asset   string
	Timeout time.Duration
}

// EventsConfig controls the Redis stream used for outbound
// notifications.
type EventsConfig struct {
	Enabled bool
	Stream  string
	MaxLen  int64
}

// CacheConfig toggles the Redis read cache shared by listings and
// snapshot endpoints.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// OverviewConfig governs overview exposure and cache tuning.
type OverviewConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// StatementsConfig configures asynchronous statement generation.
type StatementsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
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
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.Org = OrgConfig{
		OwnerAccount:     v.GetString("ORG_OWNER_ACCOUNT"),
		TreasuryAccount:  v.GetString("ORG_TREASURY_ACCOUNT"),
		BoardSeeds:       splitAndTrim(v.GetString("ORG_BOARD_SEEDS")),
		AdminKeyHash:     v.GetString("ORG_ADMIN_KEY_HASH"),
		ProposalDuration: parseDuration(v.GetString("ORG_PROPOSAL_DURATION"), 3*time.Minute),
	}

	cfg.Ledger = LedgerConfig{
		BaseURL: v.GetString("LEDGER_BASE_URL"),
		APIKey:  v.GetString("LEDGER_API_KEY"),
		Asset:   v.GetString("LEDGER_ASSET"),
		Timeout: parseDuration(v.GetString("LEDGER_TIMEOUT"), 10*time.Second),
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("ENABLE_EVENTS"),
		Stream:  v.GetString("EVENTS_STREAM"),
		MaxLen:  v.GetInt64("EVENTS_STREAM_MAX_LEN"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_CACHE"),
		DefaultTTL: parseDuration(v.GetString("CACHE_DEFAULT_TTL"), time.Minute),
	}

	cfg.Overview = OverviewConfig{
		Enabled:  v.GetBool("ENABLE_OVERVIEW"),
		CacheTTL: parseDuration(v.GetString("OVERVIEW_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Statements = StatementsConfig{
		Enabled:           v.GetBool("ENABLE_STATEMENTS"),
		StorageDir:        v.GetString("STATEMENTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("STATEMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("STATEMENTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("STATEMENTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("STATEMENTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("STATEMENTS_WORKER_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
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
	v.SetDefault("DB_NAME", "edu_collective")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ORG_OWNER_ACCOUNT", "")
	v.SetDefault("ORG_TREASURY_ACCOUNT", "treasury")
	v.SetDefault("ORG_BOARD_SEEDS", "")
	v.SetDefault("ORG_ADMIN_KEY_HASH", "")
	v.SetDefault("ORG_PROPOSAL_DURATION", "3m")

	v.SetDefault("LEDGER_BASE_URL", "http://localhost:9090")
	v.SetDefault("LEDGER_API_KEY", "")
	v.SetDefault("LEDGER_ASSET", "EDU")
	v.SetDefault("LEDGER_TIMEOUT", "10s")

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("EVENTS_STREAM", "org:events")
	v.SetDefault("EVENTS_STREAM_MAX_LEN", 10000)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_DEFAULT_TTL", "60s")

	v.SetDefault("ENABLE_OVERVIEW", true)
	v.SetDefault("OVERVIEW_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_STATEMENTS", false)
	v.SetDefault("STATEMENTS_STORAGE_DIR", "./exports")
	v.SetDefault("STATEMENTS_SIGNED_URL_SECRET", "dev_statements_secret")
	v.SetDefault("STATEMENTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("STATEMENTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("STATEMENTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("STATEMENTS_WORKER_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
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
