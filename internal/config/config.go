package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "POS"

	EnvAppEnv       = "POS_APP_ENV"
	EnvPort         = "POS_APP_PORT"
	EnvDBDSN        = "POS_DB_DSN"
	EnvRedisURL     = "POS_REDIS_URL"
	EnvJWTSecret    = "POS_JWT_SECRET"
	EnvSalesTaxRate = "POS_SALES_TAX_RATE"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Session SessionConfig
	Sales   SalesConfig
	Seed    SeedConfig
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DB.ensureDSN()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("%s or %s is required", EnvDBDSN, "POS_DB_HOST")
	}
	if c.Sales.TaxRate.IsNegative() || c.Sales.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1), got %s", EnvSalesTaxRate, c.Sales.TaxRate)
	}
	if c.App.IsProd() && c.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("%s must be set in production", EnvJWTSecret)
	}
	return nil
}

type AppConfig struct {
	Env       string `envconfig:"POS_APP_ENV" default:"development"`
	Name      string `envconfig:"POS_APP_NAME" default:"POS Admin"`
	Port      string `envconfig:"POS_APP_PORT" default:"3000"`
	LogLevel  string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"POS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Addr returns the listen address for the HTTP server.
func (a AppConfig) Addr() string {
	port := strings.TrimSpace(a.Port)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

type DBConfig struct {
	DSN string `envconfig:"POS_DB_DSN"`

	Host     string `envconfig:"POS_DB_HOST"`
	Port     int    `envconfig:"POS_DB_PORT" default:"5432"`
	User     string `envconfig:"POS_DB_USER"`
	Password string `envconfig:"POS_DB_PASSWORD"`
	Name     string `envconfig:"POS_DB_NAME"`
	SSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"POS_DB_TIMEZONE" default:"Asia/Jakarta"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	SlowThreshold   time.Duration `envconfig:"POS_DB_SLOW_THRESHOLD" default:"1s"`
	AutoMigrate     bool          `envconfig:"POS_DB_AUTO_MIGRATE" default:"true"`
}

func (d *DBConfig) ensureDSN() {
	if d.DSN != "" || d.Host == "" {
		return
	}
	d.DSN = fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

// RedisConfig is optional; an empty URL disables the product cache and falls
// back to in-process refund locks.
type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	CacheTTL     time.Duration `envconfig:"POS_REDIS_CACHE_TTL" default:"30s"`
	LockTTL      time.Duration `envconfig:"POS_REDIS_LOCK_TTL" default:"15s"`
	LockRetryGap time.Duration `envconfig:"POS_REDIS_LOCK_RETRY" default:"50ms"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

const defaultJWTSecret = "your-super-secret-key-change-in-production"

type JWTConfig struct {
	Secret          string `envconfig:"POS_JWT_SECRET" default:"your-super-secret-key-change-in-production"`
	Issuer          string `envconfig:"POS_JWT_ISSUER" default:"go-pos-admin"`
	ExpirationHours int    `envconfig:"POS_JWT_EXPIRATION_HOURS" default:"24"`
}

func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationHours) * time.Hour
}

type SessionConfig struct {
	InactivityTimeout time.Duration `envconfig:"POS_SESSION_INACTIVITY_TIMEOUT" default:"5m"`
}

type SalesConfig struct {
	TaxRate           decimal.Decimal `envconfig:"POS_SALES_TAX_RATE" default:"0.11"`
	StoreTimeout      time.Duration   `envconfig:"POS_SALES_STORE_TIMEOUT" default:"5s"`
	LowStockThreshold int             `envconfig:"POS_SALES_LOW_STOCK_THRESHOLD" default:"10"`
}

type SeedConfig struct {
	AdminEmail    string `envconfig:"POS_SEED_ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"POS_SEED_ADMIN_PASSWORD" default:"admin123"`
}
