package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SALEPOINT_DB_DSN"
	EnvDBHost = "SALEPOINT_DB_HOST"
	EnvDBUser = "SALEPOINT_DB_USER"
	EnvDBName = "SALEPOINT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Checkout     CheckoutConfig
	QRGateway    QRGatewayConfig
	TaxRegistry  TaxRegistryConfig
	EInvoice     EInvoiceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SALEPOINT_APP_ENV" required:"true"`
	Port         string `envconfig:"SALEPOINT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SALEPOINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SALEPOINT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SALEPOINT_DB_DSN"`
	Driver string `envconfig:"SALEPOINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SALEPOINT_DB_HOST"`
	LegacyPort     int    `envconfig:"SALEPOINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SALEPOINT_DB_USER"`
	LegacyPassword string `envconfig:"SALEPOINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SALEPOINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SALEPOINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SALEPOINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SALEPOINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SALEPOINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SALEPOINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SALEPOINT_REDIS_URL"`
	Address      string        `envconfig:"SALEPOINT_REDIS_ADDR"`
	Password     string        `envconfig:"SALEPOINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SALEPOINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SALEPOINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SALEPOINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SALEPOINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SALEPOINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SALEPOINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SALEPOINT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SALEPOINT_JWT_ISSUER" default:"salepoint"`
	ExpirationMinutes int    `envconfig:"SALEPOINT_JWT_EXPIRATION_MINUTES" default:"720"`
}

// TokenTTL returns the terminal token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SALEPOINT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SALEPOINT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SALEPOINT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DisplayTopic string `envconfig:"SALEPOINT_PUBSUB_DISPLAY_TOPIC" default:"salepoint-display-events"`
}

type CheckoutConfig struct {
	// QRWaitTimeout bounds the AwaitingQR state; on expiry the session is
	// cancelled back to payment-method selection.
	QRWaitTimeout time.Duration `envconfig:"SALEPOINT_CHECKOUT_QR_WAIT_TIMEOUT" default:"5m"`
	// RoundingTolerance is the max drift allowed between a cached cart total
	// and the freshly recomputed one before the cached value is discarded.
	RoundingTolerance float64 `envconfig:"SALEPOINT_CHECKOUT_ROUNDING_TOLERANCE" default:"1"`
}

type QRGatewayConfig struct {
	BaseURL      string        `envconfig:"SALEPOINT_QR_GATEWAY_BASE_URL"`
	MerchantCode string        `envconfig:"SALEPOINT_QR_GATEWAY_MERCHANT_CODE"`
	APIKey       string        `envconfig:"SALEPOINT_QR_GATEWAY_API_KEY"`
	Timeout      time.Duration `envconfig:"SALEPOINT_QR_GATEWAY_TIMEOUT" default:"15s"`
}

type TaxRegistryConfig struct {
	BaseURL string        `envconfig:"SALEPOINT_TAX_REGISTRY_BASE_URL"`
	Timeout time.Duration `envconfig:"SALEPOINT_TAX_REGISTRY_TIMEOUT" default:"10s"`
}

type EInvoiceConfig struct {
	BaseURL string        `envconfig:"SALEPOINT_EINVOICE_BASE_URL"`
	Timeout time.Duration `envconfig:"SALEPOINT_EINVOICE_TIMEOUT" default:"30s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
