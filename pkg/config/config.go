package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Prodigi      ProdigiConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Webhooks     WebhooksConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROMPTLY_APP_ENV" required:"true"`
	Port         string `envconfig:"PROMPTLY_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"PROMPTLY_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"PROMPTLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROMPTLY_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PROMPTLY_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROMPTLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"PROMPTLY_DB_DSN"`
	Driver     string `envconfig:"PROMPTLY_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"PROMPTLY_SQLITE_PATH" default:"promptly.db"`

	LegacyHost     string `envconfig:"PROMPTLY_DB_HOST"`
	LegacyPort     int    `envconfig:"PROMPTLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROMPTLY_DB_USER"`
	LegacyPassword string `envconfig:"PROMPTLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROMPTLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROMPTLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROMPTLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROMPTLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROMPTLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROMPTLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROMPTLY_REDIS_URL"`
	Address      string        `envconfig:"PROMPTLY_REDIS_ADDR"`
	Password     string        `envconfig:"PROMPTLY_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROMPTLY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROMPTLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROMPTLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROMPTLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROMPTLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROMPTLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies admin bearer tokens minted by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"PROMPTLY_JWT_SECRET"`
	Issuer            string `envconfig:"PROMPTLY_JWT_ISSUER" default:"promptly-printed"`
	ExpirationMinutes int    `envconfig:"PROMPTLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PROMPTLY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PROMPTLY_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PROMPTLY_STRIPE_API_KEY"`
	Secret string `envconfig:"PROMPTLY_STRIPE_SECRET"`
	Env    string `envconfig:"PROMPTLY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"PROMPTLY_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"PROMPTLY_SQUARE_WEBHOOK_SECRET"`
	// WebhookURL is the notification URL registered with Square; Square
	// signs it together with the body.
	WebhookURL string `envconfig:"PROMPTLY_SQUARE_WEBHOOK_URL"`
	Env        string `envconfig:"PROMPTLY_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type ProdigiConfig struct {
	APIKey         string        `envconfig:"PROMPTLY_PRODIGI_API_KEY"`
	Env            string        `envconfig:"PROMPTLY_PRODIGI_ENV" default:"sandbox"`
	BaseURL        string        `envconfig:"PROMPTLY_PRODIGI_BASE_URL"`
	CallbackURL    string        `envconfig:"PROMPTLY_PRODIGI_CALLBACK_URL"`
	ShippingMethod string        `envconfig:"PROMPTLY_PRODIGI_SHIPPING_METHOD" default:"Standard"`
	Timeout        time.Duration `envconfig:"PROMPTLY_PRODIGI_TIMEOUT" default:"20s"`
}

// Environment returns the normalized Prodigi environment (sandbox/live).
func (p ProdigiConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PROMPTLY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PROMPTLY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PROMPTLY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"PROMPTLY_GCS_BUCKET_NAME"`
	DownloadURLExpiry time.Duration `envconfig:"PROMPTLY_GCS_DOWNLOAD_URL_EXPIRY" default:"168h"`
	PublicBaseURL     string        `envconfig:"PROMPTLY_GCS_PUBLIC_BASE_URL"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"PROMPTLY_PUBSUB_ORDERS_TOPIC" default:"promptly-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PROMPTLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PROMPTLY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PROMPTLY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PROMPTLY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"PROMPTLY_RECONCILE_INTERVAL" default:"15m"`
	StuckAfter time.Duration `envconfig:"PROMPTLY_RECONCILE_STUCK_AFTER" default:"30m"`
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
