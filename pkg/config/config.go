package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Settings     SettingsConfig
	Idempotency  IdempotencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// Load reads the environment. Every invalid section is reported, not only
// the first one.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite),
		cfg.Pricing.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RESTO_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"RESTO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESTO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RESTO_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"RESTO_DB_DSN"`
	Driver string `envconfig:"RESTO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESTO_DB_HOST"`
	LegacyPort     int    `envconfig:"RESTO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESTO_DB_USER"`
	LegacyPassword string `envconfig:"RESTO_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESTO_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESTO_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"RESTO_SQLITE_PATH" default:"restaurant-core.db"`

	MaxOpenConns    int           `envconfig:"RESTO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESTO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESTO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESTO_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"RESTO_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESTO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RESTO_REDIS_ADDR"`
	Password     string        `envconfig:"RESTO_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESTO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESTO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESTO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESTO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESTO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESTO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RESTO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RESTO_AUTO_MIGRATE" default:"false"`
}

// PricingConfig holds platform-wide pricing defaults. Restaurants override them
// through the settings provider.
type PricingConfig struct {
	RoundingMode       string `envconfig:"RESTO_PRICING_ROUNDING_MODE" default:"half_up"`
	BirthdayWindowDays int    `envconfig:"RESTO_PRICING_BIRTHDAY_WINDOW_DAYS" default:"7"`
	RoundToTen         bool   `envconfig:"RESTO_PRICING_ROUND_TO_TEN" default:"false"`
}

func (p PricingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.RoundingMode)) {
	case RoundingHalfUp, RoundingHalfEven:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvPricingRoundingMode, RoundingHalfUp, RoundingHalfEven)
	}
	if p.BirthdayWindowDays < 0 {
		return fmt.Errorf("%s must be non-negative", EnvPricingBirthdayWindowDays)
	}
	return nil
}

type SettingsConfig struct {
	CacheTTL time.Duration `envconfig:"RESTO_SETTINGS_CACHE_TTL" default:"5m"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"RESTO_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RESTO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RESTO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RESTO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic     string `envconfig:"RESTO_PUBSUB_EVENTS_TOPIC" default:"restaurant-core-events"`
	InventoryTopic  string `envconfig:"RESTO_PUBSUB_INVENTORY_TOPIC"`
	CashShiftsTopic string `envconfig:"RESTO_PUBSUB_CASH_SHIFTS_TOPIC"`
	// OrderingEnabled keys messages by restaurant so subscribers with
	// ordering enabled receive one restaurant's events in commit order.
	OrderingEnabled bool `envconfig:"RESTO_PUBSUB_ORDERING" default:"true"`
}

// TopicFor returns the dedicated topic for a stream, falling back to the shared events topic.
func (p PubSubConfig) TopicFor(dedicated string) string {
	if strings.TrimSpace(dedicated) != "" {
		return dedicated
	}
	return p.EventsTopic
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RESTO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RESTO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RESTO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"RESTO_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (o OutboxConfig) validate() error {
	if o.MaxAttempts < 0 || o.BatchSize < 0 || o.RetentionDays < 0 {
		return fmt.Errorf("%s, %s and %s must be non-negative", EnvOutboxMaxAttempts, EnvOutboxBatchSize, EnvOutboxRetentionDays)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RESTO_CRON_INTERVAL" default:"15m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
