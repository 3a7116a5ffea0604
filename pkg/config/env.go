package config

const (
	EnvPrefix = "RESTO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RoundingHalfUp   = "half_up"
	RoundingHalfEven = "half_even"

	EnvAppEnv   = "RESTO_APP_ENV"
	EnvLogLevel = "RESTO_LOG_LEVEL"

	EnvDBDSN      = "RESTO_DB_DSN"
	EnvDBHost     = "RESTO_DB_HOST"
	EnvDBPort     = "RESTO_DB_PORT"
	EnvDBUser     = "RESTO_DB_USER"
	EnvDBPassword = "RESTO_DB_PASSWORD"
	EnvDBName     = "RESTO_DB_NAME"

	EnvRedisURL = "RESTO_REDIS_URL"

	EnvUseSQLite   = "RESTO_USE_SQLITE"
	EnvAutoMigrate = "RESTO_AUTO_MIGRATE"

	EnvPricingRoundingMode       = "RESTO_PRICING_ROUNDING_MODE"
	EnvPricingBirthdayWindowDays = "RESTO_PRICING_BIRTHDAY_WINDOW_DAYS"
	EnvPricingRoundToTen         = "RESTO_PRICING_ROUND_TO_TEN"

	EnvSettingsCacheTTL = "RESTO_SETTINGS_CACHE_TTL"

	EnvGCPProjectID      = "RESTO_GCP_PROJECT_ID"
	EnvPubSubEventsTopic = "RESTO_PUBSUB_EVENTS_TOPIC"

	EnvOutboxBatchSize     = "RESTO_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts   = "RESTO_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetentionDays = "RESTO_OUTBOX_RETENTION_DAYS"

	EnvCronInterval = "RESTO_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
