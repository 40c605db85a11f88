package config

const (
	EnvPrefix = "BOOKINGA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "BOOKINGA_APP_ENV"
	EnvPort        = "BOOKINGA_APP_PORT"
	EnvLogLevel    = "BOOKINGA_LOG_LEVEL"
	EnvServiceKind = "BOOKINGA_SERVICE_KIND"

	EnvDBDSN    = "BOOKINGA_DB_DSN"
	EnvDBDriver = "BOOKINGA_DB_DRIVER"
	EnvDBHost   = "BOOKINGA_DB_HOST"
	EnvDBUser   = "BOOKINGA_DB_USER"
	EnvDBName   = "BOOKINGA_DB_NAME"

	EnvRedisURL = "BOOKINGA_REDIS_URL"

	EnvJWTSecret = "BOOKINGA_JWT_SECRET"
	EnvJWTIssuer = "BOOKINGA_JWT_ISSUER"

	EnvGCPProjectID = "BOOKINGA_GCP_PROJECT_ID"

	EnvPubSubNotificationTopic = "BOOKINGA_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "BOOKINGA_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvCacheTTL         = "BOOKINGA_CACHE_TTL"
	EnvCacheDebounce    = "BOOKINGA_CACHE_DEBOUNCE"
	EnvCacheLookupChunk = "BOOKINGA_CACHE_LOOKUP_CHUNK"

	EnvNotificationRetentionDays = "BOOKINGA_NOTIFICATION_RETENTION_DAYS"
	EnvNotificationDedupCooldown = "BOOKINGA_NOTIFICATION_DEDUP_COOLDOWN"
	EnvNotificationRelayDryRun   = "BOOKINGA_NOTIFICATION_RELAY_DRY_RUN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
