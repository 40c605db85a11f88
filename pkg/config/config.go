package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cache         CacheConfig
	Notifications NotificationsConfig
	CORS          CORSConfig
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
	Env          string `envconfig:"BOOKINGA_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKINGA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BOOKINGA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKINGA_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"BOOKINGA_APP_TIMEZONE" default:"Local"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured timezone used for local-midnight date comparisons.
func (a AppConfig) Location() *time.Location {
	name := strings.TrimSpace(a.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"BOOKINGA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKINGA_DB_DSN"`
	Driver string `envconfig:"BOOKINGA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKINGA_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKINGA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKINGA_DB_USER"`
	LegacyPassword string `envconfig:"BOOKINGA_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKINGA_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKINGA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKINGA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKINGA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKINGA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKINGA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKINGA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKINGA_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKINGA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKINGA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKINGA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKINGA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKINGA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKINGA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKINGA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"BOOKINGA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BOOKINGA_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOOKINGA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOOKINGA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BOOKINGA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOKINGA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BOOKINGA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOOKINGA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"BOOKINGA_PUBSUB_NOTIFICATION_TOPIC" default:"bookinga-notification-events"`
	NotificationSubscription string `envconfig:"BOOKINGA_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOOKINGA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOOKINGA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOOKINGA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"BOOKINGA_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CacheConfig struct {
	TTL         time.Duration `envconfig:"BOOKINGA_CACHE_TTL" default:"5m"`
	Debounce    time.Duration `envconfig:"BOOKINGA_CACHE_DEBOUNCE" default:"100ms"`
	LookupChunk int           `envconfig:"BOOKINGA_CACHE_LOOKUP_CHUNK" default:"10"`
}

type NotificationsConfig struct {
	RetentionDays int           `envconfig:"BOOKINGA_NOTIFICATION_RETENTION_DAYS" default:"7"`
	DedupCooldown time.Duration `envconfig:"BOOKINGA_NOTIFICATION_DEDUP_COOLDOWN" default:"30s"`
	RelayDryRun   bool          `envconfig:"BOOKINGA_NOTIFICATION_RELAY_DRY_RUN" default:"false"`
	ClickURL      string        `envconfig:"BOOKINGA_NOTIFICATION_CLICK_URL" default:"/dashboard"`
}

// Retention returns the age after which terminal notifications are swept.
func (n NotificationsConfig) Retention() time.Duration {
	if n.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(n.RetentionDays) * 24 * time.Hour
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BOOKINGA_CORS_ALLOWED_ORIGINS" default:"*"`
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
