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
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Inventory     InventoryConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
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
	Env            string   `envconfig:"AIDINV_APP_ENV" required:"true"`
	Port           string   `envconfig:"AIDINV_APP_PORT" default:"8080"`
	LogLevel       string   `envconfig:"AIDINV_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"AIDINV_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"AIDINV_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	// MetricsAddr is the listen address for /metrics in the background processes.
	MetricsAddr string `envconfig:"AIDINV_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AIDINV_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AIDINV_DB_DSN"`
	Driver string `envconfig:"AIDINV_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AIDINV_DB_HOST"`
	Port     int    `envconfig:"AIDINV_DB_PORT" default:"5432"`
	User     string `envconfig:"AIDINV_DB_USER"`
	Password string `envconfig:"AIDINV_DB_PASSWORD"`
	Name     string `envconfig:"AIDINV_DB_NAME"`
	SSLMode  string `envconfig:"AIDINV_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AIDINV_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AIDINV_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AIDINV_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AIDINV_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AIDINV_REDIS_URL"`
	Address      string        `envconfig:"AIDINV_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"AIDINV_REDIS_PASSWORD"`
	DB           int           `envconfig:"AIDINV_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AIDINV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AIDINV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AIDINV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AIDINV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AIDINV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"AIDINV_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"AIDINV_JWT_ISSUER" default:"aid-inventory"`
	ExpirationMinutes      int    `envconfig:"AIDINV_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"AIDINV_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AIDINV_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AIDINV_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AIDINV_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AIDINV_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AIDINV_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"AIDINV_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"AIDINV_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"AIDINV_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"AIDINV_AUTO_MIGRATE" default:"false"`
	MetricsEnabled bool `envconfig:"AIDINV_METRICS_ENABLED" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"AIDINV_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// InventoryConfig holds business limits for stock operations.
type InventoryConfig struct {
	MaxKitsPerAssembly   int           `envconfig:"AIDINV_MAX_KITS_PER_ASSEMBLY" default:"10000"`
	RecentActivityLimit  int           `envconfig:"AIDINV_RECENT_ACTIVITY_LIMIT" default:"10"`
	DashboardWindow      time.Duration `envconfig:"AIDINV_DASHBOARD_WINDOW" default:"168h"`
	IdempotencyKeyTTL    time.Duration `envconfig:"AIDINV_IDEMPOTENCY_KEY_TTL" default:"24h"`
	LowStockAlertEnabled bool          `envconfig:"AIDINV_LOW_STOCK_ALERTS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AIDINV_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"AIDINV_GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON        string `envconfig:"AIDINV_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	StockEventsTopic        string `envconfig:"AIDINV_PUBSUB_STOCK_EVENTS_TOPIC" default:"aid-stock-events"`
	StockEventsSubscription string `envconfig:"AIDINV_PUBSUB_STOCK_EVENTS_SUBSCRIPTION" default:"aid-stock-events-worker"`
	AlertsTopic             string `envconfig:"AIDINV_PUBSUB_ALERTS_TOPIC" default:"aid-stock-alerts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AIDINV_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AIDINV_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AIDINV_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MaintenanceConfig schedules the worker's periodic jobs.
type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"AIDINV_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"AIDINV_MAINTENANCE_LOCK_TTL" default:"55m"`
	OutboxRetentionDays int           `envconfig:"AIDINV_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	discrete := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if discrete[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
