package config

const (
	EnvPrefix = "AIDINV"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "AIDINV_APP_ENV"
	EnvPort      = "AIDINV_APP_PORT"
	EnvLogLevel  = "AIDINV_LOG_LEVEL"
	EnvJWTSecret = "AIDINV_JWT_SECRET"
	EnvRedisURL  = "AIDINV_REDIS_URL"

	EnvDBDSN      = "AIDINV_DB_DSN"
	EnvDBDriver   = "AIDINV_DB_DRIVER"
	EnvDBHost     = "AIDINV_DB_HOST"
	EnvDBPort     = "AIDINV_DB_PORT"
	EnvDBUser     = "AIDINV_DB_USER"
	EnvDBPassword = "AIDINV_DB_PASSWORD"
	EnvDBName     = "AIDINV_DB_NAME"

	EnvGCPProjectID       = "AIDINV_GCP_PROJECT_ID"
	EnvPubSubStockTopic   = "AIDINV_PUBSUB_STOCK_EVENTS_TOPIC"
	EnvMaxKitsPerAssembly = "AIDINV_MAX_KITS_PER_ASSEMBLY"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
