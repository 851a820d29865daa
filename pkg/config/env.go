package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "FOODWAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
	StoreDriverSQL    = "sql"
)

const (
	EnvAppEnv            = "FOODWAY_APP_ENV"
	EnvPort              = "FOODWAY_APP_PORT"
	EnvDBDSN             = "FOODWAY_DB_DSN"
	EnvDBDriver          = "FOODWAY_DB_DRIVER"
	EnvDBHost            = "FOODWAY_DB_HOST"
	EnvDBUser            = "FOODWAY_DB_USER"
	EnvDBName            = "FOODWAY_DB_NAME"
	EnvRedisURL          = "FOODWAY_REDIS_URL"
	EnvJWTSecret         = "FOODWAY_JWT_SECRET"
	EnvJWTIssuer         = "FOODWAY_JWT_ISSUER"
	EnvDispatchTimezone  = "FOODWAY_DISPATCH_TIMEZONE"
	EnvDispatchTTL       = "FOODWAY_DISPATCH_TTL"
	EnvOTPDeliveryWindow = "FOODWAY_OTP_DELIVERY_WINDOW"
	EnvPubSubEnabled     = "FOODWAY_PUBSUB_ENABLED"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
