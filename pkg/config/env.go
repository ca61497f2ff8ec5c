package config

// EnvPrefix namespaces every environment variable the platform reads.
const EnvPrefix = "SOKOHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SOKOHUB_DB_DSN"
	EnvDBHost = "SOKOHUB_DB_HOST"
	EnvDBUser = "SOKOHUB_DB_USER"
	EnvDBName = "SOKOHUB_DB_NAME"

	EnvAppEnv    = "SOKOHUB_APP_ENV"
	EnvAppPort   = "SOKOHUB_APP_PORT"
	EnvRedisURL  = "SOKOHUB_REDIS_URL"
	EnvJWTSecret = "SOKOHUB_JWT_SECRET"
	EnvJWTIssuer = "SOKOHUB_JWT_ISSUER"
	EnvJWTExpiry = "SOKOHUB_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
