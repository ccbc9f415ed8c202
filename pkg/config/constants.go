package config

// EnvPrefix is passed to envconfig; individual tags carry the full name.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "STAYNEST_APP_ENV"
	EnvPort     = "STAYNEST_APP_PORT"
	EnvDBDSN    = "STAYNEST_DB_DSN"
	EnvDBHost   = "STAYNEST_DB_HOST"
	EnvDBUser   = "STAYNEST_DB_USER"
	EnvDBName   = "STAYNEST_DB_NAME"
	EnvRedisURL = "STAYNEST_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
