package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "PROMPTLY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "PROMPTLY_APP_ENV"
	EnvPort      = "PROMPTLY_APP_PORT"
	EnvUseSQLite = "PROMPTLY_USE_SQLITE"

	EnvDBDSN  = "PROMPTLY_DB_DSN"
	EnvDBHost = "PROMPTLY_DB_HOST"
	EnvDBUser = "PROMPTLY_DB_USER"
	EnvDBName = "PROMPTLY_DB_NAME"

	EnvRedisURL = "PROMPTLY_REDIS_URL"

	EnvProdigiAPIKey      = "PROMPTLY_PRODIGI_API_KEY"
	EnvProdigiCallbackURL = "PROMPTLY_PRODIGI_CALLBACK_URL"
	EnvReconcileStuck     = "PROMPTLY_RECONCILE_STUCK_AFTER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
