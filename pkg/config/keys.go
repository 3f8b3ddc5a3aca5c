package config

const (
	EnvPrefix = "agrolink"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "AGROLINK_APP_ENV"
	EnvPort     = "AGROLINK_APP_PORT"
	EnvLogLevel = "AGROLINK_LOG_LEVEL"

	EnvDBDSN  = "AGROLINK_DB_DSN"
	EnvDBHost = "AGROLINK_DB_HOST"
	EnvDBUser = "AGROLINK_DB_USER"
	EnvDBName = "AGROLINK_DB_NAME"

	EnvRedisURL = "AGROLINK_REDIS_URL"

	EnvJWTSecret  = "AGROLINK_JWT_SECRET"
	EnvJWTIssuer  = "AGROLINK_JWT_ISSUER"
	EnvJWTExpMins = "AGROLINK_JWT_EXPIRATION_MINUTES"

	EnvRazorpayKeyID     = "AGROLINK_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "AGROLINK_RAZORPAY_KEY_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
