package config

const (
	EnvPrefix = "COUPONTRACKER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "COUPONTRACKER_APP_ENV"
	EnvPort         = "COUPONTRACKER_APP_PORT"
	EnvLogLevel     = "COUPONTRACKER_LOG_LEVEL"
	EnvLogFormat    = "COUPONTRACKER_LOG_FORMAT"
	EnvLogWarnStack = "COUPONTRACKER_LOG_WARN_STACK"

	EnvCatalogDSN        = "COUPONTRACKER_CATALOG_DB_DSN"
	EnvCatalogHost       = "COUPONTRACKER_CATALOG_DB_HOST"
	EnvCatalogPort       = "COUPONTRACKER_CATALOG_DB_PORT"
	EnvCatalogUser       = "COUPONTRACKER_CATALOG_DB_USER"
	EnvCatalogPassword   = "COUPONTRACKER_CATALOG_DB_PASSWORD"
	EnvCatalogName       = "COUPONTRACKER_CATALOG_DB_NAME"
	EnvCatalogSSLMode    = "COUPONTRACKER_CATALOG_DB_SSLMODE"
	EnvCatalogDriver     = "COUPONTRACKER_CATALOG_DB_DRIVER"
	EnvCatalogQueryLimit = "COUPONTRACKER_CATALOG_DB_QUERY_TIMEOUT"

	EnvIssuerDriver      = "COUPONTRACKER_ISSUER_DB_DRIVER"
	EnvIssuerDSN         = "COUPONTRACKER_ISSUER_DB_DSN"
	EnvIssuerOpTimeout   = "COUPONTRACKER_ISSUER_DB_OP_TIMEOUT"
	EnvIssuerAutoMigrate = "COUPONTRACKER_ISSUER_DB_AUTO_MIGRATE"
	EnvIssuerPlaceholder = "COUPONTRACKER_ISSUER_PLACEHOLDER_COUPON_ID"

	EnvRedisURL = "COUPONTRACKER_REDIS_URL"

	EnvJWTSecret  = "COUPONTRACKER_JWT_SECRET"
	EnvJWTIssuer  = "COUPONTRACKER_JWT_ISSUER"
	EnvJWTExpMins = "COUPONTRACKER_JWT_EXPIRATION_MINUTES"

	EnvTeamRules = "COUPONTRACKER_TEAM_RULES"
)

var legacyCatalogEnvVars = []string{EnvCatalogHost, EnvCatalogUser, EnvCatalogName}
