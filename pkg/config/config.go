package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	CatalogDB     CatalogDBConfig
	IssuerDB      IssuerDBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	Teams         TeamsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.CatalogDB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.IssuerDB.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Teams.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadIssuerDB reads only the issuer store settings, for tools that never touch the catalog.
func LoadIssuerDB() (IssuerDBConfig, error) {
	var cfg IssuerDBConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing issuer store config: %w", err)
	}
	return cfg, cfg.validate()
}

type AppConfig struct {
	Env          string `envconfig:"COUPONTRACKER_APP_ENV" required:"true"`
	Port         string `envconfig:"COUPONTRACKER_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"COUPONTRACKER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"COUPONTRACKER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"COUPONTRACKER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CatalogDBConfig points at the externally owned coupon catalog.
type CatalogDBConfig struct {
	DSN    string `envconfig:"COUPONTRACKER_CATALOG_DB_DSN"`
	Driver string `envconfig:"COUPONTRACKER_CATALOG_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COUPONTRACKER_CATALOG_DB_HOST"`
	LegacyPort     int    `envconfig:"COUPONTRACKER_CATALOG_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COUPONTRACKER_CATALOG_DB_USER"`
	LegacyPassword string `envconfig:"COUPONTRACKER_CATALOG_DB_PASSWORD"`
	LegacyName     string `envconfig:"COUPONTRACKER_CATALOG_DB_NAME"`
	LegacySSLMode  string `envconfig:"COUPONTRACKER_CATALOG_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COUPONTRACKER_CATALOG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COUPONTRACKER_CATALOG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COUPONTRACKER_CATALOG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COUPONTRACKER_CATALOG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"COUPONTRACKER_CATALOG_DB_QUERY_TIMEOUT" default:"10s"`
	SlowQuery       time.Duration `envconfig:"COUPONTRACKER_CATALOG_DB_SLOW_QUERY" default:"500ms"`
}

// IssuerDBConfig points at the issuer store. An empty DSN selects the in-memory backend.
type IssuerDBConfig struct {
	Driver      string        `envconfig:"COUPONTRACKER_ISSUER_DB_DRIVER" default:"postgres"`
	DSN         string        `envconfig:"COUPONTRACKER_ISSUER_DB_DSN"`
	OpTimeout   time.Duration `envconfig:"COUPONTRACKER_ISSUER_DB_OP_TIMEOUT" default:"3s"`
	AutoMigrate bool          `envconfig:"COUPONTRACKER_ISSUER_DB_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"COUPONTRACKER_ISSUER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"COUPONTRACKER_ISSUER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"COUPONTRACKER_ISSUER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COUPONTRACKER_ISSUER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"COUPONTRACKER_ISSUER_DB_SLOW_QUERY" default:"200ms"`

	// PlaceholderCouponID marks bootstrap rows that exist only to register an issuer.
	PlaceholderCouponID int64 `envconfig:"COUPONTRACKER_ISSUER_PLACEHOLDER_COUPON_ID" default:"0"`
}

func (i IssuerDBConfig) Configured() bool {
	return strings.TrimSpace(i.DSN) != ""
}

func (i IssuerDBConfig) validate() error {
	switch strings.ToLower(i.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%s must be postgres or sqlite, got %q", EnvIssuerDriver, i.Driver)
	}
	if i.OpTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvIssuerOpTimeout)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"COUPONTRACKER_REDIS_URL"`
	PoolSize     int           `envconfig:"COUPONTRACKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COUPONTRACKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COUPONTRACKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COUPONTRACKER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"COUPONTRACKER_REDIS_WRITE_TIMEOUT" default:"3s"`
	// LookupTTL caches coupon-name and store lists; zero disables the cache.
	LookupTTL time.Duration `envconfig:"COUPONTRACKER_REDIS_LOOKUP_TTL" default:"1m"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"COUPONTRACKER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COUPONTRACKER_JWT_ISSUER" default:"coupontracker"`
	ExpirationMinutes int    `envconfig:"COUPONTRACKER_JWT_EXPIRATION_MINUTES" default:"480"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"COUPONTRACKER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"COUPONTRACKER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"COUPONTRACKER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

// TeamsConfig maps a team id to the title pattern that scopes its coupons.
// Patterns containing % or _ are used as LIKE patterns; anything else matches as a substring.
type TeamsConfig struct {
	Rules map[string]string `envconfig:"COUPONTRACKER_TEAM_RULES" default:"teambefit:%팀버핏%"`
}

func (t TeamsConfig) Pattern(teamID string) (string, bool) {
	raw, ok := t.Rules[strings.TrimSpace(teamID)]
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if strings.ContainsAny(raw, "%_") {
		return raw, true
	}
	return "%" + raw + "%", true
}

func (t TeamsConfig) IDs() []string {
	ids := make([]string, 0, len(t.Rules))
	for id := range t.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t TeamsConfig) validate() error {
	for id, pattern := range t.Rules {
		if strings.TrimSpace(id) == "" || strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("%s entries must be id:pattern", EnvTeamRules)
		}
	}
	return nil
}

func (db *CatalogDBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvCatalogHost: db.LegacyHost,
		EnvCatalogUser: db.LegacyUser,
		EnvCatalogName: db.LegacyName,
	}
	for _, env := range legacyCatalogEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvCatalogDSN, strings.Join(missing, ", "))
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
