package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"AGROLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"AGROLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGROLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGROLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGROLINK_DB_DSN"`
	Driver string `envconfig:"AGROLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGROLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"AGROLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGROLINK_DB_USER"`
	LegacyPassword string `envconfig:"AGROLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGROLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGROLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGROLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGROLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGROLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGROLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGROLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGROLINK_REDIS_ADDR"`
	Password     string        `envconfig:"AGROLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGROLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGROLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGROLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGROLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGROLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGROLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGROLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGROLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGROLINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type RazorpayConfig struct {
	KeyID            string        `envconfig:"AGROLINK_RAZORPAY_KEY_ID"`
	KeySecret        string        `envconfig:"AGROLINK_RAZORPAY_KEY_SECRET"`
	Env              string        `envconfig:"AGROLINK_RAZORPAY_ENV" default:"test"`
	Timeout          time.Duration `envconfig:"AGROLINK_RAZORPAY_TIMEOUT" default:"15s"`
	VerifyRateLimit  int64         `envconfig:"AGROLINK_RAZORPAY_VERIFY_RATE_LIMIT" default:"10"`
	VerifyRateWindow time.Duration `envconfig:"AGROLINK_RAZORPAY_VERIFY_RATE_WINDOW" default:"1m"`
}

// Environment returns the normalized Razorpay environment (test/live).
func (r RazorpayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(r.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	PlatformFeeBps        int `envconfig:"AGROLINK_CHECKOUT_PLATFORM_FEE_BPS" default:"500"`
	DefaultLowStockLevel  int `envconfig:"AGROLINK_CHECKOUT_DEFAULT_LOW_STOCK_LEVEL" default:"10"`
	ReturnWindowDays      int `envconfig:"AGROLINK_CHECKOUT_RETURN_WINDOW_DAYS" default:"7"`
	MinRefundReasonLength int `envconfig:"AGROLINK_CHECKOUT_MIN_REFUND_REASON_LENGTH" default:"10"`
}

// ReturnWindow converts the configured window into a duration.
func (c CheckoutConfig) ReturnWindow() time.Duration {
	if c.ReturnWindowDays <= 0 {
		return 0
	}
	return time.Duration(c.ReturnWindowDays) * 24 * time.Hour
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGROLINK_AUTO_MIGRATE" default:"false"`
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
