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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cron         CronConfig
	Payout       PayoutConfig
	Payments     PaymentsConfig
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
	Env          string `envconfig:"STAYNEST_APP_ENV" required:"true"`
	Port         string `envconfig:"STAYNEST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STAYNEST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STAYNEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STAYNEST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STAYNEST_DB_DSN"`
	Driver string `envconfig:"STAYNEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STAYNEST_DB_HOST"`
	LegacyPort     int    `envconfig:"STAYNEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STAYNEST_DB_USER"`
	LegacyPassword string `envconfig:"STAYNEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"STAYNEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"STAYNEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STAYNEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STAYNEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STAYNEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STAYNEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STAYNEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STAYNEST_REDIS_ADDR"`
	Password     string        `envconfig:"STAYNEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"STAYNEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STAYNEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STAYNEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STAYNEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STAYNEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STAYNEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CronConfig drives the reconciliation worker cadence.
type CronConfig struct {
	PaymentExpiryInterval       time.Duration `envconfig:"STAYNEST_CRON_PAYMENT_EXPIRY_INTERVAL" default:"30m"`
	ReservationRolloverInterval time.Duration `envconfig:"STAYNEST_CRON_RESERVATION_ROLLOVER_INTERVAL" default:"60m"`
	LockTTL                     time.Duration `envconfig:"STAYNEST_CRON_LOCK_TTL" default:"2h"`
}

// PayoutConfig carries the marketplace commission split.
type PayoutConfig struct {
	HostShareBP int `envconfig:"STAYNEST_PAYOUT_HOST_SHARE_BP" default:"8000"`
}

type PaymentsConfig struct {
	ExpiryWindow time.Duration `envconfig:"STAYNEST_PAYMENT_EXPIRY_WINDOW" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STAYNEST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STAYNEST_AUTO_MIGRATE" default:"false"`
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
