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
	Storage      StorageConfig
	DB           DBConfig
	Redis        RedisConfig
	Contacts     ContactsConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Storage.UsesSQL() {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Contacts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CONTACTS_APP_ENV" required:"true"`
	Port         string `envconfig:"CONTACTS_APP_PORT" default:"3485"`
	LogLevel     string `envconfig:"CONTACTS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CONTACTS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CONTACTS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StorageConfig selects the record store backend.
type StorageConfig struct {
	Backend  string `envconfig:"CONTACTS_STORAGE_BACKEND" default:"file"`
	DataFile string `envconfig:"CONTACTS_DATA_FILE" default:"./contacts.json"`
}

// UsesSQL reports whether contacts are persisted through the relational store.
func (s StorageConfig) UsesSQL() bool {
	return strings.EqualFold(strings.TrimSpace(s.Backend), StorageBackendSQL)
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendFile:
		if strings.TrimSpace(s.DataFile) == "" {
			return fmt.Errorf("%s is required for the file backend", EnvDataFile)
		}
		return nil
	case StorageBackendSQL:
		return nil
	default:
		return fmt.Errorf("unsupported storage backend %q", s.Backend)
	}
}

type DBConfig struct {
	DSN    string `envconfig:"CONTACTS_DB_DSN"`
	Driver string `envconfig:"CONTACTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CONTACTS_DB_HOST"`
	LegacyPort     int    `envconfig:"CONTACTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CONTACTS_DB_USER"`
	LegacyPassword string `envconfig:"CONTACTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CONTACTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CONTACTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CONTACTS_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CONTACTS_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONTACTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONTACTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the embedded sqlite dialect is configured.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTACTS_REDIS_URL"`
	Address      string        `envconfig:"CONTACTS_REDIS_ADDR"`
	Password     string        `envconfig:"CONTACTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTACTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTACTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTACTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTACTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTACTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTACTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type ContactsConfig struct {
	DefaultPageSize   int    `envconfig:"CONTACTS_DEFAULT_PAGE_SIZE" default:"10"`
	MaxPageSize       int    `envconfig:"CONTACTS_MAX_PAGE_SIZE" default:"100"`
	ImportMode        string `envconfig:"CONTACTS_IMPORT_MODE" default:"skip"`
	ImportDetailLimit int    `envconfig:"CONTACTS_IMPORT_DETAIL_LIMIT" default:"10"`
	ImportMaxRows     int    `envconfig:"CONTACTS_IMPORT_MAX_ROWS" default:"5000"`
	ExportLocale      string `envconfig:"CONTACTS_EXPORT_LOCALE" default:"en"`
	ExportTimeZone    string `envconfig:"CONTACTS_EXPORT_TIMEZONE" default:"UTC"`
}

// Location resolves the export time zone, falling back to UTC.
func (c ContactsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.ExportTimeZone))
	if err != nil || c.ExportTimeZone == "" {
		return time.UTC
	}
	return loc
}

func (c ContactsConfig) validate() error {
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvDefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("%s must be >= %s", EnvMaxPageSize, EnvDefaultPageSize)
	}
	switch strings.ToLower(strings.TrimSpace(c.ImportMode)) {
	case ImportModeSkip, ImportModeOverwrite:
	default:
		return fmt.Errorf("unsupported import mode %q", c.ImportMode)
	}
	return nil
}

type RateLimitConfig struct {
	ImportWindow time.Duration `envconfig:"CONTACTS_RATE_LIMIT_IMPORT_WINDOW" default:"1m"`
	ImportLimit  int           `envconfig:"CONTACTS_RATE_LIMIT_IMPORT_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CONTACTS_CORS_ALLOWED_ORIGINS" default:"*"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CONTACTS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
