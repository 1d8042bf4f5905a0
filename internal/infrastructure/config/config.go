// Package config loads the retail backend configuration from config.toml and
// RETAIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/retail/internal/domain/param"
	"github.com/spf13/viper"
)

// Config is the whole process configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Till     TillConfig     `mapstructure:"till"`
	// Params overrides business parameter defaults, keyed by parameter name
	Params map[string]string `mapstructure:"-"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
	// SlowQuery is the threshold above which SQL statements are logged at warn
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

// AppConfig names the running installation
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds the postgres connection and pool settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// RedisConfig points at the Redis instance holding station locks. When
// disabled, locks are kept in process.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server limits
type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// StorageConfig selects where payment attachments are kept
type StorageConfig struct {
	Type            string `mapstructure:"type"` // s3, memory
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// SyncConfig describes the synchronized multi-site setup
type SyncConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// BranchAcronym names the branch this installation operates as
	BranchAcronym string `mapstructure:"branch_acronym"`
}

// TillConfig holds the station lock settings used when opening tills
type TillConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// defaults registers every key with viper. Environment variables only bind
// to known keys, so keys without a useful default are listed as empty.
var defaults = map[string]any{
	"app.name": "retail-core",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "retail",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.migrations_path":    "migrations",

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":      "info",
	"log.format":     "console",
	"log.output":     "stdout",
	"log.slow_query": 200 * time.Millisecond,

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_bytes":   1 << 20,
	"http.trusted_proxies":  []string{},

	"storage.type":              "memory",
	"storage.endpoint":          "",
	"storage.region":            "us-east-1",
	"storage.bucket":            "payment-attachments",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.use_path_style":    false,

	"sync.enabled":        false,
	"sync.branch_acronym": "",

	"till.lock_ttl": 30 * time.Second,
}

// Load reads ./config.toml or /app/config.toml when present. RETAIL_ prefixed
// environment variables (RETAIL_DATABASE_PASSWORD) override the file, and the
// file overrides the defaults. Business parameters come from the [params]
// table only.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("RETAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// viper lowercases keys; parameter names are upper case
	cfg.Params = make(map[string]string)
	for key, value := range v.GetStringMapString("params") {
		cfg.Params[strings.ToUpper(key)] = value
	}
	cfg.deriveParams()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deriveParams turns on synchronized mode for synced installations unless a
// parameter override says otherwise
func (c *Config) deriveParams() {
	if !c.Sync.Enabled {
		return
	}
	if c.Params == nil {
		c.Params = make(map[string]string)
	}
	if _, set := c.Params[param.SynchronizedMode]; !set {
		c.Params[param.SynchronizedMode] = "true"
	}
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	}

	switch c.Storage.Type {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("storage.type must be s3 or memory, got %q", c.Storage.Type)
	}

	if c.Sync.Enabled && c.Sync.BranchAcronym == "" {
		return errors.New("sync.branch_acronym is required when sync is enabled")
	}
	if c.Till.LockTTL <= 0 {
		return errors.New("till.lock_ttl must be positive")
	}

	if c.App.Env == "production" {
		if db.Password == "" {
			return errors.New("database.password is required in production")
		}
		if db.SSLMode == "disable" {
			return errors.New("database.sslmode cannot be 'disable' in production")
		}
	}

	if _, err := c.ParamSnapshot(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// ParamSnapshot freezes the default parameter registry with the configured
// overrides
func (c *Config) ParamSnapshot() (*param.Snapshot, error) {
	return param.DefaultRegistry().Snapshot(c.Params)
}

// DSN returns a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
