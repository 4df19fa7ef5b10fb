package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session storage backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Session cipher algorithms.
const (
	CipherAESGCM           = "aes-256-gcm"
	CipherChaCha20Poly1305 = "chacha20-poly1305"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Session     SessionConfig
	Admin       AdminConfig
	Control     ControlConfig
	Poll        PollConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnablePprof   bool
	EnableMetrics bool
}

type SessionConfig struct {
	// BaseName is the ciphertext slot; the key and nonce slots append
	// "_key" and "_iv".
	BaseName string
	TTL      time.Duration
	Store    string
	Cipher   string
	// IdleTTL bounds how long an abandoned tab area survives in Redis.
	IdleTTL time.Duration
}

type AdminConfig struct {
	Username       string
	Password       string
	PasswordHash   string
	AccessPassword string
}

type ControlConfig struct {
	URL       string
	APISecret string
	Timeout   time.Duration
}

type PollConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Enabled         bool
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type BufferConfig struct {
	Path         string
	SyncInterval time.Duration
	MaxRetry     int
	BatchSize    int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "powerpanel"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnablePprof:   getBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", false),
		},
		Session: SessionConfig{
			BaseName: getString("SESSION_BASE_NAME", "my_session_secret"),
			TTL:      getDuration("SESSION_TTL", 10*time.Minute),
			Store:    strings.ToLower(getString("SESSION_STORE", StoreMemory)),
			Cipher:   strings.ToLower(getString("SESSION_CIPHER", CipherAESGCM)),
			IdleTTL:  getDuration("SESSION_IDLE_TTL", 12*time.Hour),
		},
		Admin: AdminConfig{
			Username:       os.Getenv("ADMIN_USERNAME"),
			Password:       os.Getenv("ADMIN_PASSWORD"),
			PasswordHash:   os.Getenv("ADMIN_PASSWORD_HASH"),
			AccessPassword: os.Getenv("ACCESS_PASSWORD"),
		},
		Control: ControlConfig{
			URL:       strings.TrimRight(getString("CONTROL_URL", "http://localhost:5000"), "/"),
			APISecret: os.Getenv("CONTROL_API_SECRET"),
			Timeout:   getDuration("CONTROL_TIMEOUT", 10*time.Second),
		},
		Poll: PollConfig{
			Enabled:  getBool("POLL_ENABLED", true),
			Interval: getDuration("POLL_INTERVAL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:         getBool("AUDIT_ENABLED", false),
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "powerpanel"),
			User:            getString("DB_USER", "powerpanel"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Buffer: BufferConfig{
			Path:         getString("BOLTDB_PATH", "./data/audit-buffer.db"),
			SyncInterval: getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:     getInt("MAX_RETRY_ATTEMPTS", 5),
			BatchSize:    getInt("BUFFER_BATCH_SIZE", 50),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Admin.Username == "" {
		errs = append(errs, errors.New("ADMIN_USERNAME is required"))
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		errs = append(errs, errors.New("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required"))
	}
	if c.Admin.AccessPassword == "" {
		errs = append(errs, errors.New("ACCESS_PASSWORD is required"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL))
	}
	if c.Session.BaseName == "" {
		errs = append(errs, errors.New("SESSION_BASE_NAME must not be empty"))
	}

	switch c.Session.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store))
	}

	switch c.Session.Cipher {
	case CipherAESGCM, CipherChaCha20Poly1305:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_CIPHER %q", c.Session.Cipher))
	}

	if c.Poll.Enabled {
		if err := validateSchedule("POLL_INTERVAL", c.Poll.Interval); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Database.Enabled {
		if err := validateSchedule("SYNC_INTERVAL_SECONDS", c.Buffer.SyncInterval); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// validateSchedule rejects intervals cron cannot express: cron schedules
// run on whole seconds.
func validateSchedule(name string, interval time.Duration) error {
	if interval < time.Second || interval%time.Second != 0 {
		return fmt.Errorf("%s must be a whole number of seconds, at least 1s, got %s", name, interval)
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
