package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Queue      QueueConfig
	Rasterizer RasterizerConfig
	Tokens     TokenConfig
	Offline    OfflineConfig
	Reconciler ReconcilerConfig
	HTTP       HTTPConfig
	Log        LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// DSN returns the postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres connection URL (used by golang-migrate)
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection settings for the durable queue
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address of the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	OperationTimeout  time.Duration // bound on every put/get/head call
	PresignExpiration time.Duration // validity of offline content URLs
}

// QueueConfig holds durable queue settings
type QueueConfig struct {
	KeyPrefix      string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PollInterval   time.Duration // worker poll interval for delayed/retry promotion
	Concurrency    int           // worker goroutines per process
}

// RasterizerConfig holds page rasterizer (headless Chrome) settings
type RasterizerConfig struct {
	RemoteURL  string // remote Chrome instance; empty launches a local one
	Timeout    time.Duration
	NoSandbox  bool
	DisableGPU bool
}

// TokenConfig holds print token issuance settings
type TokenConfig struct {
	PrintTokenTTL  time.Duration // exposure window of an online token (~60s)
	RetentionAfter time.Duration // GC window past expiry
	GCInterval     time.Duration // janitor sweep interval
}

// OfflineConfig holds offline redemption settings. The subsystem ships fully
// implemented but stays behind the capability flag.
type OfflineConfig struct {
	Enabled       bool
	SigningSecret string
	Issuer        string
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
}

// ReconcilerConfig holds self-healing throttle settings
type ReconcilerConfig struct {
	MinSinceUpdate time.Duration // job must be quiet this long before healing
	MinSinceHeal   time.Duration // minimum gap between heal attempts per job
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PRINTPASS_ prefix (e.g. PRINTPASS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("PRINTPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			OperationTimeout:  v.GetDuration("storage.operation_timeout"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Queue: QueueConfig{
			KeyPrefix:      v.GetString("queue.key_prefix"),
			MaxAttempts:    v.GetInt("queue.max_attempts"),
			InitialBackoff: v.GetDuration("queue.initial_backoff"),
			MaxBackoff:     v.GetDuration("queue.max_backoff"),
			PollInterval:   v.GetDuration("queue.poll_interval"),
			Concurrency:    v.GetInt("queue.concurrency"),
		},
		Rasterizer: RasterizerConfig{
			RemoteURL:  v.GetString("rasterizer.remote_url"),
			Timeout:    v.GetDuration("rasterizer.timeout"),
			NoSandbox:  v.GetBool("rasterizer.no_sandbox"),
			DisableGPU: v.GetBool("rasterizer.disable_gpu"),
		},
		Tokens: TokenConfig{
			PrintTokenTTL:  v.GetDuration("tokens.print_token_ttl"),
			RetentionAfter: v.GetDuration("tokens.retention_after"),
			GCInterval:     v.GetDuration("tokens.gc_interval"),
		},
		Offline: OfflineConfig{
			Enabled:       v.GetBool("offline.enabled"),
			SigningSecret: v.GetString("offline.signing_secret"),
			Issuer:        v.GetString("offline.issuer"),
			DefaultTTL:    v.GetDuration("offline.default_ttl"),
			MaxTTL:        v.GetDuration("offline.max_ttl"),
		},
		Reconciler: ReconcilerConfig{
			MinSinceUpdate: v.GetDuration("reconciler.min_since_update"),
			MinSinceHeal:   v.GetDuration("reconciler.min_since_heal"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "printpass")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "printpass")
	v.SetDefault("database.dbname", "printpass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.conn_max_idle_time", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "printpass")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.operation_timeout", 30*time.Second)
	v.SetDefault("storage.presign_expiration", 15*time.Minute)

	v.SetDefault("queue.key_prefix", "printpass")
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.initial_backoff", 2*time.Second)
	v.SetDefault("queue.max_backoff", 5*time.Minute)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.concurrency", 4)

	v.SetDefault("rasterizer.timeout", 30*time.Second)
	v.SetDefault("rasterizer.disable_gpu", true)

	v.SetDefault("tokens.print_token_ttl", 60*time.Second)
	v.SetDefault("tokens.retention_after", 24*time.Hour)
	v.SetDefault("tokens.gc_interval", time.Hour)

	v.SetDefault("offline.enabled", false)
	v.SetDefault("offline.issuer", "printpass")
	v.SetDefault("offline.default_ttl", 24*time.Hour)
	v.SetDefault("offline.max_ttl", 7*24*time.Hour)

	v.SetDefault("reconciler.min_since_update", 30*time.Second)
	v.SetDefault("reconciler.min_since_heal", 60*time.Second)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}
	if c.Tokens.PrintTokenTTL <= 0 {
		return fmt.Errorf("tokens.print_token_ttl must be positive")
	}
	if c.Offline.Enabled && c.Offline.SigningSecret == "" {
		return fmt.Errorf("offline.signing_secret is required when offline redemption is enabled")
	}
	if c.Offline.DefaultTTL > c.Offline.MaxTTL {
		return fmt.Errorf("offline.default_ttl cannot exceed offline.max_ttl")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
