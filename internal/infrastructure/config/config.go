package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Ops           OpsConfig           `mapstructure:"ops"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Transaction   TransactionConfig   `mapstructure:"transaction"`
	Tasks         TasksConfig         `mapstructure:"tasks"`
	Sequence      SequenceConfig      `mapstructure:"sequence"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

// OpsConfig configures the worker's health and metrics listener.
type OpsConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RateLimit caps requests per minute per client IP.
	RateLimit int `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	MaxConnections    int           `mapstructure:"max_connections"`
	MinConnections    int           `mapstructure:"min_connections"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type TransactionConfig struct {
	DefaultExpiry time.Duration `mapstructure:"default_expiry"`
	MaxExpiry     time.Duration `mapstructure:"max_expiry"`
}

type TasksConfig struct {
	DefaultTries     int            `mapstructure:"default_tries"`
	Tries            map[string]int `mapstructure:"tries"`
	RetryBase        time.Duration  `mapstructure:"retry_base"`
	RetryMax         time.Duration  `mapstructure:"retry_max"`
	PollInterval     time.Duration  `mapstructure:"poll_interval"`
	ExportInterval   time.Duration  `mapstructure:"export_interval"`
	SweepInterval    time.Duration  `mapstructure:"sweep_interval"`
	ReexportInterval time.Duration  `mapstructure:"reexport_interval"`
	StuckInterval    time.Duration  `mapstructure:"stuck_interval"`
	Concurrency      int            `mapstructure:"concurrency"`
	AbortedStream    string         `mapstructure:"aborted_stream"`
}

// TriesFor returns the number of tries configured for a task name.
func (c *TasksConfig) TriesFor(name string) int {
	// viper lowercases map keys
	if n, ok := c.Tries[strings.ToLower(name)]; ok && n > 0 {
		return n
	}
	return c.DefaultTries
}

type SequenceConfig struct {
	Timezone  string `mapstructure:"timezone"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Location resolves the timezone order dates are counted in.
func (c *SequenceConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type GatewaysConfig struct {
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	BreakerMaxRequests  uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval     time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinRequests  uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio"`
	MockLatency         time.Duration `mapstructure:"mock_latency"`
	MockFailureRate     float64       `mapstructure:"mock_failure_rate"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ORDERCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ordercore")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		errs = append(errs, fmt.Errorf("ops.port must be between 1 and 65535, got %d", c.Ops.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Transaction.DefaultExpiry <= 0 {
		errs = append(errs, fmt.Errorf("transaction.default_expiry must be positive"))
	}
	if c.Transaction.MaxExpiry < c.Transaction.DefaultExpiry {
		errs = append(errs, fmt.Errorf("transaction.max_expiry must not be shorter than default_expiry"))
	}
	if c.Tasks.DefaultTries <= 0 {
		errs = append(errs, fmt.Errorf("tasks.default_tries must be positive"))
	}
	if c.Tasks.RetryBase <= 0 || c.Tasks.RetryMax < c.Tasks.RetryBase {
		errs = append(errs, fmt.Errorf("tasks.retry_base must be positive and not above tasks.retry_max"))
	}
	if c.Tasks.ReexportInterval <= 0 {
		errs = append(errs, fmt.Errorf("tasks.reexport_interval must be positive"))
	}
	if c.Tasks.StuckInterval <= 0 {
		errs = append(errs, fmt.Errorf("tasks.stuck_interval must be positive"))
	}
	if c.Tasks.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("tasks.concurrency must be positive"))
	}
	if _, err := c.Sequence.Location(); err != nil {
		errs = append(errs, fmt.Errorf("sequence.timezone: %w", err))
	}
	if c.Gateways.BreakerFailureRatio <= 0 || c.Gateways.BreakerFailureRatio > 1 {
		errs = append(errs, fmt.Errorf("gateways.breaker_failure_ratio must be in (0, 1]"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Gateways.MockFailureRate > 0 {
			errs = append(errs, fmt.Errorf("gateways.mock_failure_rate must be 0 in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Ops server defaults
	v.SetDefault("ops.port", 9090)
	v.SetDefault("ops.read_timeout", "5s")
	v.SetDefault("ops.write_timeout", "10s")
	v.SetDefault("ops.shutdown_timeout", "15s")
	v.SetDefault("ops.rate_limit", 120)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ordercore")
	v.SetDefault("database.database", "ordercore")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Transaction defaults
	v.SetDefault("transaction.default_expiry", "15m")
	v.SetDefault("transaction.max_expiry", "1h")

	// Task engine defaults
	v.SetDefault("tasks.default_tries", 10)
	v.SetDefault("tasks.tries", map[string]int{
		"sendorder":             3,
		"cancelseatreservation": 20,
	})
	v.SetDefault("tasks.retry_base", "5s")
	v.SetDefault("tasks.retry_max", "10m")
	v.SetDefault("tasks.poll_interval", "1s")
	v.SetDefault("tasks.export_interval", "500ms")
	v.SetDefault("tasks.sweep_interval", "10s")
	v.SetDefault("tasks.reexport_interval", "10m")
	v.SetDefault("tasks.stuck_interval", "10m")
	v.SetDefault("tasks.concurrency", 2)
	v.SetDefault("tasks.aborted_stream", "ordercore:tasks:aborted")

	// Sequence defaults
	v.SetDefault("sequence.timezone", "Asia/Tokyo")
	v.SetDefault("sequence.key_prefix", "ordercore")

	// Gateway defaults
	v.SetDefault("gateways.call_timeout", "10s")
	v.SetDefault("gateways.breaker_max_requests", 10)
	v.SetDefault("gateways.breaker_interval", "60s")
	v.SetDefault("gateways.breaker_timeout", "30s")
	v.SetDefault("gateways.breaker_min_requests", 10)
	v.SetDefault("gateways.breaker_failure_ratio", 0.6)
	v.SetDefault("gateways.mock_latency", "0s")
	v.SetDefault("gateways.mock_failure_rate", 0.0)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "ordercore-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the DSN in URL form, as golang-migrate expects it.
func (c *DatabaseConfig) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
