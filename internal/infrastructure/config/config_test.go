package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Ops: OpsConfig{
			Port:            9090,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "test",
			Password: "test",
			Database: "test_db",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Transaction: TransactionConfig{
			DefaultExpiry: 15 * time.Minute,
			MaxExpiry:     time.Hour,
		},
		Tasks: TasksConfig{
			DefaultTries:     10,
			RetryBase:        5 * time.Second,
			RetryMax:         10 * time.Minute,
			ReexportInterval: 10 * time.Minute,
			StuckInterval:    10 * time.Minute,
			Concurrency:      2,
		},
		Sequence: SequenceConfig{Timezone: "Asia/Tokyo"},
		Gateways: GatewaysConfig{BreakerFailureRatio: 0.6},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		message string
	}{
		{"ops port too low", func(c *Config) { c.Ops.Port = 0 }, "ops.port"},
		{"ops port too high", func(c *Config) { c.Ops.Port = 99999 }, "ops.port"},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"invalid database port", func(c *Config) { c.Database.Port = 0 }, "database.port"},
		{"invalid redis port", func(c *Config) { c.Redis.Port = 0 }, "redis.port"},
		{"zero default expiry", func(c *Config) { c.Transaction.DefaultExpiry = 0 }, "transaction.default_expiry"},
		{"max expiry below default", func(c *Config) { c.Transaction.MaxExpiry = time.Minute }, "transaction.max_expiry"},
		{"zero tries", func(c *Config) { c.Tasks.DefaultTries = 0 }, "tasks.default_tries"},
		{"retry max below base", func(c *Config) { c.Tasks.RetryMax = time.Second }, "tasks.retry_base"},
		{"zero reexport interval", func(c *Config) { c.Tasks.ReexportInterval = 0 }, "tasks.reexport_interval"},
		{"zero stuck interval", func(c *Config) { c.Tasks.StuckInterval = 0 }, "tasks.stuck_interval"},
		{"zero concurrency", func(c *Config) { c.Tasks.Concurrency = 0 }, "tasks.concurrency"},
		{"unknown timezone", func(c *Config) { c.Sequence.Timezone = "Mars/Olympus" }, "sequence.timezone"},
		{"failure ratio above one", func(c *Config) { c.Gateways.BreakerFailureRatio = 1.5 }, "gateways.breaker_failure_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{Sequence: SequenceConfig{Timezone: "UTC"}}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "ops.port")
	assert.Contains(t, errStr, "database.host")
	assert.Contains(t, errStr, "redis.port")
	assert.Contains(t, errStr, "transaction.default_expiry")
	assert.Contains(t, errStr, "tasks.default_tries")
	assert.Contains(t, errStr, "tasks.concurrency")
}

func TestConfig_Validate_Production(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg := validConfig()
	cfg.Database.Password = ""
	cfg.Gateways.MockFailureRate = 0.1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.password")
	assert.Contains(t, err.Error(), "gateways.mock_failure_rate")
}

func TestTasksConfig_TriesFor(t *testing.T) {
	cfg := TasksConfig{
		DefaultTries: 10,
		Tries:        map[string]int{"sendorder": 3, "paycreditcard": 0},
	}

	assert.Equal(t, 3, cfg.TriesFor("sendOrder"))
	assert.Equal(t, 10, cfg.TriesFor("payCreditCard"))
	assert.Equal(t, 10, cfg.TriesFor("placeOrder"))
}

func TestSequenceConfig_Location(t *testing.T) {
	cfg := SequenceConfig{Timezone: "Asia/Tokyo"}

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ORDERCORE_OPS_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Ops.Port)
	assert.Equal(t, 15*time.Minute, cfg.Transaction.DefaultExpiry)
	assert.Equal(t, 10, cfg.Tasks.DefaultTries)
	assert.Equal(t, 3, cfg.Tasks.TriesFor("sendOrder"))
	assert.Equal(t, "ordercore:tasks:aborted", cfg.Tasks.AbortedStream)
	assert.Equal(t, "Asia/Tokyo", cfg.Sequence.Timezone)
	assert.InDelta(t, 0.6, cfg.Gateways.BreakerFailureRatio, 0.0001)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.example.com",
		Port:     5432,
		User:     "app_user",
		Password: "secret",
		Database: "ordercore",
		SSLMode:  "require",
	}

	assert.Equal(t, "host=db.example.com port=5432 user=app_user password=secret dbname=ordercore sslmode=require", cfg.DatabaseDSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.example.com", Port: 6380}
	assert.Equal(t, "redis.example.com:6380", cfg.RedisAddr())
}

func TestDatabaseURL(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "ordercore", Password: "p@ss", Database: "ordercore", SSLMode: "disable"}

	assert.Equal(t, "postgres://ordercore:p%40ss@db:5433/ordercore?sslmode=disable", cfg.DatabaseURL())
}
