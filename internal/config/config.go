package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Kafka     KafkaConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string `mapstructure:"SERVER_PORT"`
	Host         string `mapstructure:"SERVER_HOST"`
	Env          string `mapstructure:"ENV"`
	ReadTimeout  string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout string `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	MigrationsPath  string `mapstructure:"DATABASE_MIGRATIONS_PATH"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"REDIS_ENABLED"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type KafkaConfig struct {
	Brokers        string `mapstructure:"KAFKA_BROKERS"`
	LoanEventTopic string `mapstructure:"KAFKA_LOAN_EVENT_TOPIC"`
	WriteTimeout   string `mapstructure:"KAFKA_WRITE_TIMEOUT"`
}

type SchedulerConfig struct {
	RefreshSpec    string `mapstructure:"SCHEDULER_REFRESH_SPEC"`
	Timezone       string `mapstructure:"SCHEDULER_TIMEZONE"`
	WorkerPoolSize int    `mapstructure:"WORKER_POOL_SIZE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DueWindowDays    int    `mapstructure:"DUE_WINDOW_DAYS"`
	ScheduleCacheTTL string `mapstructure:"SCHEDULE_CACHE_TTL"`
	Timezone         string `mapstructure:"BUSINESS_TIMEZONE"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"ENV":                        "development",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"DATABASE_URL":               "",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"DATABASE_MIGRATIONS_PATH":   "./migrations",
	"REDIS_ENABLED":              false,
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"KAFKA_BROKERS":              "",
	"KAFKA_LOAN_EVENT_TOPIC":     "loan-state-changed",
	"KAFKA_WRITE_TIMEOUT":        "10s",
	"SCHEDULER_REFRESH_SPEC":     "0 5 0 * * *",
	"SCHEDULER_TIMEZONE":         "Asia/Kolkata",
	"WORKER_POOL_SIZE":           8,
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"DUE_WINDOW_DAYS":            7,
	"SCHEDULE_CACHE_TTL":         "5m",
	"BUSINESS_TIMEZONE":          "Asia/Kolkata",
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist; real environment variables win.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("./deployments/.env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.DueWindowDays < 0 {
		return fmt.Errorf("DUE_WINDOW_DAYS must not be negative")
	}

	if c.Scheduler.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be greater than 0")
	}

	durations := map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"KAFKA_WRITE_TIMEOUT":        c.Kafka.WriteTimeout,
		"SCHEDULE_CACHE_TTL":         c.Business.ScheduleCacheTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE must be a valid location: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.RefreshSpec); err != nil {
		return fmt.Errorf("SCHEDULER_REFRESH_SPEC must be a valid cron spec: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// Address returns host:port for the HTTP server
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// RedisAddress returns host:port for the redis client
func (c *Config) RedisAddress() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// KafkaBrokers returns the configured brokers, or nil when kafka is disabled
func (c *Config) KafkaBrokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.Kafka.Brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// SchedulerLocation returns the scheduler timezone
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BusinessLocation returns the timezone whose calendar decides which day it is
// when due dates are evaluated
func (c *Config) BusinessLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the server read timeout as duration
func (c *Config) GetReadTimeout() time.Duration {
	return mustDuration(c.Server.ReadTimeout)
}

// GetWriteTimeout returns the server write timeout as duration
func (c *Config) GetWriteTimeout() time.Duration {
	return mustDuration(c.Server.WriteTimeout)
}

// GetConnMaxLifetime returns the database connection lifetime as duration
func (c *Config) GetConnMaxLifetime() time.Duration {
	return mustDuration(c.Database.ConnMaxLifetime)
}

// GetKafkaWriteTimeout returns the kafka write timeout as duration
func (c *Config) GetKafkaWriteTimeout() time.Duration {
	return mustDuration(c.Kafka.WriteTimeout)
}

// GetScheduleCacheTTL returns how long a projected schedule may be served from cache
func (c *Config) GetScheduleCacheTTL() time.Duration {
	return mustDuration(c.Business.ScheduleCacheTTL)
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	return mustDuration(c.Health.Timeout)
}

// mustDuration is only called on values Validate has already parsed.
func mustDuration(value string) time.Duration {
	duration, _ := time.ParseDuration(value)
	return duration
}
