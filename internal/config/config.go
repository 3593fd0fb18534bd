package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Clinic    ClinicConfig    `mapstructure:"clinic"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPrefix   string        `mapstructure:"metrics_prefix"`
	CORSOrigins     []string      `mapstructure:"cors_origins" envconfig:"CORS_ORIGINS"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"DB_HOST"`
	Port            int           `mapstructure:"port" envconfig:"DB_PORT"`
	User            string        `mapstructure:"user" envconfig:"DB_USER"`
	Password        string        `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type ClinicConfig struct {
	// Timezone is an IANA zone name; every date comparison uses it.
	Timezone string `mapstructure:"timezone" envconfig:"CLINIC_TIMEZONE"`
}

// Location resolves the clinic time zone.
func (c ClinicConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid clinic timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

type SweepConfig struct {
	ReminderSchedule string `mapstructure:"reminder_schedule" envconfig:"SWEEP_REMINDER_SCHEDULE"`
	// OverdueInterval and OverdueGrace are independent on purpose: the poll
	// interval bounds detection latency, the grace decides lateness.
	OverdueInterval  time.Duration `mapstructure:"overdue_interval" envconfig:"SWEEP_OVERDUE_INTERVAL"`
	OverdueGrace     time.Duration `mapstructure:"overdue_grace" envconfig:"SWEEP_OVERDUE_GRACE"`
	ReminderDedupTTL time.Duration `mapstructure:"reminder_dedup_ttl"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type WorkerConfig struct {
	// HealthPort serves liveness, readiness and metrics for the worker.
	HealthPort      int           `mapstructure:"health_port" envconfig:"WORKER_HEALTH_PORT"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"AUTH_ENABLED"`
	Secret  string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	Issuer  string `mapstructure:"issuer"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.metrics_prefix", "scheduler")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("sweep.reminder_schedule", "0 18 * * *")
	v.SetDefault("sweep.overdue_interval", 15*time.Minute)
	v.SetDefault("sweep.overdue_grace", 15*time.Minute)
	v.SetDefault("sweep.reminder_dedup_ttl", 36*time.Hour)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 5*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.cleanup_interval", time.Hour)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path (or the usual search locations when
// path is empty) and then applies SCHEDULER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !asNotFound(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("scheduler", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

const minOutboxRetention = 48 * time.Hour

func (c *Config) Validate() error {
	var problems []string
	if c.Clinic.Timezone == "" {
		problems = append(problems, "clinic.timezone is required")
	} else if _, err := c.Clinic.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Sweep.OverdueInterval <= 0 {
		problems = append(problems, "sweep.overdue_interval must be positive")
	}
	if c.Sweep.OverdueGrace < 0 {
		problems = append(problems, "sweep.overdue_grace must not be negative")
	}
	if c.Sweep.ReminderSchedule == "" {
		problems = append(problems, "sweep.reminder_schedule is required")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.RetryAttempts <= 0 {
		problems = append(problems, "outbox batch_size, poll_interval and retry_attempts must be positive")
	}
	// Processed reminders double as the dedupe record between worker restarts.
	if c.Outbox.Retention < minOutboxRetention {
		problems = append(problems, fmt.Sprintf("outbox.retention must be at least %s", minOutboxRetention))
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		problems = append(problems, "auth.secret is required when auth is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
