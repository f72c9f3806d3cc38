// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulerConfig holds settings for the due-queue claim loop.
type SchedulerConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	ClaimTTL     int `mapstructure:"claim_ttl"`     // milliseconds
	BatchLimit   int `mapstructure:"batch_limit"`   // due messages claimed per poll
}

// DispatcherConfig holds settings for per-recipient fan-out.
type DispatcherConfig struct {
	Parallelism    int `mapstructure:"parallelism"`     // concurrent delivery attempts
	AttemptTimeout int `mapstructure:"attempt_timeout"` // milliseconds, per recipient
	CASRetries     int `mapstructure:"cas_retries"`     // optimistic-write retry bound
}

// TransportConfig holds settings for the delivery collaborators.
type TransportConfig struct {
	Channel string `mapstructure:"channel"` // "email" or "sms"
	AWS     struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"` // listen address for /metrics
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
