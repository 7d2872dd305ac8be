package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Regulatory   RegulatoryConfig
	Scanner      ScannerConfig
	Dispatch     DispatchConfig
	Escalation   EscalationConfig
	Audit        AuditConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// RegulatoryConfig captures the one-call statutory parameters. Defaults
// follow the WV811 rules: two full business days of notice, a fifteen
// business day ticket life, forty-eight hours for utilities to respond.
type RegulatoryConfig struct {
	Jurisdiction               string
	MinNoticeBusinessDays      int
	ValidityWindowBusinessDays int
	UpdateByLeadBusinessDays   int
	ResponseWindowHours        int
	ExtraHolidays              []string
}

// ScannerConfig controls the trigger sweep loop.
type ScannerConfig struct {
	SweepIntervalMinutes int
	BatchSize            int
	LockTTLSeconds       int
}

// DispatchConfig controls the alert worker pool.
type DispatchConfig struct {
	QueueCapacity         int
	Workers               int
	PerChannelConcurrency int
	GatewayTimeoutSeconds int
	MaxRetries            int
	RetryBackoffSeconds   int
	// ChannelRatePerMinute caps notifications per channel per minute
	// across the process; 0 disables the cap.
	ChannelRatePerMinute int
}

// EscalationConfig controls acknowledgement deadlines and the escalation
// sweep.
type EscalationConfig struct {
	AckDeadlineMinutes         int
	CriticalAckDeadlineMinutes int
	SweepIntervalMinutes       int
}

// AuditConfig controls audit pack generation.
type AuditConfig struct {
	RetentionYears int
}

// NotificationConfig holds gateway endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "locate-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Regulatory: RegulatoryConfig{
			Jurisdiction:               getEnv("REGULATORY_JURISDICTION", "WV"),
			MinNoticeBusinessDays:      getEnvAsInt("REGULATORY_MIN_NOTICE_BUSINESS_DAYS", 2),
			ValidityWindowBusinessDays: getEnvAsInt("REGULATORY_VALIDITY_BUSINESS_DAYS", 15),
			UpdateByLeadBusinessDays:   getEnvAsInt("REGULATORY_UPDATE_BY_LEAD_BUSINESS_DAYS", 2),
			ResponseWindowHours:        getEnvAsInt("REGULATORY_RESPONSE_WINDOW_HOURS", 48),
			ExtraHolidays:              getEnvAsList("REGULATORY_EXTRA_HOLIDAYS"),
		},
		Scanner: ScannerConfig{
			SweepIntervalMinutes: getEnvAsInt("SCANNER_SWEEP_INTERVAL_MINUTES", 15),
			BatchSize:            getEnvAsInt("SCANNER_BATCH_SIZE", 500),
			LockTTLSeconds:       getEnvAsInt("SCANNER_LOCK_TTL_SECONDS", 120),
		},
		Dispatch: DispatchConfig{
			QueueCapacity:         getEnvAsInt("DISPATCH_QUEUE_CAPACITY", 1024),
			Workers:               getEnvAsInt("DISPATCH_WORKERS", 8),
			PerChannelConcurrency: getEnvAsInt("DISPATCH_PER_CHANNEL_CONCURRENCY", 4),
			GatewayTimeoutSeconds: getEnvAsInt("DISPATCH_GATEWAY_TIMEOUT_SECONDS", 10),
			MaxRetries:            getEnvAsInt("DISPATCH_MAX_RETRIES", 3),
			RetryBackoffSeconds:   getEnvAsInt("DISPATCH_RETRY_BACKOFF_SECONDS", 5),
			ChannelRatePerMinute:  getEnvAsInt("DISPATCH_CHANNEL_RATE_PER_MINUTE", 120),
		},
		Escalation: EscalationConfig{
			AckDeadlineMinutes:         getEnvAsInt("ESCALATION_ACK_DEADLINE_MINUTES", 240),
			CriticalAckDeadlineMinutes: getEnvAsInt("ESCALATION_CRITICAL_ACK_DEADLINE_MINUTES", 60),
			SweepIntervalMinutes:       getEnvAsInt("ESCALATION_SWEEP_INTERVAL_MINUTES", 5),
		},
		Audit: AuditConfig{
			RetentionYears: getEnvAsInt("AUDIT_RETENTION_YEARS", 3),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns the scanner period.
func (s ScannerConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// GatewayTimeout bounds each notification gateway call.
func (d DispatchConfig) GatewayTimeout() time.Duration {
	return time.Duration(d.GatewayTimeoutSeconds) * time.Second
}

// RetryBackoff is the base delay between dispatch retries.
func (d DispatchConfig) RetryBackoff() time.Duration {
	return time.Duration(d.RetryBackoffSeconds) * time.Second
}

// SweepInterval returns the escalation sweep period.
func (e EscalationConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalMinutes) * time.Minute
}

// DeadlineFor returns the acknowledgement deadline for a priority.
func (e EscalationConfig) DeadlineFor(critical bool) time.Duration {
	if critical {
		return time.Duration(e.CriticalAckDeadlineMinutes) * time.Minute
	}
	return time.Duration(e.AckDeadlineMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
