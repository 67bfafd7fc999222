package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Mail         MailConfig
	Notification NotificationConfig
	Tickets      TicketsConfig
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

// RedisConfig holds Redis connection values. An empty Addr disables token revocation.
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
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// MailConfig configures the SMTP relay. An empty Host logs mail instead of sending it.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// NotificationConfig holds notification routing values.
type NotificationConfig struct {
	FrontendURL string
	NatsURL     string
}

// TicketsConfig holds ticket workflow settings.
type TicketsConfig struct {
	Statuses []domain.TicketStatus
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	intEnv := func(key string, fallback int) int {
		v, err := getEnvAsInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolEnv := func(key string, fallback bool) bool {
		v, err := getEnvAsBool(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	statuses, err := parseStatuses(os.Getenv("TICKET_STATUSES"))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: intEnv("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("DATABASE_URL"),
			MaxConns:       int32(intEnv("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(intEnv("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  boolEnv("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(intEnv("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(intEnv("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intEnv("REDIS_DB", 0),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("JWT_SECRET"),
			AccessTokenTTLMinutes: intEnv("JWT_TTL_MINUTES", 24*60),
			BcryptCost:            intEnv("BCRYPT_COST", bcrypt.DefaultCost),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     intEnv("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     getEnv("SMTP_FROM", "support@example.com"),
			SSL:      boolEnv("SMTP_SECURE", false),
		},
		Notification: NotificationConfig{
			FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			NatsURL:     os.Getenv("NATS_URL"),
		},
		Tickets: TicketsConfig{
			Statuses: statuses,
		},
	}

	if cost := cfg.Auth.BcryptCost; cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("invalid BCRYPT_COST: %d outside %d..%d", cost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if cfg.Auth.JWTSecret == "" {
		if cfg.App.Env == "production" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		cfg.Auth.JWTSecret = "dev-secret"
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
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

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func parseStatuses(raw string) ([]domain.TicketStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]domain.TicketStatus(nil), domain.DefaultTicketStatuses...), nil
	}
	var out []domain.TicketStatus
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		s := strings.TrimSpace(part)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, domain.TicketStatus(s))
	}
	if !seen[string(domain.TicketStatusOpen)] {
		return nil, fmt.Errorf("invalid TICKET_STATUSES: must include %q", domain.TicketStatusOpen)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
