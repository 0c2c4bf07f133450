package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
	Platform  PlatformConfig
	Tickets   TicketsConfig
	Burnout   BurnoutConfig
	Workers   WorkersConfig
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
	DSN             string
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
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

// AuthConfig defines authentication parameters for bot gateway clients.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	Clients               []ClientCredential
}

// ClientCredential is a registered API client; SecretHash is a bcrypt hash.
type ClientCredential struct {
	ID         string
	SecretHash string
	Role       string
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

// PlatformConfig points at the chat-platform gateway.
type PlatformConfig struct {
	GatewayURL     string
	GatewayToken   string
	BotUserID      string
	TimeoutSeconds int
}

// TicketsConfig holds ticket lifecycle knobs.
type TicketsConfig struct {
	ChannelDeleteDelaySeconds int
	StatsWindowDays           int
	LeaderboardCacheTTLSecs   int
	GuildConfigCacheTTLSecs   int
}

// WorkersConfig controls background workers.
type WorkersConfig struct {
	BurnoutSweepIntervalMinutes int
	BurnoutSweepConcurrency     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	burnout := DefaultBurnoutConfig()
	if path := os.Getenv("BURNOUT_OVERRIDES_FILE"); path != "" {
		overrides, err := LoadBurnoutOverrides(path, burnout.Defaults)
		if err != nil {
			return nil, err
		}
		burnout.GuildOverrides = overrides
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "modcenter"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			ApplicationName: getEnv("POSTGRES_APPLICATION_NAME", "modcenter"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Clients:               loadClients(),
		},
		Telemetry: TelemetryConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Platform: PlatformConfig{
			GatewayURL:     os.Getenv("PLATFORM_GATEWAY_URL"),
			GatewayToken:   os.Getenv("PLATFORM_GATEWAY_TOKEN"),
			BotUserID:      getEnv("PLATFORM_BOT_USER_ID", ""),
			TimeoutSeconds: getEnvAsInt("PLATFORM_TIMEOUT_SECONDS", 10),
		},
		Tickets: TicketsConfig{
			ChannelDeleteDelaySeconds: getEnvAsInt("TICKET_CHANNEL_DELETE_DELAY_SECONDS", 5),
			StatsWindowDays:           getEnvAsInt("MOD_STATS_WINDOW_DAYS", 7),
			LeaderboardCacheTTLSecs:   getEnvAsInt("LEADERBOARD_CACHE_TTL_SECONDS", 60),
			GuildConfigCacheTTLSecs:   getEnvAsInt("GUILD_CONFIG_CACHE_TTL_SECONDS", 300),
		},
		Burnout: burnout,
		Workers: WorkersConfig{
			BurnoutSweepIntervalMinutes: getEnvAsInt("BURNOUT_SWEEP_INTERVAL_MINUTES", 60),
			BurnoutSweepConcurrency:     getEnvAsInt("BURNOUT_SWEEP_CONCURRENCY", 8),
		},
	}

	return cfg, nil
}

// loadClients reads the bot gateway client plus an optional admin client.
func loadClients() []ClientCredential {
	var clients []ClientCredential
	if id := os.Getenv("AUTH_BOT_CLIENT_ID"); id != "" {
		clients = append(clients, ClientCredential{ID: id, SecretHash: os.Getenv("AUTH_BOT_CLIENT_SECRET_HASH"), Role: "BOT"})
	}
	if id := os.Getenv("AUTH_ADMIN_CLIENT_ID"); id != "" {
		clients = append(clients, ClientCredential{ID: id, SecretHash: os.Getenv("AUTH_ADMIN_CLIENT_SECRET_HASH"), Role: "ADMIN"})
	}
	return clients
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

// ChannelDeleteDelay returns how long a closed ticket channel survives.
func (t TicketsConfig) ChannelDeleteDelay() time.Duration {
	if t.ChannelDeleteDelaySeconds < 0 {
		return 0
	}
	return time.Duration(t.ChannelDeleteDelaySeconds) * time.Second
}

// BurnoutSweepInterval returns the sweep period; zero disables the worker.
func (w WorkersConfig) BurnoutSweepInterval() time.Duration {
	if w.BurnoutSweepIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(w.BurnoutSweepIntervalMinutes) * time.Minute
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
