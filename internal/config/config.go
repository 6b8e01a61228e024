package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Presence PresenceConfig
	Nearby   NearbyConfig
	Ping     PingConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Environment    string // "development", "production", "test"
	Debug          bool
	LogLevel       string
	AllowedOrigins []string // websocket Origin allow-list; empty allows any
	MigrationsPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	GeoKey      string        // sorted set holding user positions
	PresenceTTL time.Duration // lifetime of a mirrored online marker
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type PresenceConfig struct {
	OfflineDebounce time.Duration
}

type NearbyConfig struct {
	DefaultRadiusMeters float64
	MaxRadiusMeters     float64
	RateLimit           int           // queries per window per user
	RateWindow          time.Duration // 0 disables rate limiting
}

type PingConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration // 0 disables the expiry janitor
}

type RealtimeConfig struct {
	SendQueueSize   int
	WriteTimeout    time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PingInterval is how often the server pings a websocket peer. It has to be
// shorter than PongWait so a healthy peer never times out.
func (r RealtimeConfig) PingInterval() time.Duration {
	return r.PongWait * 9 / 10
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Environment:    getEnv("APP_ENV", "development"),
			Debug:          getEnvBool("DEBUG", false),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvList("WS_ALLOWED_ORIGINS"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "nearby"),
			Password: getEnv("DB_PASSWORD", "nearby"),
			DBName:   getEnv("DB_NAME", "nearby"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnvInt("REDIS_PORT", 6379),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			GeoKey:      getEnv("REDIS_GEO_KEY", "geo:users"),
			PresenceTTL: getEnvDuration("REDIS_PRESENCE_TTL", 2*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Presence: PresenceConfig{
			OfflineDebounce: getEnvDuration("PRESENCE_OFFLINE_DEBOUNCE", 10*time.Second),
		},
		Nearby: NearbyConfig{
			DefaultRadiusMeters: getEnvFloat("NEARBY_DEFAULT_RADIUS_METERS", 1000),
			MaxRadiusMeters:     getEnvFloat("NEARBY_MAX_RADIUS_METERS", 10000),
			RateLimit:           getEnvInt("NEARBY_RATE_LIMIT", 60),
			RateWindow:          getEnvDuration("NEARBY_RATE_WINDOW", time.Minute),
		},
		Ping: PingConfig{
			TTL:           getEnvDuration("PING_TTL", 5*time.Minute),
			SweepInterval: getEnvDuration("PING_SWEEP_INTERVAL", time.Minute),
		},
		Realtime: RealtimeConfig{
			SendQueueSize:   getEnvInt("WS_SEND_QUEUE_SIZE", 64),
			WriteTimeout:    getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PongWait:        getEnvDuration("WS_PONG_WAIT", 60*time.Second),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 16*1024)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Ping.TTL <= 0 {
		errs = append(errs, errors.New("PING_TTL must be positive"))
	}
	if c.Ping.SweepInterval < 0 {
		errs = append(errs, errors.New("PING_SWEEP_INTERVAL must not be negative"))
	}
	if c.Presence.OfflineDebounce <= 0 {
		errs = append(errs, errors.New("PRESENCE_OFFLINE_DEBOUNCE must be positive"))
	}
	if c.Nearby.MaxRadiusMeters <= 0 {
		errs = append(errs, errors.New("NEARBY_MAX_RADIUS_METERS must be positive"))
	}
	if c.Nearby.DefaultRadiusMeters <= 0 || c.Nearby.DefaultRadiusMeters > c.Nearby.MaxRadiusMeters {
		errs = append(errs, errors.New("NEARBY_DEFAULT_RADIUS_METERS must be in (0, NEARBY_MAX_RADIUS_METERS]"))
	}
	if c.Realtime.SendQueueSize <= 0 {
		errs = append(errs, errors.New("WS_SEND_QUEUE_SIZE must be positive"))
	}
	if c.Realtime.PongWait <= 0 || c.Realtime.WriteTimeout <= 0 {
		errs = append(errs, errors.New("WS_PONG_WAIT and WS_WRITE_TIMEOUT must be positive"))
	}
	if c.Server.Environment == "production" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
