package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	Stream       string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	NotifyTopic string
	Partitions  int32
}

type ThrottleConfig struct {
	MaxConcurrent int
	QueueTimeout  time.Duration
	// RatePerSecond paces admissions; zero disables pacing.
	RatePerSecond float64
}

type RolesConfig struct {
	MaxAttempts  int
	Backoff      time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BulkTimeout  time.Duration
	TokenTTL     time.Duration
}

type ResolutionConfig struct {
	RecencyWindow time.Duration
}

type SyncConfig struct {
	HistoryLimit int
}

// AccountsConfig sizes the in-process account profile cache.
type AccountsConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Throttle   ThrottleConfig
	Roles      RolesConfig
	Resolution ResolutionConfig
	Sync       SyncConfig
	Accounts   AccountsConfig
	Log        LogConfig
}

// FromEnv builds the configuration from environment variables so main stays
// lean. Malformed values are reported together.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: Server{
			Addr:          e.str("ROLESYNC_ADDR", ":8080"),
			JWTSigningKey: e.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.int("DATABASE_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			Stream:       e.str("REDIS_NOTIFY_STREAM", "rolesync:notifications"),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     e.list("KAFKA_BROKERS"),
			NotifyTopic: e.str("KAFKA_NOTIFY_TOPIC", "rolesync.notifications"),
			Partitions:  int32(e.int("KAFKA_NOTIFY_PARTITIONS", 3)),
		},
		Throttle: ThrottleConfig{
			MaxConcurrent: e.int("THROTTLE_MAX_CONCURRENT", 3),
			QueueTimeout:  e.duration("THROTTLE_QUEUE_TIMEOUT", 10*time.Second),
			RatePerSecond: e.float("THROTTLE_RATE_PER_SECOND", 0),
		},
		Roles: RolesConfig{
			MaxAttempts:  e.int("ROLE_CREATE_MAX_ATTEMPTS", 3),
			Backoff:      e.duration("ROLE_CREATE_BACKOFF", time.Second),
			ReadTimeout:  e.duration("STORE_READ_TIMEOUT", 8*time.Second),
			WriteTimeout: e.duration("STORE_WRITE_TIMEOUT", 10*time.Second),
			BulkTimeout:  e.duration("STORE_BULK_TIMEOUT", 15*time.Second),
			TokenTTL:     e.duration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		},
		Resolution: ResolutionConfig{
			RecencyWindow: e.duration("EMERGENCY_RECENCY_WINDOW", 60*time.Minute),
		},
		Sync: SyncConfig{
			HistoryLimit: e.int("SYNC_HISTORY_LIMIT", 10),
		},
		Accounts: AccountsConfig{
			CacheSize: e.int("ACCOUNT_CACHE_SIZE", 1024),
			CacheTTL:  e.duration("ACCOUNT_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
	}
	if cfg.Throttle.MaxConcurrent < 1 {
		e.errs = append(e.errs, errors.New("THROTTLE_MAX_CONCURRENT must be at least 1"))
	}
	if cfg.Roles.MaxAttempts < 1 {
		e.errs = append(e.errs, errors.New("ROLE_CREATE_MAX_ATTEMPTS must be at least 1"))
	}
	return cfg, errors.Join(e.errs...)
}

type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
