package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Store   StoreConfig
	Worker  WorkerConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// StoreConfig selects and configures the record store driver.
type StoreConfig struct {
	Driver      string // postgres|neo4j|memory
	DatabaseURL string
	MaxConns    int
	Graph       GraphConfig
}

// GraphConfig describes connectivity to the graph store (Neptune/Neo4j).
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// WorkerConfig tunes the background completion pipeline.
type WorkerConfig struct {
	Count           int
	QueueSize       int
	CompletionDelay time.Duration
	DrainTimeout    time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStoreDriver     = "postgres"
	defaultStoreMaxConns   = 10
	defaultWorkerCount     = 8
	defaultQueueSize       = 1024
	defaultCompletionDelay = 30 * time.Second
	defaultDrainTimeout    = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Store: StoreConfig{
			Driver:      valueOrDefault("STORE_DRIVER", defaultStoreDriver),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MaxConns:    parseIntWithDefault("STORE_MAX_CONNS", defaultStoreMaxConns),
			Graph: GraphConfig{
				URI:            os.Getenv("GRAPH_URI"),
				Database:       valueOrDefault("GRAPH_DATABASE", ""),
				Username:       os.Getenv("GRAPH_USERNAME"),
				Password:       os.Getenv("GRAPH_PASSWORD"),
				MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultStoreMaxConns),
			},
		},
		Worker: WorkerConfig{
			Count:           parseIntWithDefault("WORKER_COUNT", defaultWorkerCount),
			QueueSize:       parseIntWithDefault("WORKER_QUEUE_SIZE", defaultQueueSize),
			CompletionDelay: defaultCompletionDelay,
			DrainTimeout:    defaultDrainTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"COMPLETION_DELAY", &cfg.Worker.CompletionDelay},
		{"WORKER_DRAIN_TIMEOUT", &cfg.Worker.DrainTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.target = parsed
		}
	}

	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
