// Package config provides configuration loading for convergd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables, with hardcoded defaults below both. This package defines the
// typed sections for the server, engine, score bridge, stores, and
// integrations.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chakssp/convergd/pkg/convergence"
	"github.com/chakssp/convergd/pkg/normalize"
)

// Config holds the complete convergd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Engine        EngineConfig        `koanf:"engine"`
	Normalize     NormalizeConfig     `koanf:"normalize"`
	History       HistoryConfig       `koanf:"history"`
	Knowledge     KnowledgeConfig     `koanf:"knowledge"`
	VectorStore   VectorStoreConfig   `koanf:"vector_store"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	Events        EventsConfig        `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// EngineConfig holds the convergence engine configuration.
type EngineConfig struct {
	// Evaluation are the tunable evaluation parameters
	// (minimum iterations, stability window, thresholds).
	Evaluation convergence.Config `koanf:"evaluation"`

	// Weights are the composite blend weights. Renormalized to sum to 1
	// at engine construction.
	Weights convergence.Weights `koanf:"weights"`

	// CacheTTL bounds how long an evaluation result may be served from
	// cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheMaxEntries caps the result cache size.
	CacheMaxEntries int `koanf:"cache_max_entries"`
}

// NormalizeConfig holds the score bridge configuration.
type NormalizeConfig struct {
	// Method is the default normalization method, "linear" or
	// "percentile".
	Method string `koanf:"method"`

	// Calibration is the empirical raw-score range.
	Calibration normalize.Calibration `koanf:"calibration"`
}

// HistoryConfig holds analysis-history store configuration.
type HistoryConfig struct {
	// Provider selects the store backend: "badger" or "memory".
	Provider string `koanf:"provider"`

	Badger BadgerConfig `koanf:"badger"`
}

// BadgerConfig holds the embedded key-value store configuration.
type BadgerConfig struct {
	// Path is the on-disk database directory.
	Path string `koanf:"path"`

	// InMemory runs the store without persistence. Used by tests and
	// ephemeral deployments.
	InMemory bool `koanf:"in_memory"`
}

// KnowledgeConfig holds the curated-category registry configuration.
type KnowledgeConfig struct {
	// Path is the category registry YAML file.
	Path string `koanf:"path"`

	// Watch reloads the registry when the file changes on disk.
	Watch bool `koanf:"watch"`
}

// VectorStoreConfig holds vector similarity search configuration.
type VectorStoreConfig struct {
	// Provider selects the backend: "qdrant" or "chromem".
	Provider string `koanf:"provider"`

	Qdrant  QdrantConfig  `koanf:"qdrant"`
	Chromem ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
}

// ChromemConfig holds the embedded vector store configuration.
type ChromemConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	VectorSize int    `koanf:"vector_size"`
	Compress   bool   `koanf:"compress"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider selects the backend: "local" (in-process model) or
	// "remote" (HTTP embedding service).
	Provider string `koanf:"provider"`

	// BaseURL is the remote embedding service endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the remote service, if required.
	APIKey Secret `koanf:"api_key"`

	// Timeout bounds one embedding request.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitRPS throttles remote requests per second. Zero disables
	// throttling.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// RateLimitBurst is the throttle burst size.
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// CacheDir is where local model files are unpacked.
	CacheDir string `koanf:"cache_dir"`
}

// EventsConfig holds NATS event publishing configuration.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server address, e.g. nats://127.0.0.1:4222.
	URL string `koanf:"url"`

	// SubjectPrefix prefixes every published subject.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Load loads configuration from environment variables with defaults.
//
// This is the quick path used by the CLI and by deployments that do not
// carry a config file. Only the flat knobs are env-tunable here; nested
// sections (engine.weights, engine.evaluation, normalize.calibration) take
// their defaults and require the YAML path via LoadWithFile.
//
// Environment variables:
//   - SERVER_PORT: HTTP server port (default: 9090)
//   - SERVER_SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false)
//   - OTEL_SERVICE_NAME: Service name for traces (default: convergd)
//   - ENGINE_CACHE_TTL: Evaluation cache TTL (default: 5m)
//   - ENGINE_CACHE_MAX_ENTRIES: Evaluation cache capacity (default: 100)
//   - NORMALIZE_METHOD: Score normalization method (default: percentile)
//   - HISTORY_PROVIDER: History store backend (default: badger)
//   - HISTORY_PATH: History store directory (default: ~/.config/convergd/history)
//   - HISTORY_IN_MEMORY: Run the history store without persistence (default: false)
//   - KNOWLEDGE_PATH: Category registry file (default: ~/.config/convergd/categories.yaml)
//   - KNOWLEDGE_WATCH: Hot-reload the registry on change (default: false)
//   - VECTORSTORE_PROVIDER: Vector store backend (default: chromem)
//   - QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY, QDRANT_COLLECTION
//   - CHROMEM_PATH, CHROMEM_COLLECTION
//   - EMBEDDINGS_PROVIDER, EMBEDDINGS_BASE_URL, EMBEDDINGS_MODEL, EMBEDDINGS_TIMEOUT
//   - EVENTS_ENABLED, EVENTS_URL, EVENTS_SUBJECT_PREFIX
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Server port:", cfg.Server.Port)
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9090),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "convergd"),
		},
		Engine: EngineConfig{
			Evaluation:      convergence.DefaultConfig(),
			Weights:         convergence.DefaultWeights(),
			CacheTTL:        getEnvDuration("ENGINE_CACHE_TTL", convergence.DefaultCacheTTL),
			CacheMaxEntries: getEnvInt("ENGINE_CACHE_MAX_ENTRIES", convergence.DefaultCacheMaxEntries),
		},
		Normalize: NormalizeConfig{
			Method:      getEnvString("NORMALIZE_METHOD", string(normalize.MethodPercentile)),
			Calibration: normalize.DefaultCalibration(),
		},
		History: HistoryConfig{
			Provider: getEnvString("HISTORY_PROVIDER", "badger"),
			Badger: BadgerConfig{
				Path:     getEnvString("HISTORY_PATH", "~/.config/convergd/history"),
				InMemory: getEnvBool("HISTORY_IN_MEMORY", false),
			},
		},
		Knowledge: KnowledgeConfig{
			Path:  getEnvString("KNOWLEDGE_PATH", "~/.config/convergd/categories.yaml"),
			Watch: getEnvBool("KNOWLEDGE_WATCH", false),
		},
		VectorStore: VectorStoreConfig{
			Provider: getEnvString("VECTORSTORE_PROVIDER", "chromem"),
			Qdrant: QdrantConfig{
				Host:       getEnvString("QDRANT_HOST", "localhost"),
				Port:       getEnvInt("QDRANT_PORT", 6334),
				APIKey:     Secret(getEnvString("QDRANT_API_KEY", "")),
				UseTLS:     getEnvBool("QDRANT_USE_TLS", false),
				Collection: getEnvString("QDRANT_COLLECTION", "knowledge_consolidator"),
				VectorSize: getEnvInt("QDRANT_VECTOR_SIZE", 768),
			},
			Chromem: ChromemConfig{
				Path:       getEnvString("CHROMEM_PATH", "~/.config/convergd/vectorstore"),
				Collection: getEnvString("CHROMEM_COLLECTION", "knowledge_consolidator"),
				VectorSize: getEnvInt("CHROMEM_VECTOR_SIZE", 768),
				Compress:   getEnvBool("CHROMEM_COMPRESS", false),
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:       getEnvString("EMBEDDINGS_PROVIDER", "remote"),
			BaseURL:        getEnvString("EMBEDDINGS_BASE_URL", "http://localhost:8080"),
			Model:          getEnvString("EMBEDDINGS_MODEL", "nomic-embed-text-v1.5"),
			APIKey:         Secret(getEnvString("EMBEDDINGS_API_KEY", "")),
			Timeout:        getEnvDuration("EMBEDDINGS_TIMEOUT", 30*time.Second),
			RateLimitRPS:   getEnvFloat("EMBEDDINGS_RATE_LIMIT_RPS", 0),
			RateLimitBurst: getEnvInt("EMBEDDINGS_RATE_LIMIT_BURST", 4),
			CacheDir:       getEnvString("EMBEDDINGS_CACHE_DIR", ""),
		},
		Events: EventsConfig{
			Enabled:       getEnvBool("EVENTS_ENABLED", false),
			URL:           getEnvString("EVENTS_URL", "nats://127.0.0.1:4222"),
			SubjectPrefix: getEnvString("EVENTS_SUBJECT_PREFIX", "convergd"),
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Engine evaluation parameters or weights are unusable
//   - Normalization method or calibration is unusable
//   - A provider selector names an unknown backend
//   - A host, URL, or store path carries suspicious characters
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if err := c.Engine.Evaluation.Validate(); err != nil {
		return fmt.Errorf("engine evaluation: %w", err)
	}
	if _, err := convergence.NewWeights(c.Engine.Weights); err != nil {
		return fmt.Errorf("engine weights: %w", err)
	}
	if c.Engine.CacheTTL < 0 {
		return errors.New("engine cache_ttl cannot be negative")
	}
	if c.Engine.CacheMaxEntries < 0 {
		return errors.New("engine cache_max_entries cannot be negative")
	}

	if _, err := normalize.ParseMethod(c.Normalize.Method); err != nil {
		return fmt.Errorf("normalize method: %w", err)
	}
	if err := c.Normalize.Calibration.Validate(); err != nil {
		return fmt.Errorf("normalize calibration: %w", err)
	}

	switch c.History.Provider {
	case "badger":
		if !c.History.Badger.InMemory && c.History.Badger.Path == "" {
			return errors.New("history badger path required unless in_memory is set")
		}
		if err := validateStorePath(c.History.Badger.Path); err != nil {
			return fmt.Errorf("history badger path: %w", err)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown history provider: %q (must be badger or memory)", c.History.Provider)
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if err := validateHost(c.VectorStore.Qdrant.Host); err != nil {
			return fmt.Errorf("qdrant host: %w", err)
		}
		if c.VectorStore.Qdrant.Port < 1 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.VectorStore.Qdrant.Port)
		}
		if c.VectorStore.Qdrant.VectorSize <= 0 {
			return errors.New("qdrant vector_size must be positive")
		}
	case "chromem":
		if c.VectorStore.Chromem.VectorSize <= 0 {
			return errors.New("chromem vector_size must be positive")
		}
		if err := validateStorePath(c.VectorStore.Chromem.Path); err != nil {
			return fmt.Errorf("chromem path: %w", err)
		}
	default:
		return fmt.Errorf("unknown vector store provider: %q (must be qdrant or chromem)", c.VectorStore.Provider)
	}

	switch c.Embeddings.Provider {
	case "local":
	case "remote":
		if err := validateHTTPURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("embeddings base_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown embeddings provider: %q (must be local or remote)", c.Embeddings.Provider)
	}
	if c.Embeddings.RateLimitRPS < 0 {
		return errors.New("embeddings rate_limit_rps cannot be negative")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events url required when events are enabled")
	}

	return nil
}

// NormalizeMethod returns the parsed normalization method. Call after
// Validate.
func (c *Config) NormalizeMethod() normalize.Method {
	method, err := normalize.ParseMethod(c.Normalize.Method)
	if err != nil {
		return normalize.MethodPercentile
	}
	return method
}

// validateHost rejects hostnames carrying characters outside the
// hostname/IP alphabet. The host is interpolated into a gRPC dial target.
func validateHost(host string) error {
	if host == "" {
		return errors.New("host cannot be empty")
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == ':':
		default:
			return fmt.Errorf("invalid character %q in host %q", r, host)
		}
	}
	return nil
}

// validateHTTPURL rejects non-HTTP schemes and unparseable URLs.
func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// validateStorePath rejects on-disk store paths with parent-directory
// elements. Paths may carry a leading ~ for later home expansion.
func validateStorePath(path string) error {
	if path == "" {
		return nil
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("path %q must not contain parent-directory elements", path)
		}
	}
	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory. Paths
// without the prefix are returned unchanged.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return home + path[1:], nil
	}
	return path, nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
