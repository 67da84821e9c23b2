// Package config provides configuration management for the sous ingredient
// service. Configuration is read from an optional YAML file, environment
// variables referenced inside it are expanded, and a handful of well-known
// variables (GEMINI_API_KEY, PORT, SOUS_LOG_LEVEL) override the result.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPromptTemplate renders the prompt sent to the text-generation provider.
const DefaultPromptTemplate = "List all the ingredients needed to make {{.Recipe}}. Respond with a simple comma-separated list only. No extra text."

// DefaultNotConfiguredMessage is returned to clients when no provider could be initialized.
const DefaultNotConfiguredMessage = "Gemini API not configured"

// Config represents the complete service configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	CORS           CORSConfig           `yaml:"cors"`
	Logging        LoggingConfig        `yaml:"logging"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Queue          QueueConfig          `yaml:"queue"`
	Dedupe         DedupeConfig         `yaml:"dedupe"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 5000, overridden by $PORT)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	// (default: 60s). It does not cancel the generation call; a reply slower than
	// this reaches the client as a dropped connection, so keep it above the
	// slowest expected generation.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// MaxBodyBytes limits the size of request bodies (default: 64KB, 0 disables)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 15s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// StaticDir, when set, serves test.html from this directory instead of
	// the copy embedded in the binary
	StaticDir string `yaml:"static_dir"`
}

// LLMConfig holds the text-generation provider configuration.
type LLMConfig struct {
	// Provider is "gemini" or any provider supported by gollm
	// (e.g. "openai", "anthropic", "ollama")
	Provider string `yaml:"provider" validate:"required"`

	// Model is the model name (default: gemini-1.5-flash)
	Model string `yaml:"model" validate:"required"`

	// APIKey authenticates against the provider. When empty, the provider's
	// environment variable is used (GEMINI_API_KEY for gemini).
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the API endpoint. Only gemini and ollama accept it;
	// Validate rejects it for other providers.
	Endpoint string `yaml:"endpoint"`

	// PromptTemplate is a text/template rendered with {{.Recipe}}
	PromptTemplate string `yaml:"prompt_template" validate:"required"`

	// NotConfiguredMessage is the error shown when the provider is unavailable
	NotConfiguredMessage string `yaml:"not_configured_message"`

	// Options are the generation parameters
	Options GenerationOptions `yaml:"options"`
}

// GenerationOptions holds sampling parameters sent with each generation call.
// Zero values leave the provider default in place.
type GenerationOptions struct {
	Temperature     float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	TopK            int32   `yaml:"top_k" validate:"gte=0"`
	TopP            float32 `yaml:"top_p" validate:"gte=0,lte=1"`
	MaxOutputTokens int32   `yaml:"max_output_tokens" validate:"gte=0"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,required"`
	AllowedMethods []string `yaml:"allowed_methods" validate:"dive,required"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// RateLimitConfig enables per-client rate limiting of the ingredient route.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int  `yaml:"burst" validate:"gte=0"`
}

// CircuitBreakerConfig configures the breaker wrapped around the provider.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through while half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state after which counts are cleared
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// QueueConfig bounds the number of ingredient requests in flight.
type QueueConfig struct {
	Enabled bool  `yaml:"enabled"`
	MaxSize int64 `yaml:"max_size" validate:"gte=0"`
}

// DedupeConfig enables coalescing of concurrent identical prompts.
type DedupeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is supplied.
// Every optional behaviour (rate limiting, breaker, queue, dedupe) is off.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    64 << 10,
			ShutdownTimeout: 15 * time.Second,
		},

		LLM: LLMConfig{
			Provider:             "gemini",
			Model:                "gemini-1.5-flash",
			PromptTemplate:       DefaultPromptTemplate,
			NotConfiguredMessage: DefaultNotConfiguredMessage,
			Options: GenerationOptions{
				Temperature:     0.2,
				TopK:            40,
				TopP:            0.95,
				MaxOutputTokens: 1024,
			},
		},

		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 30,
			Burst:             10,
		},

		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},

		Queue: QueueConfig{
			Enabled: false,
			MaxSize: 100,
		},

		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadFileOrDefault behaves like LoadFile but falls back to the defaults,
// with environment overrides applied, when the file does not exist.
func LoadFileOrDefault(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = DefaultConfig()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars resolves $VAR, ${VAR} and ${VAR:-default} references.
// Unset variables without a default expand to the empty string.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// Decode YAML on top of defaults
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// providerKeyEnv maps providers to the environment variable holding their key.
var providerKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"groq":      "GROQ_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
}

// APIKeyEnv returns the environment variable consulted for the provider's key.
func APIKeyEnv(provider string) string {
	if env, ok := providerKeyEnv[strings.ToLower(provider)]; ok {
		return env
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

// ApplyEnv overrides configuration values from well-known environment variables.
func (c *Config) ApplyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(APIKeyEnv(c.LLM.Provider))
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("SOUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if c.LLM.NotConfiguredMessage == "" {
		c.LLM.NotConfiguredMessage = DefaultNotConfiguredMessage
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := fe.Namespace()
			if i := strings.Index(field, "."); i >= 0 {
				field = field[i+1:]
			}
			return fmt.Errorf("invalid %s: %v (%s)", field, fe.Value(), fe.Tag())
		}
		return err
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.LLM.Endpoint != "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "gemini", "ollama":
		default:
			return fmt.Errorf("llm.endpoint is not supported for provider %s", c.LLM.Provider)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute == 0 {
		return fmt.Errorf("rate limit enabled with zero requests per minute")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold == 0 {
			return fmt.Errorf("circuit breaker enabled with zero failure threshold")
		}
		if c.CircuitBreaker.Timeout < 0 || c.CircuitBreaker.Interval < 0 {
			return fmt.Errorf("negative circuit breaker duration")
		}
	}

	if c.Queue.Enabled && c.Queue.MaxSize == 0 {
		return fmt.Errorf("queue enabled with zero max size")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}

	return nil
}

// MaskSecret shortens a credential for logs, keeping the first and last four characters.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}
