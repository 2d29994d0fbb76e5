package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/codezen/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DBConfig        `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Review    ReviewConfig    `mapstructure:"review"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Events    EventsConfig    `mapstructure:"events"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener and request payload limits.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxCodeBytes int           `mapstructure:"max_code_bytes"`
	MaxTextBytes int           `mapstructure:"max_text_bytes"`
}

// DBConfig selects the relational store. Driver is "postgres" or "sqlite";
// Path is only used by sqlite.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// AIConfig describes the inference service.
type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	OllamaHost     string        `mapstructure:"ollama_host"`
	GeneratePath   string        `mapstructure:"generate_path"`
	Model          string        `mapstructure:"model"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GenerateURL is the endpoint the Ollama gateway posts prompts to.
func (c AIConfig) GenerateURL() string {
	return strings.TrimRight(c.OllamaHost, "/") + "/" + strings.TrimLeft(c.GeneratePath, "/")
}

// ReviewConfig tunes the background completion workers.
type ReviewConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
	QueueSize  int `mapstructure:"queue_size"`
}

// AuthConfig holds the shared secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RateLimitConfig enables the Redis-backed limiter on inference endpoints.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	Prefix    string        `mapstructure:"prefix"`
}

// EventsConfig points at the RabbitMQ broker. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
	Queue   string `mapstructure:"queue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_code_bytes", 200*1024)
	v.SetDefault("server.max_text_bytes", 8*1024)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "codezen")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "codezen")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "codezen.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.ollama_host", "http://localhost:11434")
	v.SetDefault("ai.generate_path", "/api/generate")
	v.SetDefault("ai.model", "codellama:7b")
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.request_timeout", 3*time.Minute)

	v.SetDefault("review.max_workers", 4)
	v.SetDefault("review.queue_size", 100)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("ratelimit.password", "")
	v.SetDefault("ratelimit.db", 0)
	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.prefix", "codezen:ratelimit")

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.queue", "codezen.events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// LoadConfig reads configuration from config.yaml and environment variables,
// sets defaults, and validates the result. Environment variables use the
// CODEZEN_ prefix with dots replaced by underscores, e.g. CODEZEN_AI_MODEL.
func LoadConfig() (*Config, error) {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	}

	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/codezen")

	v.SetEnvPrefix("CODEZEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database host and name must be set for postgres")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path must be set for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	switch c.AI.Provider {
	case "ollama":
		if c.AI.OllamaHost == "" {
			return fmt.Errorf("ai.ollama_host must be set for the ollama provider")
		}
	case "gemini":
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("ai.gemini_api_key must be set for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model must be set")
	}
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("ai.request_timeout must be positive, got %s", c.AI.RequestTimeout)
	}

	if c.Review.MaxWorkers <= 0 {
		return fmt.Errorf("review.max_workers must be positive, got %d", c.Review.MaxWorkers)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Server.MaxCodeBytes <= 0 || c.Server.MaxTextBytes <= 0 {
		return fmt.Errorf("server payload limits must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("ratelimit limit and window must be positive when enabled")
	}
	return nil
}
