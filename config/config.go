package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig configures the completion/embedding provider.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig configures the document index and ranking stage.
type RetrievalConfig struct {
	IndexPath string `mapstructure:"index_path"`
	TopK      int    `mapstructure:"top_k"`
	Ranker    string `mapstructure:"ranker"` // heuristic or embedding
}

func (r RetrievalConfig) Validate() error {
	switch r.Ranker {
	case "", "heuristic", "embedding":
		return nil
	}
	return fmt.Errorf("retrieval.ranker must be heuristic or embedding, got %q", r.Ranker)
}

// TrackingConfig configures workflow trace storage backends. Any
// combination may be enabled; sealed traces fan out to all of them.
type TrackingConfig struct {
	Memory   MemoryBackendConfig   `mapstructure:"memory"`
	File     FileBackendConfig     `mapstructure:"file"`
	Redis    RedisBackendConfig    `mapstructure:"redis"`
	Postgres PostgresBackendConfig `mapstructure:"postgres"`
}

type MemoryBackendConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Capacity int  `mapstructure:"capacity"`
}

type FileBackendConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Directory     string        `mapstructure:"directory"`
	PruneSchedule string        `mapstructure:"prune_schedule"` // cron expression, empty disables pruning
	MaxAge        time.Duration `mapstructure:"max_age"`
}

type RedisBackendConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	MaxRecent int           `mapstructure:"max_recent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (r RedisBackendConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

type PostgresBackendConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a connection string from the URL or the discrete fields.
func (p PostgresBackendConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (tracking.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

func (c *Config) Validate() error {
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if c.Tracking.File.Enabled && c.Tracking.File.PruneSchedule != "" && c.Tracking.File.MaxAge <= 0 {
		return fmt.Errorf("tracking.file.max_age must be set when a prune schedule is configured")
	}
	return nil
}

// LoadConfig reads configuration from the given file, or from config.yaml
// in the usual locations when path is empty. Environment variables with the
// ROOTCAUSE_ prefix override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.completion_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.ranker", "heuristic")
	v.SetDefault("tracking.memory.enabled", true)
	v.SetDefault("tracking.memory.capacity", 100)
	v.SetDefault("tracking.file.enabled", true)
	v.SetDefault("tracking.file.directory", "traces")
	v.SetDefault("tracking.redis.ttl", "168h")
	v.SetDefault("tracking.redis.max_recent", 1000)
	v.SetDefault("tracking.redis.timeout", "5s")

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ROOTCAUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine: defaults plus env cover the common case
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
