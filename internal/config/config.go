// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ai-agent-pipeline/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ProviderConfig describes one upstream LLM provider. Models maps the
// generic aliases ("fast", "smart", "code") to this provider's concrete
// model names; missing aliases fall back to DefaultModel.
type ProviderConfig struct {
	Enabled           bool              `yaml:"enabled"`
	APIKey            string            `yaml:"api_key"`
	BaseURL           string            `yaml:"base_url"`
	DefaultModel      string            `yaml:"default_model"`
	RequestsPerMinute int               `yaml:"requests_per_minute"`
	Models            map[string]string `yaml:"models"`
}

type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	PreferredProvider string         `yaml:"preferred_provider"`
	MaxWait           time.Duration  `yaml:"max_wait"` // rate limiter total wait ceiling
	Cache             CacheConfig    `yaml:"cache"`
	Ollama            ProviderConfig `yaml:"ollama"`
	Gemini            ProviderConfig `yaml:"gemini"`
	OpenAI            ProviderConfig `yaml:"openai"`
}

type CheckpointConfig struct {
	Backend         string        `yaml:"backend"` // file | redis
	Dir             string        `yaml:"dir"`
	KeepLast        int           `yaml:"keep_last"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

type EngineConfig struct {
	Mode        string        `yaml:"mode"` // sequential | parallel | mesh
	Workers     int           `yaml:"workers"`
	StepTimeout time.Duration `yaml:"step_timeout"`
	RetryLimit  int           `yaml:"retry_limit"`
}

type Config struct {
	Log         LogConfig                     `yaml:"log"`
	Admin       AdminConfig                   `yaml:"admin"`
	Database    DatabaseConfig                `yaml:"database"`
	Redis       RedisConfig                   `yaml:"redis"`
	AI          AIConfig                      `yaml:"ai"`
	Checkpoints CheckpointConfig              `yaml:"checkpoints"`
	Engine      EngineConfig                  `yaml:"engine"`
	Workflows   map[string][]model.StepSpec   `yaml:"workflows"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads, defaults and minimally validates the YAML snapshot.
// The returned value is treated as immutable after this call.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.MaxWait <= 0 {
		cfg.AI.MaxWait = 30 * time.Second
	}
	if cfg.AI.Cache.Path == "" {
		cfg.AI.Cache.Path = "data/llm_cache.jsonl"
	}
	if cfg.AI.Cache.TTL <= 0 {
		cfg.AI.Cache.TTL = 24 * time.Hour
	}
	if cfg.AI.Ollama.BaseURL == "" {
		cfg.AI.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.AI.Ollama.DefaultModel == "" {
		cfg.AI.Ollama.DefaultModel = "llama3.1:8b"
	}
	if cfg.AI.Gemini.DefaultModel == "" {
		cfg.AI.Gemini.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.AI.OpenAI.DefaultModel == "" {
		cfg.AI.OpenAI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Checkpoints.Backend == "" {
		cfg.Checkpoints.Backend = "file"
	}
	if cfg.Checkpoints.Dir == "" {
		cfg.Checkpoints.Dir = "data/checkpoints"
	}
	if cfg.Checkpoints.KeepLast <= 0 {
		cfg.Checkpoints.KeepLast = 5
	}
	if cfg.Checkpoints.JanitorInterval <= 0 {
		cfg.Checkpoints.JanitorInterval = 10 * time.Minute
	}
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = "sequential"
	}
	if cfg.Engine.Workers <= 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.StepTimeout <= 0 {
		cfg.Engine.StepTimeout = 2 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if !cfg.AI.Ollama.Enabled && !cfg.AI.Gemini.Enabled && !cfg.AI.OpenAI.Enabled {
		return nil, errors.New("no AI provider enabled: set ai.ollama, ai.gemini or ai.openai")
	}
	if cfg.AI.Gemini.Enabled && cfg.AI.Gemini.APIKey == "" {
		return nil, errors.New("ai.gemini.api_key is required when gemini is enabled")
	}
	if cfg.AI.OpenAI.Enabled && cfg.AI.OpenAI.APIKey == "" {
		return nil, errors.New("ai.openai.api_key is required when openai is enabled")
	}
	if cfg.Checkpoints.Backend == "redis" && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required for the redis checkpoint backend")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
