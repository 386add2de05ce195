// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // conversation context lifetime
}

type AssistantConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	APIKey          string        `yaml:"api_key"`
	APIVersion      string        `yaml:"api_version"` // pinned, never floated
	Model           string        `yaml:"model"`
	Instructions    string        `yaml:"instructions"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
}

type RetryConfig struct {
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxRetries int           `yaml:"max_retries"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type WorkerConfig struct {
	Workers int `yaml:"workers"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Assistant AssistantConfig `yaml:"assistant"`
	Retry     RetryConfig     `yaml:"retry"`
	Web       WebConfig       `yaml:"web"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

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
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.Assistant.APIVersion == "" {
		cfg.Assistant.APIVersion = "2024-05-01-preview"
	}
	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = "gpt-4o"
	}
	if cfg.Assistant.PollInterval <= 0 {
		cfg.Assistant.PollInterval = 5 * time.Second
	}
	if cfg.Assistant.MaxPollAttempts <= 0 {
		cfg.Assistant.MaxPollAttempts = 60
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = 5 * time.Second
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = 5
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 4
	}

	// Minimal validation
	if cfg.Assistant.Endpoint == "" {
		return nil, errors.New("assistant.endpoint is required")
	}
	if cfg.Assistant.APIKey == "" {
		return nil, errors.New("assistant.api_key is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
