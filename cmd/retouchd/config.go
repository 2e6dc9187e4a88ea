package main

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// config is the daemon configuration, merged from hardcoded defaults, an
// optional YAML file, and the RETOUCH_API_KEY environment variable.
type config struct {
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Server struct {
		Addr            string        `koanf:"addr"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"server"`

	Store struct {
		Driver string `koanf:"driver"`
		Redis  struct {
			Addr     string `koanf:"addr"`
			Password string `koanf:"password"`
			DB       int    `koanf:"db"`
		} `koanf:"redis"`
		Postgres struct {
			URL string `koanf:"url"`
		} `koanf:"postgres"`
	} `koanf:"store"`

	Engine struct {
		Concurrency       int           `koanf:"concurrency"`
		Queues            []string      `koanf:"queues"`
		PollInterval      time.Duration `koanf:"poll_interval"`
		HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
		StaleJobThreshold time.Duration `koanf:"stale_job_threshold"`
	} `koanf:"engine"`

	Editor struct {
		Endpoint string `koanf:"endpoint"`
		APIKey   string `koanf:"api_key"`
	} `koanf:"editor"`

	Edit struct {
		MaxAttempts      int           `koanf:"max_attempts"`
		BackoffBase      time.Duration `koanf:"backoff_base"`
		SettleDelay      time.Duration `koanf:"settle_delay"`
		PollInterval     time.Duration `koanf:"poll_interval"`
		EstimatedSeconds int           `koanf:"estimated_seconds"`
		MaxRetries       int           `koanf:"max_retries"`
	} `koanf:"edit"`
}

func defaultConfigMap() map[string]interface{} {
	return map[string]interface{}{
		"log.level":  "info",
		"log.format": "text",

		"server.addr":             ":8080",
		"server.shutdown_timeout": 30 * time.Second,

		"store.driver":     "memory",
		"store.redis.addr": "localhost:6379",
		"store.redis.db":   0,

		"engine.concurrency":         4,
		"engine.queues":              []string{"default"},
		"engine.poll_interval":       time.Second,
		"engine.heartbeat_interval":  10 * time.Second,
		"engine.stale_job_threshold": 30 * time.Second,

		"editor.endpoint": "https://api.example.com/v1/edit",

		"edit.max_attempts":      3,
		"edit.backoff_base":      time.Second,
		"edit.settle_delay":      time.Second,
		"edit.poll_interval":     5 * time.Second,
		"edit.estimated_seconds": 30,
		"edit.max_retries":       3,
	}
}

// loadConfig merges defaults, the optional YAML file at path, and the
// environment.
func loadConfig(path string) (config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	var cfg config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("RETOUCH_API_KEY"); key != "" {
		cfg.Editor.APIKey = key
	}
	return cfg, nil
}
