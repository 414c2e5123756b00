// Package config loads nexora-track settings.
// Priority: defaults < YAML file < NEXORA_* environment < command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nexora/nexora-analytics/analytics"
)

const (
	DefaultCollectAddr = "127.0.0.1:8123"
	DefaultSiteURL     = "https://shop.example.com/"
	DefaultVisitors    = 5
)

type Config struct {
	APIKey   string           `yaml:"apiKey"`
	Tracker  analytics.Config `yaml:"tracker"`
	Collect  CollectConfig    `yaml:"collect"`
	Simulate SimulateConfig   `yaml:"simulate"`
}

// CollectConfig configures the development collector.
type CollectConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// SimulateConfig configures simulated visitors.
type SimulateConfig struct {
	Visitors  int    `yaml:"visitors"`
	SiteURL   string `yaml:"siteURL"`
	DataDir   string `yaml:"dataDir"` // empty uses the platform app-data dir
	RedisAddr string `yaml:"redisAddr"`
}

func Default() *Config {
	return &Config{
		APIKey:  "dev",
		Tracker: analytics.DefaultConfig(),
		Collect: CollectConfig{Addr: DefaultCollectAddr},
		Simulate: SimulateConfig{
			Visitors: DefaultVisitors,
			SiteURL:  DefaultSiteURL,
		},
	}
}

// Load reads path (optional) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("NEXORA_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("NEXORA_ENDPOINT"); v != "" {
		c.Tracker.APIEndpoint = v
	}
	if v := os.Getenv("NEXORA_COLLECT_ADDR"); v != "" {
		c.Collect.Addr = v
	}
	if v := os.Getenv("NEXORA_REDIS_ADDR"); v != "" {
		c.Simulate.RedisAddr = v
	}
	if v := os.Getenv("NEXORA_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NEXORA_DEBUG %q: %w", v, err)
		}
		c.Tracker.Debug = debug
	}
	return nil
}
