package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		CacheTTL      string `yaml:"cacheTtl"`
		FetchTimeout  string `yaml:"fetchTimeout"`
		RetryAttempts int    `yaml:"retryAttempts"`
		SelfHeal      *bool  `yaml:"selfHeal"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// SelfHeal defaults to on; a group's first viewer repairing the missing
// document is the behavior we want unless explicitly disabled.
func (c Config) SelfHeal() bool {
	if c.Leaderboard.SelfHeal == nil {
		return true
	}
	return *c.Leaderboard.SelfHeal
}
