// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	// ClientID is the stable client identifier sent with persistence calls.
	// Generated once by the operator and injected here; when empty the
	// service generates one at startup and logs it.
	ClientID string `yaml:"client_id"`

	Geocoder    Geocoder    `yaml:"geocoder"`
	Persistence Persistence `yaml:"persistence"`
	Search      Search      `yaml:"search"`
}

type Geocoder struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

type Persistence struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type Search struct {
	DebounceMS int `yaml:"debounce_ms"`
	Limit      int `yaml:"limit"`
}

func defaults() Config {
	return Config{
		HTTPAddr: ":8082",
		LogLevel: "info",
		Geocoder: Geocoder{
			TimeoutMS: 5000,
		},
		Persistence: Persistence{
			TimeoutMS: 10000,
		},
		Search: Search{
			DebounceMS: 300,
			Limit:      5,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = 5
	}
	if cfg.Search.DebounceMS <= 0 {
		cfg.Search.DebounceMS = 300
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.ClientID, "CLIENT_ID")
	setString(&cfg.Geocoder.BaseURL, "GEOCODER_URL")
	setString(&cfg.Geocoder.AccessToken, "GEOCODER_TOKEN")
	setInt(&cfg.Geocoder.TimeoutMS, "GEOCODER_TIMEOUT_MS")
	setString(&cfg.Persistence.BaseURL, "PERSISTENCE_URL")
	setInt(&cfg.Persistence.TimeoutMS, "PERSISTENCE_TIMEOUT_MS")
	setInt(&cfg.Search.DebounceMS, "SEARCH_DEBOUNCE_MS")
	setInt(&cfg.Search.Limit, "SEARCH_LIMIT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
