// Package config loads concierge configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (BOOKING_API_TOKEN, LLM_API_KEY, PORT, etc.),
//    with a .env file loaded first if present
// 2. Config file path specified via --config flag
// 3. ~/.config/concierge/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig selects and credentials the extraction model. An empty APIKey
// switches extraction to the built-in heuristics.
type LLMConfig struct {
	// Provider: "openai" | "anthropic". Empty with an API key set defaults
	// to openai.
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// BookingConfig points at the restaurant booking API.
type BookingConfig struct {
	APIURL     string `yaml:"api_url"`
	Token      string `yaml:"token"`
	Restaurant string `yaml:"restaurant"`
}

// Duration wraps time.Duration so "30m" style values decode from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// SessionConfig bounds the session store.
type SessionConfig struct {
	MaxSessions int      `yaml:"max_sessions"`
	Timeout     Duration `yaml:"timeout"`
}

// RedisConfig enables the optional session mirror. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// Config is the complete configuration for concierge.
type Config struct {
	Port    int           `yaml:"port"`
	LLM     LLMConfig     `yaml:"llm"`
	Booking BookingConfig `yaml:"booking"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConfig   `yaml:"redis"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port: 8000,
		Booking: BookingConfig{
			APIURL:     "http://localhost:8547",
			Restaurant: "TheHungryUnicorn",
		},
		Session: SessionConfig{
			MaxSessions: 100,
			Timeout:     Duration(30 * time.Minute),
		},
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	// Local .env files feed the overrides below; absence is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "concierge", "config.yaml")
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Booking.APIURL == "" {
		return fmt.Errorf("booking.api_url is required (or set BOOKING_API_URL)")
	}
	if c.Booking.Token == "" {
		return fmt.Errorf("booking.token is required (or set BOOKING_API_TOKEN)")
	}
	if c.Booking.Restaurant == "" {
		return fmt.Errorf("booking.restaurant is required (or set RESTAURANT_NAME)")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.LLM.APIKey != "" && c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	switch c.LLM.Provider {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("BOOKING_API_URL"); v != "" {
		cfg.Booking.APIURL = v
	}
	if v := os.Getenv("BOOKING_API_TOKEN"); v != "" {
		cfg.Booking.Token = v
	}
	if v := os.Getenv("RESTAURANT_NAME"); v != "" {
		cfg.Booking.Restaurant = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxSessions = n
		}
	}
	if v := os.Getenv("SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.Timeout = Duration(d)
		}
	}
}
