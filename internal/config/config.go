package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Settings Settings       `yaml:"settings"`
}

// DatabaseConfig describes the bike-share Postgres connection. URL wins
// over the discrete fields when both are set.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// LLMConfig describes the advisory slot-extraction endpoint. An empty
// APIKey disables extraction entirely; the translator then runs on
// keyword heuristics alone.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the bounded extraction timeout.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Settings contains user preferences.
type Settings struct {
	MaxHistorySize  int `yaml:"max_history_size"`
	DefaultRowLimit int `yaml:"default_row_limit"`
}

// DefaultConfig returns a new config with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "bikeshare",
			SSLMode: "prefer",
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 10,
		},
		Settings: Settings{
			MaxHistorySize:  100,
			DefaultRowLimit: 50,
		},
	}
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", d.Host, d.Port, d.Name, d.SSLMode)
	if d.User != "" {
		dsn += " user=" + d.User
	}
	if d.Password != "" {
		dsn += " password=" + d.Password
	}
	return dsn
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "veloquery"), nil
}

// ConfigPath returns the configuration file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// configPath is a variable so tests can redirect the config location.
var configPath = ConfigPath

// Load reads the YAML config file, then applies .env and environment
// overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	// Best effort: a missing .env is the normal case.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("VELOQUERY_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("VELOQUERY_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("VELOQUERY_DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("VELOQUERY_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("VELOQUERY_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("VELOQUERY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
