package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func overrideConfigPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	orig := configPath
	configPath = func() (string, error) { return path, nil }
	t.Cleanup(func() { configPath = orig })
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "VELOQUERY_DB_HOST", "VELOQUERY_DB_PORT",
		"VELOQUERY_DB_NAME", "VELOQUERY_DB_USER", "VELOQUERY_DB_PASSWORD",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "VELOQUERY_LLM_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Database.Port)
	}
	if cfg.Database.Name != "bikeshare" {
		t.Errorf("expected default database bikeshare, got %s", cfg.Database.Name)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.Settings.MaxHistorySize != 100 {
		t.Errorf("expected default history size 100, got %d", cfg.Settings.MaxHistorySize)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db.example.com", Port: 5433, Name: "rides", User: "app", Password: "secret", SSLMode: "require"}
	want := "host=db.example.com port=5433 dbname=rides sslmode=require user=app password=secret"
	if got := d.DSN(); got != want {
		t.Errorf("DSN mismatch:\n got: %s\nwant: %s", got, want)
	}

	d.URL = "postgres://app@db/rides"
	if got := d.DSN(); got != d.URL {
		t.Errorf("URL should win over discrete fields, got %s", got)
	}
}

func TestLLMTimeout(t *testing.T) {
	l := LLMConfig{}
	if l.Timeout() != 10*time.Second {
		t.Errorf("expected 10s default timeout, got %s", l.Timeout())
	}
	l.TimeoutSeconds = 25
	if l.Timeout() != 25*time.Second {
		t.Errorf("expected 25s timeout, got %s", l.Timeout())
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	overrideConfigPath(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Name != "bikeshare" {
		t.Errorf("expected defaults when no file exists, got database %s", cfg.Database.Name)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	clearEnv(t)
	path := overrideConfigPath(t)

	data := []byte("database:\n  host: pg.internal\n  port: 6432\nllm:\n  model: gpt-4o\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "pg.internal" {
		t.Errorf("expected host pg.internal, got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 6432 {
		t.Errorf("expected port 6432, got %d", cfg.Database.Port)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cfg.LLM.Model)
	}
	if cfg.Database.Name != "bikeshare" {
		t.Errorf("unset fields keep defaults, got database %s", cfg.Database.Name)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	overrideConfigPath(t)

	t.Setenv("VELOQUERY_DB_HOST", "env-host")
	t.Setenv("VELOQUERY_DB_PORT", "7777")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "env-host" {
		t.Errorf("expected env host override, got %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 7777 {
		t.Errorf("expected env port override, got %d", cfg.Database.Port)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected env api key, got %s", cfg.LLM.APIKey)
	}
}

func TestHistoryAddTrims(t *testing.T) {
	h := &History{}
	for i := 0; i < 5; i++ {
		h.Add(QueryHistoryEntry{Question: string(rune('a' + i))}, 3)
	}
	if len(h.Entries) != 3 {
		t.Fatalf("expected 3 entries after trim, got %d", len(h.Entries))
	}
	if h.Entries[0].Question != "e" {
		t.Errorf("expected most recent entry first, got %s", h.Entries[0].Question)
	}
}

func TestHistoryLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	orig := historyPath
	historyPath = func() (string, error) { return path, nil }
	t.Cleanup(func() { historyPath = orig })

	h, err := LoadHistory()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(h.Entries))
	}
}
