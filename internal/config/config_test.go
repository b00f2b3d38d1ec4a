package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
	}
	if cfg.SepToken != "<|sep|>" {
		t.Errorf("SepToken = %q", cfg.SepToken)
	}
	if cfg.MaxNewTokens != 50 {
		t.Errorf("MaxNewTokens = %d, want 50", cfg.MaxNewTokens)
	}
	if cfg.Subject != "chat.request.distilgpt2-finetuned" {
		t.Errorf("Subject = %q", cfg.Subject)
	}
	if cfg.MaxNewTokensSet {
		t.Error("MaxNewTokensSet should be false for the built-in default")
	}
	if cfg.NatsURL != "" {
		t.Errorf("NATS should be disabled by default, got %q", cfg.NatsURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_NEW_TOKENS", "12")
	t.Setenv("ANSWER_CACHE_TTL", "1m")
	t.Setenv("MODEL_NAME", "tiny")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxNewTokens != 12 {
		t.Errorf("MaxNewTokens = %d, want 12", cfg.MaxNewTokens)
	}
	if !cfg.MaxNewTokensSet {
		t.Error("MaxNewTokensSet should be true when the environment sets it")
	}
	if cfg.AnswerCacheTTL != time.Minute {
		t.Errorf("AnswerCacheTTL = %v, want 1m", cfg.AnswerCacheTTL)
	}
	if cfg.Subject != "chat.request.tiny" {
		t.Errorf("Subject = %q", cfg.Subject)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "# comment\nSEP_TOKEN=\"<|answer|>\"\n\nHTTP_ADDR=:9999\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("SEP_TOKEN")
		os.Unsetenv("HTTP_ADDR")
	})

	cfg, err := Load(envPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SepToken != "<|answer|>" {
		t.Errorf("SepToken = %q", cfg.SepToken)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestTOMLFileBelowEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.toml")
	content := `
MODEL_DIR = "/srv/models/gpt"
MAX_NEW_TOKENS = 64
BACKEND_URL = "http://backend:8000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BACKEND_URL", "http://override:8000")

	cfg, err := LoadWithFile("", path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ModelDir != "/srv/models/gpt" {
		t.Errorf("ModelDir = %q", cfg.ModelDir)
	}
	if cfg.MaxNewTokens != 64 {
		t.Errorf("MaxNewTokens = %d, want 64", cfg.MaxNewTokens)
	}
	if !cfg.MaxNewTokensSet {
		t.Error("MaxNewTokensSet should be true when the config file sets it")
	}
	if cfg.BackendURL != "http://override:8000" {
		t.Errorf("env should win over file, got %q", cfg.BackendURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_NEW_TOKENS", "0")
	if _, err := Load(""); err == nil {
		t.Error("expected error for zero MAX_NEW_TOKENS")
	}

	t.Setenv("MAX_NEW_TOKENS", "10")
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unsupported DB_DRIVER")
	}
}
