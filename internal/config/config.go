package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// NATS Configuration (empty NatsURL disables the NATS worker)
	NatsURL               string
	Stream                string
	Subject               string
	Durable               string
	MaxMsgs               int
	MaxAge                time.Duration
	AckWait               time.Duration
	MaxDeliver            int
	Concurrency           int
	MonitoringTopic       string
	BackpressureThreshold int

	// HTTP Configuration
	HTTPAddr string

	// Model Configuration
	ModelName     string
	ModelDir      string
	RuntimeURL    string
	RuntimeAPIKey string
	SepToken      string
	MaxNewTokens  int
	// MaxNewTokensSet is false when MaxNewTokens is the built-in default, so
	// the model's generation_config.json may supply its own.
	MaxNewTokensSet bool

	AnswerCacheTTL time.Duration

	// Database Configuration
	DBDriver string
	DBPath   string
	PGConn   string

	// UI Client Configuration
	UIAddr     string
	BackendURL string
}

// Load builds the configuration from the environment. Values from envFile are
// exported first; values from a TOML file (see LoadFile) only fill keys the
// environment leaves unset.
func Load(envFile string) (*Config, error) {
	return LoadWithFile(envFile, "")
}

// LoadWithFile is Load with an additional TOML defaults file.
func LoadWithFile(envFile, tomlFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	file := map[string]string{}
	if tomlFile != "" {
		var err error
		file, err = LoadFile(tomlFile)
		if err != nil {
			return nil, err
		}
		slog.Info("Config file loaded", "file", tomlFile, "keys", len(file))
	}
	src := source{file: file}

	cfg := &Config{
		NatsURL:               src.getEnv("NATS_URL", ""),
		Stream:                src.getEnv("STREAM_NAME", "CHAT"),
		Subject:               src.getEnv("SUBJECT", ""),
		Durable:               src.getEnv("QUEUE_DURABLE", "chat-wq"),
		MaxMsgs:               src.getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:                src.getEnvDuration("QUEUE_MAX_AGE", "30s"),
		AckWait:               src.getEnvDuration("ACK_WAIT", "30s"),
		MaxDeliver:            src.getEnvInt("MAX_DELIVER", 5),
		Concurrency:           src.getEnvInt("WORKER_CONCURRENCY", 2),
		MonitoringTopic:       src.getEnv("MONITORING_TOPIC", "monitoring.backpressure"),
		BackpressureThreshold: src.getEnvInt("BACKPRESSURE_THRESHOLD", 10),
		HTTPAddr:              src.getEnv("HTTP_ADDR", ":8000"),
		ModelName:             src.getEnv("MODEL_NAME", "distilgpt2-finetuned"),
		ModelDir:              src.getEnv("MODEL_DIR", "model/distilgpt2-finetuned"),
		RuntimeURL:            src.getEnv("RUNTIME_URL", "http://127.0.0.1:8080/v1"),
		RuntimeAPIKey:         src.getEnv("RUNTIME_API_KEY", "not-needed"),
		SepToken:              src.getEnv("SEP_TOKEN", "<|sep|>"),
		MaxNewTokens:          src.getEnvInt("MAX_NEW_TOKENS", 50),
		AnswerCacheTTL:        src.getEnvDuration("ANSWER_CACHE_TTL", "10m"),
		DBDriver:              src.getEnv("DB_DRIVER", "sqlite3"),
		DBPath:                src.getEnv("DB_PATH", "data/chat.sqlite"),
		PGConn:                src.getEnv("PG_CONN", "host=localhost port=5432 user=postgres dbname=chat sslmode=disable"),
		UIAddr:                src.getEnv("UI_ADDR", ":7860"),
		BackendURL:            src.getEnv("BACKEND_URL", "http://127.0.0.1:8000"),
	}
	cfg.MaxNewTokensSet = src.isSet("MAX_NEW_TOKENS")
	if cfg.Subject == "" {
		cfg.Subject = "chat.request." + cfg.ModelName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot start with.
func (c *Config) Validate() error {
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("MAX_NEW_TOKENS must be positive, got %d", c.MaxNewTokens)
	}
	if strings.TrimSpace(c.SepToken) == "" {
		return fmt.Errorf("SEP_TOKEN must not be empty")
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return nil
}

// LoadFile reads a flat TOML file whose keys are the environment variable
// names, e.g. MAX_NEW_TOKENS = 50.
func LoadFile(path string) (map[string]string, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("config key %s: unsupported value type %T", k, v)
		}
	}
	return out, nil
}

func loadDotEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"`)
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

type source struct {
	file map[string]string
}

func (s source) getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := s.file[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

func (s source) isSet(key string) bool {
	return s.getEnv(key, "") != ""
}

func (s source) getEnvInt(key string, defaultVal int) int {
	if val := s.getEnv(key, ""); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", val)
	}
	return defaultVal
}

func (s source) getEnvDuration(key, defaultVal string) time.Duration {
	val := s.getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
