package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig    `json:"basic_config"`
	Storage     StorageConfig  `json:"storage"`
	Provider    ProviderConfig `json:"provider"`
	Journal     JournalConfig  `json:"journal"`
	Redis       RedisConfig    `json:"redis"`
}

type BasicConfig struct {
	ServerAddress         string `json:"server_address"          env:"DOCSUM_SERVER_ADDRESS"`
	LogLevel              string `json:"log_level"               env:"LOG_LEVEL"`
	MaxUploadBytes        int64  `json:"max_upload_bytes"        env:"DOCSUM_MAX_UPLOAD_BYTES"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" env:"DOCSUM_REQUEST_TIMEOUT_SECONDS"`
}

// StorageConfig selects the object store holding uploaded documents.
type StorageConfig struct {
	Backend         string `json:"backend"  env:"DOCSUM_STORAGE_BACKEND"`
	Bucket          string `json:"bucket"   env:"DOCSUM_BUCKET"`
	Region          string `json:"region"   env:"DOCSUM_REGION"`
	Endpoint        string `json:"endpoint" env:"DOCSUM_S3_ENDPOINT"`
	Dir             string `json:"dir"      env:"DOCSUM_STORAGE_DIR"`
	AccessKeyID     string `json:"-"        env:"AWS_ACCESS_KEY"`
	SecretAccessKey string `json:"-"        env:"AWS_SECRET_KEY"`
}

// ProviderConfig describes the chat-completion service used for summaries.
type ProviderConfig struct {
	Name            string `json:"name"       env:"DOCSUM_LLM_PROVIDER"`
	Model           string `json:"model"      env:"DOCSUM_LLM_MODEL"`
	BaseURL         string `json:"base_url"   env:"DOCSUM_LLM_BASE_URL"`
	MaxTokens       int64  `json:"max_tokens" env:"DOCSUM_LLM_MAX_TOKENS"`
	OpenAIAPIKey    string `json:"-"          env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `json:"-"          env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string `json:"-"          env:"GEMINI_API_KEY"`
}

// JournalConfig configures the run journal database.
type JournalConfig struct {
	Driver         string `json:"driver"          env:"DOCSUM_JOURNAL_DRIVER"`
	DSN            string `json:"dsn"             env:"DOCSUM_JOURNAL_DSN"`
	Host           string `json:"host"            env:"DOCSUM_MYSQL_HOST"`
	Port           int    `json:"port"            env:"DOCSUM_MYSQL_PORT"`
	Username       string `json:"username"        env:"DOCSUM_MYSQL_USER"`
	Password       string `json:"-"               env:"DOCSUM_MYSQL_PASSWORD"`
	DBName         string `json:"db_name"         env:"DOCSUM_MYSQL_DB"`
	Params         string `json:"params"          env:"DOCSUM_MYSQL_PARAMS"`
	RetentionHours int    `json:"retention_hours" env:"DOCSUM_JOURNAL_RETENTION_HOURS"`
	PruneSpec      string `json:"prune_spec"      env:"DOCSUM_JOURNAL_PRUNE_SPEC"`
}

// RedisConfig is used when documents are kept in Redis instead of a bucket.
type RedisConfig struct {
	Host      string `json:"host"       env:"DOCSUM_REDIS_HOST"`
	Port      int    `json:"port"       env:"DOCSUM_REDIS_PORT"`
	Username  string `json:"username"   env:"DOCSUM_REDIS_USER"`
	Password  string `json:"-"          env:"DOCSUM_REDIS_PASSWORD"`
	DB        int    `json:"db"         env:"DOCSUM_REDIS_DB"`
	KeyPrefix string `json:"key_prefix" env:"DOCSUM_REDIS_KEY_PREFIX"`
}

const (
	BackendS3     = "s3"
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendRedis  = "redis"

	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"

	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
	DriverNone   = "none"
)

// Default returns the configuration used when neither a file nor the environment
// overrides a value.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:  ":8090",
			LogLevel:       "info",
			MaxUploadBytes: 10 << 20,
		},
		Storage: StorageConfig{
			Backend: BackendS3,
			Bucket:  "doc-summarizer-uploads",
			Region:  "us-west-1",
			Dir:     "./data/uploads",
		},
		Provider: ProviderConfig{
			Name:      ProviderOpenAI,
			MaxTokens: 150,
		},
		Journal: JournalConfig{
			Driver:         DriverSQLite,
			DSN:            "./data/docsummarizer.db",
			Port:           3306,
			Params:         "parseTime=true&charset=utf8mb4",
			RetentionHours: 30 * 24,
			PruneSpec:      "0 * * * *",
		},
		Redis: RedisConfig{
			Host:      "127.0.0.1",
			Port:      6379,
			KeyPrefix: "docsum:object:",
		},
	}
}

// Load reads configuration from the optional JSON file at path and then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}

		file, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", absPath, err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}

		if cfg.Journal.Driver == DriverSQLite && cfg.Journal.DSN != "" && !filepath.IsAbs(cfg.Journal.DSN) {
			cfg.Journal.DSN = filepath.Join(filepath.Dir(absPath), cfg.Journal.DSN)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	if c.Journal.Driver == "sqlite" {
		c.Journal.Driver = DriverSQLite
	}
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	c.Provider.OpenAIAPIKey = strings.TrimSpace(c.Provider.OpenAIAPIKey)
	c.Provider.AnthropicAPIKey = strings.TrimSpace(c.Provider.AnthropicAPIKey)
	c.Provider.GeminiAPIKey = strings.TrimSpace(c.Provider.GeminiAPIKey)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket must be configured"))
		}
		if c.Storage.Region == "" {
			errs = append(errs, errors.New("storage.region must be configured"))
		}
	case BackendFS:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir must be configured"))
		}
	case BackendRedis:
		if c.Redis.Host == "" || c.Redis.Port <= 0 {
			errs = append(errs, errors.New("redis.host and redis.port must be configured"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend: %q", c.Storage.Backend))
	}

	switch c.Provider.Name {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unsupported provider: %q", c.Provider.Name))
	}
	if c.Provider.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("provider.max_tokens must be positive, got %d", c.Provider.MaxTokens))
	}

	switch c.Journal.Driver {
	case DriverSQLite:
		if c.Journal.DSN == "" {
			errs = append(errs, errors.New("journal.dsn must be configured for sqlite3"))
		}
	case DriverMySQL:
		if c.Journal.Host == "" || c.Journal.DBName == "" {
			errs = append(errs, errors.New("journal.host and journal.db_name must be configured for mysql"))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported journal driver: %q", c.Journal.Driver))
	}

	if c.BasicConfig.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.BasicConfig.MaxUploadBytes))
	}
	if c.BasicConfig.RequestTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("request_timeout_seconds cannot be negative, got %d", c.BasicConfig.RequestTimeoutSeconds))
	}

	return errors.Join(errs...)
}

// APIKey returns the credential for the configured provider.
func (p ProviderConfig) APIKey() string {
	switch p.Name {
	case ProviderClaude:
		return p.AnthropicAPIKey
	case ProviderGemini:
		return p.GeminiAPIKey
	default:
		return p.OpenAIAPIKey
	}
}

// RequestTimeout is zero when no per-request deadline is configured.
func (b BasicConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

// Retention is how long journal entries are kept.
func (j JournalConfig) Retention() time.Duration {
	return time.Duration(j.RetentionHours) * time.Hour
}
