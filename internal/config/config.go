package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

// OpenAIConfig holds settings shared by the OpenAI-compatible clients.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
	BatchSize int           `yaml:"batch_size"`
	Dimension int           `yaml:"dimension"`
}

// CompletionConfig configures the chat completion endpoint.
type CompletionConfig struct {
	OpenAIConfig `yaml:",inline"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// ChunkerConfig configures the sliding window, in runes.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// StorageConfig selects where the index and chunk artifacts are persisted.
type StorageConfig struct {
	Type  string       `yaml:"type"`
	Dir   string       `yaml:"dir"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

type IngestConfig struct {
	Mode             string `yaml:"mode"`
	SummarySentences int    `yaml:"summary_sentences"`
	PreviewRunes     int    `yaml:"preview_runes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClientConfig is used by the terminal chat client.
type ClientConfig struct {
	ServerURL   string `yaml:"server_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Completion CompletionConfig `yaml:"completion"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Storage    StorageConfig    `yaml:"storage"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Log        LogConfig        `yaml:"log"`
	Client     ClientConfig     `yaml:"client"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/farmcopilot/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker: need 0 <= overlap < chunk_size, got chunk_size=%d overlap=%d", c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		return fmt.Errorf("embedder: unknown type %q", c.Embedder.Type)
	}
	switch c.Storage.Type {
	case "none", "file":
	case "redis":
		if c.Storage.Redis == nil || c.Storage.Redis.Addr == "" {
			return errors.New("storage: redis requires redis.addr")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}
	switch c.Ingest.Mode {
	case "replace", "append":
	default:
		return fmt.Errorf("ingest: unknown mode %q", c.Ingest.Mode)
	}
	return nil
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "farmcopilot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxUploadMB:    20,
		},
		Embedder: EmbedderConfig{Type: "openai"},
		Chunker:  ChunkerConfig{ChunkSize: 1000, Overlap: 200},
		Storage:  StorageConfig{Type: "file", Dir: "data"},
		Ingest:   IngestConfig{Mode: "replace", SummarySentences: 3, PreviewRunes: 200},
		Log:      LogConfig{Level: "info", Format: "text"},
		Client:   ClientConfig{ServerURL: "http://localhost:8000", TimeoutSecs: 120},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIConfig{}
	}
	fillOpenAI(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}
	fillOpenAI(&cfg.Completion.OpenAIConfig, "gpt-4o-mini", 60)
	if cfg.Completion.Temperature == 0 {
		cfg.Completion.Temperature = 0.2
	}
	if cfg.Storage.Type == "file" && cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
	}
	if r := cfg.Storage.Redis; r != nil && r.KeyPrefix == "" {
		r.KeyPrefix = "farmcopilot:"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Ingest.Mode == "" {
		cfg.Ingest.Mode = "replace"
	}
}

func fillOpenAI(c *OpenAIConfig, model string, timeout int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeout
	}
}
