// Package config provides configuration loading and structs for the vecta service.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug" toml:"debug"`
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Loader    LoaderConfig    `yaml:"loader" toml:"loader"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// EmbeddingConfig holds model and inference settings.
type EmbeddingConfig struct {
	// Backend is "onnx" or "hash".
	Backend         string `yaml:"backend" toml:"backend"`
	DefaultModel    string `yaml:"default_model" toml:"default_model"`
	ModelDir        string `yaml:"model_dir" toml:"model_dir"`
	RuntimeLibrary  string `yaml:"runtime_library" toml:"runtime_library"`
	Dimensions      int    `yaml:"dimensions" toml:"dimensions"`
	MaxTokens       int    `yaml:"max_tokens" toml:"max_tokens"`
	OutputName      string `yaml:"output_name" toml:"output_name"`
	BatchSize       int    `yaml:"batch_size" toml:"batch_size"`
	Pooling         string `yaml:"pooling" toml:"pooling"`
	Normalize       *bool  `yaml:"normalize" toml:"normalize"`
	CacheSize       int    `yaml:"cache_size" toml:"cache_size"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" toml:"cache_ttl_minutes"`
}

// NormalizeOrDefault returns whether vectors are L2-normalized; defaults to true when unset.
func (e *EmbeddingConfig) NormalizeOrDefault() bool {
	if e.Normalize != nil {
		return *e.Normalize
	}
	return true
}

// LoaderConfig bounds the wait for the model-loading facility.
type LoaderConfig struct {
	PollAttempts   int `yaml:"poll_attempts" toml:"poll_attempts"`
	PollIntervalMs int `yaml:"poll_interval_ms" toml:"poll_interval_ms"`
}

// ChunkingConfig holds text splitting settings.
type ChunkingConfig struct {
	DefaultStrategy string `yaml:"default_strategy" toml:"default_strategy"`
}

// Addr returns host:port for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Files ending in .toml are parsed as TOML; everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Embedding.ModelDir = expandPath(cfg.Embedding.ModelDir, configDir)
	if cfg.Embedding.RuntimeLibrary != "" {
		cfg.Embedding.RuntimeLibrary = expandPath(cfg.Embedding.RuntimeLibrary, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path, as TOML for .toml files and YAML otherwise.
func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
