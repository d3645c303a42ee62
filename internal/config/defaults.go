package config

const (
	BackendONNX = "onnx"
	BackendHash = "hash"
)

// Default returns a config with every default applied and no file behind it.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = BackendONNX
	}
	if cfg.Embedding.DefaultModel == "" {
		cfg.Embedding.DefaultModel = "Xenova/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.ModelDir == "" {
		cfg.Embedding.ModelDir = "/usr/local/var/vecta/models"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "last_hidden_state"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 8
	}
	if cfg.Embedding.Pooling == "" {
		cfg.Embedding.Pooling = "mean"
	}
	// Normalize defaults to true when unset (nil).
	if cfg.Embedding.Normalize == nil {
		t := true
		cfg.Embedding.Normalize = &t
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Loader.PollAttempts == 0 {
		cfg.Loader.PollAttempts = 50
	}
	if cfg.Loader.PollIntervalMs == 0 {
		cfg.Loader.PollIntervalMs = 100
	}
	if cfg.Chunking.DefaultStrategy == "" {
		cfg.Chunking.DefaultStrategy = "whole"
	}
}
