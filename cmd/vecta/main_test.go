package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/config"
	"github.com/hyperjump/vecta/internal/models"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after text are moved first",
			args:     []string{"hello world", "-strategy", "sentence"},
			expected: []string{"-strategy", "sentence", "hello world"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-strategy", "sentence", "hello world"},
			expected: []string{"-strategy", "sentence", "hello world"},
		},
		{
			name:     "text only returns unchanged",
			args:     []string{"hello world"},
			expected: []string{"hello world"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "--output", "json"},
			expected: []string{"--output", "json", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("from file\r\nsecond line"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		args  []string
		file  string
		stdin string
		want  string
	}{
		{"args joined", []string{"hello", "world"}, "", "ignored", "hello world"},
		{"file wins over args", []string{"hello"}, path, "", "from file\nsecond line"},
		{"stdin when no args", nil, "", "piped text", "piped text"},
		{"blank args fall through to stdin", []string{" ", ""}, "", "piped", "piped"},
		{"nothing at all", nil, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(tt.args, tt.file, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("readInput() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := readInput(nil, filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
embedding:
  backend: hash
  default_model: "test/model"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("loadConfig(default) resolved = %q, want %q", resolved, configPath)
	}
	if !cfg.Debug || cfg.Embedding.DefaultModel != "test/model" {
		t.Errorf("loadConfig(default) did not load cwd config: %+v", cfg)
	}
}

func TestLoadConfig_defaultsWhenNoConfigExists(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty", resolved)
	}
	if cfg.Embedding.BatchSize != 8 || cfg.Loader.PollAttempts != 50 {
		t.Errorf("expected built-in defaults, got %+v", cfg)
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.toml")
	content := `
log_level = "debug"

[server]
port = 9090
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved = %q, want %q", resolved, configPath)
	}
	if cfg.Server.Port != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestInitializeComponents_hashBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Backend = config.BackendHash
	cfg.Embedding.Dimensions = 32

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Backend != config.BackendHash {
		t.Errorf("Backend = %q", c.Backend)
	}

	resp := c.Manager.Generate(context.Background(), models.GenerateRequest{Text: "One. Two!", Strategy: "sentence"})
	if resp.Failed() || resp.Result == nil {
		t.Fatalf("Generate failed: %+v", resp)
	}
	if len(resp.Result.Documents) != 2 || len(resp.Result.Embeddings[0]) != 32 {
		t.Errorf("unexpected result: %d documents", len(resp.Result.Documents))
	}
	if _, ok := c.Recorder.Latest(); !ok {
		t.Error("expected progress to reach the recorder")
	}
}

func TestInitializeComponents_onnxWaitsForRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.RuntimeLibrary = filepath.Join(t.TempDir(), "libonnxruntime.so")

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Backend != config.BackendONNX {
		t.Errorf("Backend = %q, want onnx", c.Backend)
	}
	if _, ok := c.Slot.Locate(); ok {
		t.Error("facility installed before the runtime library exists")
	}
}

func TestInitializeComponents_onnxFallsBackToHash(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.RuntimeLibrary = filepath.Join(t.TempDir(), "missing-dir", "libonnxruntime.so")

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Backend != config.BackendHash {
		t.Errorf("Backend = %q, want hash fallback", c.Backend)
	}
	if _, ok := c.Slot.Locate(); !ok {
		t.Error("expected hash facility installed")
	}
}

func TestInitializeComponents_unknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Backend = "tpu"
	if _, err := initializeComponents(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}
