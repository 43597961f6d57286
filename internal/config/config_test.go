package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  index_dir: "/var/lib/medialens/index"
embedding:
  provider: mock
media:
  frame_interval_sec: 2.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.IndexDir != "/var/lib/medialens/index" {
		t.Errorf("index_dir = %s", cfg.Storage.IndexDir)
	}
	if cfg.Media.FrameIntervalSec != 2.5 {
		t.Errorf("frame_interval_sec = %v, want 2.5", cfg.Media.FrameIntervalSec)
	}
	if cfg.Embedding.VisionModelPath != "" {
		t.Errorf("mock provider should not get a model path, got %s", cfg.Embedding.VisionModelPath)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  index_dir: "./data/index"
  catalog_path: "./data/db/catalog.db"
watch:
  directories: ["./dev/sample"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "index"); cfg.Storage.IndexDir != want {
		t.Errorf("index_dir = %s, want %s", cfg.Storage.IndexDir, want)
	}
	if want := filepath.Join(dir, "data", "db", "catalog.db"); cfg.Storage.CatalogPath != want {
		t.Errorf("catalog_path = %s, want %s", cfg.Storage.CatalogPath, want)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "dev", "sample"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"provider", "embedding:\n  provider: openai\n"},
		{"compression", "storage:\n  compression: gzip\n"},
		{"limits", "search:\n  default_limit: 50\n  max_limit: 20\n"},
		{"workers", "media:\n  workers: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, lenserr.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if lenserr.CodeOf(err) != lenserr.CodeConfigValidateInvalid {
				t.Errorf("code = %s", lenserr.CodeOf(err))
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("default limits: got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Embedding.Provider != "onnx" || cfg.Embedding.VisionModelPath == "" || cfg.Embedding.TextModelPath == "" {
		t.Errorf("onnx defaults not applied: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Dimensions != 512 || cfg.Embedding.ImageSize != 224 || cfg.Embedding.MaxTokens != 77 {
		t.Errorf("embedding shape defaults: %+v", cfg.Embedding)
	}
	if cfg.Media.FrameIntervalSec != 10.0 || cfg.Media.FrameBatchSize != 16 || cfg.Media.Workers != 2 {
		t.Errorf("media defaults: %+v", cfg.Media)
	}
	if cfg.Storage.Compression != "zstd" {
		t.Errorf("compression: got %s", cfg.Storage.Compression)
	}
	if cfg.Media.ImageExtensions != nil || cfg.Media.VideoExtensions != nil {
		t.Error("extensions stay nil so the media defaults apply")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/media"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{IndexDir: "/tmp/index"},
		Watch:   WatchConfig{Directories: []string{"/tmp/photos"}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.IndexDir != "/tmp/index" {
		t.Errorf("loaded: %+v", loaded)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != "/tmp/photos" {
		t.Errorf("watch directories: %v", loaded.Watch.Directories)
	}
}
