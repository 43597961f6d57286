// Package config provides configuration loading and structs for medialens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Media     MediaConfig     `yaml:"media"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
	// IntervalSec is the frame sampling interval for watched videos; 0 uses media.frame_interval_sec.
	IntervalSec float64 `yaml:"interval_sec"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index artifacts and the registration catalog.
type StorageConfig struct {
	IndexDir    string `yaml:"index_dir"`
	CatalogPath string `yaml:"catalog_path"`
	// Compression of the vector payload: none, zstd or lz4.
	Compression string `yaml:"compression"`
	// Lock takes an exclusive lock on index_dir while the engine is open.
	Lock bool `yaml:"lock"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "onnx" (CLIP via ONNX Runtime) or "mock".
	Provider        string `yaml:"provider"`
	VisionModelPath string `yaml:"vision_model_path"`
	TextModelPath   string `yaml:"text_model_path"`
	VocabPath       string `yaml:"vocab_path"`
	LibraryPath     string `yaml:"library_path"`
	Dimensions      int    `yaml:"dimensions"`
	ImageSize       int    `yaml:"image_size"`
	MaxTokens       int    `yaml:"max_tokens"`
	CacheSize       int    `yaml:"cache_size"`
}

// MediaConfig holds decoding and registration settings.
type MediaConfig struct {
	FrameIntervalSec float64  `yaml:"frame_interval_sec"`
	FrameBatchSize   int      `yaml:"frame_batch_size"`
	Workers          int      `yaml:"workers"`
	FFmpegPath       string   `yaml:"ffmpeg_path"`
	FFprobePath      string   `yaml:"ffprobe_path"`
	ImageExtensions  []string `yaml:"image_extensions"`
	VideoExtensions  []string `yaml:"video_extensions"`
}

// SearchConfig holds result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Embedding.VisionModelPath = expandPath(cfg.Embedding.VisionModelPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
