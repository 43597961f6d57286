package config

import (
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/medialens/data/index"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "/usr/local/var/medialens/data/db/catalog.db"
	}
	if cfg.Storage.Compression == "" {
		cfg.Storage.Compression = "zstd"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Provider == "onnx" {
		if cfg.Embedding.VisionModelPath == "" {
			cfg.Embedding.VisionModelPath = "/usr/local/var/medialens/data/models/clip-vit-b32-vision.onnx"
		}
		if cfg.Embedding.TextModelPath == "" {
			cfg.Embedding.TextModelPath = "/usr/local/var/medialens/data/models/clip-vit-b32-text.onnx"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.ImageSize == 0 {
		cfg.Embedding.ImageSize = 224
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Media.FrameIntervalSec == 0 {
		cfg.Media.FrameIntervalSec = 10.0
	}
	if cfg.Media.FrameBatchSize == 0 {
		cfg.Media.FrameBatchSize = 16
	}
	if cfg.Media.Workers == 0 {
		cfg.Media.Workers = 2
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

// Validate rejects values ApplyDefaults cannot repair.
func Validate(cfg *Config) error {
	invalid := func(key string, value any) error {
		return lenserr.New(lenserr.CodeConfigValidateInvalid, lenserr.ErrInvalidInput,
			"invalid config value", lenserr.Field("key", key), lenserr.Field("value", value))
	}
	switch cfg.Embedding.Provider {
	case "onnx", "mock":
	default:
		return invalid("embedding.provider", cfg.Embedding.Provider)
	}
	switch cfg.Storage.Compression {
	case "none", "zstd", "lz4":
	default:
		return invalid("storage.compression", cfg.Storage.Compression)
	}
	if cfg.Embedding.Dimensions < 0 {
		return invalid("embedding.dimensions", cfg.Embedding.Dimensions)
	}
	if cfg.Media.FrameIntervalSec < 0 {
		return invalid("media.frame_interval_sec", cfg.Media.FrameIntervalSec)
	}
	if cfg.Media.FrameBatchSize < 0 {
		return invalid("media.frame_batch_size", cfg.Media.FrameBatchSize)
	}
	if cfg.Media.Workers < 0 {
		return invalid("media.workers", cfg.Media.Workers)
	}
	if cfg.Search.MaxLimit < cfg.Search.DefaultLimit {
		return invalid("search.max_limit", cfg.Search.MaxLimit)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return invalid("server.port", cfg.Server.Port)
	}
	return nil
}
