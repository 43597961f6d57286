// Package main is the medialens CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/config"
	"github.com/hyperjump/medialens/internal/embedding"
	"github.com/hyperjump/medialens/internal/media"
	"github.com/hyperjump/medialens/internal/persistence"
	"github.com/hyperjump/medialens/internal/search"
	"github.com/hyperjump/medialens/internal/storage"
	"github.com/hyperjump/medialens/internal/vector"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
	"github.com/hyperjump/medialens/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/medialens/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "medialens",
		Short:         "Search images and videos by text, example image or example video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRegisterCmd(g),
		newSearchCmd(g),
		newListCmd(g),
		newInfoCmd(g),
		newClearCmd(g),
		newExportCmd(g),
		newProbeCmd(g),
		newServeCmd(g),
		newWatchCmd(g),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads config from path. When path is the default, ./config.yaml
// is preferred if it exists; when neither exists the built-in defaults are
// used. Returns the config and the path it came from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", config.Validate(cfg)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app bundles the config, logger and lazily built components for one command.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	debug      bool
}

func newApp(g *globalFlags) (*app, error) {
	cfg, resolved, err := loadConfig(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || g.debug
	logger, err := newLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return &app{cfg: cfg, configPath: resolved, logger: logger, debug: debug}, nil
}

// newLogger logs only warnings and above for interactive commands unless debug is set.
func newLogger(debug bool) (*zap.Logger, error) {
	return utils.NewLogger(debug, "warn")
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// Components holds everything built from the config.
type Components struct {
	Engine   *search.Engine
	Embedder embedding.Embedder
	Sampler  *media.FFmpegSampler
	Catalog  storage.Catalog
}

// Close releases components in reverse order of construction.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func newSampler(cfg *config.Config, logger *zap.Logger) *media.FFmpegSampler {
	return media.NewFFmpegSampler(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, logger)
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var e embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		e = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case "onnx":
		onnx, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
			VisionModelPath: cfg.Embedding.VisionModelPath,
			TextModelPath:   cfg.Embedding.TextModelPath,
			VocabPath:       cfg.Embedding.VocabPath,
			LibraryPath:     cfg.Embedding.LibraryPath,
			Dimensions:      cfg.Embedding.Dimensions,
			ImageSize:       cfg.Embedding.ImageSize,
			MaxTokens:       cfg.Embedding.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load CLIP model: %w", err)
		}
		e = onnx
	default:
		return nil, lenserr.New(lenserr.CodeConfigValidateInvalid, lenserr.ErrInvalidInput,
			"unknown embedding provider", lenserr.Field("provider", cfg.Embedding.Provider))
	}
	return embedding.WithTextCache(e, cfg.Embedding.CacheSize), nil
}

func (a *app) components(ctx context.Context) (*Components, error) {
	cfg := a.cfg
	compression, err := vector.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	c := &Components{Sampler: newSampler(cfg, a.logger)}

	c.Embedder, err = newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.CatalogPath != "" {
		catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Catalog = catalog
	}

	opts := []search.Option{
		search.WithLogger(a.logger),
		search.WithManager(persistence.NewManager(
			persistence.WithCompression(compression),
			persistence.WithLogger(a.logger),
		)),
	}
	if c.Catalog != nil {
		opts = append(opts, search.WithCatalog(c.Catalog))
	}
	c.Engine, err = search.Open(ctx, search.Options{
		IndexDir:        cfg.Storage.IndexDir,
		FrameInterval:   cfg.Media.FrameIntervalSec,
		FrameBatchSize:  cfg.Media.FrameBatchSize,
		Workers:         cfg.Media.Workers,
		Lock:            cfg.Storage.Lock,
		ImageExtensions: cfg.Media.ImageExtensions,
		VideoExtensions: cfg.Media.VideoExtensions,
	}, c.Embedder, c.Sampler, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// withEngine loads the config, builds the components and runs fn.
func withEngine(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, a *app, c *Components) error) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := a.components(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, a, c)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medialens version %s\n", version)
		},
	}
}
