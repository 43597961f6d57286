package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medialens/internal/search"
	"github.com/hyperjump/medialens/internal/server"
	"github.com/hyperjump/medialens/internal/watcher"
	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, watching configured directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return withEngine(cmd, g, func(ctx context.Context, a *app, c *Components) error {
				var watch server.WatchService
				if !noWatch {
					w, err := startWatcher(ctx, a, c.Engine)
					if err != nil {
						return err
					}
					defer w.Stop()
					watch = w
				}

				srv := server.NewServer(c.Engine, a.cfg, a.logger, watch, a.configPath)
				errc := make(chan error, 1)
				go func() { errc <- srv.Start() }()

				select {
				case err := <-errc:
					if !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				case <-ctx.Done():
				}
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Stop(shutdownCtx)
			})
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch directories")
	return cmd
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Register media files as they appear in watched directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return withEngine(cmd, g, func(ctx context.Context, a *app, c *Components) error {
				if len(args) > 0 {
					a.cfg.Watch.Directories = args
				}
				if len(a.cfg.Watch.Directories) == 0 {
					return lenserr.New(lenserr.CodeCLIInputInvalid, lenserr.ErrInvalidInput,
						"no directories to watch (pass them as arguments or set watch.directories)")
				}
				w, err := startWatcher(ctx, a, c.Engine)
				if err != nil {
					return err
				}
				defer w.Stop()
				a.logger.Info("watching", zap.Strings("directories", w.Directories()))
				<-ctx.Done()
				return nil
			})
		},
	}
	return cmd
}

// startWatcher watches the configured directories and registers new or
// rewritten media files that the catalog has not seen with the same size
// and modification time.
func startWatcher(ctx context.Context, a *app, engine *search.Engine) (*watcher.Watcher, error) {
	interval := a.cfg.Watch.IntervalSec
	classifier := engine.Classifier()
	w := watcher.New(
		a.cfg.Watch.Directories,
		func(path string) bool {
			_, ok := classifier.Classify(path)
			return ok
		},
		a.cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			idx, registered, err := engine.RegisterIfChanged(ctx, path, interval)
			switch {
			case err != nil:
				a.logger.Warn("watch register failed", zap.String("path", path), zap.Error(err))
			case registered:
				a.logger.Info("watch registered", zap.String("path", path), zap.Int("index", idx))
			default:
				a.logger.Debug("watch skipped unchanged file", zap.String("path", path), zap.Int("index", idx))
			}
		},
		func(path string) {
			// Entries are never removed individually; the old entry stays searchable.
			a.logger.Info("watched file removed", zap.String("path", path))
		},
		watcher.WithLogger(a.logger),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	w.SyncExistingFiles()
	return w, nil
}
