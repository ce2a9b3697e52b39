package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShlokMathur/planet-s-trajectory/internal/api"
	"github.com/ShlokMathur/planet-s-trajectory/internal/cache"
	"github.com/ShlokMathur/planet-s-trajectory/internal/config"
	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
	"github.com/ShlokMathur/planet-s-trajectory/internal/observability"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
	"github.com/ShlokMathur/planet-s-trajectory/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "orrery:", err)
		os.Exit(1)
	}
}

func run() error {
	boot := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(os.Getenv("ORRERY_CONFIG"), boot)
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	store := elements.NewStore()
	refresher, err := loadElements(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	comp, err := cfg.Computation()
	if err != nil {
		return err
	}
	prop := propagation.NewPropagator(store, cfg.PropConfig(), comp, logger)
	metrics.SetWorkers(cfg.Compute.Workers)
	logger.Info("propagation config",
		"solver", string(comp.Solver),
		"transform", string(comp.Transform),
		"scale", comp.Scale,
		"workers", cfg.Compute.Workers,
		"max_frames", prop.MaxFrames(),
	)

	frames := cache.NewFrameCache(cfg.FrameCacheConfig(), prop, store, logger)
	streamHandler := stream.NewHandler(frames, prop, store, cfg.StreamHandlerConfig(), logger)

	srv := api.NewServer(cfg, api.Deps{
		Store:     store,
		Prop:      prop,
		Frames:    frames,
		Refresher: refresher,
		Stream:    streamHandler,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Start cache background worker.
	g.Go(func() error {
		frames.Start(gctx)
		return nil
	})

	// Update dataset gauges.
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge(age)
				}
				if ds := store.Get(); ds != nil {
					metrics.SetDatasetBodies(ds.BodyCount())
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	if cfg.Elements.Watch {
		watcher, err := elements.NewWatcher(store, cfg.LoadOptions(), logger)
		if err != nil {
			return fmt.Errorf("element watcher: %w", err)
		}
		watcher.OnReload(func(ds *elements.Dataset, err error) {
			metrics.RecordReload(err)
			if err == nil {
				metrics.SetDatasetBodies(ds.BodyCount())
			}
		})
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	if refresher != nil && cfg.Elements.RefreshInterval > 0 {
		g.Go(func() error {
			refreshLoop(gctx, refresher, cfg.Elements.RefreshInterval, logger)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"rate_limit_enabled", cfg.RateLimit.Enabled,
			"element_source", cfg.Elements.SourceURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// loadElements publishes the local tables and, when a remote source is
// configured, the cached then freshly fetched Keplerian table. A malformed
// local table is fatal; remote failures keep the previous snapshot.
func loadElements(ctx context.Context, cfg *config.Config, store *elements.Store, logger *slog.Logger) (*elements.Refresher, error) {
	opts := cfg.LoadOptions()
	ds, err := elements.Load(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("loading element tables: %w", err)
	}
	store.Set(ds)
	metrics.SetDatasetBodies(ds.BodyCount())
	logger.Info("element tables loaded", "source", ds.Source, "bodies", ds.BodyCount(), "velocity", ds.Velocity != nil)

	if cfg.Elements.SourceURL == "" {
		return nil, nil
	}

	format := opts.Format
	if format == "" {
		format = elements.DetectFormat(cfg.Elements.SourceURL)
	}
	fetcher := elements.NewFetcher(cfg.Elements.SourceURL, logger)
	diskCache := elements.NewCache(cfg.Elements.CacheDir, format, cfg.Elements.MaxFiles)
	refresher := elements.NewRefresher(store, fetcher, diskCache, format, opts.Unit, logger)

	if _, err := refresher.LoadCache(); err != nil {
		logger.Info("no element cache found", "error", err)
	}
	if _, err := refresher.Refresh(ctx); err != nil {
		metrics.RecordReload(err)
		logger.Warn("initial element fetch failed, serving previous table", "error", err)
	} else {
		metrics.RecordReload(nil)
	}
	return refresher, nil
}

func refreshLoop(ctx context.Context, refresher *elements.Refresher, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ds, err := refresher.Refresh(ctx)
			metrics.RecordReload(err)
			if err != nil {
				logger.Warn("scheduled element refresh failed", "error", err)
				continue
			}
			metrics.SetDatasetBodies(ds.BodyCount())
		case <-ctx.Done():
			return
		}
	}
}
