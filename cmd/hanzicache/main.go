// Command hanzicache is the entry point for the hanzicache asset server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hanzicard/hanzicache/internal/assetcache"
	"github.com/hanzicard/hanzicache/internal/config"
	"github.com/hanzicard/hanzicache/internal/health"
	"github.com/hanzicard/hanzicache/internal/observe"
	"github.com/hanzicard/hanzicache/internal/server"
	"github.com/hanzicard/hanzicache/internal/sweeper"
	"github.com/hanzicard/hanzicache/pkg/asset"
	"github.com/hanzicard/hanzicache/pkg/generate"
	"github.com/hanzicard/hanzicache/pkg/generate/gtts"
	"github.com/hanzicard/hanzicache/pkg/generate/strokes"
	"github.com/hanzicard/hanzicache/pkg/tier/blob"
	"github.com/hanzicard/hanzicache/pkg/tier/memory"
	"github.com/hanzicard/hanzicache/pkg/tier/postgres"
)

// shutdownTimeout bounds graceful HTTP shutdown after a stop signal.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	sweepNow := flag.Bool("sweep-now", false, "run one retention sweep pass and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hanzicache: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hanzicache: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hanzicache starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "hanzicache",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Relational fallback tier ──────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		slog.Error("failed to create postgres pool", "err", err)
		return 1
	}
	defer pool.Close()

	pgTier := postgres.New(pool)
	if err := pgTier.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "err", err)
		return 1
	}
	slog.Info("postgres connected", "schema", "migrated")

	// ── Blob tier ─────────────────────────────────────────────────────────────
	blobTier, err := blob.New(cfg.Blob.BaseURL, cfg.Blob.Bucket, cfg.Blob.ServiceKey)
	if err != nil {
		slog.Error("failed to create blob tier", "err", err)
		return 1
	}

	// ── Memory tier ───────────────────────────────────────────────────────────
	memTier := memory.New(cfg.Cache.MemoryCapacity)

	// ── One-shot sweep mode ───────────────────────────────────────────────────
	if *sweepNow {
		sw, err := sweeper.New(pgTier,
			sweeper.WithRetention(cfg.Sweeper.Retention.Std()),
			sweeper.WithCascade(blobTier, memTier),
			sweeper.WithLogger(logger),
			sweeper.WithMetrics(metrics),
		)
		if err != nil {
			slog.Error("failed to create sweeper", "err", err)
			return 1
		}
		if err := sw.Sweep(ctx); err != nil {
			slog.Error("retention sweep failed", "err", err)
			return 1
		}
		slog.Info("retention sweep completed, exiting")
		return 0
	}

	// ── Generators ────────────────────────────────────────────────────────────
	ttsOpts := []gtts.Option{gtts.WithLanguage(cfg.TTS.Language)}
	if cfg.TTS.BaseURL != "" {
		ttsOpts = append(ttsOpts, gtts.WithBaseURL(cfg.TTS.BaseURL))
	}
	strokeGen, err := strokes.New(cfg.Strokes.BaseURL)
	if err != nil {
		slog.Error("failed to create stroke generator", "err", err)
		return 1
	}

	router := generate.NewRouter()
	router.Register(asset.KindAudio, gtts.New(ttsOpts...))
	router.Register(asset.KindStroke, strokeGen)

	// ── Cache manager ─────────────────────────────────────────────────────────
	cache, err := assetcache.New(memTier, blobTier, pgTier, router,
		assetcache.WithBlobTimeout(cfg.Cache.BlobTimeout.Std()),
		assetcache.WithLogger(logger),
		assetcache.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to create cache manager", "err", err)
		return 1
	}

	// ── HTTP routes ───────────────────────────────────────────────────────────
	api, err := server.New(cache, server.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create server", "err", err)
		return 1
	}

	mux := http.NewServeMux()
	api.Register(mux)
	health.New(
		health.Ping("postgres", pgTier),
		health.Ping("blob", blobTier),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(pgTier,
			sweeper.WithInterval(cfg.Sweeper.Interval.Std()),
			sweeper.WithRetention(cfg.Sweeper.Retention.Std()),
			sweeper.WithCascade(blobTier, memTier),
			sweeper.WithLogger(logger),
			sweeper.WithMetrics(metrics),
		)
		if err != nil {
			slog.Error("failed to create sweeper", "err", err)
			return 1
		}
		g.Go(func() error {
			slog.Info("retention sweeper running",
				"interval", cfg.Sweeper.Interval.Std(),
				"retention", cfg.Sweeper.Retention.Std(),
			)
			sw.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
