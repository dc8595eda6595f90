package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockdash/internal/api"
	"stockdash/internal/config"
	"stockdash/internal/domain"
	"stockdash/internal/errtrack"
	"stockdash/internal/gather"
	"stockdash/internal/gather/alpaca"
	"stockdash/internal/gather/evaluation"
	"stockdash/internal/httpapi"
	"stockdash/internal/metrics"
	"stockdash/internal/pricecache"
	"stockdash/internal/recorder"
	"stockdash/internal/store"
	"stockdash/internal/util"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load config. The default file is optional; an explicit one is not.
	cfgPath := os.Getenv("STOCKDASH_CONFIG")
	if cfgPath == "" {
		if _, err := os.Stat("config/stockdash.yaml"); err == nil {
			cfgPath = "config/stockdash.yaml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(util.LogOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	util.SetDefault(logger)
	metrics.Register()

	tracker, err := errtrack.New(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
	if err != nil {
		logger.Error("sentry disabled", "error", err)
		tracker = errtrack.Noop{}
	}
	defer tracker.Flush(2 * time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, tracker); err != nil {
		logger.Error("stockdash-server failed", "error", err)
		tracker.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracker errtrack.Tracker) error {
	upstream := newUpstream(cfg, logger)

	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	source := gather.NewCachedSource(upstream, cache, logger)

	loc := cfg.Dashboard.Location()
	window := domain.Window(cfg.Dashboard.DefaultWindow)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := api.NewHub(source, api.HubOptions{DefaultWindow: window, Location: loc, Logger: logger})
	go hub.Run(hubCtx)

	var snapshots store.SnapshotStore
	if cfg.Recorder.Enabled {
		db, err := store.NewSQLiteStore(cfg.Recorder.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		snapshots = db

		windows := make([]domain.Window, len(cfg.Recorder.Windows))
		for i, w := range cfg.Recorder.Windows {
			windows[i] = domain.Window(w)
		}
		rec := recorder.New(recorder.Options{
			// Snapshots need fresh data; the dashboard cache never expires.
			Source:    source.Upstream(),
			Snapshots: db,
			Archive:   store.NewParquetStore(cfg.Recorder.ArchiveDir),
			Windows:   windows,
			Notify:    hub,
			Tracker:   tracker,
			Logger:    logger,
		})
		if err := rec.Register(cfg.Recorder.Schedule); err != nil {
			return err
		}
		rec.Start(ctx)
		defer rec.Stop()
		initial := make(chan struct{})
		defer func() { <-initial }()
		go func() {
			defer close(initial)
			if _, err := rec.RunOnce(ctx); err != nil {
				logger.Warn("initial snapshot run failed", "error", err)
			}
		}()
	}

	dash := httpapi.NewDashboardServer(httpapi.Options{
		Source:        source,
		Snapshots:     snapshots,
		WebSocket:     hub,
		Location:      loc,
		DefaultWindow: window,
		Version:       version,
		Logger:        logger,
	})
	corr := api.NewCorrelationService(source, logger)

	grpcAddr := ""
	if cfg.Server.GRPCPort > 0 {
		grpcAddr = cfg.Server.GRPCAddr()
	}
	srv := api.NewServer(cfg.Server.HTTPAddr(), grpcAddr, dash.Handler(), corr, logger)

	logger.Info("stockdash-server starting",
		"version", version,
		"provider", upstream.Name(),
		"http", cfg.Server.HTTPAddr(),
		"grpc", grpcAddr,
		"recorder", cfg.Recorder.Enabled,
	)

	serveErr := srv.ListenAndServe(ctx)
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		tracker.CaptureError(context.Background(), serveErr, map[string]string{"component": "server"})
	} else {
		serveErr = nil
	}
	logger.Info("shutting down stockdash-server")

	stopHub()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return serveErr
}

func newUpstream(cfg *config.Config, logger *slog.Logger) gather.Source {
	if cfg.Upstream.Provider == config.ProviderAlpaca {
		return alpaca.New(alpaca.Options{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            cfg.Alpaca.Feed,
			RateLimitPerMin: cfg.Upstream.RateLimitPerMin,
			Universe:        cfg.Alpaca.Universe,
		}, logger)
	}
	return evaluation.New(evaluation.Options{
		BaseURL:         cfg.Upstream.BaseURL,
		Token:           cfg.Upstream.Token,
		Timeout:         cfg.Upstream.Timeout,
		RateLimitPerMin: cfg.Upstream.RateLimitPerMin,
		Attempts:        cfg.Upstream.Attempts,
		RetryDelay:      cfg.Upstream.RetryDelay,
	}, logger)
}

// newCache returns the in-memory cache, tiered over Redis when configured.
func newCache(ctx context.Context, cfg *config.Config) (pricecache.Cache, func(), error) {
	mem := pricecache.NewMemory()
	if cfg.Cache.RedisAddr == "" {
		return mem, func() {}, nil
	}
	rdb, err := pricecache.NewRedis(ctx, pricecache.RedisOptions{
		Addr:      cfg.Cache.RedisAddr,
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		KeyPrefix: cfg.Cache.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	return pricecache.NewTiered(mem, rdb), func() { rdb.Close() }, nil
}
