package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/291e/bogofit-shop-sub001/internal/adapter/repo"
	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/http/handlers"
	"github.com/291e/bogofit-shop-sub001/internal/http/httpapi"
	"github.com/291e/bogofit-shop-sub001/internal/imageproxy"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
	"github.com/291e/bogofit-shop-sub001/internal/infra/geoip"
	"github.com/291e/bogofit-shop-sub001/internal/middleware"
	"github.com/291e/bogofit-shop-sub001/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	app := handlers.NewApp(cfg, logger, runner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	app.Store = fileStore
	app.Archive = storage.NewFittingArchive(fileStore)

	proxy := imageproxy.New(imageproxy.Options{
		AllowedHosts: cfg.ImageProxy.HostAllowlist,
		MaxBytes:     cfg.ImageProxy.MaxBytes,
		RPS:          cfg.ImageProxy.RPS,
		Burst:        cfg.ImageProxy.Burst,
		Logger:       &logger,
	})
	app.Proxy = proxy

	var registry *fitting.Registry
	if cfg.FittingEnabled() {
		registry, err = newRegistry(cfg, &logger, runner, app.Archive)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure fitting")
		}
		app.Runs = registry
	} else {
		logger.Warn().Msg("FITTING_WORKFLOW_URL not set, virtual fitting disabled")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	router := httpapi.NewRouter(app, httpapi.Options{
		CountryLookup: middleware.CountryLookup(resolver.Lookup()),
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Bool("fitting", app.Runs != nil).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		if registry != nil {
			registry.Close()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}

func newRegistry(cfg *infra.Config, logger *infra.Logger, sql infra.SQLExecutor, archive *storage.FittingArchive) (*fitting.Registry, error) {
	cdn, err := fitting.CompileCDNPattern(cfg.Fitting.CDNURLPattern)
	if err != nil {
		return nil, err
	}
	client, err := fitting.NewClient(fitting.ClientOptions{
		WorkflowURL:       cfg.Fitting.WorkflowURL,
		VideoURL:          cfg.Fitting.VideoURL,
		Timeout:           cfg.Fitting.Timeout,
		BackgroundTimeout: cfg.Fitting.BackgroundTimeout,
		VideoTimeout:      cfg.Fitting.VideoTimeout,
		CDNPattern:        cdn,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	return fitting.NewRegistry(fitting.RegistryOptions{
		Invoker:   client,
		ClientID:  cfg.Fitting.ClientID,
		ImageRamp: cfg.Fitting.ImageRamp,
		VideoRamp: cfg.Fitting.VideoRamp,
		TTL:       cfg.Fitting.RunTTL,
		Store:     repo.NewFittingRunRepository(sql),
		Archiver:  archive,
		Logger:    logger,
	})
}
