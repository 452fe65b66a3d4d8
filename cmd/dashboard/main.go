package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"StockSim/internal/config"
	"StockSim/internal/dashboard"
	"StockSim/internal/logger"
	"StockSim/internal/metrics"
	"StockSim/internal/scheduler"
	"StockSim/internal/simapi"
	"StockSim/internal/syncer"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}))
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info().Str("api", cfg.Simulation.BaseURL).Msg("dashboard starting...")

	var rec *metrics.Recorder
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		rec = metrics.New()
		metricsHandler = rec.Handler()
	}

	client := simapi.New(cfg.Simulation.BaseURL, cfg.Simulation.Timeout, cfg.Simulation.Retries,
		simapi.WithLogger(logger.Component("simapi")))
	core := syncer.New(client,
		syncer.WithLogger(logger.Component("syncer")),
		syncer.WithMetrics(rec))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core.Refresh(ctx)
	for _, sym := range cfg.Dashboard.Watch {
		if err := core.AddWatched(ctx, sym); err != nil && !errors.Is(err, syncer.ErrAlreadyWatching) {
			log.Warn().Err(err).Str("symbol", sym).Msg("skip configured watch")
		}
	}

	if cfg.Dashboard.RefreshCron != "" {
		sched := scheduler.NewScheduler(ctx, core, logger.Component("scheduler"))
		if err := sched.Register(cfg.Dashboard.RefreshCron); err != nil {
			log.Fatal().Err(err).Msg("register refresh task")
		}
		sched.Start()
		defer sched.Stop()
	}

	router, err := dashboard.New(core, logger.Component("dashboard"), metricsHandler)
	if err != nil {
		log.Fatal().Err(err).Msg("build dashboard")
	}
	srv := &http.Server{
		Addr:              cfg.Dashboard.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	core.Wait()
	log.Info().Msg("dashboard stopped")
}
