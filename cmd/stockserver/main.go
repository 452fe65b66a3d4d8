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

	"StockSim/internal/collector"
	"StockSim/internal/config"
	"StockSim/internal/logger"
	"StockSim/internal/model"
	"StockSim/internal/server"
	"StockSim/internal/sim"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}))
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	var source collector.PriceSource
	switch cfg.Server.DataSource.Kind {
	case config.SourceREST:
		source = collector.NewRESTSource(cfg.Server.DataSource.BaseURL, cfg.Server.DataSource.APIKey, cfg.Proxy)
	case config.SourceMock:
		source = collector.NewMockSource()
	default:
		source = collector.NewYahooSource(cfg.Proxy)
	}
	log.Info().Str("source", source.Name()).Msg("price source ready")

	start, _ := time.Parse(model.DateLayout, cfg.Server.StartDate)
	engine := sim.NewEngine(source, start, cfg.Server.InitialCash,
		sim.WithLogger(logger.Component("sim")))

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.New(engine, logger.Component("server")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("start", cfg.Server.StartDate).
			Float64("initial_cash", cfg.Server.InitialCash).Msg("simulation server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("simulation server stopped")
}
