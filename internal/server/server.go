// Package server exposes a sim.Engine over the HTTP API the dashboard talks to.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"StockSim/internal/middleware"
	"StockSim/internal/model"
	"StockSim/internal/sim"
)

// Server serves the simulation API under /api.
type Server struct {
	engine *sim.Engine
	log    zerolog.Logger
}

// New builds the HTTP handler: a gin router wrapped in CORS for /api/*.
func New(engine *sim.Engine, log zerolog.Logger) http.Handler {
	s := &Server{engine: engine, log: log}

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))
	router.NoRoute(middleware.NotFound)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/date", s.getDate)
		api.POST("/date/progress_time", s.progressTime)
		api.POST("/date/progress_time/:days", s.progressTime)
		api.POST("/date/progress_time/:days/:hours", s.progressTime)
		api.POST("/date/progress_time/:days/:hours/:minutes", s.progressTime)
		api.POST("/date/progress_time/:days/:hours/:minutes/:seconds", s.progressTime)

		api.POST("/buy/:ticker/:amount", s.buy)
		api.POST("/sell/:ticker/:amount", s.sell)

		api.GET("/stocks/:ticker", s.getStocks)
		api.GET("/stocks/:ticker/:start", s.getStocks)
		api.GET("/stocks/:ticker/:start/:end", s.getStocks)
		api.GET("/price/:ticker", s.getPrice)

		api.GET("/portfolio", s.getPortfolio)
		api.GET("/portfolio/value", s.getPortfolioValue)
		api.GET("/cash", s.getCash)
		api.GET("/history", s.getHistory)

		api.DELETE("/reset", s.reset)
	}

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(router)
}

func (s *Server) getDate(c *gin.Context) {
	c.String(http.StatusOK, s.engine.Date().Format(model.DateLayout))
}

func (s *Server) progressTime(c *gin.Context) {
	var parts [4]int
	for i, name := range []string{"days", "hours", "minutes", "seconds"} {
		raw := c.Param(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_OFFSET", name+" must be an integer")
			return
		}
		parts[i] = n
	}
	now, err := s.engine.ProgressTime(c.Request.Context(), parts[0], parts[1], parts[2], parts[3])
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_OFFSET", err.Error())
		return
	}
	c.String(http.StatusOK, now.Format(model.DateLayout))
}

func (s *Server) reset(c *gin.Context) {
	s.engine.Reset()
	c.String(http.StatusOK, "Reset")
}

type tradeResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) buy(c *gin.Context) {
	s.trade(c, s.engine.Buy)
}

func (s *Server) sell(c *gin.Context) {
	s.trade(c, s.engine.Sell)
}

func (s *Server) trade(c *gin.Context, fn func(context.Context, string, int64) error) {
	ticker := c.Param("ticker")
	qty, err := strconv.ParseInt(c.Param("amount"), 10, 64)
	if err != nil || qty <= 0 {
		c.JSON(http.StatusBadRequest, tradeResponse{Reason: sim.ReasonBadQuantity})
		return
	}

	err = fn(c.Request.Context(), ticker, qty)
	var rej *sim.Rejection
	switch {
	case err == nil:
		c.JSON(http.StatusOK, tradeResponse{Success: true})
	case errors.As(err, &rej):
		s.log.Info().Str("ticker", ticker).Int64("quantity", qty).Str("reason", rej.Reason).Msg("trade rejected")
		c.JSON(http.StatusBadRequest, tradeResponse{Reason: rej.Reason})
	default:
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusInternalServerError, "PRICE_SOURCE_ERROR", err.Error())
	}
}

func (s *Server) getStocks(c *gin.Context) {
	var start, end *time.Time
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &start}, {"end", &end}} {
		raw := c.Param(p.name)
		if raw == "" {
			continue
		}
		t, err := sim.ParseTime(raw)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
			return
		}
		*p.dst = &t
	}

	series, err := s.engine.Series(c.Request.Context(), c.Param("ticker"), start, end)
	if err != nil {
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusInternalServerError, "PRICE_SOURCE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, series)
}

func (s *Server) getPrice(c *gin.Context) {
	price, err := s.engine.Price(c.Request.Context(), c.Param("ticker"))
	switch {
	case errors.Is(err, sim.ErrNoPrice):
		c.JSON(http.StatusOK, nil)
	case err != nil:
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusInternalServerError, "PRICE_SOURCE_ERROR", err.Error())
	default:
		c.JSON(http.StatusOK, price)
	}
}

func (s *Server) getPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Portfolio())
}

func (s *Server) getPortfolioValue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"value": s.engine.PortfolioValue(c.Request.Context())})
}

func (s *Server) getCash(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cash": s.engine.Cash()})
}

func (s *Server) getHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.History())
}
