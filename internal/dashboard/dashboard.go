// Package dashboard is the web front end: an HTML page over the current
// snapshot plus a JSON API for the same operations.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"StockSim/internal/middleware"
	"StockSim/internal/model"
	"StockSim/internal/syncer"
)

//go:embed templates/*.html
var templateFS embed.FS

// Core is the synchronizer surface the dashboard drives.
type Core interface {
	Snapshot() model.Snapshot
	Refresh(ctx context.Context)
	BuyStock(ctx context.Context, ticker string, quantity int64) (syncer.TradeResult, error)
	SellStock(ctx context.Context, ticker string, quantity int64) (syncer.TradeResult, error)
	ProgressTime(ctx context.Context, off syncer.Offset) error
	Reset(ctx context.Context) error
	AddWatched(ctx context.Context, symbol string) error
	History(ctx context.Context) ([]model.HistoryRecord, error)
	Series(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error)
}

// User-facing messages.
const (
	msgBuyRejected     = "Could not buy stock. Maybe the market is closed or you don't have enough cash?"
	msgSellRejected    = "Could not sell stock. Maybe the market is closed or you don't have enough shares?"
	msgAlreadyWatching = "Already watching that stock!"
)

// Step is one of the page's time buttons.
type Step struct {
	Label  string
	Offset syncer.Offset
}

// Steps are the clock moves offered on the page.
var Steps = map[string]Step{
	"minute": {"Minute", syncer.Offset{Minutes: 1}},
	"hour":   {"Hour", syncer.Offset{Hours: 1}},
	"day":    {"Day", syncer.Offset{Days: 1}},
	"week":   {"Week", syncer.Offset{Days: 7}},
	"month":  {"Month", syncer.Offset{Days: 30}},
	"year":   {"Year", syncer.Offset{Days: 365}},
}

// StepOrder lists Steps keys in display order.
var StepOrder = []string{"minute", "hour", "day", "week", "month", "year"}

// Dashboard serves the page and API.
type Dashboard struct {
	core Core
}

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"money": money,
		"comma": humanize.Comma,
	}).ParseFS(templateFS, "templates/*.html")
}

// New builds the router. metricsHandler may be nil.
func New(core Core, log zerolog.Logger, metricsHandler http.Handler) (*gin.Engine, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	d := &Dashboard{core: core}

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))
	router.SetHTMLTemplate(tmpl)
	router.NoRoute(middleware.NotFound)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	router.GET("/", d.index)
	router.POST("/refresh", d.formRefresh)
	router.POST("/watch", d.formWatch)
	router.POST("/buy", d.formTrade(syncer.SideBuy))
	router.POST("/sell", d.formTrade(syncer.SideSell))
	router.POST("/progress", d.formProgress)
	router.POST("/reset", d.formReset)

	api := router.Group("/api")
	{
		api.GET("/snapshot", d.apiSnapshot)
		api.POST("/refresh", d.apiRefresh)
		api.POST("/buy", d.apiTrade(syncer.SideBuy))
		api.POST("/sell", d.apiTrade(syncer.SideSell))
		api.POST("/progress", d.apiProgress)
		api.POST("/reset", d.apiReset)
		api.POST("/watch", d.apiWatch)
		api.GET("/history", d.apiHistory)
		api.GET("/stocks/:ticker", d.apiStocks)
	}
	return router, nil
}

func (d *Dashboard) trade(ctx context.Context, side, ticker string, qty int64) (syncer.TradeResult, error) {
	if side == syncer.SideSell {
		return d.core.SellStock(ctx, ticker, qty)
	}
	return d.core.BuyStock(ctx, ticker, qty)
}

func rejectionMessage(side string) string {
	if side == syncer.SideSell {
		return msgSellRejected
	}
	return msgBuyRejected
}
