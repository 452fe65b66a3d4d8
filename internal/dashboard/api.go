package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"StockSim/internal/middleware"
	"StockSim/internal/model"
	"StockSim/internal/syncer"
)

type tradeRequest struct {
	Ticker   string `json:"ticker" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

type watchRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

type tradeResponse struct {
	Result   syncer.TradeResult `json:"result"`
	Message  string             `json:"message,omitempty"`
	Snapshot model.Snapshot     `json:"snapshot"`
}

func (d *Dashboard) apiSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, d.core.Snapshot())
}

func (d *Dashboard) apiRefresh(c *gin.Context) {
	d.core.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, d.core.Snapshot())
}

func (d *Dashboard) apiTrade(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		res, err := d.trade(c.Request.Context(), side, req.Ticker, req.Quantity)
		if err != nil {
			_ = c.Error(err)
			middleware.AbortWithError(c, http.StatusBadGateway, "SIMULATION_UNAVAILABLE", err.Error())
			return
		}
		status := http.StatusOK
		out := tradeResponse{Result: res, Snapshot: d.core.Snapshot()}
		if !res.OK() {
			status = http.StatusUnprocessableEntity
			out.Message = rejectionMessage(side)
		}
		c.JSON(status, out)
	}
}

func (d *Dashboard) apiProgress(c *gin.Context) {
	var off syncer.Offset
	if err := c.ShouldBindJSON(&off); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	err := d.core.ProgressTime(c.Request.Context(), off)
	switch {
	case errors.Is(err, syncer.ErrNegativeOffset):
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_OFFSET", err.Error())
	case err != nil:
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusBadGateway, "SIMULATION_UNAVAILABLE", err.Error())
	default:
		c.JSON(http.StatusOK, d.core.Snapshot())
	}
}

func (d *Dashboard) apiReset(c *gin.Context) {
	if err := d.core.Reset(c.Request.Context()); err != nil {
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusBadGateway, "SIMULATION_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, d.core.Snapshot())
}

func (d *Dashboard) apiWatch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	err := d.core.AddWatched(c.Request.Context(), req.Symbol)
	switch {
	case errors.Is(err, syncer.ErrAlreadyWatching):
		middleware.AbortWithError(c, http.StatusConflict, "ALREADY_WATCHING", msgAlreadyWatching)
	case errors.Is(err, syncer.ErrEmptySymbol):
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_SYMBOL", err.Error())
	case err != nil:
		middleware.AbortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	default:
		c.JSON(http.StatusAccepted, d.core.Snapshot())
	}
}

func (d *Dashboard) apiHistory(c *gin.Context) {
	records, err := d.core.History(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusBadGateway, "SIMULATION_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, records)
}

func (d *Dashboard) apiStocks(c *gin.Context) {
	series, err := d.core.Series(c.Request.Context(), c.Param("ticker"), c.Query("start"), c.Query("end"))
	if err != nil {
		_ = c.Error(err)
		middleware.AbortWithError(c, http.StatusBadGateway, "SIMULATION_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, series)
}
