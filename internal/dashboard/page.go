package dashboard

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"StockSim/internal/model"
	"StockSim/internal/syncer"
)

type holdingRow struct {
	Ticker   string
	Quantity int64
	Value    float64
	Priced   bool
}

type watchRow struct {
	Ticker string
	Price  float64
	Priced bool
}

type pageData struct {
	Snapshot model.Snapshot
	Holdings []holdingRow
	Watched  []watchRow
	Steps    []stepButton
	Flash    string
}

type stepButton struct {
	Key   string
	Label string
}

func buildPage(snap model.Snapshot, flash string) pageData {
	p := pageData{Snapshot: snap, Flash: flash}
	for _, h := range snap.Portfolio {
		v, ok := snap.HoldingValue(h)
		p.Holdings = append(p.Holdings, holdingRow{Ticker: h.Ticker, Quantity: h.Quantity, Value: v, Priced: ok})
	}
	for _, t := range snap.WatchedStocks {
		price, ok := snap.PriceMap[t]
		p.Watched = append(p.Watched, watchRow{Ticker: t, Price: price, Priced: ok})
	}
	for _, k := range StepOrder {
		p.Steps = append(p.Steps, stepButton{Key: k, Label: Steps[k].Label})
	}
	return p
}

func (d *Dashboard) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", buildPage(d.core.Snapshot(), c.Query("msg")))
}

// back redirects to the page, optionally carrying a one-off message.
func back(c *gin.Context, msg string) {
	target := "/"
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (d *Dashboard) formRefresh(c *gin.Context) {
	d.core.Refresh(c.Request.Context())
	back(c, "")
}

func (d *Dashboard) formWatch(c *gin.Context) {
	err := d.core.AddWatched(c.Request.Context(), c.PostForm("symbol"))
	switch {
	case errors.Is(err, syncer.ErrAlreadyWatching):
		back(c, msgAlreadyWatching)
	case err != nil:
		back(c, err.Error())
	default:
		back(c, "")
	}
}

func (d *Dashboard) formTrade(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		qty, err := strconv.ParseInt(c.DefaultPostForm("quantity", "1"), 10, 64)
		if err != nil || qty <= 0 {
			back(c, "Quantity must be a positive whole number")
			return
		}
		res, err := d.trade(c.Request.Context(), side, c.PostForm("ticker"), qty)
		switch {
		case err != nil:
			back(c, err.Error())
		case !res.OK():
			back(c, rejectionMessage(side))
		default:
			back(c, "")
		}
	}
}

func (d *Dashboard) formProgress(c *gin.Context) {
	step, ok := Steps[c.PostForm("step")]
	if !ok {
		back(c, "Unknown time step")
		return
	}
	if err := d.core.ProgressTime(c.Request.Context(), step.Offset); err != nil {
		back(c, err.Error())
		return
	}
	back(c, "")
}

func (d *Dashboard) formReset(c *gin.Context) {
	if err := d.core.Reset(c.Request.Context()); err != nil {
		back(c, err.Error())
		return
	}
	back(c, "")
}
