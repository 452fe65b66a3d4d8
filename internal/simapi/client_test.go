package simapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSim/internal/collector"
	"StockSim/internal/model"
	"StockSim/internal/server"
	"StockSim/internal/sim"
)

func newSimServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	src := &collector.MockSource{Prices: map[string]float64{"AAPL": 100, "MSFT": 200}}
	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	today := func() time.Time { return time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC) }
	engine := sim.NewEngine(src, start, 1000, sim.WithToday(today))
	ts := httptest.NewServer(server.New(engine, zerolog.Nop()))
	t.Cleanup(ts.Close)
	return ts
}

func newClient(url string) *Client {
	return New(url+"/api", time.Second, 3, WithBackoff(time.Millisecond))
}

func TestClient_AgainstSimulationServer(t *testing.T) {
	ctx := context.Background()
	c := newClient(newSimServer(t).URL)

	date, err := c.GetDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2021-03-01 10:00:00", date)

	cash, err := c.GetCash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cash)

	require.NoError(t, c.Buy(ctx, "AAPL", 3))

	holdings, err := c.GetPortfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Holding{{Ticker: "AAPL", Quantity: 3, Date: "2021-03-01 10:00:00"}}, holdings)

	value, err := c.GetPortfolioValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, value)

	price, ok, err := c.GetLatestPrice(ctx, "MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 200.0, price)

	_, ok, err = c.GetLatestPrice(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)

	date, err = c.ProgressTime(ctx, 1, 2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2021-03-02 12:00:00", date)

	history, err := c.GetHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 700.0, history[0].Cash)

	require.NoError(t, c.Reset(ctx))
	cash, err = c.GetCash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, cash)
}

func TestClient_TradeRejection(t *testing.T) {
	ctx := context.Background()
	c := newClient(newSimServer(t).URL)

	err := c.Sell(ctx, "AAPL", 100)
	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Ticker not found in portfolio", rej.Reason)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrTransport)

	err = c.Buy(ctx, "AAPL", 11)
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Not enough cash", rej.Reason)
}

func TestClient_PriceSeries(t *testing.T) {
	ctx := context.Background()
	c := newClient(newSimServer(t).URL)

	s, err := c.GetPriceSeries(ctx, "AAPL", "", "")
	require.NoError(t, err)
	last, ok := s.LastClose()
	require.True(t, ok)
	assert.Equal(t, 100.0, last)
	assert.Equal(t, "AAPL", s.Ticker)

	s, err = c.GetPriceSeries(ctx, "AAPL", "2021-02-01", "2021-03-01")
	require.NoError(t, err)
	assert.Equal(t, 20, s.Len())

	s, err = c.GetPriceSeries(ctx, "AAPL", "", "2021-03-01")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestClient_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "500: Internal server error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"cash":42}`))
	}))
	defer ts.Close()

	cash, err := newClient(ts.URL).GetCash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, cash)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := newClient(ts.URL).Buy(context.Background(), "AAPL", 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_DoesNotRetryOtherStatuses(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newClient(ts.URL).GetDate(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_UnreachableIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newClient(url).GetPortfolio(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_UndecodableTradeReply(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer ts.Close()

	err := newClient(ts.URL).Buy(context.Background(), "AAPL", 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrUnconfirmed)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestClient_ErrorStatusIsNotUnconfirmed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer ts.Close()

	err := newClient(ts.URL).Sell(context.Background(), "AAPL", 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrUnconfirmed)
}
