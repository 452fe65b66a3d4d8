package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockSim/internal/collector"
	"StockSim/internal/middleware"
	"StockSim/internal/model"
	"StockSim/internal/sim"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var start = time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (http.Handler, *collector.MockSource) {
	t.Helper()
	src := &collector.MockSource{Prices: map[string]float64{"AAPL": 100}}
	today := func() time.Time { return time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC) }
	engine := sim.NewEngine(src, start, 1000, sim.WithToday(today))
	return New(engine, zerolog.Nop()), src
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestDateAndProgress(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/date")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2021-03-01 10:00:00", w.Body.String())

	w = do(t, h, http.MethodPost, "/api/date/progress_time/0/1/30")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2021-03-01 11:30:00", w.Body.String())

	w = do(t, h, http.MethodPost, "/api/date/progress_time")
	assert.Equal(t, "2021-03-01 11:30:00", w.Body.String())

	w = do(t, h, http.MethodPost, "/api/date/progress_time/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressRejectsHugeOffset(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/api/date/progress_time/200000")
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_OFFSET", resp.Error.Code)

	w = do(t, h, http.MethodPost, "/api/date/progress_time/0/0/0/9223372036854775807")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/date")
	assert.Equal(t, "2021-03-01 10:00:00", w.Body.String())
	w = do(t, h, http.MethodGet, "/api/history")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestBuyAndSell(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodPost, "/api/buy/AAPL/5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/buy/AAPL/100")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"reason":"Not enough cash"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/sell/AAPL/100")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"reason":"Not enough shares"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/sell/AAPL/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/cash")
	assert.JSONEq(t, `{"cash":500}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/portfolio")
	var holdings []model.Holding
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &holdings))
	assert.Equal(t, []model.Holding{{Ticker: "AAPL", Quantity: 5, Date: "2021-03-01 10:00:00"}}, holdings)

	w = do(t, h, http.MethodGet, "/api/portfolio/value")
	assert.JSONEq(t, `{"value":500}`, w.Body.String())
}

func TestBuySourceFailureIs500(t *testing.T) {
	h, src := newTestHandler(t)
	src.Err = errors.New("provider down")

	w := do(t, h, http.MethodPost, "/api/buy/AAPL/1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "PRICE_SOURCE_ERROR")
}

func TestPrice(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/price/AAPL")
	assert.Equal(t, "100", w.Body.String())

	w = do(t, h, http.MethodGet, "/api/price/NOPE")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}

func TestStocks(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/stocks/AAPL/2021-02-01/2021-03-01")
	require.Equal(t, http.StatusOK, w.Code)
	var s model.PriceSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, 20, s.Len())

	w = do(t, h, http.MethodGet, "/api/stocks/AAPL")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, 390, s.Len())

	w = do(t, h, http.MethodGet, "/api/stocks/AAPL/someday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryAndReset(t *testing.T) {
	h, _ := newTestHandler(t)

	w := do(t, h, http.MethodGet, "/api/history")
	assert.JSONEq(t, `[]`, w.Body.String())

	do(t, h, http.MethodPost, "/api/date/progress_time/1")
	w = do(t, h, http.MethodGet, "/api/history")
	assert.JSONEq(t, `[{"date":"2021-03-01 10:00:00","cash":1000,"portfolio_value":0}]`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/api/reset")
	assert.Equal(t, "Reset", w.Body.String())
	w = do(t, h, http.MethodGet, "/api/date")
	assert.Equal(t, "2021-03-01 10:00:00", w.Body.String())
}

func TestCORSAndNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cash", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodGet, "/api/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}
