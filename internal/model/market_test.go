package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceSeries_UnmarshalColumns(t *testing.T) {
	body := `{
		"Open":{"1614765600000":3.0,"1614592800000":1.0},
		"High":{"1614765600000":3.5,"1614592800000":1.5},
		"Low":{"1614765600000":2.5,"1614592800000":0.5},
		"Close":{"1614765600000":3.2,"1614592800000":1.2},
		"Adj Close":{"1614765600000":3.1,"1614592800000":null},
		"Volume":{"1614765600000":300,"1614592800000":100}
	}`

	var s PriceSeries
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	require.NoError(t, s.Validate())
	require.Equal(t, 2, s.Len())

	assert.True(t, s.Date[0].Before(s.Date[1]))
	assert.Equal(t, []float64{1.2, 3.2}, s.Close)
	assert.Equal(t, []float64{0, 3.1}, s.AdjClose)

	last, ok := s.LastClose()
	require.True(t, ok)
	assert.Equal(t, 3.2, last)
	first, ok := s.FirstClose()
	require.True(t, ok)
	assert.Equal(t, 1.2, first)
}

func TestPriceSeries_EmptyHasNoClose(t *testing.T) {
	var s PriceSeries
	require.NoError(t, json.Unmarshal([]byte(`{}`), &s))
	_, ok := s.LastClose()
	assert.False(t, ok)

	var nilSeries *PriceSeries
	assert.Equal(t, 0, nilSeries.Len())
}

func TestPriceSeries_ValidateRejectsRaggedColumns(t *testing.T) {
	s := NewPriceSeries("AAPL", []OHLCV{{Time: time.Unix(0, 0), Close: 1}})
	s.Volume = nil
	assert.Error(t, s.Validate())

	_, err := json.Marshal(s)
	assert.Error(t, err)
}

func TestPriceSeries_MarshalUsesMillisecondKeys(t *testing.T) {
	ts := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewPriceSeries("AAPL", []OHLCV{{Time: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjClose: 1.4, Volume: 10}})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]map[string]float64
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 1.5, raw["Close"]["1614592800000"])
	assert.Equal(t, 1.4, raw["Adj Close"]["1614592800000"])
	assert.Len(t, raw, 6)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := NewSnapshot()
	s.Portfolio = append(s.Portfolio, Holding{Ticker: "AAPL", Quantity: 1})
	s.WatchedStocks = append(s.WatchedStocks, "AAPL")
	s.PriceMap["AAPL"] = 100

	c := s.Clone()
	c.Portfolio[0].Quantity = 5
	c.WatchedStocks[0] = "MSFT"
	c.PriceMap["AAPL"] = 1

	assert.Equal(t, int64(1), s.Portfolio[0].Quantity)
	assert.Equal(t, "AAPL", s.WatchedStocks[0])
	assert.Equal(t, 100.0, s.PriceMap["AAPL"])
	assert.True(t, s.IsWatched("AAPL"))

	v, ok := s.HoldingValue(s.Portfolio[0])
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)
}
