package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// PriceSeries holds one ticker's sessions as parallel columns.
// Position i of every column describes the same session.
type PriceSeries struct {
	Ticker   string
	Date     []time.Time
	Open     []float64
	High     []float64
	Low      []float64
	Close    []float64
	AdjClose []float64
	Volume   []float64
}

// NewPriceSeries builds a series from bars, keeping their order.
func NewPriceSeries(ticker string, bars []OHLCV) *PriceSeries {
	s := &PriceSeries{Ticker: ticker}
	for _, b := range bars {
		s.Append(b)
	}
	return s
}

// Append adds one session to the end of every column.
func (s *PriceSeries) Append(b OHLCV) {
	s.Date = append(s.Date, b.Time)
	s.Open = append(s.Open, b.Open)
	s.High = append(s.High, b.High)
	s.Low = append(s.Low, b.Low)
	s.Close = append(s.Close, b.Close)
	s.AdjClose = append(s.AdjClose, b.AdjClose)
	s.Volume = append(s.Volume, b.Volume)
}

// Len returns the number of sessions.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Date)
}

// Validate checks that every column has the same length.
func (s *PriceSeries) Validate() error {
	n := len(s.Date)
	cols := map[string]int{
		"Open":      len(s.Open),
		"High":      len(s.High),
		"Low":       len(s.Low),
		"Close":     len(s.Close),
		"Adj Close": len(s.AdjClose),
		"Volume":    len(s.Volume),
	}
	for name, l := range cols {
		if l != n {
			return fmt.Errorf("series %s: column %s has %d entries, want %d", s.Ticker, name, l, n)
		}
	}
	return nil
}

// LastClose returns the most recent close, or false when the series is empty.
func (s *PriceSeries) LastClose() (float64, bool) {
	if s.Len() == 0 || len(s.Close) == 0 {
		return 0, false
	}
	return s.Close[len(s.Close)-1], true
}

// FirstClose returns the earliest close, or false when the series is empty.
func (s *PriceSeries) FirstClose() (float64, bool) {
	if s.Len() == 0 || len(s.Close) == 0 {
		return 0, false
	}
	return s.Close[0], true
}

// Wire column names, keyed by epoch milliseconds.
const (
	colOpen     = "Open"
	colHigh     = "High"
	colLow      = "Low"
	colClose    = "Close"
	colAdjClose = "Adj Close"
	colVolume   = "Volume"
)

// MarshalJSON encodes the series column-major:
// {"Open":{"<ms>":v,...},"High":{...},...,"Volume":{...}}.
func (s PriceSeries) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := map[string]map[string]float64{
		colOpen: {}, colHigh: {}, colLow: {}, colClose: {}, colAdjClose: {}, colVolume: {},
	}
	for i, d := range s.Date {
		k := strconv.FormatInt(d.UnixMilli(), 10)
		out[colOpen][k] = s.Open[i]
		out[colHigh][k] = s.High[i]
		out[colLow][k] = s.Low[i]
		out[colClose][k] = s.Close[i]
		out[colAdjClose][k] = s.AdjClose[i]
		out[colVolume][k] = s.Volume[i]
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the column-major form. Sessions are ordered by
// timestamp; null cells decode as 0.
func (s *PriceSeries) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode series: %w", err)
	}

	keys := make(map[int64]struct{})
	for _, col := range raw {
		for k := range col {
			ms, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				return fmt.Errorf("decode series: bad timestamp %q: %w", k, err)
			}
			keys[ms] = struct{}{}
		}
	}
	stamps := make([]int64, 0, len(keys))
	for ms := range keys {
		stamps = append(stamps, ms)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	cell := func(col string, ms int64) float64 {
		v := raw[col][strconv.FormatInt(ms, 10)]
		if v == nil {
			return 0
		}
		return *v
	}

	ticker := s.Ticker
	*s = PriceSeries{Ticker: ticker}
	for _, ms := range stamps {
		s.Append(OHLCV{
			Time:     time.UnixMilli(ms).UTC(),
			Open:     cell(colOpen, ms),
			High:     cell(colHigh, ms),
			Low:      cell(colLow, ms),
			Close:    cell(colClose, ms),
			AdjClose: cell(colAdjClose, ms),
			Volume:   cell(colVolume, ms),
		})
	}
	return nil
}
