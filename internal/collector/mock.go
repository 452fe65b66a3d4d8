package collector

import (
	"context"
	"time"

	"StockSim/internal/model"
)

// MockSource returns deterministic bars for offline runs and tests.
// Sessions trade on weekdays only: minute bars between 09:30 and 16:00 UTC,
// daily bars stamped at 16:00 UTC. Symbols missing from Prices have no bars.
type MockSource struct {
	Prices map[string]float64
	Drift  float64 // fractional price change per day of year
	Err    error
}

// NewMockSource returns a mock with a few well-known symbols.
func NewMockSource() *MockSource {
	return &MockSource{
		Prices: map[string]float64{
			"AAPL": 125.0,
			"MSFT": 230.0,
			"GOOG": 2050.0,
			"AMZN": 3100.0,
			"TSLA": 690.0,
		},
		Drift: 0.001,
	}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) price(base float64, t time.Time) float64 {
	return base * (1 + m.Drift*float64(t.YearDay()))
}

func (m *MockSource) FetchBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	base, ok := m.Prices[symbol]
	if !ok {
		return nil, nil
	}

	var times []time.Time
	switch interval {
	case Interval1d:
		day := time.Date(start.Year(), start.Month(), start.Day(), 16, 0, 0, 0, time.UTC)
		for ; day.Before(end); day = day.AddDate(0, 0, 1) {
			if !day.Before(start) && isTradingDay(day) {
				times = append(times, day)
			}
		}
	default:
		t := start.UTC().Truncate(time.Minute)
		if t.Before(start) {
			t = t.Add(time.Minute)
		}
		for ; t.Before(end); t = t.Add(time.Minute) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if isTradingDay(t) && inSession(t) {
				times = append(times, t)
			}
		}
	}

	bars := make([]model.OHLCV, len(times))
	for i, t := range times {
		p := m.price(base, t)
		bars[i] = model.OHLCV{
			Time:     t,
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p,
			Volume:   1000000,
		}
	}
	return bars, nil
}

func isTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func inSession(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()
	return mins >= 9*60+30 && mins < 16*60
}
