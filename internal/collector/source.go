// Package collector fetches historical price bars from market data providers.
package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"StockSim/internal/model"
)

// Bar intervals understood by every source.
const (
	Interval1m = "1m"
	Interval1d = "1d"
)

// PriceSource returns bars for symbol in [start, end) at the given interval,
// oldest first. An unknown symbol yields no bars rather than an error.
type PriceSource interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.OHLCV, error)
	Name() string
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}
