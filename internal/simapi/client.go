// Package simapi is the HTTP client for the remote simulation service.
package simapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"StockSim/internal/model"
)

// ErrTransport marks failures to get a usable answer from the service:
// network errors, non-2xx statuses other than trade rejections, and
// undecodable bodies.
var ErrTransport = errors.New("simulation service unavailable")

// ErrRejected marks a trade the service refused for a business reason.
var ErrRejected = errors.New("trade rejected")

// ErrUnconfirmed marks a trade answered with a 2xx status whose body could
// not be read. The trade may have executed. It also matches ErrTransport.
var ErrUnconfirmed = errors.New("trade outcome unconfirmed")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simulation service returned %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// RejectedError carries the service's reason for refusing a trade.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRejected, e.Reason)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Client talks to the simulation service. Requests answered with HTTP 500
// are retried with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("client", "simapi").Logger() }
}

// WithBackoff sets the delay before the first retry; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for baseURL, e.g. http://localhost:5000/api.
func New(baseURL string, timeout time.Duration, retries int, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		backoff:    250 * time.Millisecond,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) send(ctx context.Context, method, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read %s body: %v", ErrTransport, path, err)
	}
	return resp.StatusCode, body, nil
}

// do issues the request, retrying on HTTP 500, and returns the final
// status and body. Only transport errors are returned as err.
func (c *Client) do(ctx context.Context, method, path string) (int, []byte, error) {
	for attempt := 0; ; attempt++ {
		status, body, err := c.send(ctx, method, path)
		if err != nil || status != http.StatusInternalServerError || attempt >= c.retries {
			return status, body, err
		}
		wait := c.backoff * time.Duration(1<<uint(attempt))
		c.log.Warn().Str("method", method).Str("path", path).
			Int("attempt", attempt+1).Int("max_attempts", c.retries+1).
			Dur("retry_in", wait).Msg("simulation service returned 500, retrying")
		select {
		case <-ctx.Done():
			return 0, nil, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// call requires a 2xx response and returns its body.
func (c *Client) call(ctx context.Context, method, path string) ([]byte, error) {
	status, body, err := c.do(ctx, method, path)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	body, err := c.call(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

func (c *Client) getText(ctx context.Context, method, path string) (string, error) {
	body, err := c.call(ctx, method, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// GetDate returns the simulated clock label.
func (c *Client) GetDate(ctx context.Context) (string, error) {
	return c.getText(ctx, http.MethodGet, "/date")
}

// ProgressTime advances the clock and returns the new label.
func (c *Client) ProgressTime(ctx context.Context, days, hours, minutes, seconds int) (string, error) {
	path := fmt.Sprintf("/date/progress_time/%d/%d/%d/%d", days, hours, minutes, seconds)
	return c.getText(ctx, http.MethodPost, path)
}

// Reset restores the simulation to its starting state.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodDelete, "/reset")
	return err
}

// Buy purchases quantity shares. A refusal is returned as *RejectedError.
func (c *Client) Buy(ctx context.Context, ticker string, quantity int64) error {
	return c.trade(ctx, "buy", ticker, quantity)
}

// Sell disposes of quantity shares. A refusal is returned as *RejectedError.
func (c *Client) Sell(ctx context.Context, ticker string, quantity int64) error {
	return c.trade(ctx, "sell", ticker, quantity)
}

type tradeReply struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

func (c *Client) trade(ctx context.Context, side, ticker string, quantity int64) error {
	path := fmt.Sprintf("/%s/%s/%d", side, url.PathEscape(ticker), quantity)
	status, body, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}

	var reply tradeReply
	decodeErr := json.Unmarshal(bytes.TrimSpace(body), &reply)
	switch {
	case status == http.StatusBadRequest:
		return &RejectedError{Reason: reply.Reason}
	case status < 200 || status > 299:
		return &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	case decodeErr != nil:
		c.log.Warn().Err(decodeErr).Str("side", side).Str("ticker", ticker).Int("status", status).
			Msg("trade accepted with unreadable reply")
		return fmt.Errorf("%w: %w: decode %s reply: %v", ErrTransport, ErrUnconfirmed, side, decodeErr)
	case !reply.Success:
		return &RejectedError{Reason: reply.Reason}
	}
	return nil
}

// GetPriceSeries fetches bars for ticker. start and end are optional date
// labels; an end without a start yields an empty series without a request.
func (c *Client) GetPriceSeries(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error) {
	if start == "" && end != "" {
		return &model.PriceSeries{Ticker: ticker}, nil
	}
	path := "/stocks/" + url.PathEscape(ticker)
	if start != "" {
		path += "/" + url.PathEscape(start)
		if end != "" {
			path += "/" + url.PathEscape(end)
		}
	}
	series := &model.PriceSeries{Ticker: ticker}
	if err := c.getJSON(ctx, path, series); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return series, nil
}

// GetLatestPrice returns the price at the simulated time; ok is false when
// the service has none (unknown ticker or closed market).
func (c *Client) GetLatestPrice(ctx context.Context, ticker string) (price float64, ok bool, err error) {
	var p *float64
	if err := c.getJSON(ctx, "/price/"+url.PathEscape(ticker), &p); err != nil {
		return 0, false, err
	}
	if p == nil {
		return 0, false, nil
	}
	return *p, true, nil
}

// GetPortfolio returns the holdings.
func (c *Client) GetPortfolio(ctx context.Context) ([]model.Holding, error) {
	var holdings []model.Holding
	if err := c.getJSON(ctx, "/portfolio", &holdings); err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}
	return holdings, nil
}

// GetPortfolioValue returns the marked-to-market value of the holdings.
func (c *Client) GetPortfolioValue(ctx context.Context) (float64, error) {
	var reply struct {
		Value float64 `json:"value"`
	}
	if err := c.getJSON(ctx, "/portfolio/value", &reply); err != nil {
		return 0, err
	}
	return reply.Value, nil
}

// GetCash returns the cash balance.
func (c *Client) GetCash(ctx context.Context) (float64, error) {
	var reply struct {
		Cash float64 `json:"cash"`
	}
	if err := c.getJSON(ctx, "/cash", &reply); err != nil {
		return 0, err
	}
	return reply.Cash, nil
}

// GetHistory returns the per-day account records, oldest first.
func (c *Client) GetHistory(ctx context.Context) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	if err := c.getJSON(ctx, "/history", &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	return records, nil
}
