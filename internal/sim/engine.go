// Package sim is the paper-trading engine behind the simulation service:
// a simulated clock, a cash balance, a portfolio and a daily history.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"StockSim/internal/collector"
	"StockSim/internal/model"
)

// ErrNoPrice means the source had no session for the ticker at the
// current simulated time.
var ErrNoPrice = errors.New("no price available")

// ErrOffsetRange is returned by ProgressTime for an offset component
// larger than MaxOffsetDays worth of its unit.
var ErrOffsetRange = errors.New("time offset out of range")

// MaxOffsetDays bounds each ProgressTime component, expressed in days.
// Three maxed sub-day components still fit in a time.Duration.
const MaxOffsetDays = 50 * 366

// Rejection is a trade refused for a business reason.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Rejection reasons.
const (
	ReasonTickerNotFound  = "Ticker not found"
	ReasonNotEnoughCash   = "Not enough cash"
	ReasonNotInPortfolio  = "Ticker not found in portfolio"
	ReasonMarketClosed    = "Ticker not found. The market may be closed."
	ReasonNotEnoughShares = "Not enough shares"
	ReasonBadQuantity     = "Quantity must be a positive integer"
)

type position struct {
	ticker   string
	quantity int64
	date     time.Time
}

// Engine holds one simulated account. It is safe for concurrent use;
// trades and clock moves are serialized.
type Engine struct {
	mu          sync.Mutex
	source      collector.PriceSource
	start       time.Time
	initialCash decimal.Decimal

	now       time.Time
	cash      decimal.Decimal
	portfolio []position
	history   []model.HistoryRecord

	// today is the wall clock used to pick a bar interval.
	today func() time.Time
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithToday overrides the wall clock.
func WithToday(fn func() time.Time) Option {
	return func(e *Engine) { e.today = fn }
}

// NewEngine creates an engine starting at start with initialCash.
func NewEngine(source collector.PriceSource, start time.Time, initialCash float64, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		start:       start,
		initialCash: decimal.NewFromFloat(initialCash),
		today:       func() time.Time { return time.Now().UTC() },
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resetLocked()
	return e
}

func (e *Engine) resetLocked() {
	e.now = e.start
	e.cash = e.initialCash
	e.portfolio = nil
	e.history = nil
}

// Reset restores the starting clock and cash and clears portfolio and history.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.log.Info().Time("date", e.now).Msg("simulation reset")
}

// Date returns the simulated time.
func (e *Engine) Date() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Cash returns the cash balance.
func (e *Engine) Cash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash.InexactFloat64()
}

// Portfolio returns the holdings in purchase order, including rows sold down to zero.
func (e *Engine) Portfolio() []model.Holding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Holding, len(e.portfolio))
	for i, p := range e.portfolio {
		out[i] = model.Holding{Ticker: p.ticker, Quantity: p.quantity, Date: p.date.Format(model.DateLayout)}
	}
	return out
}

// History returns one record per simulated day boundary crossed.
func (e *Engine) History() []model.HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.HistoryRecord{}, e.history...)
}

// Interval picks the bar size for [start, end). Minute bars are only
// served for short ranges in the recent past.
func Interval(start, end, today time.Time) string {
	span := end.Sub(start)
	if span < 0 {
		span = -span
	}
	if wholeDays(span) > 7 || end.After(today) || wholeDays(today.Sub(end)) >= 30 {
		return collector.Interval1d
	}
	return collector.Interval1m
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

// Series returns bars for ticker. A nil start means now; a nil end means
// one day after now.
func (e *Engine) Series(ctx context.Context, ticker string, start, end *time.Time) (*model.PriceSeries, error) {
	now := e.Date()
	return e.series(ctx, ticker, now, start, end)
}

func (e *Engine) series(ctx context.Context, ticker string, now time.Time, start, end *time.Time) (*model.PriceSeries, error) {
	from, to := now, now.AddDate(0, 0, 1)
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	interval := Interval(from, to, e.today())
	bars, err := e.source.FetchBars(ctx, strings.ToUpper(ticker), from, to, interval)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars from %s: %w", ticker, e.source.Name(), err)
	}
	return model.NewPriceSeries(ticker, bars), nil
}

// Price returns the first close at or after the simulated time.
func (e *Engine) Price(ctx context.Context, ticker string) (float64, error) {
	return e.priceAt(ctx, ticker, e.Date())
}

func (e *Engine) priceAt(ctx context.Context, ticker string, now time.Time) (float64, error) {
	s, err := e.series(ctx, ticker, now, &now, nil)
	if err != nil {
		return 0, err
	}
	p, ok := s.FirstClose()
	if !ok {
		return 0, ErrNoPrice
	}
	return p, nil
}

// PortfolioValue sums quantity times price. Holdings without a price are skipped.
func (e *Engine) PortfolioValue(ctx context.Context) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolioValueLocked(ctx).InexactFloat64()
}

func (e *Engine) portfolioValueLocked(ctx context.Context) decimal.Decimal {
	total := decimal.Zero
	for _, p := range e.portfolio {
		if p.quantity == 0 {
			continue
		}
		price, err := e.priceAt(ctx, p.ticker, e.now)
		if err != nil {
			if !errors.Is(err, ErrNoPrice) {
				e.log.Warn().Err(err).Str("ticker", p.ticker).Msg("price lookup failed, holding left out of value")
			}
			continue
		}
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(p.quantity)))
	}
	return total
}

func (e *Engine) find(ticker string) int {
	for i, p := range e.portfolio {
		if p.ticker == ticker {
			return i
		}
	}
	return -1
}

// Buy purchases quantity shares at the current price. A *Rejection is
// returned for business refusals; other errors come from the price source.
func (e *Engine) Buy(ctx context.Context, ticker string, quantity int64) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity <= 0 {
		return &Rejection{Reason: ReasonBadQuantity}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.priceAt(ctx, ticker, e.now)
	if errors.Is(err, ErrNoPrice) {
		return &Rejection{Reason: ReasonTickerNotFound}
	}
	if err != nil {
		return err
	}

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(e.cash) {
		return &Rejection{Reason: ReasonNotEnoughCash}
	}
	e.cash = e.cash.Sub(cost)
	if i := e.find(ticker); i >= 0 {
		e.portfolio[i].quantity += quantity
	} else {
		e.portfolio = append(e.portfolio, position{ticker: ticker, quantity: quantity, date: e.now})
	}

	e.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
		Str("cash", e.cash.StringFixed(2)).Msg("bought")
	return nil
}

// Sell disposes of quantity shares at the current price. The row stays in
// the portfolio even when its quantity reaches zero.
func (e *Engine) Sell(ctx context.Context, ticker string, quantity int64) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity <= 0 {
		return &Rejection{Reason: ReasonBadQuantity}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.find(ticker)
	if i < 0 {
		return &Rejection{Reason: ReasonNotInPortfolio}
	}
	price, err := e.priceAt(ctx, ticker, e.now)
	if errors.Is(err, ErrNoPrice) {
		return &Rejection{Reason: ReasonMarketClosed}
	}
	if err != nil {
		return err
	}
	if quantity > e.portfolio[i].quantity {
		return &Rejection{Reason: ReasonNotEnoughShares}
	}

	e.cash = e.cash.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity)))
	e.portfolio[i].quantity -= quantity

	e.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
		Str("cash", e.cash.StringFixed(2)).Msg("sold")
	return nil
}

// CheckOffset reports ErrOffsetRange when any component exceeds
// MaxOffsetDays in its own unit. Negative components are allowed.
func CheckOffset(days, hours, minutes, seconds int) error {
	limits := []struct {
		name  string
		v     int64
		bound int64
	}{
		{"days", int64(days), MaxOffsetDays},
		{"hours", int64(hours), MaxOffsetDays * 24},
		{"minutes", int64(minutes), MaxOffsetDays * 24 * 60},
		{"seconds", int64(seconds), MaxOffsetDays * 24 * 60 * 60},
	}
	for _, l := range limits {
		if l.v > l.bound || l.v < -l.bound {
			return fmt.Errorf("%w: %s=%d exceeds %d", ErrOffsetRange, l.name, l.v, l.bound)
		}
	}
	return nil
}

// ProgressTime advances the clock. Crossing into a new calendar day first
// records the closing state of the day being left.
func (e *Engine) ProgressTime(ctx context.Context, days, hours, minutes, seconds int) (time.Time, error) {
	if err := CheckOffset(days, hours, minutes, seconds); err != nil {
		return e.Date(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.now.AddDate(0, 0, days).Add(time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second)

	if next.Day() != e.now.Day() {
		value := e.portfolioValueLocked(ctx)
		e.history = append(e.history, model.HistoryRecord{
			Date:           e.now.Format(model.DateLayout),
			Cash:           e.cash.InexactFloat64(),
			PortfolioValue: value.InexactFloat64(),
		})
	}
	e.now = next
	e.log.Debug().Time("date", e.now).Msg("clock advanced")
	return e.now, nil
}

// ParseTime accepts the clock layout, a bare date, or RFC 3339.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "%20", " "))
	for _, layout := range []string{model.DateLayout, "2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
