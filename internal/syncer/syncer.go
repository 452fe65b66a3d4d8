// Package syncer keeps a local Snapshot of the remote simulation in step
// with the service: it refreshes all fields after every mutation and
// merges per-ticker prices for held and watched stocks.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"StockSim/internal/metrics"
	"StockSim/internal/model"
	"StockSim/internal/simapi"
)

var (
	// ErrAlreadyWatching is returned by AddWatched for a duplicate symbol.
	ErrAlreadyWatching = errors.New("already watching that stock")
	// ErrEmptySymbol is returned by AddWatched for a blank symbol.
	ErrEmptySymbol = errors.New("symbol is empty")
	// ErrNegativeOffset is returned by ProgressTime before any remote call.
	ErrNegativeOffset = errors.New("time offset must not be negative")
	// ErrTransport wraps every mutation failure that is not a rejection.
	ErrTransport = simapi.ErrTransport

	errNoPrice = errors.New("series has no sessions")
)

// Remote is the simulation service as seen by the synchronizer.
// Buy and Sell report business refusals as *simapi.RejectedError.
type Remote interface {
	GetCash(ctx context.Context) (float64, error)
	GetDate(ctx context.Context) (string, error)
	GetPortfolio(ctx context.Context) ([]model.Holding, error)
	GetPortfolioValue(ctx context.Context) (float64, error)
	GetPriceSeries(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error)
	GetLatestPrice(ctx context.Context, ticker string) (float64, bool, error)
	GetHistory(ctx context.Context) ([]model.HistoryRecord, error)
	Buy(ctx context.Context, ticker string, quantity int64) error
	Sell(ctx context.Context, ticker string, quantity int64) error
	ProgressTime(ctx context.Context, days, hours, minutes, seconds int) (string, error)
	Reset(ctx context.Context) error
}

// Synchronizer owns the Snapshot. It is the only writer; readers get copies.
type Synchronizer struct {
	remote  Remote
	log     zerolog.Logger
	metrics *metrics.Recorder

	mu       sync.RWMutex
	snap     model.Snapshot
	inflight int

	enrich sync.WaitGroup
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithMetrics records refresh and trade activity on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Synchronizer) { s.metrics = r }
}

// New returns a Synchronizer with an empty snapshot.
func New(remote Remote, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		remote: remote,
		log:    zerolog.Nop(),
		snap:   model.NewSnapshot(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Synchronizer) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Wait blocks until every pending watch-list price fetch has finished.
func (s *Synchronizer) Wait() {
	s.enrich.Wait()
}

func (s *Synchronizer) beginLoading() {
	s.mu.Lock()
	s.inflight++
	s.snap.Loading = true
	s.mu.Unlock()
}

func (s *Synchronizer) endLoading() {
	s.mu.Lock()
	s.inflight--
	s.snap.Loading = s.inflight > 0
	s.mu.Unlock()
}

// failures collects FieldFailures from concurrent fetches.
type failures struct {
	mu   sync.Mutex
	list []model.FieldFailure
}

func (f *failures) add(field, ticker string, err error) {
	f.mu.Lock()
	f.list = append(f.list, model.FieldFailure{Field: field, Ticker: ticker, Error: err.Error()})
	f.mu.Unlock()
}

// Refresh re-reads every field from the service. Each base read falls back
// to its zero value on failure; when the portfolio is non-empty, prices for
// held and previously watched tickers are fetched concurrently. Refresh
// returns once every fetch has finished.
func (s *Synchronizer) Refresh(ctx context.Context) {
	started := time.Now()
	s.beginLoading()
	defer s.endLoading()

	s.mu.RLock()
	watchedBefore := append([]string{}, s.snap.WatchedStocks...)
	s.mu.RUnlock()

	var fails failures
	degrade := func(field string, err error) {
		s.log.Warn().Err(err).Str("field", field).Msg("read failed, using default")
		s.metrics.FieldFailure(field)
		fails.add(field, "", err)
	}

	cash, err := s.remote.GetCash(ctx)
	if err != nil {
		degrade(model.FieldCash, err)
		cash = 0
	}
	date, err := s.remote.GetDate(ctx)
	if err != nil {
		degrade(model.FieldDate, err)
		date = ""
	}
	portfolio, err := s.remote.GetPortfolio(ctx)
	if err != nil || portfolio == nil {
		if err != nil {
			degrade(model.FieldPortfolio, err)
		}
		portfolio = []model.Holding{}
	}
	value, err := s.remote.GetPortfolioValue(ctx)
	if err != nil {
		degrade(model.FieldPortfolioValue, err)
		value = 0
	}

	s.mu.Lock()
	s.snap.Cash = cash
	s.snap.Date = date
	s.snap.Portfolio = portfolio
	s.snap.PortfolioValue = value
	s.mu.Unlock()

	fetched := map[string]bool{}
	if len(portfolio) > 0 {
		tickers := make([]string, 0, len(portfolio)+len(watchedBefore))
		for _, h := range portfolio {
			tickers = append(tickers, h.Ticker)
		}
		tickers = dedupe(append(tickers, watchedBefore...))

		var wg sync.WaitGroup
		for _, t := range tickers {
			fetched[t] = true
			wg.Add(1)
			go func(ticker string) {
				defer wg.Done()
				if err := s.updatePrice(ctx, ticker); err != nil {
					fails.add(model.FieldPrice, ticker, err)
				}
			}(t)
		}
		wg.Wait()
	}

	s.mu.Lock()
	s.snap.Failures = append(s.stalePriceFailures(fetched), fails.list...)
	s.mu.Unlock()

	s.metrics.ObserveRefresh(time.Since(started))
	s.log.Debug().Int("failures", len(fails.list)).Dur("took", time.Since(started)).Msg("refresh done")
}

// stalePriceFailures returns the recorded price failures this refresh did
// not retry and that still apply: the ticker is watched and unpriced.
// Callers hold s.mu.
func (s *Synchronizer) stalePriceFailures(fetched map[string]bool) []model.FieldFailure {
	var out []model.FieldFailure
	for _, f := range s.snap.Failures {
		if f.Field != model.FieldPrice || fetched[f.Ticker] || !s.snap.IsWatched(f.Ticker) {
			continue
		}
		if _, priced := s.snap.PriceMap[f.Ticker]; priced {
			continue
		}
		out = append(out, f)
	}
	return out
}

// updatePrice fetches ticker's default series and records its last close.
func (s *Synchronizer) updatePrice(ctx context.Context, ticker string) error {
	series, err := s.remote.GetPriceSeries(ctx, ticker, "", "")
	if err == nil && series != nil {
		price, ok := series.LastClose()
		if ok {
			s.setPrice(ticker, price)
			return nil
		}
	}
	if err == nil {
		err = errNoPrice
	}
	s.log.Warn().Err(err).Str("ticker", ticker).Msg("price fetch failed")
	s.metrics.PriceFetchFailure()
	return err
}

func (s *Synchronizer) setPrice(ticker string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.PriceMap[ticker] = price
	if !s.snap.IsWatched(ticker) {
		s.snap.WatchedStocks = append(s.snap.WatchedStocks, ticker)
	}
	s.metrics.SetWatched(len(s.snap.WatchedStocks))
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// AddWatched adds symbol (trimmed, upper-cased) to the watch list right
// away, then fetches its price in the background. The background fetch
// outlives ctx's cancellation; a failure there leaves the symbol watched.
func (s *Synchronizer) AddWatched(ctx context.Context, symbol string) error {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return ErrEmptySymbol
	}

	s.mu.Lock()
	if s.snap.IsWatched(sym) {
		s.mu.Unlock()
		return ErrAlreadyWatching
	}
	s.snap.WatchedStocks = append(s.snap.WatchedStocks, sym)
	s.metrics.SetWatched(len(s.snap.WatchedStocks))
	s.mu.Unlock()

	s.log.Info().Str("ticker", sym).Msg("watching")

	bg := context.WithoutCancel(ctx)
	s.enrich.Add(1)
	go func() {
		defer s.enrich.Done()
		if err := s.updatePrice(bg, sym); err != nil {
			s.mu.Lock()
			s.snap.Failures = append(s.snap.Failures, model.FieldFailure{
				Field: model.FieldPrice, Ticker: sym, Error: err.Error(),
			})
			s.mu.Unlock()
		}
	}()
	return nil
}

// Offset is a forward clock move. Zero fields mean no change in that unit.
type Offset struct {
	Days    int `json:"days" form:"days"`
	Hours   int `json:"hours" form:"hours"`
	Minutes int `json:"minutes" form:"minutes"`
	Seconds int `json:"seconds" form:"seconds"`
}

// ProgressTime advances the remote clock and then refreshes, whether or
// not the remote call succeeded. The remote error, if any, is returned.
func (s *Synchronizer) ProgressTime(ctx context.Context, off Offset) error {
	if off.Days < 0 || off.Hours < 0 || off.Minutes < 0 || off.Seconds < 0 {
		return ErrNegativeOffset
	}
	_, err := s.remote.ProgressTime(ctx, off.Days, off.Hours, off.Minutes, off.Seconds)
	if err != nil {
		s.log.Error().Err(err).Interface("offset", off).Msg("progress time failed")
		err = fmt.Errorf("progress time: %w", err)
	}
	s.Refresh(ctx)
	return err
}

// Reset restores the remote simulation and then refreshes unconditionally.
func (s *Synchronizer) Reset(ctx context.Context) error {
	err := s.remote.Reset(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reset failed")
		err = fmt.Errorf("reset: %w", err)
	}
	s.Refresh(ctx)
	return err
}

// History reads the per-day account records straight from the service.
func (s *Synchronizer) History(ctx context.Context) ([]model.HistoryRecord, error) {
	return s.remote.GetHistory(ctx)
}

// Series reads a price series straight from the service.
func (s *Synchronizer) Series(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error) {
	return s.remote.GetPriceSeries(ctx, strings.ToUpper(strings.TrimSpace(ticker)), start, end)
}

// Quote reads ticker's price at the simulated time straight from the
// service. ok is false when the service has none; the snapshot is untouched.
func (s *Synchronizer) Quote(ctx context.Context, ticker string) (price float64, ok bool, err error) {
	return s.remote.GetLatestPrice(ctx, strings.ToUpper(strings.TrimSpace(ticker)))
}
