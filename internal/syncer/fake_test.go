package syncer

import (
	"context"
	"errors"
	"sync"

	"StockSim/internal/model"
	"StockSim/internal/simapi"
)

var errDown = errors.New("connection refused")

// fakeRemote is a tiny in-memory broker with per-call error injection.
type fakeRemote struct {
	mu sync.Mutex

	cash     float64
	date     string
	holdings []model.Holding
	prices   map[string]float64

	errs        map[string]error // keyed by method name
	seriesErrs  map[string]error // keyed by ticker
	calls       map[string]int
	seriesCalls map[string]int

	// cashGate, when set, blocks GetCash until closed; entered is
	// signalled first.
	cashGate chan struct{}
	entered  chan struct{}
	panicOn  string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		date:        "2021-03-01 10:00:00",
		prices:      map[string]float64{},
		errs:        map[string]error{},
		seriesErrs:  map[string]error{},
		calls:       map[string]int{},
		seriesCalls: map[string]int{},
	}
}

func (f *fakeRemote) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	err := f.errs[method]
	p := f.panicOn
	f.mu.Unlock()
	if p == method {
		panic("remote exploded")
	}
	return err
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) GetCash(ctx context.Context) (float64, error) {
	if err := f.enter("GetCash"); err != nil {
		return 0, err
	}
	if f.cashGate != nil {
		f.entered <- struct{}{}
		<-f.cashGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cash, nil
}

func (f *fakeRemote) GetDate(ctx context.Context) (string, error) {
	if err := f.enter("GetDate"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date, nil
}

func (f *fakeRemote) GetPortfolio(ctx context.Context) ([]model.Holding, error) {
	if err := f.enter("GetPortfolio"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Holding{}, f.holdings...), nil
}

func (f *fakeRemote) GetPortfolioValue(ctx context.Context) (float64, error) {
	if err := f.enter("GetPortfolioValue"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var v float64
	for _, h := range f.holdings {
		v += float64(h.Quantity) * f.prices[h.Ticker]
	}
	return v, nil
}

func (f *fakeRemote) GetPriceSeries(ctx context.Context, ticker, start, end string) (*model.PriceSeries, error) {
	f.mu.Lock()
	f.seriesCalls[ticker]++
	err := f.seriesErrs[ticker]
	price, ok := f.prices[ticker]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := &model.PriceSeries{Ticker: ticker}
	if ok {
		s.Append(model.OHLCV{Close: price - 1})
		s.Append(model.OHLCV{Close: price})
	}
	return s, nil
}

func (f *fakeRemote) GetLatestPrice(ctx context.Context, ticker string) (float64, bool, error) {
	if err := f.enter("GetLatestPrice"); err != nil {
		return 0, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[ticker]
	return price, ok, nil
}

func (f *fakeRemote) GetHistory(ctx context.Context) ([]model.HistoryRecord, error) {
	if err := f.enter("GetHistory"); err != nil {
		return nil, err
	}
	return []model.HistoryRecord{{Date: "2021-03-01 10:00:00", Cash: 1000}}, nil
}

func (f *fakeRemote) Buy(ctx context.Context, ticker string, quantity int64) error {
	if err := f.enter("Buy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.prices[ticker]
	if !ok {
		return &simapi.RejectedError{Reason: "Ticker not found"}
	}
	cost := price * float64(quantity)
	if cost > f.cash {
		return &simapi.RejectedError{Reason: "Not enough cash"}
	}
	f.cash -= cost
	for i := range f.holdings {
		if f.holdings[i].Ticker == ticker {
			f.holdings[i].Quantity += quantity
			return nil
		}
	}
	f.holdings = append(f.holdings, model.Holding{Ticker: ticker, Quantity: quantity, Date: f.date})
	return nil
}

func (f *fakeRemote) Sell(ctx context.Context, ticker string, quantity int64) error {
	if err := f.enter("Sell"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.holdings {
		if f.holdings[i].Ticker != ticker {
			continue
		}
		if quantity > f.holdings[i].Quantity {
			return &simapi.RejectedError{Reason: "Not enough shares"}
		}
		f.holdings[i].Quantity -= quantity
		f.cash += f.prices[ticker] * float64(quantity)
		return nil
	}
	return &simapi.RejectedError{Reason: "Ticker not found in portfolio"}
}

func (f *fakeRemote) ProgressTime(ctx context.Context, days, hours, minutes, seconds int) (string, error) {
	if err := f.enter("ProgressTime"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.date = "2021-03-02 10:00:00"
	return f.date, nil
}

func (f *fakeRemote) Reset(ctx context.Context) error {
	if err := f.enter("Reset"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cash = 1000
	f.holdings = nil
	f.date = "2021-03-01 10:00:00"
	return nil
}
