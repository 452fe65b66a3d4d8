package model

// DateLayout is the simulation clock's wire format.
const DateLayout = "2006-01-02 15:04:05"

// Holding is one portfolio row. Ticker is unique within a portfolio.
type Holding struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
	Date     string `json:"date"`
}

// HistoryRecord is the account state at one clock tick.
type HistoryRecord struct {
	Date           string  `json:"date"`
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// Field names used in FieldFailure.
const (
	FieldCash           = "cash"
	FieldDate           = "date"
	FieldPortfolio      = "portfolio"
	FieldPortfolioValue = "portfolio_value"
	FieldPrice          = "price"
)

// FieldFailure records a read that fell back to its default.
type FieldFailure struct {
	Field  string `json:"field"`
	Ticker string `json:"ticker,omitempty"`
	Error  string `json:"error"`
}

// Snapshot is the dashboard's view of the simulation.
type Snapshot struct {
	Cash           float64            `json:"cash"`
	Date           string             `json:"date"`
	Portfolio      []Holding          `json:"portfolio"`
	PortfolioValue float64            `json:"portfolio_value"`
	WatchedStocks  []string           `json:"watched_stocks"`
	PriceMap       map[string]float64 `json:"price_map"`
	Loading        bool               `json:"loading"`
	// Failures lists what the last refresh could not read, plus earlier
	// price failures for watched tickers that are still unpriced.
	Failures       []FieldFailure     `json:"failures,omitempty"`
}

// NewSnapshot returns the empty startup snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Portfolio:     []Holding{},
		WatchedStocks: []string{},
		PriceMap:      map[string]float64{},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Portfolio = append([]Holding{}, s.Portfolio...)
	out.WatchedStocks = append([]string{}, s.WatchedStocks...)
	out.PriceMap = make(map[string]float64, len(s.PriceMap))
	for k, v := range s.PriceMap {
		out.PriceMap[k] = v
	}
	if s.Failures != nil {
		out.Failures = append([]FieldFailure{}, s.Failures...)
	}
	return out
}

// IsWatched reports whether ticker is in the watch list.
func (s Snapshot) IsWatched(ticker string) bool {
	for _, w := range s.WatchedStocks {
		if w == ticker {
			return true
		}
	}
	return false
}

// HoldingValue returns quantity times the known price, and false if no
// price is known for the ticker.
func (s Snapshot) HoldingValue(h Holding) (float64, bool) {
	p, ok := s.PriceMap[h.Ticker]
	if !ok {
		return 0, false
	}
	return float64(h.Quantity) * p, true
}
