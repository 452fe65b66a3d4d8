package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"StockSim/internal/simapi"
)

// Outcome classifies a trade attempt.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeResult reports what happened to a buy or sell.
type TradeResult struct {
	Side     string  `json:"side"`
	Ticker   string  `json:"ticker"`
	Quantity int64   `json:"quantity"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
}

// OK reports whether the service accepted the trade.
func (r TradeResult) OK() bool { return r.Outcome == OutcomeAccepted }

// BuyStock asks the service to buy. Accepted trades are followed by a full
// refresh before returning. Rejections return a result and a nil error;
// anything else returns OutcomeFailed and an error wrapping ErrTransport.
func (s *Synchronizer) BuyStock(ctx context.Context, ticker string, quantity int64) (TradeResult, error) {
	return s.trade(ctx, SideBuy, s.remote.Buy, ticker, quantity)
}

// SellStock is BuyStock's counterpart.
func (s *Synchronizer) SellStock(ctx context.Context, ticker string, quantity int64) (TradeResult, error) {
	return s.trade(ctx, SideSell, s.remote.Sell, ticker, quantity)
}

func (s *Synchronizer) trade(ctx context.Context, side string, fn func(context.Context, string, int64) error, ticker string, quantity int64) (TradeResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	res := TradeResult{Side: side, Ticker: ticker, Quantity: quantity}

	err := fn(ctx, ticker, quantity)
	var rej *simapi.RejectedError
	switch {
	case err == nil:
		res.Outcome = OutcomeAccepted
		s.log.Info().Str("side", side).Str("ticker", ticker).Int64("quantity", quantity).Msg("trade accepted")
		s.Refresh(ctx)
	case errors.As(err, &rej):
		res.Outcome = OutcomeRejected
		res.Reason = rej.Reason
		s.log.Info().Str("side", side).Str("ticker", ticker).Int64("quantity", quantity).
			Str("reason", rej.Reason).Msg("trade rejected")
		err = nil
	case errors.Is(err, simapi.ErrUnconfirmed):
		res.Outcome = OutcomeFailed
		s.log.Warn().Err(err).Str("side", side).Str("ticker", ticker).Int64("quantity", quantity).
			Msg("trade reply unreadable, refreshing in case it executed")
		err = fmt.Errorf("%s %s: %w", side, ticker, err)
		s.Refresh(ctx)
	default:
		res.Outcome = OutcomeFailed
		s.log.Error().Err(err).Str("side", side).Str("ticker", ticker).Msg("trade failed")
		if errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%s %s: %w", side, ticker, err)
		} else {
			err = fmt.Errorf("%s %s: %w: %w", side, ticker, ErrTransport, err)
		}
	}

	s.metrics.Trade(side, string(res.Outcome))
	return res, err
}
