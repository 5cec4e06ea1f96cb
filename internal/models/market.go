package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderbookSnapshot is a top-of-book quote for one market. Prices are integer cents in [0, 100].
type OrderbookSnapshot struct {
	Ticker   string
	YesBid   *int
	YesAsk   *int
	Received time.Time
}

// Mid returns the mid price as a fraction in [0, 1]. ok is false when either side is missing.
func (s OrderbookSnapshot) Mid() (mid float64, ok bool) {
	if s.YesBid == nil || s.YesAsk == nil {
		return 0, false
	}
	cents := (float64(*s.YesBid) + float64(*s.YesAsk)) / 2.0
	return cents / 100.0, true
}

// MarketPrice is the latest derived mid price for the tracked market.
type MarketPrice struct {
	Ticker    string
	Value     float64
	UpdatedAt time.Time
}

// Side is the taker side of an execution.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide accepts either case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// TradeExecution is a single observed fill.
type TradeExecution struct {
	TradeID    string
	Ticker     string
	PriceCents int
	Count      int
	Side       Side
	ExecutedAt time.Time
}

// Validate checks trade field constraints.
func (t *TradeExecution) Validate() error {
	if t.Ticker == "" {
		return errors.New("trade ticker must not be empty")
	}
	if t.PriceCents < 0 || t.PriceCents > 100 {
		return fmt.Errorf("trade price %d outside [0, 100] cents", t.PriceCents)
	}
	if t.Count < 0 {
		return fmt.Errorf("trade count %d must not be negative", t.Count)
	}
	if t.Side != SideYes && t.Side != SideNo {
		return fmt.Errorf("trade side %q must be yes or no", t.Side)
	}
	return nil
}

// Notional returns price × count in dollars.
func (t *TradeExecution) Notional() decimal.Decimal {
	return decimal.NewFromInt(int64(t.PriceCents)).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(int64(t.Count)))
}

// WhaleAlert reports a single execution whose notional met the threshold.
type WhaleAlert struct {
	Ticker   string
	Side     Side
	Notional decimal.Decimal
	Trade    TradeExecution
}
