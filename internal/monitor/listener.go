package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
)

// MarketListener keeps the PriceCell at the mid of the latest two-sided snapshot.
type MarketListener struct {
	ticker string
	stream OrderbookStream
	prices *PriceCell
	events chan<- models.Event
}

func NewMarketListener(ticker string, stream OrderbookStream, prices *PriceCell, events chan<- models.Event) *MarketListener {
	return &MarketListener{
		ticker: ticker,
		stream: stream,
		prices: prices,
		events: events,
	}
}

// Run consumes the stream until it ends, fails, or ctx is cancelled. A stream error is
// reported as an event and ends the loop; it is not returned.
func (l *MarketListener) Run(ctx context.Context) error {
	logger.Info("Order book listener started for %s", l.ticker)
	for {
		snap, err := l.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Order book stream for %s ended", l.ticker)
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Order book listener error: %v", err)
			emit(ctx, l.events, models.NewErrorEvent(SourceOrderbook, fmt.Errorf("order book listener: %w", err)))
			return nil
		}
		l.apply(snap)
	}
}

func (l *MarketListener) apply(snap models.OrderbookSnapshot) {
	mid, ok := snap.Mid()
	if !ok {
		return
	}
	l.prices.Store(models.MarketPrice{
		Ticker:    l.ticker,
		Value:     mid,
		UpdatedAt: snap.Received,
	})
	logger.Debug("Market %s mid %.4f", l.ticker, mid)
}
