// Package monitor runs the correlation loops: the state poller with its correlator,
// the order-book listener and the whale monitor.
package monitor

import (
	"context"
	"sync/atomic"

	"github.com/rewired-gh/latencymon/internal/models"
)

// Event sources.
const (
	SourcePoller    = "poller"
	SourceOrderbook = "orderbook"
	SourceWhales    = "whales"
)

// SummaryFetcher returns one game state snapshot.
type SummaryFetcher interface {
	FetchSummary(ctx context.Context, gameID string) (*models.Summary, error)
}

// OrderbookStream yields order-book snapshots for one market. Next returns io.EOF
// when the stream ends.
type OrderbookStream interface {
	Next(ctx context.Context) (models.OrderbookSnapshot, error)
}

// TradeStream yields trade executions. Next returns io.EOF when the stream ends and an
// error wrapping models.ErrMalformedRecord for a single undecodable record.
type TradeStream interface {
	Next(ctx context.Context) (models.TradeExecution, error)
}

// PriceCell holds the latest market price. Written by the order-book listener only.
type PriceCell struct {
	v atomic.Pointer[models.MarketPrice]
}

func (c *PriceCell) Store(p models.MarketPrice) {
	c.v.Store(&p)
}

// Load returns the latest price; ok is false until the first two-sided snapshot.
func (c *PriceCell) Load() (models.MarketPrice, bool) {
	p := c.v.Load()
	if p == nil {
		return models.MarketPrice{}, false
	}
	return *p, true
}

// emit delivers an event unless ctx is cancelled first.
func emit(ctx context.Context, events chan<- models.Event, e models.Event) {
	select {
	case events <- e:
	case <-ctx.Done():
	}
}
