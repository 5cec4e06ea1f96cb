package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
)

// Poller fetches a game snapshot every interval and feeds it to the correlator.
type Poller struct {
	gameID     string
	fetcher    SummaryFetcher
	correlator *Correlator
	interval   time.Duration
	events     chan<- models.Event
}

func NewPoller(gameID string, fetcher SummaryFetcher, correlator *Correlator, interval time.Duration, events chan<- models.Event) *Poller {
	return &Poller{
		gameID:     gameID,
		fetcher:    fetcher,
		correlator: correlator,
		interval:   interval,
		events:     events,
	}
}

// Run polls until ctx is cancelled. Tick failures are reported and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info("State poller started for game %s (interval: %v)", p.gameID, p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("State poller stopped")
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.Poll(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Poll failed: %v", err)
		emit(ctx, p.events, models.NewErrorEvent(SourcePoller, err))
	}
}

// Poll runs a single fetch-and-compare cycle and emits any resulting events.
func (p *Poller) Poll(ctx context.Context) error {
	summary, err := p.fetcher.FetchSummary(ctx, p.gameID)
	if err != nil {
		return fmt.Errorf("failed to fetch game %s: %w", p.gameID, err)
	}
	for _, e := range p.correlator.Observe(summary) {
		emit(ctx, p.events, e)
	}
	return nil
}
