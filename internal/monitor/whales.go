package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
)

// WhaleMonitor flags single executions whose notional meets the threshold.
type WhaleMonitor struct {
	stream    TradeStream
	threshold decimal.Decimal
	events    chan<- models.Event
}

func NewWhaleMonitor(stream TradeStream, threshold float64, events chan<- models.Event) *WhaleMonitor {
	return &WhaleMonitor{
		stream:    stream,
		threshold: decimal.NewFromFloat(threshold),
		events:    events,
	}
}

// Evaluate returns an alert when the trade's notional meets the threshold, nil otherwise.
func (w *WhaleMonitor) Evaluate(trade models.TradeExecution) (*models.WhaleAlert, error) {
	if err := trade.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	notional := trade.Notional()
	if notional.LessThan(w.threshold) {
		return nil, nil
	}
	return &models.WhaleAlert{
		Ticker:   trade.Ticker,
		Side:     trade.Side,
		Notional: notional,
		Trade:    trade,
	}, nil
}

// Run consumes the trade stream until it ends, fails, or ctx is cancelled. Malformed
// records are reported and skipped; any other stream error is reported and ends the loop.
func (w *WhaleMonitor) Run(ctx context.Context) error {
	logger.Info("Whale monitor started (threshold: $%s)", w.threshold.StringFixed(2))
	for {
		trade, err := w.stream.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("Trade stream ended")
				return nil
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, models.ErrMalformedRecord):
				logger.Warn("Error processing trade message: %v", err)
				emit(ctx, w.events, models.NewErrorEvent(SourceWhales, err))
				continue
			default:
				logger.Error("Whale monitor error: %v", err)
				emit(ctx, w.events, models.NewErrorEvent(SourceWhales, fmt.Errorf("whale monitor: %w", err)))
				return nil
			}
		}

		alert, err := w.Evaluate(trade)
		if err != nil {
			logger.Warn("Error processing trade %s: %v", trade.TradeID, err)
			emit(ctx, w.events, models.NewErrorEvent(SourceWhales, err))
			continue
		}
		if alert != nil {
			logger.Debug("Whale trade on %s: $%s", alert.Ticker, alert.Notional.StringFixed(2))
			emit(ctx, w.events, models.NewWhaleEvent(SourceWhales, *alert))
		}
	}
}
