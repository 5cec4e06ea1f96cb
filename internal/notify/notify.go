// Package notify delivers monitor events to human-facing sinks.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
)

// Notifier receives every event drained from the monitor stream.
type Notifier interface {
	Notify(ctx context.Context, e models.Event) error
}

// Format renders an event as a single plain-text line.
func Format(e models.Event) string {
	switch e.Kind {
	case models.KindSpike:
		if e.Spike == nil {
			break
		}
		return "Spike detected: " + e.Spike.Description + spikePosition(e.Spike)
	case models.KindProbabilityShift:
		if e.Shift == nil {
			break
		}
		return fmt.Sprintf("Win probability changed from %.3f to %.3f (Δ=%.3f)",
			e.Shift.Previous, e.Shift.Current, e.Shift.Delta)
	case models.KindStake:
		if e.Stake == nil {
			break
		}
		return fmt.Sprintf("Recommended Half-Kelly fraction at price %.2f: %.4f",
			e.Stake.Price, e.Stake.Fraction)
	case models.KindWhale:
		if e.Whale == nil {
			break
		}
		return fmt.Sprintf("Whale Alert! $%s traded on %s (side: %s).",
			Dollars(e.Whale), e.Whale.Ticker, e.Whale.Side)
	case models.KindError:
		return fmt.Sprintf("%s error: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s event from %s", e.Kind, e.Source)
}

// Dollars formats the alert notional with thousands separators and cents.
func Dollars(a *models.WhaleAlert) string {
	f, _ := a.Notional.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}

func spikePosition(s *models.SubEvent) string {
	var parts []string
	if s.Period != nil {
		parts = append(parts, fmt.Sprintf("Q%d", *s.Period))
	}
	if s.Clock != nil && *s.Clock != "" {
		parts = append(parts, *s.Clock)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, " ") + ")"
}

// Console writes one formatted line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(_ context.Context, e models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, Format(e))
	return err
}

// Dispatcher drains the event stream and fans each event out to every notifier.
// A failing notifier is logged and does not block the others.
type Dispatcher struct {
	notifiers []Notifier
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Run blocks until ctx is cancelled or events is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan models.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			d.dispatch(ctx, e)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, e models.Event) {
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, e); err != nil {
			logger.Error("Failed to deliver %s event %s: %v", e.Kind, e.ID, err)
		}
	}
}
