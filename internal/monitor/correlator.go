package monitor

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rewired-gh/latencymon/internal/models"
	"github.com/rewired-gh/latencymon/internal/strategy"
)

// State is the correlator's tracking state.
type State int

const (
	AwaitingFirstSample State = iota
	Tracking
)

func (s State) String() string {
	switch s {
	case AwaitingFirstSample:
		return "awaiting_first_sample"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the correlator and the market price it reads.
type Status struct {
	State    State
	Previous *models.ProbabilitySample
	Price    *models.MarketPrice
}

// Correlator compares each new probability sample to the previous one and, when the
// shift meets the threshold, reports spikes, the shift, and a stake sized against the
// current market price.
type Correlator struct {
	mu        sync.Mutex
	threshold float64
	prices    *PriceCell
	previous  *models.ProbabilitySample
}

func NewCorrelator(threshold float64, prices *PriceCell) *Correlator {
	return &Correlator{
		threshold: threshold,
		prices:    prices,
	}
}

// Observe processes one snapshot. A snapshot without a usable probability yields no
// events and leaves the previous sample untouched.
func (c *Correlator) Observe(summary *models.Summary) []models.Event {
	current, err := strategy.ExtractProbability(summary)
	if errors.Is(err, models.ErrNoProbability) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var events []models.Event
	if c.previous != nil {
		change := math.Abs(current - c.previous.Value)
		if change >= c.threshold {
			events = c.signal(summary, c.previous.Value, current, change)
		}
	}
	c.previous = &models.ProbabilitySample{Value: current, ObservedAt: time.Now()}
	return events
}

func (c *Correlator) signal(summary *models.Summary, previous, current, change float64) []models.Event {
	var events []models.Event
	for _, spike := range strategy.DetectSpikes(summary.DriveRecords()) {
		events = append(events, models.NewSpikeEvent(SourcePoller, spike))
	}
	events = append(events, models.NewShiftEvent(SourcePoller, models.ProbabilityShift{
		Previous: previous,
		Current:  current,
		Delta:    change,
	}))
	if price, ok := c.prices.Load(); ok {
		events = append(events, models.NewStakeEvent(SourcePoller, models.StakeRecommendation{
			Price:       price.Value,
			Probability: current,
			Fraction:    strategy.HalfKellyFraction(price.Value, current),
		}))
	}
	return events
}

func (c *Correlator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previous == nil {
		return AwaitingFirstSample
	}
	return Tracking
}

// Previous returns the stored sample, if any.
func (c *Correlator) Previous() (models.ProbabilitySample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previous == nil {
		return models.ProbabilitySample{}, false
	}
	return *c.previous, true
}

func (c *Correlator) Status() Status {
	st := Status{State: c.State()}
	if prev, ok := c.Previous(); ok {
		st.Previous = &prev
	}
	if price, ok := c.prices.Load(); ok {
		st.Price = &price
	}
	return st
}
