package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the payload carried by an Event.
type EventKind string

const (
	KindSpike            EventKind = "spike"
	KindProbabilityShift EventKind = "probability_shift"
	KindStake            EventKind = "stake"
	KindWhale            EventKind = "whale"
	KindError            EventKind = "error"
)

// ProbabilityShift is a previous → current transition that crossed the threshold.
type ProbabilityShift struct {
	Previous float64
	Current  float64
	Delta    float64
}

// StakeRecommendation is a half-Kelly stake computed against a market price.
type StakeRecommendation struct {
	Price       float64
	Probability float64
	Fraction    float64
}

// Event is one item on the notification stream. Exactly one payload is set, matching Kind.
type Event struct {
	ID         string
	Kind       EventKind
	Source     string
	OccurredAt time.Time

	Spike *SubEvent
	Shift *ProbabilityShift
	Stake *StakeRecommendation
	Whale *WhaleAlert
	Err   error
}

func newEvent(kind EventKind, source string) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		Source:     source,
		OccurredAt: time.Now(),
	}
}

func NewSpikeEvent(source string, spike SubEvent) Event {
	e := newEvent(KindSpike, source)
	e.Spike = &spike
	return e
}

func NewShiftEvent(source string, shift ProbabilityShift) Event {
	e := newEvent(KindProbabilityShift, source)
	e.Shift = &shift
	return e
}

func NewStakeEvent(source string, stake StakeRecommendation) Event {
	e := newEvent(KindStake, source)
	e.Stake = &stake
	return e
}

func NewWhaleEvent(source string, alert WhaleAlert) Event {
	e := newEvent(KindWhale, source)
	e.Whale = &alert
	return e
}

func NewErrorEvent(source string, err error) Event {
	e := newEvent(KindError, source)
	e.Err = err
	return e
}
