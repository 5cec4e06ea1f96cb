// Package models defines the core domain entities: game snapshots, market quotes, trades, and events.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNoProbability is returned when a snapshot carries no usable win probability.
	ErrNoProbability = errors.New("no win probability in snapshot")

	// ErrMalformedRecord marks a single stream record that could not be decoded or validated.
	// Loops treat it as non-fatal.
	ErrMalformedRecord = errors.New("malformed record")
)

// Summary is a game state snapshot as returned by the play-by-play source.
type Summary struct {
	WinProbability []WinProbability `json:"winprobability"`
	Drives         *DriveList       `json:"drives,omitempty"`
	Plays          []Drive          `json:"plays,omitempty"`
}

// WinProbability is one entry of the probability-estimate container.
// Either field may be absent depending on the feed revision.
type WinProbability struct {
	HomeWinPercentage *float64 `json:"homeWinPercentage,omitempty"`
	HomeWinPercent    *float64 `json:"homeWinPercent,omitempty"`
	PlayID            string   `json:"playId,omitempty"`
}

// DriveList groups completed drives and the drive in progress.
type DriveList struct {
	Previous []Drive `json:"previous"`
	Current  *Drive  `json:"current,omitempty"`
}

// Drive is a sequence of plays.
type Drive struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
	Plays       []Play `json:"plays,omitempty"`
	Items       []Play `json:"items,omitempty"`
}

// Records returns the drive's plays. Older feed revisions name the list "items".
func (d Drive) Records() []Play {
	if len(d.Plays) == 0 {
		return d.Items
	}
	return d.Plays
}

// Play is a single play-by-play record.
type Play struct {
	ID     string      `json:"id,omitempty"`
	Text   *string     `json:"text,omitempty"`
	Period *PlayPeriod `json:"period,omitempty"`
	Clock  *PlayClock  `json:"clock,omitempty"`
}

type PlayPeriod struct {
	Number *int `json:"number,omitempty"`
}

type PlayClock struct {
	DisplayValue *string `json:"displayValue,omitempty"`
}

// Description returns the play text, or "" when absent.
func (p Play) Description() string {
	if p.Text == nil {
		return ""
	}
	return *p.Text
}

// PeriodNumber returns the period ordinal if present.
func (p Play) PeriodNumber() *int {
	if p.Period == nil {
		return nil
	}
	return p.Period.Number
}

// ClockDisplay returns the clock display string if present.
func (p Play) ClockDisplay() *string {
	if p.Clock == nil {
		return nil
	}
	return p.Clock.DisplayValue
}

// DriveRecords returns every drive in feed order: the top-level plays container
// first, then completed drives, then the drive in progress.
func (s *Summary) DriveRecords() []Drive {
	drives := make([]Drive, 0, len(s.Plays))
	drives = append(drives, s.Plays...)
	if s.Drives != nil {
		drives = append(drives, s.Drives.Previous...)
		if s.Drives.Current != nil {
			drives = append(drives, *s.Drives.Current)
		}
	}
	return drives
}

// SubEvent is a notable play detected within a snapshot.
type SubEvent struct {
	Description string
	Period      *int
	Clock       *string
	Raw         Play
}

// ProbabilitySample is a single home-side win probability estimate in [0, 1].
type ProbabilitySample struct {
	Value      float64
	ObservedAt time.Time
}
