// Package strategy holds the pure signal functions: spike detection, stake sizing and price inversion.
package strategy

import (
	"strings"

	"github.com/rewired-gh/latencymon/internal/models"
)

// SpikeKeywords are the lowercase phrases that mark a play as likely to move win probability.
var SpikeKeywords = []string{
	"interception",
	"fumble",
	"touchdown",
	"field goal",
	"safety",
	"blocked",
	"turnover",
	"sack",
}

// DetectSpikes returns a SubEvent for every play whose text contains a spike keyword,
// case-insensitively, in drive order then play order.
func DetectSpikes(drives []models.Drive) []models.SubEvent {
	var spikes []models.SubEvent
	for _, drive := range drives {
		for _, play := range drive.Records() {
			if !isSpike(play.Description()) {
				continue
			}
			spikes = append(spikes, models.SubEvent{
				Description: play.Description(),
				Period:      play.PeriodNumber(),
				Clock:       play.ClockDisplay(),
				Raw:         play,
			})
		}
	}
	return spikes
}

func isSpike(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range SpikeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
