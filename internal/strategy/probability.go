package strategy

import (
	"github.com/rewired-gh/latencymon/internal/models"
)

// ProbabilityField reads one candidate field of a win probability entry.
type ProbabilityField struct {
	Name string
	Get  func(models.WinProbability) *float64
}

// ProbabilityFields are tried in order; the first present value wins.
var ProbabilityFields = []ProbabilityField{
	{Name: "homeWinPercentage", Get: func(w models.WinProbability) *float64 { return w.HomeWinPercentage }},
	{Name: "homeWinPercent", Get: func(w models.WinProbability) *float64 { return w.HomeWinPercent }},
}

// ExtractProbability reads the home win probability from the first entry of the
// snapshot's probability container. It returns models.ErrNoProbability when the
// container is empty or no candidate field is present.
func ExtractProbability(s *models.Summary) (float64, error) {
	if s == nil || len(s.WinProbability) == 0 {
		return 0, models.ErrNoProbability
	}
	entry := s.WinProbability[0]
	for _, field := range ProbabilityFields {
		if v := field.Get(entry); v != nil {
			return *v, nil
		}
	}
	return 0, models.ErrNoProbability
}
