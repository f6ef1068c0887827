package resolve

import (
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

// scoreConfidence turns a recommended candidate plus whatever signals were
// gathered into a 0-100 confidence value with a breakdown. Corroborating
// signals and a good historical record for the same strategy raise
// confidence; missing signals contribute nothing, so sparse data never
// inflates the score.
func scoreConfidence(c core.Candidate, req core.ResolutionRequest, in Inputs, now time.Time) (float64, core.ConfidenceBreakdown) {
	breakdown := core.ConfidenceBreakdown{
		Base:             c.Score * 0.5,
		SignalsAvailable: append([]string(nil), in.Available...),
	}

	// +7 per corroborating signal, up to four.
	breakdown.SignalBonus = float64(len(in.Available)) * 7
	if breakdown.SignalBonus > 28 {
		breakdown.SignalBonus = 28
	}

	if rate, samples, ok := in.History.SuccessRate(c.Kind()); ok {
		// Up to +20, discounted for thin samples.
		weight := float64(samples) / 5
		if weight > 1 {
			weight = 1
		}
		breakdown.HistoryBonus = rate * 20 * weight
	}

	// Deliberately wider than the requester alone: a holder racing its own
	// deadline makes any outcome just as uncertain.
	pressure := in.RequesterSignal.DeadlinePressure(now) || in.HolderSignal.DeadlinePressure(now)
	if pressure {
		breakdown.PressurePenalty = 5
	}
	if req.HasCriticalResource() {
		breakdown.CriticalPenalty = 10
	}

	confidence := core.ClampScore(breakdown.Base + breakdown.SignalBonus + breakdown.HistoryBonus -
		breakdown.PressurePenalty - breakdown.CriticalPenalty)
	return confidence, breakdown
}
