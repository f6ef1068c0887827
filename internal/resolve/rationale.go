package resolve

import (
	"fmt"
	"strings"

	"github.com/mistakeknot/arbiter/internal/core"
)

// buildRationale renders the human-readable explanation attached to a
// suggestion. It always names the strategy and confidence, and cites the
// historical sample size when history was available.
func buildRationale(c core.Candidate, confidence float64, in Inputs, risks []core.RiskAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Recommended strategy %q (score %.0f) with %.0f%% confidence.", c.Kind(), c.Score, confidence)

	if rate, samples, ok := in.History.SuccessRate(c.Kind()); ok {
		fmt.Fprintf(&b, " Historically this strategy succeeded %.0f%% of the time across %d similar conflict(s).",
			rate*100, samples)
	} else if in.History != nil && in.History.SimilarConflictCount > 0 {
		fmt.Fprintf(&b, " %d similar conflict(s) on record, none resolved with this strategy.",
			in.History.SimilarConflictCount)
	}

	if p := in.HolderProgress(); p != nil {
		fmt.Fprintf(&b, " Holder progress: %.0f%%.", p.Percentage)
	}
	if in.RequesterSignal != nil && in.HolderSignal != nil {
		fmt.Fprintf(&b, " Priorities: requester %s vs holder %s.",
			in.RequesterSignal.Priority, in.HolderSignal.Priority)
	}

	high := 0
	for _, r := range risks {
		if r.Severity == core.SeverityHigh {
			high++
		}
	}
	if high > 0 {
		fmt.Fprintf(&b, " %d high-severity risk(s) identified.", high)
	}

	return b.String()
}
