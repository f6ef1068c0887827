package resolve

import (
	"fmt"

	"github.com/mistakeknot/arbiter/internal/core"
)

// EligibilityInput is everything the auto-resolution gate inspects.
type EligibilityInput struct {
	Candidate           core.Candidate
	Confidence          float64
	Resources           []core.ResourceRef
	PriorFailedAttempts int
	BothAgentsEnabled   bool
}

// EligibilityResult reports the gate decision plus one reason line per check
// performed, pass or fail, for the audit trail.
type EligibilityResult struct {
	Eligible bool                        `json:"eligible"`
	Reasons  []string                    `json:"reasons"`
	Criteria core.AutoResolutionCriteria `json:"criteria"`
}

// checkEligibility applies the criteria to a suggestion. Every check emits a
// reason whether it passes or fails; callers rely on the full list for
// debuggability.
func checkEligibility(in EligibilityInput, criteria core.AutoResolutionCriteria) EligibilityResult {
	result := EligibilityResult{Eligible: true, Criteria: criteria}

	check := func(ok bool, passMsg, failMsg string) {
		if ok {
			result.Reasons = append(result.Reasons, "pass: "+passMsg)
			return
		}
		result.Reasons = append(result.Reasons, "fail: "+failMsg)
		result.Eligible = false
	}

	check(in.Confidence >= criteria.MinConfidence,
		fmt.Sprintf("confidence %.0f meets minimum %.0f", in.Confidence, criteria.MinConfidence),
		fmt.Sprintf("confidence %.0f below minimum %.0f", in.Confidence, criteria.MinConfidence))

	if wait, ok := in.Candidate.Params.(core.WaitParams); ok {
		check(wait.EstimatedWait <= criteria.MaxWaitTime,
			fmt.Sprintf("estimated wait %s within limit %s", wait.EstimatedWait, criteria.MaxWaitTime),
			fmt.Sprintf("estimated wait %s exceeds limit %s", wait.EstimatedWait, criteria.MaxWaitTime))
	} else {
		// Only wait is safe to apply unattended unless confidence is very high.
		check(in.Confidence >= 95,
			fmt.Sprintf("non-wait strategy %q allowed at confidence %.0f", in.Candidate.Kind(), in.Confidence),
			fmt.Sprintf("non-wait strategy %q requires confidence >= 95", in.Candidate.Kind()))
	}

	if criteria.DisabledForCritical {
		critical := false
		for _, r := range in.Resources {
			if r.Critical {
				critical = true
				break
			}
		}
		check(!critical,
			"no critical resources contested",
			"auto-resolution disabled for critical resources")
	} else {
		result.Reasons = append(result.Reasons, "pass: critical-resource gate disabled by criteria")
	}

	if criteria.RequireBothAgentsEnabled {
		check(in.BothAgentsEnabled,
			"both agents opted into auto-resolution",
			"one or both agents have not opted into auto-resolution")
	} else {
		result.Reasons = append(result.Reasons, "pass: per-agent opt-in not required by criteria")
	}

	check(in.PriorFailedAttempts <= criteria.MaxPriorFailedAttempts,
		fmt.Sprintf("%d prior failed attempt(s) within limit %d", in.PriorFailedAttempts, criteria.MaxPriorFailedAttempts),
		fmt.Sprintf("%d prior failed attempt(s) exceed limit %d", in.PriorFailedAttempts, criteria.MaxPriorFailedAttempts))

	return result
}
