package resolve

import (
	"fmt"
	"sort"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

const defaultWaitEstimate = 10 * time.Minute

// scoreAll runs every strategy scorer, applies preference boosts, clamps
// scores and returns the applicable candidates sorted by descending score.
// The sort is stable: ties keep scorer order (wait, split, transfer,
// coordinate, escalate).
func scoreAll(req core.ResolutionRequest, in Inputs, now time.Time) []core.Candidate {
	candidates := make([]core.Candidate, 0, 5)
	for _, score := range []func(core.ResolutionRequest, Inputs, time.Time) *core.Candidate{
		scoreWait,
		scoreSplit,
		scoreTransfer,
		scoreCoordinate,
		scoreEscalate,
	} {
		if c := score(req, in, now); c != nil {
			candidates = append(candidates, *c)
		}
	}

	for i := range candidates {
		candidates[i].Score += preferenceBoost(req.Preferred, candidates[i].Kind())
		candidates[i].Score = core.ClampScore(candidates[i].Score)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// preferenceBoost rewards strategies the caller listed, front-loaded:
// 10 for the first preference, 7 for the second, 4 for the third.
func preferenceBoost(preferred []core.StrategyKind, kind core.StrategyKind) float64 {
	for i, p := range preferred {
		if p == kind {
			if boost := 10 - 3*i; boost > 0 {
				return float64(boost)
			}
			return 0
		}
	}
	return 0
}

// estimateWait derives how long the requester would wait for the holder, in
// priority order: reservation expiry, explicit remaining estimate,
// extrapolation from invested time, then a fixed default.
func estimateWait(in Inputs, now time.Time) time.Duration {
	var longest time.Duration
	for _, r := range in.HolderReservations {
		if remaining := r.Remaining(now); remaining > longest {
			longest = remaining
		}
	}
	if longest > 0 {
		return longest
	}

	if p := in.HolderProgress(); p != nil {
		if p.RemainingEstimate > 0 {
			return p.RemainingEstimate
		}
		if p.Percentage > 0 && p.TimeInvested > 0 {
			total := time.Duration(float64(p.TimeInvested) / p.Percentage * 100)
			return total - p.TimeInvested
		}
	}
	return defaultWaitEstimate
}

func scoreWait(req core.ResolutionRequest, in Inputs, now time.Time) *core.Candidate {
	score := 70.0

	progress := in.HolderProgress()
	switch {
	case progress != nil && progress.Percentage >= 80:
		score += 20
	case progress != nil && progress.Percentage >= 50:
		score += 10
	}

	wait := estimateWait(in, now)
	switch {
	case wait < 5*time.Minute:
		score += 10
	case wait > 30*time.Minute:
		score -= 20
	}

	// Making a high-priority agent wait on a low-priority one is a bad deal.
	if in.RequesterSignal != nil && in.HolderSignal != nil &&
		in.RequesterSignal.Priority.Tier()-in.HolderSignal.Priority.Tier() > 1 {
		score -= 15
	}

	return &core.Candidate{
		Params: core.WaitParams{
			EstimatedWait: wait,
			PollInterval:  30 * time.Second,
			Timeout:       2 * wait,
		},
		Score: score,
		Prereqs: []core.PrerequisiteCheck{
			{Description: "holder is actively progressing", Satisfied: progress != nil},
		},
		Outcome: core.ExpectedOutcome{
			SuccessProbability: core.ClampScore(score),
			EstimatedTime:      wait,
			RequesterImpact:    core.ImpactModerate,
			HolderImpact:       core.ImpactNone,
			SideEffects:        []string{"requester blocked until holder releases resources"},
		},
	}
}

func scoreSplit(req core.ResolutionRequest, _ Inputs, _ time.Time) *core.Candidate {
	// A single plain file cannot be partitioned.
	if len(req.Resources) == 1 && req.Resources[0].Type == core.ResourceFile {
		return nil
	}

	score := 50.0
	score += 30 * 0.5 // compatibility bonus, half weight
	if len(req.Resources) > 5 {
		score -= 20
	}

	// Naive positional partition: the holder keeps the first half.
	mid := (len(req.Resources) + 1) / 2
	holderKeeps := append([]core.ResourceRef(nil), req.Resources[:mid]...)
	requesterTakes := append([]core.ResourceRef(nil), req.Resources[mid:]...)

	return &core.Candidate{
		Params: core.SplitParams{
			HolderKeeps:    holderKeeps,
			RequesterTakes: requesterTakes,
			MergeStrategy:  "sequential",
		},
		Score: score,
		Prereqs: []core.PrerequisiteCheck{
			{Description: "contested resources are separable", Satisfied: len(req.Resources) > 1},
		},
		Outcome: core.ExpectedOutcome{
			SuccessProbability: core.ClampScore(score + 10),
			EstimatedTime:      5 * time.Minute,
			RequesterImpact:    core.ImpactMinimal,
			HolderImpact:       core.ImpactMinimal,
			SideEffects:        []string{"partitioned work requires a merge step"},
		},
	}
}

func scoreTransfer(req core.ResolutionRequest, in Inputs, _ time.Time) *core.Candidate {
	// There is nobody to transfer from without an identified holder.
	if req.HoldingAgentID == "" {
		return nil
	}

	score := 60.0

	if in.RequesterSignal != nil && in.HolderSignal != nil {
		diff := in.RequesterSignal.Priority.Tier() - in.HolderSignal.Priority.Tier()
		if diff > 0 {
			bonus := float64(diff) * 10
			if bonus > 30 {
				bonus = 30
			}
			score += bonus
		} else if diff < 0 {
			// Transferring to a lower-priority agent is discouraged.
			score -= 25
		}
	}

	progress := in.HolderProgress()
	switch {
	case progress != nil && progress.Percentage >= 80:
		score -= 20
	case progress != nil && progress.Percentage >= 50:
		score -= 10
	}

	checkpointRequired := progress != nil && progress.Percentage >= 50

	return &core.Candidate{
		Params: core.TransferParams{
			FromAgentID:        req.HoldingAgentID,
			ToAgentID:          req.RequestingAgentID,
			CheckpointRequired: checkpointRequired,
			GracePeriod:        30 * time.Second,
		},
		Score: score,
		Prereqs: []core.PrerequisiteCheck{
			{Description: "holding agent identified", Satisfied: true},
			{Description: "holder checkpoint available before handoff", Satisfied: !checkpointRequired},
		},
		Outcome: core.ExpectedOutcome{
			SuccessProbability: core.ClampScore(score + 15),
			EstimatedTime:      2 * time.Minute,
			RequesterImpact:    core.ImpactNone,
			HolderImpact:       core.ImpactSignificant,
			SideEffects:        []string{"holder's in-progress work is interrupted"},
		},
	}
}

func scoreCoordinate(req core.ResolutionRequest, _ Inputs, _ time.Time) *core.Candidate {
	score := 40.0
	score += 35 * 0.5 // collaboration bonus, half weight
	if len(req.Resources) > 3 {
		score -= 25
	}

	return &core.Candidate{
		Params: core.CoordinateParams{
			Protocol:     "turn-taking",
			Channel:      core.ChannelConflicts,
			SyncInterval: 2 * time.Minute,
		},
		Score: score,
		Prereqs: []core.PrerequisiteCheck{
			{Description: "both agents can communicate on a shared channel", Satisfied: req.HoldingAgentID != ""},
		},
		Outcome: core.ExpectedOutcome{
			SuccessProbability: core.ClampScore(score),
			EstimatedTime:      15 * time.Minute,
			RequesterImpact:    core.ImpactMinimal,
			HolderImpact:       core.ImpactMinimal,
			SideEffects:        []string{"both agents incur coordination overhead"},
		},
	}
}

func scoreEscalate(req core.ResolutionRequest, _ Inputs, _ time.Time) *core.Candidate {
	score := 30.0
	if req.HasCriticalResource() {
		score += 25
	}
	if req.UrgencyOverride == "critical" {
		score += 15
	}
	score += 20 // universal fallback bonus

	urgency := req.UrgencyOverride
	if urgency == "" {
		urgency = "normal"
	}

	return &core.Candidate{
		Params: core.EscalateParams{
			Target:  "workspace-admin",
			Urgency: urgency,
			Context: map[string]string{
				"conflict_id":      req.ConflictID,
				"requesting_agent": req.RequestingAgentID,
				"holding_agent":    req.HoldingAgentID,
				"resource_count":   fmt.Sprintf("%d", len(req.Resources)),
			},
		},
		Score:   score,
		Prereqs: nil, // escalation has no prerequisites; it is always available
		Outcome: core.ExpectedOutcome{
			SuccessProbability: 95,
			EstimatedTime:      30 * time.Minute,
			RequesterImpact:    core.ImpactModerate,
			HolderImpact:       core.ImpactModerate,
			SideEffects:        []string{"both agents blocked until a human responds"},
		},
	}
}
