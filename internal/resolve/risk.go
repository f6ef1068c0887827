package resolve

import "github.com/mistakeknot/arbiter/internal/core"

// assessRisks derives the risk list for a strategy over a resource set.
// Pure function: same strategy and resources always yield the same risks.
// A critical resource always contributes a high-severity data_loss item;
// each strategy contributes exactly one kind-specific item.
func assessRisks(kind core.StrategyKind, resources []core.ResourceRef) []core.RiskAssessment {
	var risks []core.RiskAssessment

	for _, r := range resources {
		if r.Critical {
			risks = append(risks, core.RiskAssessment{
				Category:    "data_loss",
				Severity:    core.SeverityHigh,
				Description: "a contested resource is marked critical; any mishandling may lose work",
				Probability: 30,
				Mitigation:  "require checkpoint before any ownership change",
			})
			break
		}
	}

	switch kind {
	case core.StrategyWait:
		risks = append(risks, core.RiskAssessment{
			Category:    "performance",
			Severity:    core.SeverityLow,
			Description: "requesting agent is delayed until the holder finishes",
			Probability: 100,
			Mitigation:  "set a wait timeout and re-evaluate on expiry",
		})
	case core.StrategyTransfer:
		risks = append(risks, core.RiskAssessment{
			Category:    "user_impact",
			Severity:    core.SeverityMedium,
			Description: "holding agent's in-progress work is interrupted",
			Probability: 80,
			Mitigation:  "checkpoint holder state before transferring",
		})
	case core.StrategySplit:
		risks = append(risks, core.RiskAssessment{
			Category:    "other",
			Severity:    core.SeverityMedium,
			Description: "independently edited partitions may conflict at merge time",
			Probability: 40,
			Mitigation:  "merge partitions sequentially with review",
		})
	case core.StrategyCoordinate:
		risks = append(risks, core.RiskAssessment{
			Category:    "deadlock",
			Severity:    core.SeverityMedium,
			Description: "agents may block each other waiting for coordination turns",
			Probability: 15,
			Mitigation:  "bound each coordination turn with a sync interval",
		})
	case core.StrategyEscalate:
		risks = append(risks, core.RiskAssessment{
			Category:    "performance",
			Severity:    core.SeverityMedium,
			Description: "both agents are blocked until a human responds",
			Probability: 70,
			Mitigation:  "route the escalation with full context to reduce turnaround",
		})
	}

	return risks
}
