package core

import "time"

// StrategyKind names one of the five resolution strategies.
type StrategyKind string

const (
	StrategyWait       StrategyKind = "wait"
	StrategySplit      StrategyKind = "split"
	StrategyTransfer   StrategyKind = "transfer"
	StrategyCoordinate StrategyKind = "coordinate"
	StrategyEscalate   StrategyKind = "escalate"
)

// StrategyParams is a closed sum over the five strategy parameter variants.
// The unexported method keeps the set closed to this package; a switch over
// the concrete types covers every case.
type StrategyParams interface {
	strategyKind() StrategyKind
}

// WaitParams: the requester polls until the holder finishes or times out.
type WaitParams struct {
	EstimatedWait time.Duration `json:"estimated_wait"`
	PollInterval  time.Duration `json:"poll_interval"`
	Timeout       time.Duration `json:"timeout"`
}

// SplitParams: partition the contested resources between both agents.
type SplitParams struct {
	HolderKeeps    []ResourceRef `json:"holder_keeps"`
	RequesterTakes []ResourceRef `json:"requester_takes"`
	MergeStrategy  string        `json:"merge_strategy"`
}

// TransferParams: move the resources from the holder to the requester.
type TransferParams struct {
	FromAgentID        string        `json:"from_agent_id"`
	ToAgentID          string        `json:"to_agent_id"`
	CheckpointRequired bool          `json:"checkpoint_required"`
	GracePeriod        time.Duration `json:"grace_period"`
}

// CoordinateParams: both agents keep working under a shared protocol.
type CoordinateParams struct {
	Protocol     string        `json:"protocol"`
	Channel      string        `json:"channel"`
	SyncInterval time.Duration `json:"sync_interval"`
}

// EscalateParams: hand the conflict to a human or supervising agent.
type EscalateParams struct {
	Target  string            `json:"target"`
	Urgency string            `json:"urgency"`
	Context map[string]string `json:"context,omitempty"`
}

func (WaitParams) strategyKind() StrategyKind       { return StrategyWait }
func (SplitParams) strategyKind() StrategyKind      { return StrategySplit }
func (TransferParams) strategyKind() StrategyKind   { return StrategyTransfer }
func (CoordinateParams) strategyKind() StrategyKind { return StrategyCoordinate }
func (EscalateParams) strategyKind() StrategyKind   { return StrategyEscalate }

// PrerequisiteCheck records one precondition of a strategy and whether it
// currently holds.
type PrerequisiteCheck struct {
	Description string `json:"description"`
	Satisfied   bool   `json:"satisfied"`
}

// Impact classifies how a strategy affects one agent.
type Impact string

const (
	ImpactNone        Impact = "none"
	ImpactMinimal     Impact = "minimal"
	ImpactModerate    Impact = "moderate"
	ImpactSignificant Impact = "significant"
)

// ExpectedOutcome is the projected result of applying a strategy.
type ExpectedOutcome struct {
	SuccessProbability float64       `json:"success_probability"` // 0-100
	EstimatedTime      time.Duration `json:"estimated_time"`
	RequesterImpact    Impact        `json:"requester_impact"`
	HolderImpact       Impact        `json:"holder_impact"`
	SideEffects        []string      `json:"side_effects,omitempty"`
}

// Candidate is one scored, applicable resolution strategy.
type Candidate struct {
	Params  StrategyParams      `json:"params"`
	Score   float64             `json:"score"` // clamped to [0,100]
	Prereqs []PrerequisiteCheck `json:"prerequisites,omitempty"`
	Outcome ExpectedOutcome     `json:"expected_outcome"`
}

// Kind returns the strategy kind of the candidate's parameters.
func (c Candidate) Kind() StrategyKind {
	if c.Params == nil {
		return ""
	}
	return c.Params.strategyKind()
}

// ClampScore bounds a strategy score into [0,100].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
