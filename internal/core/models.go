package core

import "time"

type EventType string

const (
	EventResolutionSuggested   EventType = "resolution.suggested"
	EventTransferStarted       EventType = "handoff.transfer_started"
	EventTransferCompleted     EventType = "handoff.transfer_completed"
	EventReservationExpired    EventType = "reservation.expired"
	EventSuggestionInvalidated EventType = "resolution.invalidated"
)

// Notification channels, scoped per project by the hub.
const (
	ChannelConflicts = "workspace:conflicts"
	ChannelHandoffs  = "workspace:handoffs"
)

// ResourceType classifies a contested resource identifier.
type ResourceType string

const (
	ResourceFile      ResourceType = "file"
	ResourceDirectory ResourceType = "directory"
	ResourcePattern   ResourceType = "pattern"
)

// ResourceRef identifies a contested file, directory or glob pattern.
type ResourceRef struct {
	Path     string       `json:"path"`
	Type     ResourceType `json:"type"`
	Critical bool         `json:"critical"`
}

// Priority is a task priority tier, P0 highest through P4 lowest.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
	P4 Priority = "P4"
)

// Tier maps a priority to a numeric weight: P0=4 down to P4=0.
// Unknown priorities map to 0.
func (p Priority) Tier() int {
	switch p {
	case P0:
		return 4
	case P1:
		return 3
	case P2:
		return 2
	case P3:
		return 1
	default:
		return 0
	}
}

// Progress describes how far along an agent is on its current task.
type Progress struct {
	Percentage        float64       `json:"percentage"`
	TimeInvested      time.Duration `json:"time_invested"`
	RemainingEstimate time.Duration `json:"remaining_estimate"` // zero = unknown
}

// AgentSignal is the payload returned by the priority source for one agent.
type AgentSignal struct {
	Priority Priority   `json:"priority"`
	Urgency  string     `json:"urgency"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Progress *Progress  `json:"progress,omitempty"`
}

// DeadlinePressure reports whether the signal implies time pressure:
// a deadline within 24h of now, or a P0/P1 priority.
func (s *AgentSignal) DeadlinePressure(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Priority == P0 || s.Priority == P1 {
		return true
	}
	return s.Deadline != nil && s.Deadline.Sub(now) <= 24*time.Hour
}

// StrategyOutcome is one row of historical outcome statistics.
type StrategyOutcome struct {
	Kind              StrategyKind  `json:"strategy"`
	SuccessCount      int           `json:"success_count"`
	FailureCount      int           `json:"failure_count"`
	AvgResolutionTime time.Duration `json:"avg_resolution_time"`
}

// HistorySignal summarizes prior conflicts over a similar resource set.
type HistorySignal struct {
	SimilarConflictCount int               `json:"similar_conflict_count"`
	Outcomes             []StrategyOutcome `json:"strategy_outcomes"`
	RelevanceScore       float64           `json:"relevance_score"`
}

// SuccessRate returns the historical success rate and sample size for the
// given strategy kind, or ok=false when no samples exist.
func (h *HistorySignal) SuccessRate(kind StrategyKind) (rate float64, samples int, ok bool) {
	if h == nil {
		return 0, 0, false
	}
	for _, o := range h.Outcomes {
		if o.Kind != kind {
			continue
		}
		samples = o.SuccessCount + o.FailureCount
		if samples == 0 {
			return 0, 0, false
		}
		return float64(o.SuccessCount) / float64(samples), samples, true
	}
	return 0, 0, false
}

// ResolutionRequest asks the engine to resolve a conflict between a
// requesting agent and the agent currently holding the contested resources.
type ResolutionRequest struct {
	ConflictID        string         `json:"conflict_id"`
	ProjectID         string         `json:"project_id"`
	RequestingAgentID string         `json:"requesting_agent_id"`
	HoldingAgentID    string         `json:"holding_agent_id,omitempty"`
	RequestingBvID    string         `json:"requesting_bv_id,omitempty"`
	HoldingBvID       string         `json:"holding_bv_id,omitempty"`
	Resources         []ResourceRef  `json:"contested_resources"`
	Preferred         []StrategyKind `json:"preferred_strategies,omitempty"`
	UrgencyOverride   string         `json:"urgency_override,omitempty"`
}

// HasCriticalResource reports whether any contested resource is critical.
func (r *ResolutionRequest) HasCriticalResource() bool {
	for _, res := range r.Resources {
		if res.Critical {
			return true
		}
	}
	return false
}

// RiskSeverity grades a risk item.
type RiskSeverity string

const (
	SeverityLow    RiskSeverity = "low"
	SeverityMedium RiskSeverity = "medium"
	SeverityHigh   RiskSeverity = "high"
)

// RiskAssessment is one identified risk of applying a strategy.
type RiskAssessment struct {
	Category    string       `json:"category"`
	Severity    RiskSeverity `json:"severity"`
	Description string       `json:"description"`
	Probability float64      `json:"probability"` // 0-100
	Mitigation  string       `json:"mitigation"`
}

// ConfidenceBreakdown explains which signals contributed to a confidence score.
type ConfidenceBreakdown struct {
	Base             float64  `json:"base"`
	SignalBonus      float64  `json:"signal_bonus"`
	HistoryBonus     float64  `json:"history_bonus"`
	PressurePenalty  float64  `json:"pressure_penalty"`
	CriticalPenalty  float64  `json:"critical_penalty"`
	SignalsAvailable []string `json:"signals_available"`
}

// Suggestion is the engine's output for one conflict.
type Suggestion struct {
	ID            string              `json:"suggestion_id"`
	ConflictID    string              `json:"conflict_id"`
	Recommended   Candidate           `json:"recommended"`
	Alternatives  []Candidate         `json:"alternatives"`
	Confidence    float64             `json:"confidence"`
	Breakdown     ConfidenceBreakdown `json:"confidence_breakdown"`
	Rationale     string              `json:"rationale"`
	AutoEligible  bool                `json:"auto_resolution_eligible"`
	EstimatedTime time.Duration       `json:"estimated_resolution_time"`
	Risks         []RiskAssessment    `json:"risks"`
	CreatedAt     time.Time           `json:"created_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// AutoResolutionCriteria gates applying a suggestion without confirmation.
// Exactly one live copy exists per engine; updates replace it wholesale.
type AutoResolutionCriteria struct {
	MinConfidence            float64       `json:"min_confidence" yaml:"min_confidence"`
	MaxWaitTime              time.Duration `json:"max_wait_time" yaml:"max_wait_time"`
	DisabledForCritical      bool          `json:"disabled_for_critical" yaml:"disabled_for_critical"`
	RequireBothAgentsEnabled bool          `json:"require_both_agents_enabled" yaml:"require_both_agents_enabled"`
	MaxPriorFailedAttempts   int           `json:"max_prior_failed_attempts" yaml:"max_prior_failed_attempts"`
}

// DefaultCriteria returns the process defaults used until the first update.
func DefaultCriteria() AutoResolutionCriteria {
	return AutoResolutionCriteria{
		MinConfidence:            85,
		MaxWaitTime:              10 * time.Minute,
		DisabledForCritical:      true,
		RequireBothAgentsEnabled: false,
		MaxPriorFailedAttempts:   2,
	}
}

// AuditRecord is one immutable entry in the resolution audit trail.
type AuditRecord struct {
	ID               string        `json:"id"`
	CorrelationID    string        `json:"correlation_id"`
	ConflictID       string        `json:"conflict_id"`
	SuggestionID     string        `json:"suggestion_id"`
	Strategy         StrategyKind  `json:"strategy"`
	Confidence       float64       `json:"confidence"`
	SourcesAvailable []string      `json:"sources_available"`
	ProcessingTime   time.Duration `json:"processing_time"`
	CreatedAt        time.Time     `json:"created_at"`
}

// HandoffRecord is produced by the surrounding handoff workflow; the
// transfer orchestrator only reads it.
type HandoffRecord struct {
	ID             string                `json:"id"`
	Request        HandoffRequest        `json:"request"`
	Acknowledgment HandoffAcknowledgment `json:"acknowledgment"`
}

type HandoffRequest struct {
	SourceAgentID    string           `json:"source_agent_id"`
	ProjectID        string           `json:"project_id"`
	ResourceManifest ResourceManifest `json:"resource_manifest"`
}

type HandoffAcknowledgment struct {
	ReceivingAgentID string `json:"receiving_agent_id"`
}

// ReservationRef is the manifest view of a reservation subject to transfer.
type ReservationRef struct {
	ID        string          `json:"id"`
	Patterns  []string        `json:"patterns"`
	Mode      ReservationMode `json:"mode"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ResourceManifest enumerates everything an agent owns that a handoff moves.
// Checkpoints, pending messages and subscriptions are id lists owned by
// external stores.
type ResourceManifest struct {
	Reservations    []ReservationRef `json:"file_reservations"`
	Checkpoints     []string         `json:"checkpoints"`
	PendingMessages []string         `json:"pending_messages"`
	Subscriptions   []string         `json:"active_subscriptions"`
}

// Total returns the number of individual resources in the manifest.
func (m *ResourceManifest) Total() int {
	return len(m.Reservations) + len(m.Checkpoints) + len(m.PendingMessages) + len(m.Subscriptions)
}

// TransferResult summarizes a transferResources run.
type TransferResult struct {
	Success     bool     `json:"success"`
	Transferred int      `json:"transferred_resources"`
	Failed      []string `json:"failed_resources,omitempty"`
	Error       string   `json:"error,omitempty"`
}
