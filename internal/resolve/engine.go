package resolve

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mistakeknot/arbiter/internal/core"
)

// DefaultSuggestionTTL bounds how long a suggestion is served from cache.
const DefaultSuggestionTTL = 30 * time.Second

// ErrNoViableStrategy is returned when scoring produces zero candidates.
// Escalation always applies, so this only fires if the scorer set shrinks.
var ErrNoViableStrategy = fmt.Errorf("no viable resolution strategies found")

// Engine is the conflict resolution orchestrator. It owns the suggestion
// cache, the audit trail and the live auto-resolution criteria.
type Engine struct {
	sources Sources
	bus     Publisher
	cache   *SuggestionCache
	audit   *AuditLog
	flight  singleflight.Group
	ttl     time.Duration
	fetch   time.Duration
	nowFunc func() time.Time

	mu       sync.RWMutex
	criteria core.AutoResolutionCriteria
}

type EngineOption func(*Engine)

func WithPublisher(bus Publisher) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

func WithSuggestionTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.ttl = ttl }
}

// WithFetchTimeout sets the per-branch signal fetch deadline applied when a
// caller does not pass its own ResolveOptions.Timeout.
func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.fetch = d }
}

func WithAuditCap(capacity int) EngineOption {
	return func(e *Engine) { e.audit = NewAuditLog(capacity) }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.nowFunc = now }
}

func WithCriteria(c core.AutoResolutionCriteria) EngineOption {
	return func(e *Engine) { e.criteria = c }
}

func NewEngine(src Sources, opts ...EngineOption) *Engine {
	e := &Engine{
		sources:  src,
		ttl:      DefaultSuggestionTTL,
		nowFunc:  time.Now,
		audit:    NewAuditLog(DefaultAuditCap),
		criteria: core.DefaultCriteria(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = NewSuggestionCache(e.ttl)
	e.cache.nowFunc = e.nowFunc
	return e
}

// ResolveOptions tunes one RequestResolution call.
type ResolveOptions struct {
	// ForceRecalculate bypasses the suggestion cache.
	ForceRecalculate bool
	// Timeout bounds each signal fetch individually. Zero falls back to
	// the engine's configured fetch timeout.
	Timeout time.Duration
	// SkipHistory disables the historical-outcome lookup.
	SkipHistory bool
}

// Result is the structured outcome of a resolution request. The engine
// never lets an internal error escape; failures land in Error.
type Result struct {
	Success    bool             `json:"success"`
	Suggestion *core.Suggestion `json:"suggestion,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// RequestResolution produces (or returns a cached) resolution suggestion
// for a conflict. Concurrent calls for the same conflict id share one
// computation; calls for different ids proceed independently.
func (e *Engine) RequestResolution(ctx context.Context, req core.ResolutionRequest, opts ResolveOptions) Result {
	if req.ConflictID == "" {
		return Result{Success: false, Error: "conflict id required"}
	}
	if req.RequestingAgentID == "" {
		return Result{Success: false, Error: "requesting agent id required"}
	}

	if opts.ForceRecalculate {
		s, err := e.resolve(ctx, req, opts)
		if err != nil {
			return Result{Success: false, Error: err.Error()}
		}
		return Result{Success: true, Suggestion: s}
	}

	if s := e.cache.Get(req.ConflictID); s != nil {
		return Result{Success: true, Suggestion: s}
	}

	v, err, _ := e.flight.Do(req.ConflictID, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have just
		// filled the cache.
		if s := e.cache.Get(req.ConflictID); s != nil {
			return s, nil
		}
		return e.resolve(ctx, req, opts)
	})
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Suggestion: v.(*core.Suggestion)}
}

// resolve runs the full pipeline: aggregate, score, assess, assemble,
// cache, audit, announce. Panics are converted to errors so callers always
// get a structured result.
func (e *Engine) resolve(ctx context.Context, req core.ResolutionRequest, opts ResolveOptions) (s *core.Suggestion, err error) {
	start := e.nowFunc()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolution failed: %v", r)
		}
		if err != nil {
			log.Printf("resolve: conflict %s failed after %s: %v", req.ConflictID, e.nowFunc().Sub(start), err)
		}
	}()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.fetch
	}
	in := Aggregate(ctx, e.sources, req, AggregateOptions{
		Timeout:     timeout,
		SkipHistory: opts.SkipHistory,
	})

	now := e.nowFunc()
	candidates := scoreAll(req, in, now)
	if len(candidates) == 0 {
		return nil, ErrNoViableStrategy
	}

	recommended := candidates[0]
	alternatives := candidates[1:]
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}

	confidence, breakdown := scoreConfidence(recommended, req, in, now)
	risks := assessRisks(recommended.Kind(), req.Resources)
	eligibility := checkEligibility(EligibilityInput{
		Candidate:         recommended,
		Confidence:        confidence,
		Resources:         req.Resources,
		BothAgentsEnabled: true,
	}, e.Criteria())

	s = &core.Suggestion{
		ID:            uuid.NewString(),
		ConflictID:    req.ConflictID,
		Recommended:   recommended,
		Alternatives:  append([]core.Candidate(nil), alternatives...),
		Confidence:    confidence,
		Breakdown:     breakdown,
		Rationale:     buildRationale(recommended, confidence, in, risks),
		AutoEligible:  eligibility.Eligible,
		EstimatedTime: recommended.Outcome.EstimatedTime,
		Risks:         risks,
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.ttl),
	}
	e.cache.Put(s)

	e.audit.Append(core.AuditRecord{
		ID:               uuid.NewString(),
		CorrelationID:    uuid.NewString(),
		ConflictID:       req.ConflictID,
		SuggestionID:     s.ID,
		Strategy:         recommended.Kind(),
		Confidence:       confidence,
		SourcesAvailable: append([]string(nil), in.Available...),
		ProcessingTime:   e.nowFunc().Sub(start),
		CreatedAt:        now,
	})

	// Fire and forget; a publish failure never fails the resolution.
	if e.bus != nil {
		e.bus.Publish(req.ProjectID, core.ChannelConflicts, core.EventResolutionSuggested, map[string]any{
			"conflict_id":   req.ConflictID,
			"suggestion_id": s.ID,
			"strategy":      string(recommended.Kind()),
			"confidence":    confidence,
			"auto_eligible": s.AutoEligible,
		})
	}

	return s, nil
}

// InvalidateSuggestion drops the cached suggestion for a conflict.
func (e *Engine) InvalidateSuggestion(conflictID string) bool {
	return e.cache.Invalidate(conflictID)
}

// AuditRecords returns up to limit of the most recent audit records.
func (e *Engine) AuditRecords(limit int) []core.AuditRecord {
	return e.audit.Recent(limit)
}

// Criteria returns the live auto-resolution criteria.
func (e *Engine) Criteria() core.AutoResolutionCriteria {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.criteria
}

// CriteriaPatch is a partial criteria update; nil fields keep their value.
type CriteriaPatch struct {
	MinConfidence            *float64
	MaxWaitTime              *time.Duration
	DisabledForCritical      *bool
	RequireBothAgentsEnabled *bool
	MaxPriorFailedAttempts   *int
}

// UpdateCriteria applies a patch and replaces the live criteria wholesale,
// returning the new value.
func (e *Engine) UpdateCriteria(patch CriteriaPatch) core.AutoResolutionCriteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.criteria
	if patch.MinConfidence != nil {
		next.MinConfidence = *patch.MinConfidence
	}
	if patch.MaxWaitTime != nil {
		next.MaxWaitTime = *patch.MaxWaitTime
	}
	if patch.DisabledForCritical != nil {
		next.DisabledForCritical = *patch.DisabledForCritical
	}
	if patch.RequireBothAgentsEnabled != nil {
		next.RequireBothAgentsEnabled = *patch.RequireBothAgentsEnabled
	}
	if patch.MaxPriorFailedAttempts != nil {
		next.MaxPriorFailedAttempts = *patch.MaxPriorFailedAttempts
	}
	e.criteria = next
	return next
}

// Reset restores cache, audit log and criteria to initial state. Test support.
func (e *Engine) Reset() {
	e.cache.Reset()
	e.audit.Reset()
	e.mu.Lock()
	e.criteria = core.DefaultCriteria()
	e.mu.Unlock()
}
