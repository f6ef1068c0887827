package resolve

import (
	"testing"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

func sigWith(p core.Priority, progress *core.Progress) *core.AgentSignal {
	return &core.AgentSignal{Priority: p, Progress: progress}
}

func reservationExpiring(t *testing.T, now time.Time, remaining time.Duration) core.Reservation {
	t.Helper()
	return core.Reservation{
		ID:        "res-1",
		AgentID:   "holder",
		Project:   "demo",
		Patterns:  []string{"src/**"},
		Mode:      core.ModeExclusive,
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(remaining),
	}
}

func TestScoreAllPrefersTransferForUrgentRequester(t *testing.T) {
	// A P0 requester blocked by a P2 holder who is 90% done but whose
	// reservation runs for another 45 minutes: the long wait and the
	// priority gap should push transfer ahead of wait.
	now := time.Now()
	req := core.ResolutionRequest{
		ConflictID:        "c-1",
		RequestingAgentID: "req",
		HoldingAgentID:    "holder",
		Resources:         []core.ResourceRef{{Path: "src/main.go", Type: core.ResourceFile}},
	}
	in := Inputs{
		RequesterSignal:    sigWith(core.P0, nil),
		HolderSignal:       sigWith(core.P2, &core.Progress{Percentage: 90}),
		HolderReservations: []core.Reservation{reservationExpiring(t, now, 45*time.Minute)},
		Available:          []string{SourceRequesterPriority, SourceHolderPriority, SourceReservations},
	}

	candidates := scoreAll(req, in, now)
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	if got := candidates[0].Kind(); got != core.StrategyTransfer {
		t.Fatalf("top candidate = %s, want %s (scores: %v)", got, core.StrategyTransfer, kindsAndScores(candidates))
	}

	var wait, transfer float64
	for _, c := range candidates {
		switch c.Kind() {
		case core.StrategyWait:
			wait = c.Score
		case core.StrategyTransfer:
			transfer = c.Score
		}
	}
	if transfer <= wait {
		t.Fatalf("transfer score %.1f not above wait score %.1f", transfer, wait)
	}
}

func kindsAndScores(cs []core.Candidate) map[core.StrategyKind]float64 {
	out := make(map[core.StrategyKind]float64, len(cs))
	for _, c := range cs {
		out[c.Kind()] = c.Score
	}
	return out
}

func TestScoreAllClampsAndSortsDescending(t *testing.T) {
	now := time.Now()
	req := core.ResolutionRequest{
		ConflictID:        "c-2",
		RequestingAgentID: "req",
		HoldingAgentID:    "holder",
		Resources: []core.ResourceRef{
			{Path: "a.go", Type: core.ResourceFile, Critical: true},
			{Path: "b.go", Type: core.ResourceFile},
		},
		Preferred:       []core.StrategyKind{core.StrategyWait, core.StrategyTransfer},
		UrgencyOverride: "critical",
	}
	in := Inputs{
		RequesterSignal: sigWith(core.P0, nil),
		HolderSignal:    sigWith(core.P4, &core.Progress{Percentage: 10, RemainingEstimate: 2 * time.Minute}),
	}

	candidates := scoreAll(req, in, now)
	for i, c := range candidates {
		if c.Score < 0 || c.Score > 100 {
			t.Errorf("%s score %.1f out of [0,100]", c.Kind(), c.Score)
		}
		if i > 0 && candidates[i-1].Score < c.Score {
			t.Errorf("candidates not sorted: %.1f before %.1f", candidates[i-1].Score, c.Score)
		}
	}
}

func TestScoreSplit(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		resources []core.ResourceRef
		want      bool
	}{
		{"single plain file", []core.ResourceRef{{Path: "a.go", Type: core.ResourceFile}}, false},
		{"single directory", []core.ResourceRef{{Path: "src/", Type: core.ResourceDirectory}}, true},
		{"two files", []core.ResourceRef{{Path: "a.go", Type: core.ResourceFile}, {Path: "b.go", Type: core.ResourceFile}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scoreSplit(core.ResolutionRequest{Resources: tt.resources}, Inputs{}, now)
			if (c != nil) != tt.want {
				t.Fatalf("applicable = %v, want %v", c != nil, tt.want)
			}
		})
	}
}

func TestScoreSplitPartitionsOddCounts(t *testing.T) {
	req := core.ResolutionRequest{Resources: []core.ResourceRef{
		{Path: "a.go", Type: core.ResourceFile},
		{Path: "b.go", Type: core.ResourceFile},
		{Path: "c.go", Type: core.ResourceFile},
	}}
	c := scoreSplit(req, Inputs{}, time.Now())
	if c == nil {
		t.Fatal("expected split candidate")
	}
	params := c.Params.(core.SplitParams)
	if len(params.HolderKeeps) != 2 || len(params.RequesterTakes) != 1 {
		t.Fatalf("partition = %d/%d, want 2/1", len(params.HolderKeeps), len(params.RequesterTakes))
	}
}

func TestScoreTransferRequiresHolder(t *testing.T) {
	req := core.ResolutionRequest{RequestingAgentID: "req"}
	if c := scoreTransfer(req, Inputs{}, time.Now()); c != nil {
		t.Fatalf("expected nil candidate without a holding agent, got %v", c.Kind())
	}
}

func TestScoreTransferPenalizesHolderProgress(t *testing.T) {
	req := core.ResolutionRequest{RequestingAgentID: "req", HoldingAgentID: "holder"}
	now := time.Now()

	scoreAt := func(pct float64) float64 {
		in := Inputs{
			RequesterSignal: sigWith(core.P0, nil),
			HolderSignal:    sigWith(core.P2, &core.Progress{Percentage: pct}),
		}
		c := scoreTransfer(req, in, now)
		if c == nil {
			t.Fatalf("expected transfer candidate at %.0f%%", pct)
		}
		return c.Score
	}

	early, mid, late := scoreAt(20), scoreAt(60), scoreAt(90)
	if !(early > mid && mid > late) {
		t.Fatalf("transfer scores should decrease with progress: %.1f, %.1f, %.1f", early, mid, late)
	}
}

func TestScoreTransferCheckpointRequirement(t *testing.T) {
	req := core.ResolutionRequest{RequestingAgentID: "req", HoldingAgentID: "holder"}
	in := Inputs{HolderSignal: sigWith(core.P2, &core.Progress{Percentage: 60})}

	c := scoreTransfer(req, in, time.Now())
	params := c.Params.(core.TransferParams)
	if !params.CheckpointRequired {
		t.Fatal("expected checkpoint required past 50% progress")
	}
	if params.FromAgentID != "holder" || params.ToAgentID != "req" {
		t.Fatalf("transfer direction = %s -> %s", params.FromAgentID, params.ToAgentID)
	}
}

func TestScoreEscalateAlwaysApplicable(t *testing.T) {
	tests := []struct {
		name string
		req  core.ResolutionRequest
		want float64
	}{
		{"baseline", core.ResolutionRequest{}, 50},
		{"critical resource", core.ResolutionRequest{
			Resources: []core.ResourceRef{{Path: "db/schema.sql", Critical: true}},
		}, 75},
		{"critical override", core.ResolutionRequest{UrgencyOverride: "critical"}, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scoreEscalate(tt.req, Inputs{}, time.Now())
			if c == nil {
				t.Fatal("escalate must always be applicable")
			}
			if c.Score != tt.want {
				t.Fatalf("score = %.1f, want %.1f", c.Score, tt.want)
			}
			if len(c.Prereqs) != 0 {
				t.Fatalf("escalate has no prerequisites, got %d", len(c.Prereqs))
			}
		})
	}
}

func TestPreferenceBoost(t *testing.T) {
	preferred := []core.StrategyKind{core.StrategyCoordinate, core.StrategySplit, core.StrategyWait, core.StrategyEscalate}
	tests := []struct {
		kind core.StrategyKind
		want float64
	}{
		{core.StrategyCoordinate, 10},
		{core.StrategySplit, 7},
		{core.StrategyWait, 4},
		{core.StrategyEscalate, 1},
		{core.StrategyTransfer, 0},
	}
	for _, tt := range tests {
		if got := preferenceBoost(preferred, tt.kind); got != tt.want {
			t.Errorf("boost(%s) = %.0f, want %.0f", tt.kind, got, tt.want)
		}
	}
}

func TestEstimateWait(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		in   Inputs
		want time.Duration
	}{
		{
			name: "reservation expiry wins",
			in: Inputs{
				HolderReservations: []core.Reservation{reservationExpiring(t, now, 12*time.Minute)},
				HolderSignal:       sigWith(core.P2, &core.Progress{RemainingEstimate: 3 * time.Minute}),
			},
			want: 12 * time.Minute,
		},
		{
			name: "explicit remaining estimate",
			in:   Inputs{HolderSignal: sigWith(core.P2, &core.Progress{RemainingEstimate: 3 * time.Minute})},
			want: 3 * time.Minute,
		},
		{
			name: "extrapolated from invested time",
			in:   Inputs{HolderSignal: sigWith(core.P2, &core.Progress{Percentage: 50, TimeInvested: 10 * time.Minute})},
			want: 10 * time.Minute,
		},
		{
			name: "no signals",
			in:   Inputs{},
			want: defaultWaitEstimate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateWait(tt.in, now); got != tt.want {
				t.Fatalf("estimateWait = %s, want %s", got, tt.want)
			}
		})
	}
}
