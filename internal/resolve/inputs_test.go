package resolve

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

type slowPriority struct {
	delay time.Duration
	sig   *core.AgentSignal
}

func (s *slowPriority) FetchPriority(ctx context.Context, _ string) (*core.AgentSignal, error) {
	select {
	case <-time.After(s.delay):
		return s.sig, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAggregateGathersAllSources(t *testing.T) {
	src := Sources{
		Priority: &stubPriority{signals: map[string]*core.AgentSignal{
			"bv-req":    {Priority: core.P1},
			"bv-holder": {Priority: core.P3},
		}},
		History: &stubHistory{signal: &core.HistorySignal{SimilarConflictCount: 2}},
		Reservations: &stubReservations{reservations: []core.Reservation{
			{ID: "res-1", AgentID: "holder"},
		}},
	}

	in := Aggregate(context.Background(), src, testRequest("c-agg"), AggregateOptions{})
	if in.RequesterSignal == nil || in.HolderSignal == nil || in.History == nil || len(in.HolderReservations) != 1 {
		t.Fatalf("incomplete aggregation: %+v", in)
	}

	got := append([]string(nil), in.Available...)
	sort.Strings(got)
	want := []string{SourceHistory, SourceHolderPriority, SourceRequesterPriority, SourceReservations}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("available = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("available = %v, want %v", got, want)
		}
	}
}

func TestAggregateSkipsUnidentifiedParties(t *testing.T) {
	src := Sources{
		Priority:     &stubPriority{signals: map[string]*core.AgentSignal{}},
		Reservations: &stubReservations{},
	}
	req := core.ResolutionRequest{ConflictID: "c-anon", RequestingAgentID: "req"}

	in := Aggregate(context.Background(), src, req, AggregateOptions{})
	if len(in.Available) != 0 {
		t.Fatalf("nothing should be fetched without ids: %v", in.Available)
	}
}

func TestAggregateTimeoutDegrades(t *testing.T) {
	src := Sources{
		Priority: &slowPriority{delay: time.Second, sig: &core.AgentSignal{Priority: core.P0}},
	}
	req := testRequest("c-slow")

	start := time.Now()
	in := Aggregate(context.Background(), src, req, AggregateOptions{Timeout: 20 * time.Millisecond})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("aggregation did not respect branch timeout: %s", elapsed)
	}
	if in.RequesterSignal != nil || in.HolderSignal != nil {
		t.Fatal("timed-out branches must degrade to nil")
	}
	if len(in.Available) != 0 {
		t.Fatalf("available = %v", in.Available)
	}
}

func TestAggregateSkipHistory(t *testing.T) {
	src := Sources{History: &stubHistory{signal: &core.HistorySignal{SimilarConflictCount: 1}}}

	in := Aggregate(context.Background(), src, testRequest("c-skip"), AggregateOptions{SkipHistory: true})
	if in.History != nil {
		t.Fatal("history fetched despite skip")
	}
}
