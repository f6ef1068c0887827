package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

func TestFetchPriority(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bv/bv-42/priority" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(core.AgentSignal{
			Priority: core.P1,
			Urgency:  "high",
			Progress: &core.Progress{Percentage: 60},
		})
	}))
	defer srv.Close()

	c := NewPriorityClient(srv.URL)
	sig, err := c.FetchPriority(context.Background(), "bv-42")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sig.Priority != core.P1 || sig.Progress == nil || sig.Progress.Percentage != 60 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestFetchPriorityServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewPriorityClient(srv.URL)
	if _, err := c.FetchPriority(context.Background(), "bv-42"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestFetchPriorityRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewPriorityClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.FetchPriority(ctx, "bv-42"); err == nil {
		t.Fatal("expected deadline error")
	}
}

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("paths"); got != "a.go,b.go" {
			t.Errorf("unexpected paths %q", got)
		}
		_ = json.NewEncoder(w).Encode(core.HistorySignal{
			SimilarConflictCount: 4,
			Outcomes: []core.StrategyOutcome{
				{Kind: core.StrategyWait, SuccessCount: 3, FailureCount: 1},
			},
			RelevanceScore: 0.8,
		})
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL)
	if !c.Enabled() {
		t.Fatal("expected enabled client")
	}
	hist, err := c.FetchHistory(context.Background(), []core.ResourceRef{
		{Path: "a.go", Type: core.ResourceFile},
		{Path: "b.go", Type: core.ResourceFile},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	rate, samples, ok := hist.SuccessRate(core.StrategyWait)
	if !ok || samples != 4 || rate != 0.75 {
		t.Fatalf("unexpected success rate: %v %d %v", rate, samples, ok)
	}
}

func TestHistoryDisabled(t *testing.T) {
	c := NewHistoryClient("")
	if c.Enabled() {
		t.Fatal("expected disabled client for empty base URL")
	}
	if _, err := c.FetchHistory(context.Background(), nil); err == nil {
		t.Fatal("expected error from disabled client")
	}
}
