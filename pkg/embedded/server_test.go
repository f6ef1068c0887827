package embedded

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mistakeknot/arbiter/internal/config"
	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/resolve"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.DBPath = filepath.Join(t.TempDir(), "arbiter.db")
	return cfg
}

func TestNewWiresEverything(t *testing.T) {
	s, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Stop()

	if s.Engine() == nil || s.Orchestrator() == nil || s.Hub() == nil || s.Store() == nil {
		t.Fatal("components not wired")
	}

	// The store is usable before Start.
	r, err := s.Store().CreateReservation(context.Background(), core.Reservation{
		AgentID:  "agent-1",
		Project:  "demo",
		Patterns: []string{"src/**"},
		Mode:     core.ModeExclusive,
		TTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	if r.ID == "" {
		t.Fatal("reservation id not assigned")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestEngineResolvesThroughEmbeddedWiring(t *testing.T) {
	s, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Stop()

	res := s.Engine().RequestResolution(context.Background(), core.ResolutionRequest{
		ConflictID:        "c-embedded",
		ProjectID:         "demo",
		RequestingAgentID: "agent-1",
		HoldingAgentID:    "agent-2",
		Resources:         []core.ResourceRef{{Path: "src/main.go", Type: core.ResourceFile}},
	}, resolve.ResolveOptions{})
	if !res.Success {
		t.Fatalf("resolution failed: %s", res.Error)
	}
	if res.Suggestion.Recommended.Kind() == "" {
		t.Fatal("no recommended strategy")
	}
}
