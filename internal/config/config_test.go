package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.DBPath != DefaultDBPath {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Resolution.SuggestionTTL != DefaultSuggestionTTL || cfg.Resolution.AuditCap != DefaultAuditCap {
		t.Fatalf("resolution defaults not applied: %+v", cfg.Resolution)
	}
}

func TestLoadParsesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbiter.yaml")
	content := `addr: ":9000"
db_path: /tmp/test.db
signals:
  priority_base_url: http://bv.local
  fetch_timeout: 5s
resolution:
  suggestion_ttl: 1m
  min_confidence: 70
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Signals.PriorityBaseURL != "http://bv.local" || cfg.Signals.FetchTimeout != 5*time.Second {
		t.Fatalf("signals = %+v", cfg.Signals)
	}
	if cfg.Signals.HistoryBaseURL != "" {
		t.Fatalf("history should stay disabled: %+v", cfg.Signals)
	}
	if cfg.Resolution.SuggestionTTL != time.Minute {
		t.Fatalf("ttl = %s", cfg.Resolution.SuggestionTTL)
	}
	if cfg.Resolution.MinConfidence == nil || *cfg.Resolution.MinConfidence != 70 {
		t.Fatalf("min confidence = %v", cfg.Resolution.MinConfidence)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Fatalf("sweep interval default missing: %s", cfg.SweepInterval)
	}
}

func TestLoadRejectsBadCriteria(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbiter.yaml")
	if err := os.WriteFile(path, []byte("resolution:\n  min_confidence: 150\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
