// Package embedded provides an embeddable arbiter server for in-process
// use: store, resolution engine, transfer orchestrator and notification hub
// wired together behind one HTTP listener.
package embedded

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mistakeknot/arbiter/internal/auth"
	"github.com/mistakeknot/arbiter/internal/config"
	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/resolve"
	"github.com/mistakeknot/arbiter/internal/server"
	"github.com/mistakeknot/arbiter/internal/signals"
	"github.com/mistakeknot/arbiter/internal/storage/sqlite"
	"github.com/mistakeknot/arbiter/internal/transfer"
	"github.com/mistakeknot/arbiter/internal/ws"
)

// Server is an embedded arbiter instance.
type Server struct {
	cfg          config.Config
	store        *sqlite.ResilientStore
	sweeper      *sqlite.Sweeper
	hub          *ws.Hub
	engine       *resolve.Engine
	orchestrator *transfer.Orchestrator
	srv          *server.Server

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New assembles an arbiter server from configuration. Auth is enabled when
// the config names a keys file; otherwise localhost callers are admitted.
func New(cfg config.Config) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	base, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	store := sqlite.NewResilient(base)

	keyring, err := auth.LoadKeyring(cfg.KeysFile)
	if err != nil {
		base.Close()
		return nil, fmt.Errorf("load auth: %w", err)
	}

	hub := ws.NewHub()
	sweeper := sqlite.NewSweeper(store, hub, cfg.SweepInterval)

	var signalOpts []signals.Option
	if cfg.Signals.APIKey != "" {
		signalOpts = append(signalOpts, signals.WithAPIKey(cfg.Signals.APIKey))
	}
	sources := resolve.Sources{
		Priority:     signals.NewPriorityClient(cfg.Signals.PriorityBaseURL, signalOpts...),
		History:      signals.NewHistoryClient(cfg.Signals.HistoryBaseURL, signalOpts...),
		Reservations: store,
	}

	engineOpts := []resolve.EngineOption{
		resolve.WithPublisher(hub),
		resolve.WithSuggestionTTL(cfg.Resolution.SuggestionTTL),
		resolve.WithAuditCap(cfg.Resolution.AuditCap),
		resolve.WithFetchTimeout(cfg.Signals.FetchTimeout),
	}
	if criteria, override := criteriaFromConfig(cfg.Resolution); override {
		engineOpts = append(engineOpts, resolve.WithCriteria(criteria))
	}
	engine := resolve.NewEngine(sources, engineOpts...)

	orchestrator := transfer.NewOrchestrator(
		store,
		transfer.NoopCheckpointStore{},
		transfer.NoopMessageStore{},
		transfer.NoopSubscriptionStore{},
		transfer.WithPublisher(hub),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"breaker": store.BreakerState(),
		})
	})
	mux.Handle("/ws/workspaces/", hub.Handler())

	srv, err := server.New(server.Config{
		Addr:       cfg.Addr,
		SocketPath: cfg.SocketPath,
		Handler:    auth.Middleware(keyring)(mux),
	})
	if err != nil {
		base.Close()
		return nil, err
	}

	return &Server{
		cfg:          cfg,
		store:        store,
		sweeper:      sweeper,
		hub:          hub,
		engine:       engine,
		orchestrator: orchestrator,
		srv:          srv,
	}, nil
}

// Start launches the listener and the reservation sweeper in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.sweeper.Start(ctx)
	go func() {
		if err := s.srv.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "arbiter server error: %v\n", err)
		}
	}()
	return nil
}

// Stop shuts everything down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.sweeper.Stop()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	err := s.srv.Shutdown(ctx)
	if closeErr := s.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Engine exposes the resolution engine for in-process callers.
func (s *Server) Engine() *resolve.Engine { return s.engine }

// Orchestrator exposes the transfer orchestrator for in-process callers.
func (s *Server) Orchestrator() *transfer.Orchestrator { return s.orchestrator }

// Store exposes the reservation store for direct access if needed.
func (s *Server) Store() *sqlite.ResilientStore { return s.store }

// Hub exposes the notification hub.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// URL returns the base URL for the server.
func (s *Server) URL() string { return "http://" + s.cfg.Addr }

func criteriaFromConfig(r config.Resolution) (criteria core.AutoResolutionCriteria, override bool) {
	criteria = core.DefaultCriteria()
	if r.MinConfidence != nil {
		criteria.MinConfidence = *r.MinConfidence
		override = true
	}
	if r.MaxWaitTime != nil {
		criteria.MaxWaitTime = *r.MaxWaitTime
		override = true
	}
	if r.DisabledForCritical != nil {
		criteria.DisabledForCritical = *r.DisabledForCritical
		override = true
	}
	return criteria, override
}
