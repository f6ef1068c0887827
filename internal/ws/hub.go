// Package ws is the workspace notification hub: websocket subscribers
// attach to a per-project channel and receive the events the engine and the
// transfer orchestrator publish there.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/arbiter/internal/auth"
	"github.com/mistakeknot/arbiter/internal/core"
)

const writeTimeout = 5 * time.Second

// Event is the wire envelope for everything published through the hub.
type Event struct {
	Type      core.EventType `json:"type"`
	Project   string         `json:"project"`
	Channel   string         `json:"channel"`
	Payload   any            `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var knownChannels = map[string]struct{}{
	core.ChannelConflicts: {},
	core.ChannelHandoffs:  {},
}

// Hub fans events out to websocket subscribers keyed project then channel.
// Publishing is best effort: no subscribers means the event is dropped.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]map[string]map[*websocket.Conn]struct{}
	nowFunc func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		conns:   make(map[string]map[string]map[*websocket.Conn]struct{}),
		nowFunc: time.Now,
	}
}

// Handler serves /ws/workspaces/{project}/{channel}. API-key callers may
// only subscribe to their own project.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/ws/workspaces/")
		project, channel, ok := strings.Cut(strings.Trim(path, "/"), "/")
		if !ok || project == "" || channel == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, known := knownChannels[channel]; !known {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if info, _ := auth.FromContext(r.Context()); info.Mode == auth.ModeAPIKey && info.Project != project {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.add(project, channel, conn)
		defer h.remove(project, channel, conn)

		// Subscribers only listen; drain until the peer goes away.
		ctx := r.Context()
		for {
			var v any
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				return
			}
		}
	}
}

// Publish delivers an event to every subscriber of the project's channel.
// Write failures close and detach the offending connection.
func (h *Hub) Publish(project, channel string, eventType core.EventType, payload any) {
	conns := h.snapshot(project, channel)
	if len(conns) == 0 {
		return
	}
	event := Event{
		Type:      eventType,
		Project:   project,
		Channel:   channel,
		Payload:   payload,
		Timestamp: h.nowFunc().UTC(),
	}
	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, conn, event)
		cancel()
		if err != nil {
			go func(conn *websocket.Conn) {
				conn.Close(websocket.StatusGoingAway, "write error")
				h.remove(project, channel, conn)
			}(conn)
		}
	}
}

// SubscriberCount reports attached connections for a project channel.
func (h *Hub) SubscriberCount(project, channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[project][channel])
}

func (h *Hub) snapshot(project, channel string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	perChannel := h.conns[project][channel]
	if len(perChannel) == 0 {
		return nil
	}
	out := make([]*websocket.Conn, 0, len(perChannel))
	for conn := range perChannel {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) add(project, channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perProject, ok := h.conns[project]
	if !ok {
		perProject = make(map[string]map[*websocket.Conn]struct{})
		h.conns[project] = perProject
	}
	perChannel, ok := perProject[channel]
	if !ok {
		perChannel = make(map[*websocket.Conn]struct{})
		perProject[channel] = perChannel
	}
	perChannel[conn] = struct{}{}
}

func (h *Hub) remove(project, channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perProject, ok := h.conns[project]
	if !ok {
		return
	}
	perChannel, ok := perProject[channel]
	if !ok {
		return
	}
	delete(perChannel, conn)
	if len(perChannel) == 0 {
		delete(perProject, channel)
	}
	if len(perProject) == 0 {
		delete(h.conns, project)
	}
}
