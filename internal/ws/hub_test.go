package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/arbiter/internal/auth"
	"github.com/mistakeknot/arbiter/internal/core"
)

func dialHub(t *testing.T, server *httptest.Server, project, channel string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/workspaces/" + project + "/" + channel
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitForSubscriber(t *testing.T, hub *Hub, project, channel string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(project, channel) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber attached to %s/%s", project, channel)
}

func TestHubDeliversToChannelSubscribers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(auth.Middleware(nil)(hub.Handler()))
	defer server.Close()

	conn := dialHub(t, server, "demo", core.ChannelConflicts)
	waitForSubscriber(t, hub, "demo", core.ChannelConflicts)

	hub.Publish("demo", core.ChannelConflicts, core.EventResolutionSuggested, map[string]any{"conflict_id": "c-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var event Event
	if err := wsjson.Read(ctx, conn, &event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != core.EventResolutionSuggested || event.Project != "demo" || event.Channel != core.ChannelConflicts {
		t.Fatalf("event = %+v", event)
	}
}

func TestHubIsolatesProjectsAndChannels(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(auth.Middleware(nil)(hub.Handler()))
	defer server.Close()

	conflicts := dialHub(t, server, "demo", core.ChannelConflicts)
	handoffs := dialHub(t, server, "demo", core.ChannelHandoffs)
	waitForSubscriber(t, hub, "demo", core.ChannelConflicts)
	waitForSubscriber(t, hub, "demo", core.ChannelHandoffs)

	hub.Publish("demo", core.ChannelHandoffs, core.EventTransferStarted, nil)
	hub.Publish("other", core.ChannelConflicts, core.EventResolutionSuggested, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var event Event
	if err := wsjson.Read(ctx, handoffs, &event); err != nil {
		t.Fatalf("read handoff event: %v", err)
	}
	if event.Type != core.EventTransferStarted {
		t.Fatalf("event = %+v", event)
	}

	// The conflicts subscriber saw nothing: the only conflicts event went
	// to a different project.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer shortCancel()
	var stray Event
	if err := wsjson.Read(shortCtx, conflicts, &stray); err == nil {
		t.Fatalf("unexpected event %+v", stray)
	}
}

func TestHubRejectsBadPaths(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(auth.Middleware(nil)(hub.Handler()))
	defer server.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/ws/workspaces/demo", http.StatusBadRequest},
		{"/ws/workspaces//" + core.ChannelConflicts, http.StatusBadRequest},
		{"/ws/workspaces/demo/workspace:unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(server.URL + tt.path)
		if err != nil {
			t.Fatalf("get %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestHubEnforcesProjectForAPIKeys(t *testing.T) {
	hub := NewHub()
	ring := auth.NewKeyring(false, map[string]string{"key-alpha": "alpha"})
	server := httptest.NewServer(auth.Middleware(ring)(hub.Handler()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/workspaces/beta/" + core.ChannelConflicts
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer key-alpha"}},
	})
	if err == nil {
		t.Fatal("dial across projects should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
