// ABOUTME: Tests for the websocket events gateway route, including auth rejection.
package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxqueue/fluxqueue/internal/eventbus"
)

func TestEvents_RequiresAuth(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a credential")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestEvents_UpgradesWithValidCredential(t *testing.T) {
	t.Parallel()
	srv, token := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events"
	headers := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, headers)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}
}

// TestEvents_ReceivesPublishedEvent guards against the upgraded connection's
// delivery loop dying right after the HTTP handler returns: it must keep
// streaming well past that point, not just complete the handshake.
func TestEvents_ReceivesPublishedEvent(t *testing.T) {
	t.Parallel()
	srv, token, bus := newTestServerWithBus(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events"
	headers := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, headers)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	bus.Publish(eventbus.Event{Type: eventbus.JobSubmitted, JobID: "job-1", TenantID: "tenant-a"})

	var ev eventbus.Event
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event after upgrade: %v (delivery loop likely torn down by request context cancellation)", err)
	}
	if ev.JobID != "job-1" {
		t.Fatalf("event job id = %q, want job-1", ev.JobID)
	}
}
