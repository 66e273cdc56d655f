package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newDiagServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := newTestHub(t)
	diag := NewDiagnostics(hub, testLogger())
	diag.interval = 10 * time.Millisecond
	mux := http.NewServeMux()
	diag.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestDiagnosticsStatusEndpoint(t *testing.T) {
	hub, srv := newDiagServer(t)
	spawn(t, hub, "conn-1", "op")

	resp, err := http.Get(srv.URL + "/diagnostics")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.WorldName != "test" {
		t.Fatalf("world name = %q", status.WorldName)
	}
	if status.BoundConnections != 1 {
		t.Fatalf("bound connections = %d", status.BoundConnections)
	}
	if status.Entities == 0 {
		t.Fatalf("entity count missing from status")
	}
}

func TestDiagnosticsWatchPushesStatus(t *testing.T) {
	_, srv := newDiagServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/diagnostics/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var status Status
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read pushed status: %v", err)
	}
	if status.WorldName != "test" {
		t.Fatalf("pushed world name = %q", status.WorldName)
	}
}
