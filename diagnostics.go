package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Status is a point-in-time summary of the hub for operators.
type Status struct {
	WorldName        string `json:"worldName"`
	Entities         int    `json:"entities"`
	Players          int    `json:"players"`
	BoundConnections int    `json:"boundConnections"`
	Ticks            uint64 `json:"ticks"`
	DroppedActions   uint64 `json:"droppedActions"`
	DecodeFailures   uint64 `json:"decodeFailures"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	TickIntervalMs   int64  `json:"tickIntervalMs"`
}

// Status snapshots the hub counters and world size.
func (h *Hub) Status() Status {
	h.mu.Lock()
	name := h.world.Name
	entities := len(h.world.Entities)
	players := len(h.world.PlayableEntities())
	bound := len(h.bindings)
	h.mu.Unlock()

	return Status{
		WorldName:        name,
		Entities:         entities,
		Players:          players,
		BoundConnections: bound,
		Ticks:            h.ticks.Load(),
		DroppedActions:   h.droppedActions.Load(),
		DecodeFailures:   h.decodeFailures.Load(),
		UptimeSeconds:    int64(time.Since(h.startedAt) / time.Second),
		TickIntervalMs:   h.cfg.TickInterval.Milliseconds(),
	}
}

// Diagnostics exposes the hub status over HTTP: a one-shot JSON
// endpoint and a websocket feed that pushes a status once per second.
type Diagnostics struct {
	hub      *Hub
	log      *logrus.Entry
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewDiagnostics wires the diagnostics surface to a hub.
func NewDiagnostics(hub *Hub, logger *logrus.Logger) *Diagnostics {
	return &Diagnostics{
		hub:      hub,
		log:      logger.WithField("component", "diagnostics"),
		interval: time.Second,
	}
}

// Register installs the diagnostics handlers on a mux.
func (d *Diagnostics) Register(mux *http.ServeMux) {
	mux.HandleFunc("/diagnostics", d.handleStatus)
	mux.HandleFunc("/diagnostics/watch", d.handleWatch)
}

func (d *Diagnostics) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.hub.Status()); err != nil {
		d.log.WithError(err).Warn("write status failed")
	}
}

func (d *Diagnostics) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain control frames so pings and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(d.hub.Status()); err != nil {
				return
			}
		}
	}
}
