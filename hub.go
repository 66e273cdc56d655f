// Package server hosts the synchronization core: the hub that owns the
// authoritative world behind one lock, and the QUIC transport that
// drives a tick loop per connection.
package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"gladewood/server/internal/fov"
	"gladewood/server/internal/game"
	"gladewood/server/internal/net/proto"
)

// pendingAction is one queued client action tagged with the entity the
// sending connection was bound to at enqueue time.
type pendingAction struct {
	actor  game.EntityID
	action game.Action
}

// Hub owns the world store, the per-player FOV table, the
// connection→entity bindings, and the per-connection one-off message
// queues. One mutex guards all of it; every tick drains the shared
// action queue under that lock, and callers send the returned messages
// after release so a slow peer never stalls the others.
type Hub struct {
	mu       sync.Mutex
	world    *game.World
	fovs     map[game.EntityID]*fov.PlayerFOV
	bindings map[string]game.EntityID
	oneOff   map[string][]proto.Message
	pending  []pendingAction

	cfg Config
	log *logrus.Entry

	startedAt      time.Time
	ticks          atomic.Uint64
	droppedActions atomic.Uint64
	decodeFailures atomic.Uint64
}

// NewHub creates a hub around an existing world.
func NewHub(world *game.World, cfg Config, logger *logrus.Logger) *Hub {
	return &Hub{
		world:     world,
		fovs:      make(map[game.EntityID]*fov.PlayerFOV),
		bindings:  make(map[string]game.EntityID),
		oneOff:    make(map[string][]proto.Message),
		cfg:       cfg.normalized(),
		log:       logger.WithField("component", "hub"),
		startedAt: time.Now(),
	}
}

// HandleMessage ingests one decoded message from a connection. Spawn
// variants bind the connection immediately; movement and save requests
// are queued for the next tick. Actions from connections with no bound
// entity are dropped.
func (h *Hub) HandleMessage(connID string, msg proto.Message) {
	switch m := msg.(type) {
	case proto.SpawnPlayer:
		h.bindNewPlayer(connID, m.Name)
	case proto.SpawnAs:
		h.bindExisting(connID, m.Entity)
	case proto.Move:
		h.enqueue(connID, game.MoveAction(m.Direction))
	case proto.SaveWorld:
		h.enqueue(connID, game.SaveWorldAction())
	default:
		h.log.WithField("conn", connID).Warn("ignoring message that is not a client action")
	}
}

func (h *Hub) bindNewPlayer(connID, name string) {
	h.mu.Lock()
	events := game.Apply(h.world, 0, game.SpawnPlayerAction(name))
	pid := events[0].Entity
	h.bindLocked(connID, pid)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"conn": connID, "entity": pid, "name": name}).
		Info("spawned and bound new player")
}

func (h *Hub) bindExisting(connID string, pid game.EntityID) {
	h.mu.Lock()
	events := game.Apply(h.world, 0, game.SpawnAsAction(pid))
	target := events[0].Entity
	_, exists := h.world.Get(target)
	h.bindLocked(connID, target)
	h.mu.Unlock()

	entry := h.log.WithFields(logrus.Fields{"conn": connID, "entity": target})
	if !exists {
		// Binding is still performed; without a FOV record the
		// snapshot path serves the full world until the entity
		// appears.
		entry.Warn("connection bound to entity that does not exist")
		return
	}
	entry.Info("connection bound to existing entity")
}

// bindLocked records the binding, initializes FOV when the entity
// exists, and queues the one-off PlayerID notice for the connection.
func (h *Hub) bindLocked(connID string, pid game.EntityID) {
	h.bindings[connID] = pid
	if e, ok := h.world.Get(pid); ok {
		pf := fov.New(h.cfg.FOVRadius)
		pf.Recompute(e.Position, h.world.Entities)
		h.fovs[pid] = pf
	}
	h.oneOff[connID] = append(h.oneOff[connID], proto.PlayerID{Entity: pid})
}

func (h *Hub) enqueue(connID string, action game.Action) {
	h.mu.Lock()
	pid, bound := h.bindings[connID]
	if !bound {
		h.mu.Unlock()
		h.droppedActions.Add(1)
		h.log.WithField("conn", connID).Debug("dropping action from unbound connection")
		return
	}
	h.pending = append(h.pending, pendingAction{actor: pid, action: action})
	h.mu.Unlock()
}

// Tick runs one synchronization step on behalf of a connection: drain
// and apply the shared action queue, recompute FOV for entities that
// moved, collect the connection's one-off messages, and build its
// filtered snapshot. The returned messages are sent by the caller after
// the lock is released; the snapshot is always last.
func (h *Hub) Tick(connID string) []proto.Message {
	h.ticks.Add(1)

	var toSave *game.World
	h.mu.Lock()
	if h.drainPendingLocked() {
		toSave = h.world.Clone()
	}
	msgs := append([]proto.Message(nil), h.oneOff[connID]...)
	delete(h.oneOff, connID)
	snapshot := h.snapshotLocked(connID)
	h.mu.Unlock()

	if toSave != nil {
		if path, err := game.Save(toSave, h.cfg.WorldsDir); err != nil {
			h.log.WithError(err).Error("world save failed")
		} else {
			h.log.WithField("path", path).Info("world saved")
		}
	}

	return append(msgs, proto.EntityMap{Entities: snapshot})
}

// drainPendingLocked applies every queued action, recomputes FOV for
// players that moved, and reports whether a save was requested.
func (h *Hub) drainPendingLocked() (saveRequested bool) {
	if len(h.pending) == 0 {
		return false
	}
	pending := h.pending
	h.pending = nil

	moved := make(map[game.EntityID]struct{})
	for _, pa := range pending {
		for _, ev := range game.Apply(h.world, pa.actor, pa.action) {
			switch ev.Kind {
			case game.EventEntityMoved:
				moved[ev.Entity] = struct{}{}
			case game.EventSaveRequested:
				saveRequested = true
			}
		}
	}

	for pid := range moved {
		pf, ok := h.fovs[pid]
		if !ok {
			continue
		}
		if e, ok := h.world.Get(pid); ok {
			pf.Recompute(e.Position, h.world.Entities)
		}
	}
	return saveRequested
}

// snapshotLocked builds the outbound entity map for a connection. An
// unbound connection sees the whole world until it spawns.
func (h *Hub) snapshotLocked(connID string) game.EntityMap {
	pid, bound := h.bindings[connID]
	if !bound {
		return h.world.Entities.Clone()
	}
	return h.entitiesForPlayerLocked(pid)
}

// EntitiesForPlayer returns the subset of world entities the player may
// see: everything inside its strict FOV plus everything inside the
// margin bounding box around it. Without a FOV record the whole world
// is returned.
func (h *Hub) EntitiesForPlayer(pid game.EntityID) game.EntityMap {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entitiesForPlayerLocked(pid)
}

func (h *Hub) entitiesForPlayerLocked(pid game.EntityID) game.EntityMap {
	pf, ok := h.fovs[pid]
	if !ok {
		return h.world.Entities.Clone()
	}
	player, ok := h.world.Get(pid)
	if !ok {
		return game.EntityMap{}
	}

	out := make(game.EntityMap)
	for id, e := range h.world.Entities {
		inFOV := pf.Visible.Contains(e.Position)
		inMargin := fov.InMarginBox(player.Position, e.Position, pf.Radius, h.cfg.NetworkMargin)
		if !inFOV && !inMargin {
			continue
		}
		if e.Name != nil {
			name := *e.Name
			e.Name = &name
		}
		out[id] = e
	}
	return out
}

// Disconnect tears down a connection's binding, one-off queue, and FOV
// record. The entity itself stays in the world and can be reclaimed
// with SpawnAs on a later connection.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	pid, bound := h.bindings[connID]
	delete(h.bindings, connID)
	delete(h.oneOff, connID)
	if bound {
		shared := false
		for _, other := range h.bindings {
			if other == pid {
				shared = true
				break
			}
		}
		if !shared {
			delete(h.fovs, pid)
		}
	}
	h.mu.Unlock()

	h.log.WithField("conn", connID).Info("connection state removed")
}

// RecordDecodeFailure bumps the malformed-payload counter for the
// diagnostics surface.
func (h *Hub) RecordDecodeFailure() {
	h.decodeFailures.Add(1)
}
