package server

import (
	"io"
	"os"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"gladewood/server/internal/game"
	"gladewood/server/internal/net/proto"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorldsDir = t.TempDir()
	return NewHub(game.NewTestWorld("test"), cfg, testLogger())
}

func spawn(t *testing.T, h *Hub, connID, name string) game.EntityID {
	t.Helper()
	h.HandleMessage(connID, proto.SpawnPlayer{Name: name})
	msgs := h.Tick(connID)
	for _, msg := range msgs {
		if pid, ok := msg.(proto.PlayerID); ok {
			return pid.Entity
		}
	}
	t.Fatalf("no PlayerID message after spawn, got %d messages", len(msgs))
	return 0
}

func TestSpawnDeliversPlayerIDThenSnapshot(t *testing.T) {
	h := newTestHub(t)
	h.HandleMessage("conn-1", proto.SpawnPlayer{Name: "ada"})

	msgs := h.Tick("conn-1")
	if len(msgs) != 2 {
		t.Fatalf("expected PlayerID and EntityMap, got %d messages", len(msgs))
	}
	pid, ok := msgs[0].(proto.PlayerID)
	if !ok {
		t.Fatalf("first message is %T, want PlayerID", msgs[0])
	}
	snap, ok := msgs[1].(proto.EntityMap)
	if !ok {
		t.Fatalf("last message is %T, want EntityMap", msgs[1])
	}
	e, ok := snap.Entities[pid.Entity]
	if !ok {
		t.Fatalf("snapshot does not contain the spawned player %d", pid.Entity)
	}
	if e.Position != game.SpawnPosition {
		t.Fatalf("player spawned at %v, want %v", e.Position, game.SpawnPosition)
	}
	if e.Name == nil || *e.Name != "ada" {
		t.Fatalf("player name = %v, want ada", e.Name)
	}

	// The one-off queue must not replay on the next tick.
	msgs = h.Tick("conn-1")
	if len(msgs) != 1 {
		t.Fatalf("second tick delivered %d messages, want snapshot only", len(msgs))
	}
}

func TestUnboundConnectionSeesFullWorld(t *testing.T) {
	h := newTestHub(t)

	msgs := h.Tick("stranger")
	snap := msgs[len(msgs)-1].(proto.EntityMap)
	if len(snap.Entities) != len(h.world.Entities) {
		t.Fatalf("unbound snapshot has %d entities, want full world %d",
			len(snap.Entities), len(h.world.Entities))
	}
}

func TestActionsFromUnboundConnectionAreDropped(t *testing.T) {
	h := newTestHub(t)
	before := h.world.Entities.Clone()

	h.HandleMessage("stranger", proto.Move{Direction: game.DirUp})
	h.Tick("stranger")

	if got := h.droppedActions.Load(); got != 1 {
		t.Fatalf("droppedActions = %d, want 1", got)
	}
	for id, e := range before {
		if h.world.Entities[id] != e {
			t.Fatalf("entity %d changed despite dropped action", id)
		}
	}
}

func TestSharedQueueDrainedByAnyConnection(t *testing.T) {
	h := newTestHub(t)
	mover := spawn(t, h, "conn-a", "mover")
	spawn(t, h, "conn-b", "watcher")

	h.HandleMessage("conn-a", proto.Move{Direction: game.DirRight})

	// The other connection's tick applies the queued action.
	h.Tick("conn-b")

	e, ok := h.world.Get(mover)
	if !ok {
		t.Fatalf("mover %d missing from world", mover)
	}
	want := game.Point{X: game.SpawnPosition.X + 1, Y: game.SpawnPosition.Y}
	if e.Position != want {
		t.Fatalf("mover at %v, want %v", e.Position, want)
	}

	// Already drained: mover's own tick must not apply it again.
	h.Tick("conn-a")
	e, _ = h.world.Get(mover)
	if e.Position != want {
		t.Fatalf("action applied twice, mover at %v", e.Position)
	}
}

func TestMoveRecomputesVisibility(t *testing.T) {
	h := newTestHub(t)
	pid := spawn(t, h, "conn-1", "scout")

	before := h.fovs[pid].Visible
	h.HandleMessage("conn-1", proto.Move{Direction: game.DirDown})
	h.Tick("conn-1")

	after := h.fovs[pid].Visible
	pos, _ := h.world.Get(pid)
	if !after.Contains(pos.Position) {
		t.Fatalf("recomputed FOV does not contain the player's new position %v", pos.Position)
	}
	if reflect.ValueOf(before).Pointer() == reflect.ValueOf(after).Pointer() {
		t.Fatalf("FOV set was not replaced after movement")
	}
}

func TestSnapshotFiltersByVisibilityAndMargin(t *testing.T) {
	h := newTestHub(t)
	pid := spawn(t, h, "conn-1", "near")

	// Far beyond radius+margin from spawn.
	farName := "far"
	far := h.world.Gen.Next()
	h.world.Insert(far, game.Entity{
		Position: game.Point{X: 100, Y: 100},
		Name:     &farName,
		Type:     game.TypePlayer,
	})

	snap := h.EntitiesForPlayer(pid)
	if _, ok := snap[pid]; !ok {
		t.Fatalf("snapshot excludes the player itself")
	}
	if _, ok := snap[far]; ok {
		t.Fatalf("snapshot includes entity far outside radius and margin")
	}
}

func TestMoveOrderDoesNotChangeOutcome(t *testing.T) {
	runs := [][]game.Direction{
		{game.DirUp, game.DirUp, game.DirLeft, game.DirRight, game.DirDown},
		{game.DirDown, game.DirRight, game.DirUp, game.DirLeft, game.DirUp},
		{game.DirLeft, game.DirUp, game.DirDown, game.DirUp, game.DirRight},
	}

	var positions []game.Point
	for _, dirs := range runs {
		h := newTestHub(t)
		pid := spawn(t, h, "conn-1", "walker")
		for _, d := range dirs {
			h.HandleMessage("conn-1", proto.Move{Direction: d})
		}
		h.Tick("conn-1")
		e, _ := h.world.Get(pid)
		positions = append(positions, e.Position)
	}

	for i := 1; i < len(positions); i++ {
		if positions[i] != positions[0] {
			t.Fatalf("permuted move order produced %v, want %v", positions[i], positions[0])
		}
	}
}

func TestDisconnectKeepsEntity(t *testing.T) {
	h := newTestHub(t)
	pid := spawn(t, h, "conn-1", "ghost")

	h.Disconnect("conn-1")

	if _, ok := h.bindings["conn-1"]; ok {
		t.Fatalf("binding survived disconnect")
	}
	if _, ok := h.fovs[pid]; ok {
		t.Fatalf("FOV record survived disconnect")
	}
	if _, ok := h.world.Get(pid); !ok {
		t.Fatalf("entity %d removed from world on disconnect", pid)
	}
}

func TestSpawnAsReclaimsEntity(t *testing.T) {
	h := newTestHub(t)
	pid := spawn(t, h, "conn-1", "veteran")
	h.Disconnect("conn-1")

	h.HandleMessage("conn-2", proto.SpawnAs{Entity: pid})
	msgs := h.Tick("conn-2")

	got, ok := msgs[0].(proto.PlayerID)
	if !ok || got.Entity != pid {
		t.Fatalf("SpawnAs acknowledgment = %v, want PlayerID %d", msgs[0], pid)
	}
	if h.bindings["conn-2"] != pid {
		t.Fatalf("conn-2 bound to %d, want %d", h.bindings["conn-2"], pid)
	}
	if _, ok := h.fovs[pid]; !ok {
		t.Fatalf("FOV not rebuilt for reclaimed entity")
	}
}

func TestSpawnAsUnknownEntityStillBinds(t *testing.T) {
	h := newTestHub(t)
	const missing game.EntityID = 9999

	h.HandleMessage("conn-1", proto.SpawnAs{Entity: missing})
	msgs := h.Tick("conn-1")

	got, ok := msgs[0].(proto.PlayerID)
	if !ok || got.Entity != missing {
		t.Fatalf("acknowledgment = %v, want PlayerID %d", msgs[0], missing)
	}
	// No FOV record exists for the missing entity, so the snapshot
	// falls back to the whole world.
	snap := msgs[len(msgs)-1].(proto.EntityMap)
	if len(snap.Entities) != len(h.world.Entities) {
		t.Fatalf("missing entity yields %d entities, want full world %d",
			len(snap.Entities), len(h.world.Entities))
	}
}

func TestSaveWorldWritesFile(t *testing.T) {
	h := newTestHub(t)
	spawn(t, h, "conn-1", "archivist")

	h.HandleMessage("conn-1", proto.SaveWorld{})
	h.Tick("conn-1")

	path := game.WorldFilePath(h.cfg.WorldsDir, h.world.Name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("world file not written: %v", err)
	}

	loaded, err := game.Load(path)
	if err != nil {
		t.Fatalf("reload saved world: %v", err)
	}
	if len(loaded.Entities) != len(h.world.Entities) {
		t.Fatalf("saved world has %d entities, want %d", len(loaded.Entities), len(h.world.Entities))
	}
}

func TestStatusReflectsHubState(t *testing.T) {
	h := newTestHub(t)
	spawn(t, h, "conn-1", "op")
	h.RecordDecodeFailure()

	s := h.Status()
	if s.WorldName != "test" {
		t.Fatalf("status world = %q, want test", s.WorldName)
	}
	if s.BoundConnections != 1 {
		t.Fatalf("status bound connections = %d, want 1", s.BoundConnections)
	}
	if s.Players != 1 {
		t.Fatalf("status players = %d, want 1", s.Players)
	}
	if s.DecodeFailures != 1 {
		t.Fatalf("status decode failures = %d, want 1", s.DecodeFailures)
	}
	if s.Ticks == 0 {
		t.Fatalf("status ticks not advancing")
	}
}
