package game

import "math"

// SpawnPosition is the fixed cell where new players enter the world.
var SpawnPosition = Point{X: 10, Y: 10}

// ActionKind tags an Action value.
type ActionKind uint8

const (
	ActionMove ActionKind = iota
	ActionSpawnPlayer
	ActionSpawnAs
	ActionSaveWorld
)

// Action is one state-mutating request aimed at the world. The zero
// fields of the variants not selected by Kind are ignored.
type Action struct {
	Kind      ActionKind
	Direction Direction // ActionMove
	Name      string    // ActionSpawnPlayer
	Target    EntityID  // ActionSpawnAs
}

// MoveAction steps the actor one cell in the given direction.
func MoveAction(d Direction) Action {
	return Action{Kind: ActionMove, Direction: d}
}

// SpawnPlayerAction creates a new player entity with the given name.
func SpawnPlayerAction(name string) Action {
	return Action{Kind: ActionSpawnPlayer, Name: name}
}

// SpawnAsAction requests control of an existing entity. It mutates
// nothing; the server performs the binding.
func SpawnAsAction(target EntityID) Action {
	return Action{Kind: ActionSpawnAs, Target: target}
}

// SaveWorldAction requests a world save. The applier performs no I/O;
// the server reacts to the emitted event.
func SaveWorldAction() Action {
	return Action{Kind: ActionSaveWorld}
}

// EventKind tags an Event emitted by Apply.
type EventKind uint8

const (
	EventEntityMoved EventKind = iota
	EventPlayerSpawned
	EventSpawnAsRequested
	EventSaveRequested
)

// Event tells the caller what Apply did so upper layers can react
// (rebind connections, recompute FOV, persist) without Apply carrying
// side effects of its own.
type Event struct {
	Kind   EventKind
	Entity EntityID
}

// Apply executes a single action against the world and returns the
// resulting events. It is the only sanctioned mutation path and is fully
// deterministic: identical inputs always yield identical worlds and
// identical event lists.
func Apply(w *World, actor EntityID, act Action) []Event {
	switch act.Kind {
	case ActionMove:
		moveEntity(w, actor, act.Direction)
		return []Event{{Kind: EventEntityMoved, Entity: actor}}
	case ActionSpawnPlayer:
		id := SpawnPlayer(w, act.Name)
		return []Event{{Kind: EventPlayerSpawned, Entity: id}}
	case ActionSpawnAs:
		// No validation here: the server decides what a binding to a
		// missing or claimed entity means.
		return []Event{{Kind: EventSpawnAsRequested, Entity: act.Target}}
	case ActionSaveWorld:
		return []Event{{Kind: EventSaveRequested}}
	}
	return nil
}

// SpawnPlayer allocates an ID and inserts a named player entity at the
// fixed spawn position, returning the new ID.
func SpawnPlayer(w *World, name string) EntityID {
	id := w.Gen.Next()
	w.Entities[id] = Entity{
		Position: SpawnPosition,
		Name:     &name,
		Type:     TypePlayer,
	}
	return id
}

// moveEntity shifts the entity by one cell, saturating at the int32
// bounds. Unknown IDs are a silent no-op.
func moveEntity(w *World, id EntityID, d Direction) {
	e, ok := w.Entities[id]
	if !ok {
		return
	}
	dx, dy := d.Delta()
	e.Position.X = satAdd(e.Position.X, dx)
	e.Position.Y = satAdd(e.Position.Y, dy)
	w.Entities[id] = e
}

func satAdd(a, b int32) int32 {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 {
		return math.MaxInt32
	}
	if sum < math.MinInt32 {
		return math.MinInt32
	}
	return int32(sum)
}
