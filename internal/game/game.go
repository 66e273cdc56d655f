// Package game owns the canonical world state: entity value types, the
// monotonic ID generator, and the pure action applier. It is free of
// networking, logging, and rendering concerns so that the simulation can
// be replayed and compared for equality in tests.
package game

import "sort"

// EntityID uniquely identifies an entity for its whole lifetime. IDs are
// allocated monotonically and never reused.
type EntityID uint32

// Generator hands out strictly increasing entity IDs. Its counter is part
// of the persisted world state so that loads never reissue an ID.
type Generator struct {
	counter uint32
}

// NewGeneratorAt restores a generator from a persisted counter.
func NewGeneratorAt(counter uint32) Generator {
	return Generator{counter: counter}
}

// Next allocates the next entity ID.
func (g *Generator) Next() EntityID {
	g.counter++
	return EntityID(g.counter)
}

// Counter returns the last issued ID value for persistence.
func (g Generator) Counter() uint32 {
	return g.counter
}

// Point is a cell on the unbounded game grid.
type Point struct {
	X int32 `cbor:"x"`
	Y int32 `cbor:"y"`
}

// Direction is a cardinal movement direction.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// Delta returns the unit offset for one step in the direction.
func (d Direction) Delta() (dx, dy int32) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	}
	return 0, 0
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return "unknown"
}

// EntityType is the kind of entity occupying a cell.
type EntityType uint8

const (
	TypePlayer EntityType = iota
	TypeTree
)

// BlocksSight reports whether entities of this type occlude lines of
// sight during FOV computation.
func (t EntityType) BlocksSight() bool {
	return t == TypeTree
}

func (t EntityType) String() string {
	switch t {
	case TypePlayer:
		return "player"
	case TypeTree:
		return "tree"
	}
	return "unknown"
}

// Entity is one object in the world. Entities are plain values owned
// exclusively by the world's entity map; they hold no references to one
// another.
type Entity struct {
	Position Point      `cbor:"p"`
	Name     *string    `cbor:"n,omitempty"`
	Type     EntityType `cbor:"t"`
}

// EntityMap maps entity IDs to their data.
type EntityMap map[EntityID]Entity

// Clone returns a deep copy of the map.
func (m EntityMap) Clone() EntityMap {
	out := make(EntityMap, len(m))
	for id, e := range m {
		if e.Name != nil {
			name := *e.Name
			e.Name = &name
		}
		out[id] = e
	}
	return out
}

// World is the authoritative entity store. It is created once at server
// start (fresh or loaded from disk) and mutated only through Apply.
type World struct {
	Gen      Generator
	Entities EntityMap
	Name     string
}

// NewWorld creates an empty world with the given name.
func NewWorld(name string) *World {
	return &World{
		Entities: make(EntityMap),
		Name:     name,
	}
}

// NewTestWorld creates a world seeded with a fixed stand of trees so a
// fresh server has occluders to look at.
func NewTestWorld(name string) *World {
	w := NewWorld(name)
	treePositions := []Point{
		{X: 5, Y: 5},
		{X: 15, Y: 5},
		{X: 5, Y: 15},
		{X: 15, Y: 15},
		{X: 10, Y: 5},
		{X: 10, Y: 15},
	}
	for _, pos := range treePositions {
		id := w.Gen.Next()
		w.Entities[id] = Entity{Position: pos, Type: TypeTree}
	}
	return w
}

// Get looks up an entity by ID.
func (w *World) Get(id EntityID) (Entity, bool) {
	e, ok := w.Entities[id]
	return e, ok
}

// Insert stores or replaces the entity under the given ID.
func (w *World) Insert(id EntityID, e Entity) {
	w.Entities[id] = e
}

// Clone deep-copies the world, including the generator state.
func (w *World) Clone() *World {
	return &World{
		Gen:      w.Gen,
		Entities: w.Entities.Clone(),
		Name:     w.Name,
	}
}

// PlayableEntities returns the IDs of all player-type entities, sorted so
// callers see a stable order.
func (w *World) PlayableEntities() []EntityID {
	var ids []EntityID
	for id, e := range w.Entities {
		if e.Type == TypePlayer {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
