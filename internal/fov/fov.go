// Package fov computes per-player field of view on the unbounded grid.
//
// The algorithm is recursive shadowcasting over eight octants. A cell is
// visible when its Euclidean distance from the origin is at most the
// radius and no sight-blocking entity lies between it and the origin.
// Occluder cells are themselves visible; cells in their shadow are not.
// The computation is a pure function of the origin and the occluder
// layout, so identical inputs always produce identical sets.
package fov

import (
	"math"

	"gladewood/server/internal/game"
)

const (
	// DefaultRadius is the strict FOV radius used for new players.
	DefaultRadius int32 = 8

	// DefaultNetworkMargin widens the snapshot bounding box beyond the
	// strict FOV radius so entities stream in before they become
	// visible, avoiding pop-in as the box moves with the player.
	DefaultNetworkMargin int32 = 5
)

// octant transforms map scan-space (dx, dy) into each of the eight
// octants around the origin.
var octants = [4][8]int32{
	{1, 0, 0, -1, -1, 0, 0, 1},
	{0, 1, -1, 0, 0, -1, 1, 0},
	{0, 1, 1, 0, 0, -1, -1, 0},
	{1, 0, 0, 1, -1, 0, 0, -1},
}

// CellSet is a set of grid cells.
type CellSet map[game.Point]struct{}

// Contains reports membership.
func (s CellSet) Contains(p game.Point) bool {
	_, ok := s[p]
	return ok
}

// PlayerFOV tracks one player's radius and current visible set. The set
// is replaced wholesale on every recompute, never patched incrementally.
type PlayerFOV struct {
	Radius  int32
	Visible CellSet
}

// New creates a FOV record with an empty visible set.
func New(radius int32) *PlayerFOV {
	return &PlayerFOV{Radius: radius, Visible: make(CellSet)}
}

// Recompute replaces the visible set with the cells visible from origin
// given the current entity layout.
func (f *PlayerFOV) Recompute(origin game.Point, entities game.EntityMap) {
	f.Visible = Compute(origin, f.Radius, Occluders(entities))
}

// Occluders collects the cells of all sight-blocking entities.
func Occluders(entities game.EntityMap) CellSet {
	blocked := make(CellSet)
	for _, e := range entities {
		if e.Type.BlocksSight() {
			blocked[e.Position] = struct{}{}
		}
	}
	return blocked
}

// Compute returns the set of cells visible from origin out to radius,
// given the occluder cells. The origin is always visible. Cost is
// O(radius²).
func Compute(origin game.Point, radius int32, blocked CellSet) CellSet {
	visible := make(CellSet)
	visible[origin] = struct{}{}
	if radius <= 0 {
		return visible
	}
	for i := 0; i < 8; i++ {
		castLight(origin, 1, 1.0, 0.0, radius,
			octants[0][i], octants[1][i],
			octants[2][i], octants[3][i],
			blocked, visible)
	}
	return visible
}

func castLight(origin game.Point, row int32, start, end float64, radius, xx, xy, yx, yy int32, blocked, visible CellSet) {
	if start < end {
		return
	}

	radiusSq := int64(radius) * int64(radius)

	for j := row; j <= radius; j++ {
		dx, dy := -j-1, -j
		wasBlocked := false
		newStart := start

		for dx < 0 {
			dx++
			lSlope := (float64(dx) - 0.5) / (float64(dy) + 0.5)
			rSlope := (float64(dx) + 0.5) / (float64(dy) - 0.5)

			if start < rSlope {
				continue
			}
			if end > lSlope {
				break
			}

			cell, inGrid := translate(origin, dx, dy, xx, xy, yx, yy)
			inRadius := int64(dx)*int64(dx)+int64(dy)*int64(dy) <= radiusSq
			if inGrid && inRadius {
				visible[cell] = struct{}{}
			}
			occludes := inGrid && blocked.Contains(cell)

			if wasBlocked {
				if occludes {
					// Still scanning along the occluder run.
					newStart = rSlope
					continue
				}
				wasBlocked = false
				start = newStart
			} else if occludes && j < radius {
				wasBlocked = true
				castLight(origin, j+1, start, lSlope, radius, xx, xy, yx, yy, blocked, visible)
				newStart = rSlope
			}
		}
		if wasBlocked {
			break
		}
	}
}

// translate maps scan-space offsets into a world cell for one octant.
// Cells whose coordinates overflow int32 do not exist and are skipped.
func translate(origin game.Point, dx, dy, xx, xy, yx, yy int32) (game.Point, bool) {
	x := int64(origin.X) + int64(dx)*int64(xx) + int64(dy)*int64(xy)
	y := int64(origin.Y) + int64(dx)*int64(yx) + int64(dy)*int64(yy)
	if x < math.MinInt32 || x > math.MaxInt32 || y < math.MinInt32 || y > math.MaxInt32 {
		return game.Point{}, false
	}
	return game.Point{X: int32(x), Y: int32(y)}, true
}

// InMarginBox reports whether p lies inside the axis-aligned bounding
// box of half-width radius+margin around center. The box ignores
// occlusion entirely.
func InMarginBox(center, p game.Point, radius, margin int32) bool {
	half := int64(radius) + int64(margin)
	dx := int64(p.X) - int64(center.X)
	if dx < 0 {
		dx = -dx
	}
	dy := int64(p.Y) - int64(center.Y)
	if dy < 0 {
		dy = -dy
	}
	return dx <= half && dy <= half
}
