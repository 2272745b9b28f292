package dem

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Side identifies one edge of the tile.
type Side int

const (
	South Side = iota // y = 0
	East              // x = size
	North             // y = size
	West              // x = 0
)

// Corner identifies one tile corner, in the A..D quad order.
type Corner int

const (
	CornerA Corner = iota // (0, 0)
	CornerB               // (size, 0)
	CornerC               // (size, size)
	CornerD               // (0, size)
)

// Borders holds the finished edge vertices of a tile in its local frame.
// Each side is ordered by increasing x or y.
type Borders struct {
	Sides   [4][]mgl64.Vec3
	Corners [4]mgl64.Vec3
}

// Translate returns a copy of b shifted by (dx, dy) in the plane.
func (b Borders) Translate(dx, dy float64) Borders {
	off := mgl64.Vec3{dx, dy, 0}
	var out Borders
	for s, side := range b.Sides {
		if side == nil {
			continue
		}
		out.Sides[s] = make([]mgl64.Vec3, len(side))
		for i, v := range side {
			out.Sides[s][i] = v.Add(off)
		}
	}
	for c, v := range b.Corners {
		out.Corners[c] = v.Add(off)
	}
	return out
}

// Borders extracts the edge vertices and corners after TriangleEdge.
func (d *DEM) Borders() (Borders, error) {
	var b Borders
	for s := range b.Sides {
		b.Sides[s] = make([]mgl64.Vec3, 0, d.n+1)
	}
	for k := 0; k <= d.n; k++ {
		for side, g := range [4][2]int{{k, 0}, {d.n, k}, {k, d.n}, {0, k}} {
			if _, err := d.Elevation(g[0], g[1]); err != nil {
				return Borders{}, fmt.Errorf("extracting %v border: %w", Side(side), err)
			}
			b.Sides[side] = append(b.Sides[side], d.Position(d.Index(g[0], g[1])))
		}
	}
	b.Corners[CornerA] = b.Sides[South][0]
	b.Corners[CornerB] = b.Sides[South][d.n]
	b.Corners[CornerC] = b.Sides[North][d.n]
	b.Corners[CornerD] = b.Sides[North][0]
	return b, nil
}

// IsBorder reports whether idx lies on the tile edge.
func (d *DEM) IsBorder(idx int32) bool {
	gx, gy := d.Grid(idx)
	return gx == 0 || gy == 0 || gx == d.n || gy == d.n
}

func (s Side) String() string {
	switch s {
	case South:
		return "south"
	case East:
		return "east"
	case North:
		return "north"
	case West:
		return "west"
	}
	return "unknown"
}
