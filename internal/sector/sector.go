// Package sector provides the integer grid keys used to address world regions.
package sector

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Sector is an integer 2D grid coordinate identifying one square world region.
// Sectors are plain values and are used directly as map keys.
type Sector struct {
	X, Y int32
}

// Origin is the sentinel sector bound to free tiles.
var Origin = Sector{}

// New returns the sector at (x, y).
func New(x, y int32) Sector {
	return Sector{X: x, Y: y}
}

// FromLocation returns the sector containing a world location.
// Locations on a negative boundary belong to the sector below it, so the
// grid is a plain floor division.
func FromLocation(loc mgl64.Vec3, tileEdge float64) Sector {
	return Sector{
		X: int32(math.Floor(loc.X() / tileEdge)),
		Y: int32(math.Floor(loc.Y() / tileEdge)),
	}
}

// Add returns s offset by (dx, dy).
func (s Sector) Add(dx, dy int32) Sector {
	return Sector{X: s.X + dx, Y: s.Y + dy}
}

// Neighbor returns the adjacent sector in direction d.
func (s Sector) Neighbor(d Direction) Sector {
	dx, dy := d.Offset()
	return s.Add(dx, dy)
}

// Sub returns the offset from o to s.
func (s Sector) Sub(o Sector) (dx, dy int32) {
	return s.X - o.X, s.Y - o.Y
}

// WorldOrigin returns the world position of the sector's minimum corner.
func (s Sector) WorldOrigin(tileEdge float64) mgl64.Vec2 {
	return mgl64.Vec2{float64(s.X) * tileEdge, float64(s.Y) * tileEdge}
}

// Center returns the world position of the sector's center at elevation z.
func (s Sector) Center(tileEdge, z float64) mgl64.Vec3 {
	o := s.WorldOrigin(tileEdge)
	return mgl64.Vec3{o.X() + tileEdge/2, o.Y() + tileEdge/2, z}
}

func (s Sector) String() string {
	return fmt.Sprintf("(%d,%d)", s.X, s.Y)
}

// Ring returns every sector within Chebyshev distance radius of center, i.e.
// a (2r+1)x(2r+1) block. Sectors are ordered ring by ring outward from the
// center so nearby terrain is requested first.
func Ring(center Sector, radius int) []Sector {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]Sector, 0, side*side)
	out = append(out, center)
	for r := int32(1); r <= int32(radius); r++ {
		for x := -r; x <= r; x++ {
			out = append(out, center.Add(x, -r))
		}
		for y := -r + 1; y <= r; y++ {
			out = append(out, center.Add(r, y))
		}
		for x := r - 1; x >= -r; x-- {
			out = append(out, center.Add(x, r))
		}
		for y := r - 1; y > -r; y-- {
			out = append(out, center.Add(-r, y))
		}
	}
	return out
}

// Difference returns the sectors of a that are not in b, preserving a's order.
func Difference(a, b []Sector) []Sector {
	exclude := NewSet(b...)
	var out []Sector
	for _, s := range a {
		if !exclude.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Set is an unordered collection of sectors.
type Set map[Sector]struct{}

// NewSet returns a set holding the given sectors.
func NewSet(sectors ...Sector) Set {
	s := make(Set, len(sectors))
	for _, sec := range sectors {
		s[sec] = struct{}{}
	}
	return s
}

// Add inserts sec.
func (s Set) Add(sec Sector) { s[sec] = struct{}{} }

// Has reports whether sec is in the set.
func (s Set) Has(sec Sector) bool {
	_, ok := s[sec]
	return ok
}
