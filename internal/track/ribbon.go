package track

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/pkg/geom"
)

// Edge is one cross-section of the road: its left and right boundary points.
type Edge struct {
	Left, Right mgl64.Vec3
}

// EntryEdge returns the previous sector's exit edge in the frame of s, so the
// road continues seamlessly across the border.
func EntryEdge(prev SectorInfo, prevSector, s sector.Sector, size float64) Edge {
	dx, dy := prevSector.Sub(s)
	off := mgl64.Vec3{float64(dx) * size, float64(dy) * size, 0}
	return Edge{Left: prev.Y0.Add(off), Right: prev.Y1.Add(off)}
}

// Ribbon returns one road cross-section per curve point. The first one is
// entry when given, and the last one always ends on the sector's Y0/Y1.
func (i SectorInfo) Ribbon(entry *Edge, width float64) []Edge {
	pts := i.CurvePoints
	if len(pts) < 2 {
		return nil
	}
	edges := make([]Edge, len(pts))
	for k, p := range pts {
		n := curveNormal(pts, k).Mul(width / 2)
		edges[k] = Edge{
			Left:  p.Add(n.Vec3(0)),
			Right: p.Sub(n.Vec3(0)),
		}
	}
	if entry != nil {
		edges[0] = *entry
	}
	edges[len(edges)-1] = Edge{Left: i.Y0, Right: i.Y1}
	return edges
}

// curveNormal returns the unit left-hand normal of the curve at sample k.
func curveNormal(pts []mgl64.Vec3, k int) mgl64.Vec2 {
	a, b := max(k-1, 0), min(k+1, len(pts)-1)
	dir := pts[b].Vec2().Sub(pts[a].Vec2())
	if dir.Len() == 0 {
		return mgl64.Vec2{0, 0}
	}
	return geom.Perp(dir.Normalize())
}

// Constraints returns the terrain points under the road. Every grid point of
// spacing cell that lies inside a road segment (within tolerance) becomes a
// constraint, with the road surface elevation lowered by offset. Points
// outside [0,size]² are never returned.
func Constraints(curve []mgl64.Vec3, ribbon []Edge, cell, size, tolerance, offset float64) []mgl64.Vec3 {
	if cell <= 0 || len(curve) < 2 || len(ribbon) != len(curve) {
		return nil
	}
	n := int(math.Round(size / cell))
	seen := make(map[[2]int]struct{})
	var out []mgl64.Vec3

	for k := 0; k+1 < len(curve); k++ {
		seg := segment{
			x0: ribbon[k].Left, x1: ribbon[k].Right,
			x2: ribbon[k+1].Right, x3: ribbon[k+1].Left,
			t0: curve[k], t1: curve[k+1],
		}
		minX, minY, maxX, maxY := seg.rect()
		gx0 := max(int(math.Ceil((minX-tolerance)/cell)), 0)
		gx1 := min(int(math.Floor((maxX+tolerance)/cell)), n)
		gy0 := max(int(math.Ceil((minY-tolerance)/cell)), 0)
		gy1 := min(int(math.Floor((maxY+tolerance)/cell)), n)

		for gy := gy0; gy <= gy1; gy++ {
			for gx := gx0; gx <= gx1; gx++ {
				key := [2]int{gx, gy}
				if _, ok := seen[key]; ok {
					continue
				}
				q := mgl64.Vec2{float64(gx) * cell, float64(gy) * cell}
				if !seg.contains(q, tolerance) {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, q.Vec3(seg.elevation(q)-offset))
			}
		}
	}
	return out
}

// segment is the road quad between two consecutive curve samples.
// x0,x1 are the start edge (left, right), x3,x2 the end edge (left, right),
// t0,t1 the centerline.
type segment struct {
	x0, x1, x2, x3 mgl64.Vec3
	t0, t1         mgl64.Vec3
}

func (s segment) rect() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range [...]mgl64.Vec3{s.x0, s.x1, s.x2, s.x3} {
		minX, maxX = math.Min(minX, p.X()), math.Max(maxX, p.X())
		minY, maxY = math.Min(minY, p.Y()), math.Max(maxY, p.Y())
	}
	return minX, minY, maxX, maxY
}

// contains reports whether q lies between the start and end edges and
// between the left and right road lines.
func (s segment) contains(q mgl64.Vec2, tol float64) bool {
	x0, x1, x2, x3 := s.x0.Vec2(), s.x1.Vec2(), s.x2.Vec2(), s.x3.Vec2()
	return geom.SignedDistance(q, x1, x0) <= tol &&
		geom.SignedDistance(q, x2, x3) >= -tol &&
		geom.SignedDistance(q, x0, x3) <= tol &&
		geom.SignedDistance(q, x1, x2) >= -tol
}

// elevation interpolates the road surface at q. Points not covered by the
// four fan triangles fall back to the centerline.
func (s segment) elevation(q mgl64.Vec2) float64 {
	const eps = 1e-9
	tris := [...][3]mgl64.Vec3{
		{s.t0, s.t1, s.x3},
		{s.t0, s.x1, s.t1},
		{s.x0, s.t0, s.x3},
		{s.x1, s.x2, s.t1},
	}
	for _, tr := range tris {
		if geom.InTriangle(q, tr[0].Vec2(), tr[1].Vec2(), tr[2].Vec2(), eps) {
			return geom.InterpolateTriangle(q, tr[0], tr[1], tr[2])
		}
	}

	axis := s.t1.Vec2().Sub(s.t0.Vec2())
	l2 := axis.Dot(axis)
	if l2 == 0 {
		return s.t0.Z()
	}
	t := mgl64.Clamp(q.Sub(s.t0.Vec2()).Dot(axis)/l2, 0, 1)
	return s.t0.Z() + (s.t1.Z()-s.t0.Z())*t
}

// Transform places an object in tile-local or world space.
type Transform struct {
	Location mgl64.Vec3
	Yaw      float64 // degrees, counter-clockwise from +X
	Width    float64
}

// Translate returns t moved by origin in the plane.
func (t Transform) Translate(origin mgl64.Vec2) Transform {
	t.Location = t.Location.Add(origin.Vec3(0))
	return t
}

// Checkpoint returns the checkpoint transform at the middle of the curve,
// facing along the road.
func (i SectorInfo) Checkpoint(width float64) Transform {
	if len(i.CurvePoints) < 2 {
		return Transform{Location: i.Start(), Width: width}
	}
	k := len(i.CurvePoints) / 2
	return Transform{
		Location: i.CurvePoints[k],
		Yaw:      geom.Yaw(tangent(i.CurvePoints, k)),
		Width:    width,
	}
}

// Spawn returns the player start: the curve point at index moved back along
// the road by offset and raised by lift.
func (i SectorInfo) Spawn(index int, offset, lift float64) Transform {
	if len(i.CurvePoints) < 2 {
		return Transform{Location: i.Start().Add(mgl64.Vec3{0, 0, lift})}
	}
	index = min(max(index, 0), len(i.CurvePoints)-1)
	dir := tangent(i.CurvePoints, index)
	p := i.CurvePoints[index]
	if dir.Len() > 0 {
		p = p.Sub(dir.Normalize().Mul(offset).Vec3(0))
	}
	return Transform{
		Location: p.Add(mgl64.Vec3{0, 0, lift}),
		Yaw:      geom.Yaw(dir),
	}
}

func tangent(pts []mgl64.Vec3, k int) mgl64.Vec2 {
	a, b := max(k-1, 0), min(k+1, len(pts)-1)
	return pts[b].Vec2().Sub(pts[a].Vec2())
}
