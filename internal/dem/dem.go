// Package dem synthesizes fractal heightfields for a single terrain tile.
//
// The model follows Belhadj's constrained fractal (2007): a bottom-up pass
// propagates known constraint elevations to coarser ancestor points, and a
// top-down triangle-edge subdivision displaces every remaining point around
// the interpolation of its ancestors. Points live in an arena indexed by
// integer grid coordinates, so neighbouring quads share points exactly.
package dem

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

var (
	// ErrUnknownPoint is returned when a point is read before it has an elevation,
	// or a constraint lies outside the tile.
	ErrUnknownPoint = errors.New("dem: unknown point")
	// ErrNotSimulated is returned when a pass runs before Simulate.
	ErrNotSimulated = errors.New("dem: dependency graph not simulated")
)

// Params holds the fractal tuning values.
type Params struct {
	H         float64 // roughness exponent across depth
	K         float64 // base deviation factor
	Roughness float64 // deviation scale in elevation units
	IBu       float64 // bottom-up interpolation exponent
}

// Kind records where a point's elevation came from.
type Kind uint8

const (
	Free Kind = iota
	Interior
	Border
	Track
)

// Point is one arena slot.
type Point struct {
	Elevation float64
	Known     bool
	Kind      Kind
}

// Triangle holds three arena indices, counter-clockwise seen from +Z.
type Triangle [3]int32

// DEM is a digital elevation model over the square [0,size]².
// It is not safe for concurrent use; each worker builds its own.
type DEM struct {
	size     float64
	maxDepth int
	n        int // cells per side
	cell     float64
	dMax     float64

	params Params
	rng    *rand.Rand
	log    *zap.Logger

	points     []Point
	ascendants [][]int32
	simulated  bool
	triangles  []Triangle
}

// New returns an empty model. maxDepth is the deepest subdivision level; the
// finest grid has 2^(maxDepth+1) cells per side.
func New(size float64, maxDepth int, params Params, rng *rand.Rand, log *zap.Logger) *DEM {
	if log == nil {
		log = zap.NewNop()
	}
	n := 1 << (maxDepth + 1)
	return &DEM{
		size:     size,
		maxDepth: maxDepth,
		n:        n,
		cell:     size / float64(n),
		dMax:     math.Hypot(size, size),
		params:   params,
		rng:      rng,
		log:      log,
	}
}

// Size returns the tile edge length.
func (d *DEM) Size() float64 { return d.size }

// CellSize returns the spacing between adjacent grid points.
func (d *DEM) CellSize() float64 { return d.cell }

// GridSize returns the number of cells per side.
func (d *DEM) GridSize() int { return d.n }

// Len returns the number of arena points.
func (d *DEM) Len() int { return (d.n + 1) * (d.n + 1) }

// Index returns the arena index of grid point (gx, gy).
func (d *DEM) Index(gx, gy int) int32 {
	return int32(gy*(d.n+1) + gx)
}

// Grid returns the grid coordinates of an arena index.
func (d *DEM) Grid(idx int32) (gx, gy int) {
	return int(idx) % (d.n + 1), int(idx) / (d.n + 1)
}

// Position returns the tile-local position of an arena point. Its Z is the
// elevation, or 0 while unknown.
func (d *DEM) Position(idx int32) mgl64.Vec3 {
	gx, gy := d.Grid(idx)
	var z float64
	if d.points != nil {
		z = d.points[idx].Elevation
	}
	return mgl64.Vec3{float64(gx) * d.cell, float64(gy) * d.cell, z}
}

// Point returns the arena slot at idx.
func (d *DEM) Point(idx int32) Point {
	return d.points[idx]
}

// Elevation returns the elevation of grid point (gx, gy).
func (d *DEM) Elevation(gx, gy int) (float64, error) {
	if !d.simulated {
		return 0, ErrNotSimulated
	}
	if gx < 0 || gy < 0 || gx > d.n || gy > d.n {
		return 0, fmt.Errorf("%w: grid (%d,%d) outside tile", ErrUnknownPoint, gx, gy)
	}
	p := d.points[d.Index(gx, gy)]
	if !p.Known {
		return 0, fmt.Errorf("%w: grid (%d,%d) has no elevation yet", ErrUnknownPoint, gx, gy)
	}
	return p.Elevation, nil
}

// Ascendants returns the points whose elevations determine idx.
// Corners have none; edge midpoints have two, quad centers four.
func (d *DEM) Ascendants(idx int32) []int32 {
	return d.ascendants[idx]
}

// Triangles returns the triangles emitted by TriangleEdge in emission order.
func (d *DEM) Triangles() []Triangle {
	return d.triangles
}

// distance returns the planar distance between two arena points.
func (d *DEM) distance(a, b int32) float64 {
	ax, ay := d.Grid(a)
	bx, by := d.Grid(b)
	return math.Hypot(float64(ax-bx), float64(ay-by)) * d.cell
}

// quad is one cell of the subdivision, addressed by its minimum grid corner.
type quad struct {
	x, y  int
	span  int
	depth int
}

// corners returns A=(min,min), B=(max,min), C=(max,max), D=(min,max).
func (d *DEM) corners(q quad) (a, b, c, dd int32) {
	return d.Index(q.x, q.y),
		d.Index(q.x+q.span, q.y),
		d.Index(q.x+q.span, q.y+q.span),
		d.Index(q.x, q.y+q.span)
}

// midpoints returns E=mid(AB), F=mid(BC), G=mid(CD), H=mid(DA) and the center I.
func (d *DEM) midpoints(q quad) (e, f, g, h, i int32) {
	half := q.span / 2
	return d.Index(q.x+half, q.y),
		d.Index(q.x+q.span, q.y+half),
		d.Index(q.x+half, q.y+q.span),
		d.Index(q.x, q.y+half),
		d.Index(q.x+half, q.y+half)
}

// children returns the four sub-quads in visiting order:
// {A,E,I,H}, {E,B,F,I}, {I,F,C,G}, {H,I,G,D}.
func (q quad) children() [4]quad {
	half := q.span / 2
	next := q.depth + 1
	return [4]quad{
		{q.x, q.y, half, next},
		{q.x + half, q.y, half, next},
		{q.x + half, q.y + half, half, next},
		{q.x, q.y + half, half, next},
	}
}

// walk visits every quad depth-first in the same order a recursive
// subdivision would, using an explicit stack.
func (d *DEM) walk(visit func(q quad) error) error {
	stack := []quad{{0, 0, d.n, 0}}
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := visit(q); err != nil {
			return err
		}
		if q.depth < d.maxDepth {
			kids := q.children()
			for k := len(kids) - 1; k >= 0; k-- {
				stack = append(stack, kids[k])
			}
		}
	}
	return nil
}

// Simulate builds the ascendant graph without computing any elevation.
// It must run before MidpointDisplacementBottomUp and TriangleEdge.
func (d *DEM) Simulate() {
	d.points = make([]Point, d.Len())
	d.ascendants = make([][]int32, d.Len())
	d.triangles = d.triangles[:0]

	_ = d.walk(func(q quad) error {
		a, b, c, dd := d.corners(q)
		e, f, g, h, i := d.midpoints(q)
		d.ascendants[e] = []int32{a, b}
		d.ascendants[f] = []int32{b, c}
		d.ascendants[g] = []int32{c, dd}
		d.ascendants[h] = []int32{a, dd}
		d.ascendants[i] = []int32{a, b, c, dd}
		return nil
	})
	d.simulated = true
}

// sigma is the sign function used by the interpolation curve.
func sigma(v float64) float64 {
	if v >= 0 {
		return 1
	}
	return -1
}

// deltaBU weights a child elevation e by its distance dist from the ascendant.
func (d *DEM) deltaBU(e, dist float64) float64 {
	if d.dMax == 0 {
		d.log.Error("zero diagonal in bottom-up interpolation, contributing 0")
		return 0
	}
	ratio := mgl64.Clamp(dist/d.dMax, 0, 1)
	i := d.params.IBu
	return e * (1 - sigma(i)*(1-math.Pow(1-ratio, math.Abs(i))))
}

// seed snaps a constraint to the grid and records it as known.
func (d *DEM) seed(c mgl64.Vec3, kind Kind) (int32, error) {
	tol := d.cell / 2
	if c.X() < -tol || c.Y() < -tol || c.X() > d.size+tol || c.Y() > d.size+tol {
		return 0, fmt.Errorf("%w: constraint %v outside tile", ErrUnknownPoint, c)
	}
	gx := int(math.Round(c.X() / d.cell))
	gy := int(math.Round(c.Y() / d.cell))
	gx = min(max(gx, 0), d.n)
	gy = min(max(gy, 0), d.n)
	idx := d.Index(gx, gy)
	d.points[idx] = Point{Elevation: c.Z(), Known: true, Kind: kind}
	return idx, nil
}

// MidpointDisplacementBottomUp seeds the constraint sets as known points and
// propagates their elevations to every unknown ascendant, wave by wave, until
// the root is reached. Later sets override earlier ones on shared points, and
// border constraints are applied last so seams always match the neighbour.
func (d *DEM) MidpointDisplacementBottomUp(interior, border, track []mgl64.Vec3) error {
	if !d.simulated {
		return ErrNotSimulated
	}

	var queue []int32
	queued := make(map[int32]bool)
	sets := []struct {
		points []mgl64.Vec3
		kind   Kind
	}{
		{interior, Interior},
		{track, Track},
		{border, Border},
	}
	for _, set := range sets {
		for _, c := range set.points {
			idx, err := d.seed(c, set.kind)
			if err != nil {
				return err
			}
			if !queued[idx] {
				queued[idx] = true
				queue = append(queue, idx)
			}
		}
	}

	for len(queue) > 0 {
		children := make(map[int32][]int32)
		var order []int32
		for _, e := range queue {
			for _, a := range d.ascendants[e] {
				if d.points[a].Known {
					continue
				}
				if _, ok := children[a]; !ok {
					order = append(order, a)
				}
				children[a] = append(children[a], e)
			}
		}

		queue = queue[:0]
		for _, a := range order {
			var sum float64
			for _, child := range children[a] {
				sum += d.deltaBU(d.points[child].Elevation, d.distance(a, child))
			}
			d.points[a].Elevation = sum / float64(len(children[a]))
			d.points[a].Known = true
			queue = append(queue, a)
		}
	}
	return nil
}

// deviation returns the displacement spread at a subdivision depth.
func (d *DEM) deviation(depth int) float64 {
	return d.params.Roughness * d.params.K * math.Pow(2, -float64(depth)*d.params.H)
}

// displace assigns an elevation to idx unless it is already known.
func (d *DEM) displace(idx int32, depth int) {
	p := &d.points[idx]
	if p.Known {
		return
	}
	asc := d.ascendants[idx]
	var mean float64
	for _, a := range asc {
		mean += d.points[a].Elevation
	}
	mean /= float64(len(asc))
	p.Elevation = mean + d.rng.NormFloat64()*d.deviation(depth)
	p.Known = true
}

// TriangleEdge subdivides top-down, sampling every point not fixed by the
// bottom-up pass, and emits 8 triangles per quad at the deepest level.
func (d *DEM) TriangleEdge() error {
	if !d.simulated {
		return ErrNotSimulated
	}
	d.triangles = d.triangles[:0]

	return d.walk(func(q quad) error {
		a, b, c, dd := d.corners(q)
		if q.depth == 0 {
			for _, idx := range [4]int32{a, b, c, dd} {
				if !d.points[idx].Known {
					d.points[idx] = Point{Elevation: 0, Known: true}
				}
			}
		}
		for _, idx := range [4]int32{a, b, c, dd} {
			if !d.points[idx].Known {
				gx, gy := d.Grid(idx)
				return fmt.Errorf("%w: corner (%d,%d) at depth %d", ErrUnknownPoint, gx, gy, q.depth)
			}
		}

		e, f, g, h, i := d.midpoints(q)
		for _, idx := range [5]int32{e, f, g, h, i} {
			d.displace(idx, q.depth)
		}

		if q.depth == d.maxDepth {
			d.triangles = append(d.triangles,
				Triangle{a, e, h},
				Triangle{e, i, h},
				Triangle{e, b, i},
				Triangle{i, b, f},
				Triangle{h, i, dd},
				Triangle{i, g, dd},
				Triangle{i, f, g},
				Triangle{f, c, g},
			)
		}
		return nil
	})
}
