package terrain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/track"
)

// textureScale is the world distance covered by one texture repeat.
const textureScale = 500.0

// BuildTerrainSections creates the low, medium and high terrain meshes from a
// finished DEM. Positions are tile-local; texture coordinates use world
// space (origin is the tile's world origin) so textures line up across tiles.
// detail may be nil.
func BuildTerrainSections(d *dem.DEM, origin mgl64.Vec2, bands Bands, detail *DetailNoise) ([3]*Mesh, error) {
	var out [3]*Mesh
	tris := d.Triangles()
	if len(tris) == 0 {
		return out, fmt.Errorf("building terrain mesh: %w", dem.ErrNotSimulated)
	}

	positions := make([]mgl64.Vec3, d.Len())
	for idx := range positions {
		i := int32(idx)
		p := d.Point(i)
		if !p.Known {
			gx, gy := d.Grid(i)
			return out, fmt.Errorf("building terrain mesh: %w: grid (%d,%d)", dem.ErrUnknownPoint, gx, gy)
		}
		pos := d.Position(i)
		// border and road points must match what neighbours and the track see
		if detail != nil && p.Kind != dem.Track && !d.IsBorder(i) {
			pos[2] += detail.At(origin.Add(pos.Vec2()))
		}
		positions[idx] = pos
	}

	normals := accumulateNormals(positions, tris)

	type builder struct {
		mesh  *Mesh
		remap map[int32]uint32
	}
	var sections [3]builder
	for k := range sections {
		sections[k] = builder{mesh: newMesh(), remap: make(map[int32]uint32)}
	}

	for _, tri := range tris {
		mean := (positions[tri[0]].Z() + positions[tri[1]].Z() + positions[tri[2]].Z()) / 3
		b := &sections[bands.Section(mean)-SectionLow]
		for _, idx := range tri {
			v, ok := b.remap[idx]
			if !ok {
				v = uint32(len(b.mesh.Vertices))
				b.remap[idx] = v
				pos := positions[idx]
				b.mesh.Vertices = append(b.mesh.Vertices, Vertex{
					Position: vec3f(pos),
					Normal:   normals[idx],
					TexCoord: texCoord(origin.Add(pos.Vec2())),
				})
				updateBounds(&b.mesh.Bounds, vec3f(pos))
			}
			b.mesh.Indices = append(b.mesh.Indices, v)
		}
	}

	for k := range sections {
		out[k] = sections[k].mesh
	}
	return out, nil
}

// BuildTrackMesh creates the road ribbon mesh: two vertices per cross-section
// and two counter-clockwise triangles between consecutive cross-sections.
func BuildTrackMesh(ribbon []track.Edge, origin mgl64.Vec2) *Mesh {
	m := newMesh()
	if len(ribbon) < 2 {
		return m
	}

	positions := make([]mgl64.Vec3, 0, 2*len(ribbon))
	for _, e := range ribbon {
		positions = append(positions, e.Left, e.Right)
	}

	var tris []dem.Triangle
	for i := 0; i+1 < len(ribbon); i++ {
		l0, r0 := int32(2*i), int32(2*i+1)
		l1, r1 := l0+2, r0+2
		tris = append(tris, dem.Triangle{l0, r0, r1}, dem.Triangle{l0, r1, l1})
	}
	normals := accumulateNormals(positions, tris)

	var travelled float64
	for i, p := range positions {
		k := i / 2
		if i%2 == 0 && k > 0 {
			a := ribbon[k-1].Left.Add(ribbon[k-1].Right).Mul(0.5)
			b := ribbon[k].Left.Add(ribbon[k].Right).Mul(0.5)
			travelled += b.Sub(a).Len()
		}
		m.Vertices = append(m.Vertices, Vertex{
			Position: vec3f(p),
			Normal:   normals[i],
			TexCoord: [2]float32{float32(i % 2), float32(travelled / textureScale)},
		})
		updateBounds(&m.Bounds, vec3f(p))
	}
	for _, tri := range tris {
		m.Indices = append(m.Indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
	}
	return m
}

// accumulateNormals sums area-weighted face normals at each shared vertex so
// adjacent faces shade smoothly.
func accumulateNormals(positions []mgl64.Vec3, tris []dem.Triangle) [][3]float32 {
	sums := make([]mgl64.Vec3, len(positions))
	for _, tri := range tris {
		a, b, c := positions[tri[0]], positions[tri[1]], positions[tri[2]]
		face := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range tri {
			sums[idx] = sums[idx].Add(face)
		}
	}
	out := make([][3]float32, len(positions))
	for i, n := range sums {
		out[i] = normalize(n)
	}
	return out
}

func newMesh() *Mesh {
	return &Mesh{
		Bounds: Bounds{
			Min: [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
			Max: [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
		},
	}
}

func texCoord(world mgl64.Vec2) [2]float32 {
	return [2]float32{float32(world.X() / textureScale), float32(world.Y() / textureScale)}
}

func vec3f(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v.X()), float32(v.Y()), float32(v.Z())}
}

func updateBounds(b *Bounds, p [3]float32) {
	for i := range p {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// normalize returns the unit vector of n, or straight up for a degenerate normal.
func normalize(n mgl64.Vec3) [3]float32 {
	if n.Len() < 1e-9 {
		return [3]float32{0, 0, 1}
	}
	return vec3f(n.Normalize())
}
