// Package terrain turns synthesized heightfields and track ribbons into
// renderable mesh sections for a single tile.
package terrain

// Section indexes the mesh sections of a tile.
type Section int

const (
	SectionTrack Section = iota
	SectionLow
	SectionMedium
	SectionHigh

	// SectionCount is the number of mesh sections per tile.
	SectionCount = 4
)

func (s Section) String() string {
	switch s {
	case SectionTrack:
		return "track"
	case SectionLow:
		return "low"
	case SectionMedium:
		return "medium"
	case SectionHigh:
		return "high"
	}
	return "unknown"
}

// Vertex represents a mesh vertex with all attributes.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Mesh holds one section's mesh data ready for upload.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Indices) == 0
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

// Bounds holds the axis-aligned bounding box of a mesh.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Bands splits terrain triangles into sections by mean elevation.
type Bands struct {
	Medium float64 // lowest elevation of the medium section
	High   float64 // lowest elevation of the high section
}

// Section returns the terrain section for elevation z.
func (b Bands) Section(z float64) Section {
	switch {
	case z >= b.High:
		return SectionHigh
	case z >= b.Medium:
		return SectionMedium
	default:
		return SectionLow
	}
}
