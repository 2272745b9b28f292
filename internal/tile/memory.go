package tile

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/terrain"
)

// MemoryRenderer keeps tile sections in memory. It backs the headless
// runner and tests.
type MemoryRenderer struct {
	Sections map[int][terrain.SectionCount]*terrain.Mesh
	Visible  map[int]bool
	Origins  map[int]mgl64.Vec2

	Created  int
	Updated  int
	Cleared  int
	Released int
}

// NewMemoryRenderer returns an empty renderer.
func NewMemoryRenderer() *MemoryRenderer {
	return &MemoryRenderer{
		Sections: make(map[int][terrain.SectionCount]*terrain.Mesh),
		Visible:  make(map[int]bool),
		Origins:  make(map[int]mgl64.Vec2),
	}
}

func (r *MemoryRenderer) CreateSection(t *Tile, section terrain.Section, mesh *terrain.Mesh) {
	r.Created++
	r.store(t, section, mesh)
}

func (r *MemoryRenderer) UpdateSection(t *Tile, section terrain.Section, mesh *terrain.Mesh) {
	r.Updated++
	r.store(t, section, mesh)
}

func (r *MemoryRenderer) store(t *Tile, section terrain.Section, mesh *terrain.Mesh) {
	s := r.Sections[t.ID()]
	s[section] = mesh
	r.Sections[t.ID()] = s
}

func (r *MemoryRenderer) ClearSections(t *Tile) {
	r.Cleared++
	delete(r.Sections, t.ID())
}

func (r *MemoryRenderer) SetVisible(t *Tile, visible bool) {
	r.Visible[t.ID()] = visible
}

func (r *MemoryRenderer) SetPosition(t *Tile, origin mgl64.Vec2) {
	r.Origins[t.ID()] = origin
}

func (r *MemoryRenderer) Release(t *Tile) {
	r.Released++
	delete(r.Sections, t.ID())
	delete(r.Visible, t.ID())
	delete(r.Origins, t.ID())
}

// Triangles returns the number of triangles currently held for all tiles.
func (r *MemoryRenderer) Triangles() int {
	n := 0
	for _, sections := range r.Sections {
		for _, m := range sections {
			n += m.TriangleCount()
		}
	}
	return n
}
