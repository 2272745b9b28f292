package manager

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/track"
	"github.com/Faultbox/sectorstream/internal/worker"
)

// SectorFromLocation returns the sector containing a world location.
func (m *Manager) SectorFromLocation(location mgl64.Vec3) sector.Sector {
	return sector.FromLocation(location, m.cfg.Terrain.TileEdgeSize)
}

// IsLocationCovered reports whether the sector at location has finished terrain.
func (m *Manager) IsLocationCovered(location mgl64.Vec3) bool {
	if !m.enabled {
		return false
	}
	t, ok := m.inUse[m.SectorFromLocation(location)]
	return ok && t.State() == tile.Finished
}

// TrackPointsForSector returns the track decision for s. Safe for concurrent use.
func (m *Manager) TrackPointsForSector(s sector.Sector) (track.Status, track.SectorInfo) {
	if m.registry == nil {
		return track.Undecided, track.SectorInfo{}
	}
	return m.registry.Lookup(s)
}

// AdjacentBorders returns the borders of every finished neighbour of s.
// Safe for concurrent use.
func (m *Manager) AdjacentBorders(s sector.Sector) []worker.Neighbor {
	m.bordersMu.RLock()
	defer m.bordersMu.RUnlock()

	var out []worker.Neighbor
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if b, ok := m.borders[s.Add(dx, dy)]; ok {
				out = append(out, worker.Neighbor{DX: dx, DY: dy, Borders: b})
			}
		}
	}
	return out
}
