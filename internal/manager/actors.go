package manager

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/track"
	"github.com/Faultbox/sectorstream/internal/worker"
)

// AddTrackedActor starts streaming terrain around an actor at location.
func (m *Manager) AddTrackedActor(id ActorID, location mgl64.Vec3) error {
	if !m.enabled {
		return m.disabled("add tracked actor")
	}
	if _, ok := m.actors[id]; ok {
		return fmt.Errorf("%w: %v", ErrActorTracked, id)
	}
	s := m.SectorFromLocation(location)
	m.actors[id] = s
	m.log.Info("tracking actor", zap.Stringer("actor", id), zap.Stringer("sector", s))
	m.request(s, m.ring(s), true)
	return nil
}

// RemoveTrackedActor stops streaming for an actor and frees every tile only
// it depended on.
func (m *Manager) RemoveTrackedActor(id ActorID) error {
	if !m.enabled {
		return m.disabled("remove tracked actor")
	}
	s, ok := m.actors[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownActor, id)
	}
	delete(m.actors, id)
	m.release(m.ring(s))
	m.log.Info("stopped tracking actor", zap.Stringer("actor", id), zap.Stringer("sector", s))
	return nil
}

// HandleActorMovedSector updates coverage for an actor that crossed from one
// sector into another: sectors only the old ring needed are released and
// sectors only the new ring needs are requested.
func (m *Manager) HandleActorMovedSector(id ActorID, from, to sector.Sector) error {
	if !m.enabled {
		return m.disabled("handle actor moved")
	}
	current, ok := m.actors[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownActor, id)
	}
	if current != from {
		m.log.Warn("actor moved from an unexpected sector",
			zap.Stringer("actor", id), zap.Stringer("recorded", current), zap.Stringer("reported", from))
		from = current
	}
	if from == to {
		return nil
	}

	oldRing, newRing := m.ring(from), m.ring(to)
	m.actors[id] = to
	m.release(sector.Difference(oldRing, newRing))
	m.request(to, sector.Difference(newRing, oldRing), true)

	m.log.Debug("actor moved sector",
		zap.Stringer("actor", id), zap.Stringer("from", from), zap.Stringer("to", to))
	return nil
}

// BuildTerrainAroundSector generates the ring around s without an actor
// depending on it.
func (m *Manager) BuildTerrainAroundSector(s sector.Sector) error {
	if !m.enabled {
		return m.disabled("build terrain around sector")
	}
	m.request(s, m.ring(s), false)
	return nil
}

// RecalculateTileForSector regenerates the tile covering s in place.
func (m *Manager) RecalculateTileForSector(s sector.Sector) error {
	if !m.enabled {
		return m.disabled("recalculate tile")
	}
	t, ok := m.inUse[s]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotCovered, s)
	}
	if err := t.MarkDirty(); err != nil {
		return fmt.Errorf("recalculating %v: %w", s, err)
	}
	m.enqueue(t)
	return nil
}

func (m *Manager) ring(center sector.Sector) []sector.Sector {
	return sector.Ring(center, m.cfg.Terrain.TilesAroundActorRadius)
}

// request covers sectors, planning the track through the ones not yet
// covered and binding a tile to each of them.
func (m *Manager) request(center sector.Sector, sectors []sector.Sector, acquire bool) {
	var uncovered []sector.Sector
	for _, s := range sectors {
		if t, ok := m.inUse[s]; ok {
			if acquire {
				t.Acquire()
			}
			continue
		}
		uncovered = append(uncovered, s)
	}
	if len(uncovered) == 0 {
		return
	}

	if !m.walk.Started && !m.walk.Finished {
		m.walk = track.NewWalk(center)
	}
	m.walk = m.planner.Advance(m.walk, uncovered)

	for _, s := range uncovered {
		t := m.takeTile()
		if err := t.Reposition(s); err != nil {
			m.log.Error("binding tile", zap.Stringer("sector", s), zap.Error(err))
			m.free = append(m.free, t)
			continue
		}
		if acquire {
			t.Acquire()
		}
		m.inUse[s] = t
		m.enqueue(t)
	}
}

// release drops one actor from each sector and frees tiles nobody needs.
func (m *Manager) release(sectors []sector.Sector) {
	for _, s := range sectors {
		t, ok := m.inUse[s]
		if !ok {
			continue
		}
		if t.Release() > 0 {
			continue
		}
		m.freeTile(s, t)
	}
}

func (m *Manager) freeTile(s sector.Sector, t *tile.Tile) {
	delete(m.inUse, s)
	m.bordersMu.Lock()
	delete(m.borders, s)
	m.bordersMu.Unlock()

	if err := t.Free(m.now); err != nil {
		m.log.Error("freeing tile", zap.Stringer("sector", s), zap.Error(err))
	}
	m.free = append(m.free, t)
	m.log.Debug("tile freed", zap.Stringer("sector", s), zap.Int("tile", t.ID()))
}

// takeTile reuses a free tile or creates one.
func (m *Manager) takeTile() *tile.Tile {
	if n := len(m.free); n > 0 {
		t := m.free[n-1]
		m.free = m.free[:n-1]
		return t
	}
	m.nextTileID++
	t := tile.New(m.nextTileID, m.cfg.Terrain.TileEdgeSize, m.log.Named("tile"))
	t.Setup(m.renderer)
	m.tiles[t] = struct{}{}
	return t
}

func (m *Manager) enqueue(t *tile.Tile) {
	m.pending = append(m.pending, &worker.Job{
		Tile:       t,
		Generation: t.Generation(),
		Sector:     t.Sector(),
	})
}
