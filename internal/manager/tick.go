package manager

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/worker"
)

// Tick advances the manager clock by dt and runs one update: it destroys
// expired free tiles, hands at most one job to each worker, applies a bounded
// number of finished jobs and spawns the player once generation settles.
func (m *Manager) Tick(dt time.Duration) {
	if !m.enabled {
		return
	}
	m.now = m.now.Add(dt)

	m.destroyExpired()
	if err := m.CheckPools(); err != nil {
		m.log.Error("pool check failed", zap.Error(err))
	}
	m.dispatch()
	m.drain()
	m.maybeSpawnPlayer()
}

// destroyExpired destroys free tiles idle longer than the retention timeout.
func (m *Manager) destroyExpired() {
	retention := m.cfg.Terrain.FreeTileRetention
	kept := m.free[:0]
	for _, t := range m.free {
		if m.now.Sub(t.FreedAt()) > retention {
			t.Destroy()
			delete(m.tiles, t)
			m.log.Debug("tile destroyed", zap.Int("tile", t.ID()))
			continue
		}
		kept = append(kept, t)
	}
	clear(m.free[len(kept):])
	m.free = kept
}

// CheckPools verifies that every live tile is in exactly one pool.
func (m *Manager) CheckPools() error {
	if len(m.free)+len(m.inUse) != len(m.tiles) {
		return fmt.Errorf("%w: %d free + %d in use, %d tiles",
			ErrPoolAccounting, len(m.free), len(m.inUse), len(m.tiles))
	}
	seen := make(map[*tile.Tile]struct{}, len(m.tiles))
	for _, t := range m.free {
		seen[t] = struct{}{}
	}
	for _, t := range m.inUse {
		seen[t] = struct{}{}
	}
	if len(seen) != len(m.tiles) {
		return fmt.Errorf("%w: %d distinct tiles in pools, %d tiles", ErrPoolAccounting, len(seen), len(m.tiles))
	}
	return nil
}

// dispatch hands at most one pending job to each worker, round-robin. A job
// waits while any of its eight neighbours is being generated, so it always
// sees finished borders on every shared edge.
func (m *Manager) dispatch() {
	for range m.pool.Size() {
		idx := m.nextDispatchable()
		if idx < 0 {
			return
		}
		job := m.pending[idx]
		if !m.pool.TrySubmit(m.nextWorker, job) {
			return
		}
		m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
		m.inFlight[job.Sector]++
		m.flying++
		m.dispatched[m.nextWorker]++
		m.nextWorker = (m.nextWorker + 1) % m.pool.Size()
	}
}

// nextDispatchable returns the index of the oldest pending job that may run
// now, or -1. Stale jobs are dropped on the way.
func (m *Manager) nextDispatchable() int {
	for i := 0; i < len(m.pending); {
		job := m.pending[i]
		if job.Tile.Generation() != job.Generation {
			m.log.Debug("dropping stale pending job", zap.Stringer("sector", job.Sector))
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			continue
		}
		if !m.neighbourhoodBusy(job.Sector) {
			return i
		}
		i++
	}
	return -1
}

func (m *Manager) neighbourhoodBusy(s sector.Sector) bool {
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if m.inFlight[s.Add(dx, dy)] > 0 {
				return true
			}
		}
	}
	return false
}

// drain applies up to MeshUpdatesPerTick finished jobs.
func (m *Manager) drain() {
	for range m.cfg.Terrain.MeshUpdatesPerTick {
		select {
		case job := <-m.pool.Completed():
			m.complete(job)
		default:
			return
		}
	}
}

func (m *Manager) complete(job *worker.Job) {
	if n := m.inFlight[job.Sector] - 1; n > 0 {
		m.inFlight[job.Sector] = n
	} else {
		delete(m.inFlight, job.Sector)
	}
	m.flying--

	log := m.log.With(zap.Stringer("sector", job.Sector), zap.Int("worker", job.Worker))
	if job.Err != nil {
		log.Error("dropping failed job", zap.Error(job.Err))
		return
	}
	if job.Tile.Generation() != job.Generation {
		log.Debug("dropping stale job",
			zap.Uint64("job_generation", job.Generation),
			zap.Uint64("tile_generation", job.Tile.Generation()))
		return
	}
	if err := job.Tile.ApplyMeshData(&job.Data); err != nil {
		log.Error("applying mesh data", zap.Error(err))
		return
	}

	m.bordersMu.Lock()
	m.borders[job.Sector] = job.Data.Borders
	m.bordersMu.Unlock()

	if job.Checkpoint != nil && !m.checkpoints[job.CheckpointID] {
		m.checkpoints[job.CheckpointID] = true
		if m.listener != nil {
			m.listener.CheckpointReady(CheckpointSpawn{
				Sector:    job.Sector,
				ID:        job.CheckpointID,
				Transform: *job.Checkpoint,
			})
		}
	}
	if job.PlayerSpawn != nil && m.spawn == nil {
		spawn := *job.PlayerSpawn
		m.spawn = &spawn
	}
	log.Debug("tile finished")
}

// maybeSpawnPlayer reports the player spawn once, after all generation settled.
func (m *Manager) maybeSpawnPlayer() {
	if m.playerSpawned || m.spawn == nil || len(m.pending) > 0 || m.flying > 0 {
		return
	}
	m.playerSpawned = true
	m.log.Info("player spawn ready", zap.Float64("x", m.spawn.Location.X()), zap.Float64("y", m.spawn.Location.Y()))
	if m.listener != nil {
		m.listener.PlayerSpawnReady(*m.spawn)
	}
}
