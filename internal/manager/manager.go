// Package manager streams terrain tiles around tracked actors. It owns the
// tile pools, drives the track walk and feeds the worker pool.
package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/track"
	"github.com/Faultbox/sectorstream/internal/worker"
	"github.com/Faultbox/sectorstream/pkg/geom"
)

var (
	// ErrDisabled is returned by every operation of a manager built from an invalid configuration.
	ErrDisabled = errors.New("manager: generation disabled")
	// ErrPoolAccounting reports tiles missing from, or duplicated across, the pools.
	ErrPoolAccounting = errors.New("manager: tile pool accounting mismatch")
	// ErrUnknownActor is returned for actors that are not tracked.
	ErrUnknownActor = errors.New("manager: actor not tracked")
	// ErrActorTracked is returned when an actor is added twice.
	ErrActorTracked = errors.New("manager: actor already tracked")
	// ErrNotCovered is returned when no tile covers a sector.
	ErrNotCovered = errors.New("manager: sector not covered")
	// ErrMissingPredecessor is reported by jobs whose track predecessor is unknown.
	ErrMissingPredecessor = track.ErrMissingPredecessor
)

// ActorID identifies a tracked actor.
type ActorID = uuid.UUID

// Transform places an object in world space.
type Transform = track.Transform

// CheckpointSpawn is emitted once per checkpoint when its sector is first built.
type CheckpointSpawn struct {
	Sector    sector.Sector
	ID        uint32
	Transform Transform
}

// Listener receives gameplay notifications. It is called from Tick.
type Listener interface {
	CheckpointReady(cp CheckpointSpawn)
	PlayerSpawnReady(t Transform)
}

// Options configures a Manager.
type Options struct {
	Config   *config.Config
	Renderer tile.Renderer
	Listener Listener
	Logger   *zap.Logger

	// Builder overrides the default terrain generator.
	Builder worker.Builder
}

// Stats is a snapshot of the manager's bookkeeping.
type Stats struct {
	Actors     int
	InUse      int
	Free       int
	Pending    int
	InFlight   int
	Decided    int
	Dispatched []int // per worker
}

// Manager is the terrain streaming orchestrator. Except for
// TrackPointsForSector and AdjacentBorders, which workers call, every method
// must be called from one goroutine.
type Manager struct {
	cfg      *config.Config
	log      *zap.Logger
	renderer tile.Renderer
	listener Listener
	enabled  bool

	now time.Time

	tiles      map[*tile.Tile]struct{}
	free       []*tile.Tile
	inUse      map[sector.Sector]*tile.Tile
	actors     map[ActorID]sector.Sector
	nextTileID int

	pending    []*worker.Job
	inFlight   map[sector.Sector]int
	flying     int
	nextWorker int
	dispatched []int

	bordersMu sync.RWMutex
	borders   map[sector.Sector]dem.Borders

	registry *track.Registry
	planner  *track.Planner
	walk     track.WalkState

	pool *worker.Pool

	checkpoints   map[uint32]bool
	spawn         *Transform
	playerSpawned bool
}

// New validates the configuration and starts the workers. On an invalid
// configuration it returns a disabled manager together with the error.
func New(opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{log: log, cfg: opts.Config}

	if opts.Config == nil {
		err := fmt.Errorf("%w: no configuration", ErrDisabled)
		log.Error("terrain generation disabled", zap.Error(err))
		return m, err
	}
	if err := opts.Config.Validate(); err != nil {
		log.Error("terrain generation disabled", zap.Error(err))
		return m, fmt.Errorf("%w: %w", ErrDisabled, err)
	}
	if opts.Renderer == nil {
		err := fmt.Errorf("%w: no renderer", ErrDisabled)
		log.Error("terrain generation disabled", zap.Error(err))
		return m, err
	}

	cfg := opts.Config
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	m.enabled = true
	m.renderer = opts.Renderer
	m.listener = opts.Listener
	m.now = time.Now()
	m.tiles = make(map[*tile.Tile]struct{})
	m.inUse = make(map[sector.Sector]*tile.Tile)
	m.actors = make(map[ActorID]sector.Sector)
	m.inFlight = make(map[sector.Sector]int)
	m.borders = make(map[sector.Sector]dem.Borders)
	m.checkpoints = make(map[uint32]bool)
	m.registry = track.NewRegistry()
	m.planner = track.NewPlanner(cfg.Track, cfg.Terrain.TileEdgeSize, m.registry,
		rand.New(rand.NewPCG(seed, geom.SplitMix64(seed))), log.Named("track"))

	builder := opts.Builder
	if builder == nil {
		builder = worker.NewGenerator(cfg, m, seed, log.Named("generator"))
	}
	m.pool = worker.NewPool(cfg.Terrain.Workers, cfg.Terrain.QueueCapacity, builder, log.Named("worker"))
	m.dispatched = make([]int, m.pool.Size())

	m.pool.Start(context.Background())

	log.Info("terrain manager ready",
		zap.Uint64("seed", seed),
		zap.Int("workers", m.pool.Size()),
		zap.Float64("tile_edge", cfg.Terrain.TileEdgeSize),
		zap.Int("radius", cfg.Terrain.TilesAroundActorRadius))
	return m, nil
}

// Enabled reports whether the manager generates terrain.
func (m *Manager) Enabled() bool { return m.enabled }

// Close stops the workers, interrupting jobs in progress, and destroys every tile.
func (m *Manager) Close() {
	if !m.enabled {
		return
	}
	discarded := m.pool.Stop()
	for t := range m.tiles {
		t.Destroy()
	}
	m.enabled = false
	m.log.Info("terrain manager closed",
		zap.Int("discarded_jobs", discarded),
		zap.Int("tiles", len(m.tiles)))
}

// Stats returns a snapshot of the pools and queues.
func (m *Manager) Stats() Stats {
	return Stats{
		Actors:     len(m.actors),
		InUse:      len(m.inUse),
		Free:       len(m.free),
		Pending:    len(m.pending),
		InFlight:   m.flying,
		Decided:    m.registryLen(),
		Dispatched: append([]int(nil), m.dispatched...),
	}
}

func (m *Manager) registryLen() int {
	if m.registry == nil {
		return 0
	}
	return m.registry.Len()
}

// Tile returns the in-use tile covering s.
func (m *Manager) Tile(s sector.Sector) (*tile.Tile, bool) {
	t, ok := m.inUse[s]
	return t, ok
}

// Walk returns the current track walk state.
func (m *Manager) Walk() track.WalkState { return m.walk }

func (m *Manager) disabled(op string) error {
	m.log.Warn("ignoring call on disabled terrain manager", zap.String("op", op))
	return ErrDisabled
}
