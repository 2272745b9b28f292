// Package sim implements the headless simulation loop that drives terrain
// streaming: it moves actors, feeds the tracker and ticks the manager.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/manager"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/tracker"
)

// statsEvery is the number of ticks between progress logs.
const statsEvery = 60

type actor struct {
	id       uuid.UUID
	position mgl64.Vec3
	heading  mgl64.Vec2
	player   bool
	target   uint32 // next checkpoint the player drives to
}

// Result summarizes a finished run.
type Result struct {
	Ticks         int
	SectorChanges int
	Checkpoints   int
	PlayerSpawned bool
	Reached       int // checkpoints the player drove through
	Triangles     int
	Stats         manager.Stats
}

// Sim is the headless runner.
type Sim struct {
	cfg      *config.Config
	log      *zap.Logger
	renderer tile.Renderer
	manager  *manager.Manager
	tracker  *tracker.Tracker

	actors      []*actor
	checkpoints map[uint32]mgl64.Vec3
	result      Result
}

// New creates the terrain manager and places the configured actors around
// the origin sector, each heading in its own direction.
func New(cfg *config.Config, r tile.Renderer, log *zap.Logger) (*Sim, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("initializing simulation",
		zap.Int("actors", cfg.Simulation.Actors),
		zap.Int("ticks", cfg.Simulation.Ticks),
		zap.Duration("tick_interval", cfg.Simulation.TickInterval))

	s := &Sim{
		cfg:         cfg,
		log:         log,
		renderer:    r,
		checkpoints: make(map[uint32]mgl64.Vec3),
	}

	var err error
	s.manager, err = manager.New(manager.Options{
		Config:   cfg,
		Renderer: r,
		Listener: s,
		Logger:   log.Named("terrain"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create terrain manager: %w", err)
	}
	s.tracker = tracker.New(s.manager, log.Named("tracker"))

	edge := cfg.Terrain.TileEdgeSize
	for i := range cfg.Simulation.Actors {
		angle := 2 * math.Pi * float64(i) / float64(cfg.Simulation.Actors)
		a := &actor{
			position: sector.Origin.Center(edge, 0),
			heading:  mgl64.Vec2{math.Cos(angle), math.Sin(angle)},
		}
		if a.id, err = s.tracker.Register(a.position); err != nil {
			s.manager.Close()
			return nil, fmt.Errorf("failed to register actor %d: %w", i, err)
		}
		s.actors = append(s.actors, a)
	}

	log.Info("simulation initialized")
	return s, nil
}

// Manager returns the terrain manager driven by the simulation.
func (s *Sim) Manager() *manager.Manager { return s.manager }

// CheckpointReady records a checkpoint so the player can drive to it.
func (s *Sim) CheckpointReady(cp manager.CheckpointSpawn) {
	s.checkpoints[cp.ID] = cp.Transform.Location
	s.result.Checkpoints++
	s.log.Info("checkpoint ready",
		zap.Uint32("id", cp.ID),
		zap.Stringer("sector", cp.Sector),
		zap.Float64("yaw", cp.Transform.Yaw))
}

// PlayerSpawnReady adds the player at the spawn transform.
func (s *Sim) PlayerSpawnReady(t manager.Transform) {
	s.result.PlayerSpawned = true
	p := &actor{position: t.Location, player: true, target: 1}
	id, err := s.tracker.Register(p.position)
	if err != nil {
		s.log.Error("failed to spawn player", zap.Error(err))
		return
	}
	p.id = id
	s.actors = append(s.actors, p)
	s.log.Info("player spawned",
		zap.Float64("x", t.Location.X()),
		zap.Float64("y", t.Location.Y()),
		zap.Float64("z", t.Location.Z()))
}

// Run executes the configured number of ticks. With a zero tick interval the
// loop runs as fast as possible using a fixed step.
func (s *Sim) Run(ctx context.Context) (Result, error) {
	step := s.cfg.Simulation.TickInterval
	if step <= 0 {
		step = 16 * time.Millisecond
	}

	var ticker *time.Ticker
	if s.cfg.Simulation.TickInterval > 0 {
		ticker = time.NewTicker(step)
		defer ticker.Stop()
	}

	s.log.Info("starting simulation loop")
	for i := 0; i < s.cfg.Simulation.Ticks; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return s.finish(), ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return s.finish(), err
		}

		// 1. Stream terrain
		s.manager.Tick(step)

		// 2. Move actors
		if err := s.update(step.Seconds()); err != nil {
			return s.finish(), fmt.Errorf("update error: %w", err)
		}

		s.result.Ticks++
		if s.result.Ticks%statsEvery == 0 {
			st := s.manager.Stats()
			s.log.Debug("tick",
				zap.Int("tick", s.result.Ticks),
				zap.Int("in_use", st.InUse),
				zap.Int("free", st.Free),
				zap.Int("pending", st.Pending),
				zap.Int("in_flight", st.InFlight))
		}
	}
	return s.finish(), nil
}

// update moves every actor whose surrounding terrain is ready. Nobody moves
// before the player has spawned.
func (s *Sim) update(dt float64) error {
	if !s.result.PlayerSpawned {
		return nil
	}
	dist := s.cfg.Simulation.Speed * dt
	for _, a := range s.actors {
		// hold still until the ground below exists
		if !s.manager.IsLocationCovered(a.position) {
			continue
		}
		if a.player {
			s.drive(a, dist)
		} else {
			a.position = a.position.Add(a.heading.Mul(dist).Vec3(0))
		}

		moved, err := s.tracker.Update(a.id, a.position)
		if err != nil {
			return err
		}
		if moved {
			s.result.SectorChanges++
		}
	}
	return nil
}

// drive moves the player toward its next checkpoint.
func (s *Sim) drive(a *actor, dist float64) {
	target, ok := s.checkpoints[a.target]
	if !ok {
		return
	}
	delta := target.Sub(a.position)
	if l := delta.Len(); l <= dist {
		a.position = target
		a.target++
		s.result.Reached++
		return
	}
	a.position = a.position.Add(delta.Normalize().Mul(dist))
}

// Close removes every actor and stops the terrain manager.
func (s *Sim) Close() {
	s.log.Info("closing simulation")
	for _, a := range s.actors {
		if err := s.tracker.Unregister(a.id); err != nil {
			s.log.Warn("failed to unregister actor", zap.Error(err))
		}
	}
	s.actors = nil
	s.manager.Close()
}

func (s *Sim) finish() Result {
	s.result.Stats = s.manager.Stats()
	if tc, ok := s.renderer.(interface{ Triangles() int }); ok {
		s.result.Triangles = tc.Triangles()
	}
	return s.result
}
