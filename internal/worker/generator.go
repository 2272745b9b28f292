package worker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/terrain"
	"github.com/Faultbox/sectorstream/internal/track"
	"github.com/Faultbox/sectorstream/pkg/geom"
)

// Neighbor is a finished adjacent tile's border data, in that tile's frame.
type Neighbor struct {
	DX, DY  int32
	Borders dem.Borders
}

// Environment is the read-only view of the manager a generator needs.
// Both methods are called from worker goroutines.
type Environment interface {
	TrackPointsForSector(s sector.Sector) (track.Status, track.SectorInfo)
	AdjacentBorders(s sector.Sector) []Neighbor
}

// Generator builds terrain and track meshes for a sector.
type Generator struct {
	terrainCfg config.TerrainConfig
	fractal    config.FractalConfig
	trackCfg   config.TrackConfig

	env    Environment
	seed   uint64
	detail *terrain.DetailNoise
	log    *zap.Logger
}

// NewGenerator returns a generator drawing every random stream from seed.
func NewGenerator(cfg *config.Config, env Environment, seed uint64, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		terrainCfg: cfg.Terrain,
		fractal:    cfg.Fractal,
		trackCfg:   cfg.Track,
		env:        env,
		seed:       seed,
		detail:     terrain.NewDetailNoise(int64(seed), cfg.Fractal.DetailAmplitude, cfg.Fractal.DetailFrequency),
		log:        log,
	}
}

// SectorRand returns the random stream for sector s. The same seed and
// sector always give the same stream, whichever worker runs the job.
func SectorRand(seed uint64, s sector.Sector) *rand.Rand {
	key := uint64(uint32(s.X))<<32 | uint64(uint32(s.Y))
	return rand.New(rand.NewPCG(seed, geom.SplitMix64(key)))
}

// Build runs the full synthesis for job.
func (g *Generator) Build(ctx context.Context, job *Job) error {
	s := job.Sector
	size := g.terrainCfg.TileEdgeSize
	origin := s.WorldOrigin(size)

	status, info, err := g.lookup(ctx, s)
	if err != nil {
		return err
	}
	if status == track.Undecided {
		g.log.Warn("track still undecided, building without it", zap.Stringer("sector", s))
	}

	var entry *track.Edge
	if info.HasTrack && info.HasPrevious {
		prevStatus, prev, err := g.lookup(ctx, info.Previous)
		if err != nil {
			return err
		}
		if prevStatus != track.HasTrack {
			return fmt.Errorf("building %v: %w: %v is %v", s, track.ErrMissingPredecessor, info.Previous, prevStatus)
		}
		e := track.EntryEdge(prev, info.Previous, s, size)
		entry = &e
	}

	d := dem.New(size, g.fractal.Depth, dem.Params{
		H:         g.fractal.H,
		K:         g.fractal.K,
		Roughness: g.fractal.Roughness,
		IBu:       g.fractal.IBu,
	}, SectorRand(g.seed, s), g.log)
	d.Simulate()

	var ribbon []track.Edge
	var trackPoints []mgl64.Vec3
	if info.HasTrack {
		ribbon = info.Ribbon(entry, g.trackCfg.Width)
		trackPoints = track.Constraints(info.CurvePoints, ribbon, d.CellSize(), size,
			g.trackCfg.PointInsideTolerance, g.trackCfg.ElevationOffset)
	}
	borders := g.borderConstraints(s, size)

	if err := d.MidpointDisplacementBottomUp(nil, borders, trackPoints); err != nil {
		return fmt.Errorf("building %v: %w", s, err)
	}
	if err := d.TriangleEdge(); err != nil {
		return fmt.Errorf("building %v: %w", s, err)
	}

	sections, err := terrain.BuildTerrainSections(d, origin,
		terrain.Bands{Medium: g.fractal.BandMedium, High: g.fractal.BandHigh}, g.detail)
	if err != nil {
		return fmt.Errorf("building %v: %w", s, err)
	}
	job.Data.Sections[terrain.SectionTrack] = terrain.BuildTrackMesh(ribbon, origin)
	for k, m := range sections {
		job.Data.Sections[terrain.SectionLow+terrain.Section(k)] = m
	}
	if job.Data.Borders, err = d.Borders(); err != nil {
		return fmt.Errorf("building %v: %w", s, err)
	}

	if info.HasTrack && info.CheckpointID != 0 {
		cp := info.Checkpoint(g.trackCfg.Width).Translate(origin)
		job.Checkpoint = &cp
		job.CheckpointID = info.CheckpointID
		if info.CheckpointID == 1 {
			spawn := info.Spawn(g.terrainCfg.SpawnSegmentIndex, g.terrainCfg.SpawnSegmentOffset,
				g.terrainCfg.PlayerSpawnElevationOffset).Translate(origin)
			job.PlayerSpawn = &spawn
		}
	}
	return nil
}

// lookup reads the track status of s, retrying briefly while it is undecided.
func (g *Generator) lookup(ctx context.Context, s sector.Sector) (track.Status, track.SectorInfo, error) {
	status, info := g.env.TrackPointsForSector(s)
	for attempt := 0; status == track.Undecided && attempt < g.terrainCfg.BorderRetryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return status, info, ctx.Err()
		case <-time.After(g.terrainCfg.BorderRetryInterval):
		}
		status, info = g.env.TrackPointsForSector(s)
	}
	return status, info, nil
}

// borderConstraints collects the shared edges and corners of finished
// neighbours, moved into the frame of s.
func (g *Generator) borderConstraints(s sector.Sector, size float64) []mgl64.Vec3 {
	var out []mgl64.Vec3
	for _, n := range g.env.AdjacentBorders(s) {
		b := n.Borders.Translate(float64(n.DX)*size, float64(n.DY)*size)
		switch [2]int32{n.DX, n.DY} {
		case [2]int32{1, 0}:
			out = append(out, b.Sides[dem.West]...)
		case [2]int32{-1, 0}:
			out = append(out, b.Sides[dem.East]...)
		case [2]int32{0, 1}:
			out = append(out, b.Sides[dem.South]...)
		case [2]int32{0, -1}:
			out = append(out, b.Sides[dem.North]...)
		case [2]int32{-1, -1}:
			out = append(out, b.Corners[dem.CornerC])
		case [2]int32{1, -1}:
			out = append(out, b.Corners[dem.CornerD])
		case [2]int32{1, 1}:
			out = append(out, b.Corners[dem.CornerA])
		case [2]int32{-1, 1}:
			out = append(out, b.Corners[dem.CornerB])
		}
	}
	return out
}
