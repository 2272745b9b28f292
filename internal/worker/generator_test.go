package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/terrain"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/track"
)

// fakeEnv serves track info from a registry and borders from a map.
type fakeEnv struct {
	mu      sync.Mutex
	reg     *track.Registry
	borders map[sector.Sector]dem.Borders
	lookups int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{reg: track.NewRegistry(), borders: map[sector.Sector]dem.Borders{}}
}

func (e *fakeEnv) TrackPointsForSector(s sector.Sector) (track.Status, track.SectorInfo) {
	e.mu.Lock()
	e.lookups++
	e.mu.Unlock()
	return e.reg.Lookup(s)
}

func (e *fakeEnv) AdjacentBorders(s sector.Sector) []Neighbor {
	var out []Neighbor
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			if b, ok := e.borders[s.Add(dx, dy)]; ok && (dx != 0 || dy != 0) {
				out = append(out, Neighbor{DX: dx, DY: dy, Borders: b})
			}
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Terrain.TileEdgeSize = 4096
	cfg.Terrain.BorderRetryAttempts = 2
	cfg.Terrain.BorderRetryInterval = time.Millisecond
	cfg.Fractal.Depth = 3
	cfg.Fractal.Roughness = 300
	cfg.Track.Width = 200
	cfg.Track.MaximumElevationDifference = 500
	cfg.Track.Hilliness = 100
	return cfg
}

func buildJob(t *testing.T, g *Generator, s sector.Sector) *Job {
	t.Helper()
	job := &Job{Tile: tile.New(0, 4096, nil), Sector: s}
	if err := g.Build(context.Background(), job); err != nil {
		t.Fatalf("Build(%v): %v", s, err)
	}
	return job
}

func TestGeneratorWithoutTrack(t *testing.T) {
	env := newFakeEnv()
	s := sector.New(3, -2)
	if err := env.reg.Record(s, track.SectorInfo{}); err != nil {
		t.Fatal(err)
	}
	g := NewGenerator(testConfig(), env, 1, nil)
	job := buildJob(t, g, s)

	if !job.Data.Sections[terrain.SectionTrack].Empty() {
		t.Error("no-track sector produced a road")
	}
	tris := 0
	for _, sec := range []terrain.Section{terrain.SectionLow, terrain.SectionMedium, terrain.SectionHigh} {
		tris += job.Data.Sections[sec].TriangleCount()
	}
	// depth 3: 16 cells per side, two triangles per cell
	if tris != 2*16*16 {
		t.Errorf("terrain has %d triangles, want %d", tris, 2*16*16)
	}
	if job.Checkpoint != nil || job.PlayerSpawn != nil {
		t.Error("no-track sector produced a checkpoint")
	}
}

func TestGeneratorFirstTrackSector(t *testing.T) {
	cfg := testConfig()
	env := newFakeEnv()
	planner := track.NewPlanner(cfg.Track, cfg.Terrain.TileEdgeSize, env.reg, rand.New(rand.NewPCG(5, 5)), nil)
	planner.Advance(track.NewWalk(sector.Origin), sector.Ring(sector.Origin, 1))

	g := NewGenerator(cfg, env, 1, nil)
	job := buildJob(t, g, sector.Origin)

	if job.Data.Sections[terrain.SectionTrack].TriangleCount() != 2*(cfg.Track.Resolution-1) {
		t.Errorf("road has %d triangles", job.Data.Sections[terrain.SectionTrack].TriangleCount())
	}
	if job.Checkpoint == nil || job.CheckpointID != 1 {
		t.Fatalf("first sector checkpoint = %v id %d", job.Checkpoint, job.CheckpointID)
	}
	if job.PlayerSpawn == nil {
		t.Error("first checkpoint sector has no player spawn")
	}
}

func TestGeneratorMissingPredecessor(t *testing.T) {
	env := newFakeEnv()
	prev, s := sector.New(0, 0), sector.New(1, 0)
	_ = env.reg.Record(prev, track.SectorInfo{})
	_ = env.reg.Record(s, track.SectorInfo{HasTrack: true, HasPrevious: true, Previous: prev})

	g := NewGenerator(testConfig(), env, 1, nil)
	err := g.Build(context.Background(), &Job{Tile: tile.New(0, 4096, nil), Sector: s})
	if !errors.Is(err, track.ErrMissingPredecessor) {
		t.Fatalf("got %v, want ErrMissingPredecessor", err)
	}
}

func TestGeneratorRetriesUndecided(t *testing.T) {
	env := newFakeEnv()
	g := NewGenerator(testConfig(), env, 1, nil)
	buildJob(t, g, sector.New(9, 9))

	// one initial lookup plus BorderRetryAttempts retries
	if env.lookups != 3 {
		t.Errorf("looked up %d times, want 3", env.lookups)
	}
}

func TestGeneratorBorderContinuity(t *testing.T) {
	env := newFakeEnv()
	west, east := sector.New(0, 0), sector.New(1, 0)
	north := sector.New(1, 1)
	for _, s := range []sector.Sector{west, east, north} {
		_ = env.reg.Record(s, track.SectorInfo{})
	}
	g := NewGenerator(testConfig(), env, 3, nil)

	wj := buildJob(t, g, west)
	env.borders[west] = wj.Data.Borders
	nj := buildJob(t, g, north)
	env.borders[north] = nj.Data.Borders
	ej := buildJob(t, g, east)

	wb, eb, nb := wj.Data.Borders, ej.Data.Borders, nj.Data.Borders
	for i := range wb.Sides[dem.East] {
		if wb.Sides[dem.East][i].Z() != eb.Sides[dem.West][i].Z() {
			t.Errorf("west/east seam vertex %d: %v vs %v", i, wb.Sides[dem.East][i].Z(), eb.Sides[dem.West][i].Z())
		}
	}
	for i := range nb.Sides[dem.South] {
		if nb.Sides[dem.South][i].Z() != eb.Sides[dem.North][i].Z() {
			t.Errorf("north/east seam vertex %d differs", i)
		}
	}
	// north took the corner from its diagonal neighbour
	if wb.Corners[dem.CornerC].Z() != nb.Corners[dem.CornerA].Z() {
		t.Error("diagonal corner differs")
	}
	if wb.Corners[dem.CornerC].Z() != eb.Corners[dem.CornerD].Z() {
		t.Error("shared corner differs")
	}
}

func TestSectorRandDeterministic(t *testing.T) {
	s := sector.New(-4, 17)
	a, b := SectorRand(42, s), SectorRand(42, s)
	for i := 0; i < 10; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatal("streams for the same sector differ")
		}
	}
	if SectorRand(42, s).Uint64() == SectorRand(42, sector.New(17, -4)).Uint64() {
		t.Error("mirrored sectors share a stream")
	}
}
