package track

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/sector"
)

const testSize = 65536.0

func newTestPlanner(seed uint64) *Planner {
	cfg := config.Default().Track
	return NewPlanner(cfg, testSize, NewRegistry(), rand.New(rand.NewPCG(seed, 99)), nil)
}

// walkEast streams a radius-2 window eastwards for steps sectors, the way
// the manager does for an actor driving in a straight line.
func walkEast(p *Planner, steps int) WalkState {
	state := NewWalk(sector.Origin)
	for x := int32(0); x < int32(steps); x++ {
		state = p.Advance(state, sector.Ring(sector.New(x, 0), 2))
	}
	return state
}

func TestBounds(t *testing.T) {
	var b Bounds
	if b.Contains(sector.Origin) {
		t.Fatal("empty bounds contains origin")
	}
	b = b.Extend(sector.New(1, 2)).Extend(sector.New(-1, 0))

	tests := []struct {
		s    sector.Sector
		want bool
	}{
		{sector.New(0, 1), true},
		{sector.New(-1, 2), true},
		{sector.New(2, 0), false},
		{sector.New(0, 3), false},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.s); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestRegistryWriteOnce(t *testing.T) {
	r := NewRegistry()
	s := sector.New(3, 4)

	if status, _ := r.Lookup(s); status != Undecided {
		t.Fatalf("fresh sector status = %v", status)
	}
	if err := r.Record(s, SectorInfo{}); err != nil {
		t.Fatal(err)
	}
	if status, _ := r.Lookup(s); status != NoTrack {
		t.Fatalf("status = %v, want no-track", status)
	}
	err := r.Record(s, SectorInfo{HasTrack: true})
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("second record: got %v", err)
	}
	if status, _ := r.Lookup(s); status != NoTrack {
		t.Error("second record changed the sector")
	}
}

func TestFirstSector(t *testing.T) {
	cfg := config.Default().Track
	for seed := uint64(0); seed < 20; seed++ {
		p := newTestPlanner(seed)
		state := p.Advance(NewWalk(sector.Origin), sector.Ring(sector.Origin, 1))

		if !state.Started {
			t.Fatalf("seed %d: walk did not start", seed)
		}
		status, info := p.Registry().Lookup(sector.Origin)
		if status != HasTrack {
			t.Fatalf("seed %d: origin status = %v", seed, status)
		}
		if info.HasPrevious {
			t.Errorf("seed %d: first sector has a predecessor", seed)
		}
		if info.CheckpointID != 1 {
			t.Errorf("seed %d: first checkpoint = %d, want 1", seed, info.CheckpointID)
		}
		// midpoints of opposite edges always sum to the far corner
		if sum := info.EntryPoint.Add(info.ExitPoint); !sum.ApproxEqual(mgl64.Vec2{testSize, testSize}) {
			t.Errorf("seed %d: entry %v and exit %v are not on opposite edges", seed, info.EntryPoint, info.ExitPoint)
		}
		if info.EntryElevation != cfg.DefaultEntryPointHeight {
			t.Errorf("seed %d: entry elevation = %v", seed, info.EntryElevation)
		}
		if d := math.Abs(info.ExitElevation - cfg.DefaultEntryPointHeight); d > cfg.MaximumElevationDifference {
			t.Errorf("seed %d: exit elevation %v out of bounds", seed, info.ExitElevation)
		}
		if len(info.CurvePoints) != cfg.Resolution {
			t.Errorf("seed %d: %d curve points, want %d", seed, len(info.CurvePoints), cfg.Resolution)
		}
	}
}

func TestBatchIsFullyDecided(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		p := newTestPlanner(seed)
		ring := sector.Ring(sector.Origin, 1)
		state := p.Advance(NewWalk(sector.Origin), ring)

		for _, s := range ring {
			if !p.Registry().Decided(s) {
				t.Fatalf("seed %d: %v left undecided", seed, s)
			}
		}
		if state.Finished {
			continue
		}
		if sector.NewSet(ring...).Has(state.Next) {
			t.Errorf("seed %d: walk stopped inside the batch at %v", seed, state.Next)
		}
		if p.Registry().Decided(state.Next) {
			t.Errorf("seed %d: next sector %v already decided", seed, state.Next)
		}
	}
}

func TestWalkIsSimplePath(t *testing.T) {
	cfg := config.Default().Track
	for seed := uint64(0); seed < 10; seed++ {
		p := newTestPlanner(seed)
		walkEast(p, 40)

		infos := p.Registry().Snapshot()
		firsts := 0
		successors := map[sector.Sector]sector.Sector{}
		for s, info := range infos {
			if !info.HasTrack {
				if info.CheckpointID != 0 {
					t.Errorf("seed %d: no-track sector %v has checkpoint %d", seed, s, info.CheckpointID)
				}
				continue
			}
			if !info.HasPrevious {
				firsts++
				continue
			}
			prev, ok := infos[info.Previous]
			if !ok || !prev.HasTrack {
				t.Fatalf("seed %d: %v points at %v which has no track", seed, s, info.Previous)
			}
			if !prev.HasNext || prev.Next != s {
				t.Errorf("seed %d: %v does not link forward to %v", seed, info.Previous, s)
			}
			if other, dup := successors[info.Previous]; dup {
				t.Errorf("seed %d: %v has two successors %v and %v", seed, info.Previous, other, s)
			}
			successors[info.Previous] = s
			if info.CheckpointID != prev.CheckpointID+1 {
				t.Errorf("seed %d: checkpoint %d follows %d", seed, info.CheckpointID, prev.CheckpointID)
			}
			if info.EntryElevation != prev.ExitElevation {
				t.Errorf("seed %d: elevation jumps at %v", seed, s)
			}
			if d := math.Abs(info.ExitElevation - info.EntryElevation); d > cfg.MaximumElevationDifference {
				t.Errorf("seed %d: slope %v too steep at %v", seed, d, s)
			}

			// the previous exit must be this entry, seen from this sector
			dx, dy := info.Previous.Sub(s)
			shifted := prev.ExitPoint.Add(mgl64.Vec2{float64(dx) * testSize, float64(dy) * testSize})
			if !shifted.ApproxEqual(info.EntryPoint) {
				t.Errorf("seed %d: exit %v of %v does not meet entry %v of %v", seed, shifted, info.Previous, info.EntryPoint, s)
			}
		}
		if firsts != 1 {
			t.Errorf("seed %d: %d sectors without predecessor, want 1", seed, firsts)
		}
	}
}

func TestFinishedWalkOnlyRecordsNoTrack(t *testing.T) {
	p := newTestPlanner(1)
	state := NewWalk(sector.Origin)
	state.Finished = true

	ring := sector.Ring(sector.New(5, 5), 1)
	p.Advance(state, ring)
	for _, s := range ring {
		if status, _ := p.Registry().Lookup(s); status != NoTrack {
			t.Errorf("%v status = %v, want no-track", s, status)
		}
	}
}

func straightInfo() SectorInfo {
	curve := SampleCurve(
		mgl64.Vec3{0, 50, 10}, mgl64.Vec3{100.0 / 3, 50, 10},
		mgl64.Vec3{200.0 / 3, 50, 10}, mgl64.Vec3{100, 50, 10}, 11)
	y0, y1 := exitEdge(curve, sector.East, 100, 20)
	return SectorInfo{
		HasTrack:       true,
		EntryPoint:     mgl64.Vec2{0, 50},
		ExitPoint:      mgl64.Vec2{100, 50},
		EntryElevation: 10,
		ExitElevation:  10,
		CurvePoints:    curve,
		Y0:             y0,
		Y1:             y1,
	}
}

func TestExitEdge(t *testing.T) {
	info := straightInfo()
	if !info.Y0.ApproxEqualThreshold(mgl64.Vec3{100, 60, 10}, 1e-6) {
		t.Errorf("Y0 = %v, want the left edge on the east border", info.Y0)
	}
	if !info.Y1.ApproxEqualThreshold(mgl64.Vec3{100, 40, 10}, 1e-6) {
		t.Errorf("Y1 = %v, want the right edge on the east border", info.Y1)
	}
}

func TestEntryEdge(t *testing.T) {
	prev := straightInfo()
	e := EntryEdge(prev, sector.Origin, sector.New(1, 0), 100)
	if !e.Left.ApproxEqualThreshold(mgl64.Vec3{0, 60, 10}, 1e-6) || !e.Right.ApproxEqualThreshold(mgl64.Vec3{0, 40, 10}, 1e-6) {
		t.Errorf("EntryEdge = %+v", e)
	}
}

func TestSampleCurveEnds(t *testing.T) {
	p0, p3 := mgl64.Vec3{1, 2, 3}, mgl64.Vec3{7, 8, 9}
	pts := SampleCurve(p0, mgl64.Vec3{2, 5, 1}, mgl64.Vec3{6, 0, 4}, p3, 5)
	if len(pts) != 5 {
		t.Fatalf("got %d points", len(pts))
	}
	if pts[0] != p0 || pts[4] != p3 {
		t.Errorf("curve ends = %v, %v", pts[0], pts[4])
	}
}

func TestRibbon(t *testing.T) {
	info := straightInfo()
	ribbon := info.Ribbon(nil, 20)
	if len(ribbon) != len(info.CurvePoints) {
		t.Fatalf("ribbon has %d edges", len(ribbon))
	}
	if !ribbon[3].Left.ApproxEqualThreshold(mgl64.Vec3{30, 60, 10}, 1e-6) || !ribbon[3].Right.ApproxEqualThreshold(mgl64.Vec3{30, 40, 10}, 1e-6) {
		t.Errorf("edge 3 = %+v", ribbon[3])
	}
	if ribbon[len(ribbon)-1].Left != info.Y0 {
		t.Error("last edge does not end on Y0")
	}

	entry := Edge{Left: mgl64.Vec3{0, 61, 11}, Right: mgl64.Vec3{0, 41, 11}}
	if got := info.Ribbon(&entry, 20)[0]; got != entry {
		t.Errorf("first edge = %+v, want the entry edge", got)
	}
}

func TestConstraints(t *testing.T) {
	info := straightInfo()
	ribbon := info.Ribbon(nil, 20)
	pts := Constraints(info.CurvePoints, ribbon, 10, 100, 1, 1)

	// an 11 x 3 block of grid points covers the straight road
	if len(pts) != 33 {
		t.Fatalf("got %d constraints, want 33", len(pts))
	}
	seen := map[mgl64.Vec2]bool{}
	for _, p := range pts {
		if math.Abs(p.Z()-9) > 1e-9 {
			t.Errorf("constraint %v not lowered by the offset", p)
		}
		if p.Y() < 39 || p.Y() > 61 || p.X() < 0 || p.X() > 100 {
			t.Errorf("constraint %v outside the road", p)
		}
		if seen[p.Vec2()] {
			t.Errorf("duplicate constraint %v", p)
		}
		seen[p.Vec2()] = true
	}
}

func TestConstraintsClipToTile(t *testing.T) {
	curve := SampleCurve(
		mgl64.Vec3{-50, 50, 0}, mgl64.Vec3{0, 50, 0},
		mgl64.Vec3{100, 50, 0}, mgl64.Vec3{150, 50, 0}, 21)
	info := SectorInfo{CurvePoints: curve, Y0: mgl64.Vec3{150, 60, 0}, Y1: mgl64.Vec3{150, 40, 0}}
	for _, p := range Constraints(curve, info.Ribbon(nil, 20), 10, 100, 5, 0) {
		if p.X() < 0 || p.X() > 100 || p.Y() < 0 || p.Y() > 100 {
			t.Errorf("constraint %v outside the tile", p)
		}
	}
}

func TestCheckpointAndSpawn(t *testing.T) {
	info := straightInfo()

	cp := info.Checkpoint(20)
	if !cp.Location.ApproxEqualThreshold(mgl64.Vec3{50, 50, 10}, 1e-6) || math.Abs(cp.Yaw) > 1e-6 || cp.Width != 20 {
		t.Errorf("Checkpoint = %+v", cp)
	}
	moved := cp.Translate(mgl64.Vec2{1000, 2000})
	if !moved.Location.ApproxEqualThreshold(mgl64.Vec3{1050, 2050, 10}, 1e-6) {
		t.Errorf("Translate = %v", moved.Location)
	}

	spawn := info.Spawn(2, 5, 3)
	if !spawn.Location.ApproxEqualThreshold(mgl64.Vec3{15, 50, 13}, 1e-6) {
		t.Errorf("Spawn = %v", spawn.Location)
	}
}
