package track

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/config"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/pkg/geom"
)

// Bounds is the bounding quad of the sectors the walk has claimed.
// The zero value is empty and contains nothing.
type Bounds struct {
	MinX, MaxX int32
	MinY, MaxY int32
	Valid      bool
}

// Contains reports whether s lies inside the quad.
func (b Bounds) Contains(s sector.Sector) bool {
	return b.Valid && s.X >= b.MinX && s.X <= b.MaxX && s.Y >= b.MinY && s.Y <= b.MaxY
}

// Extend returns the quad grown to include s.
func (b Bounds) Extend(s sector.Sector) Bounds {
	if !b.Valid {
		return Bounds{MinX: s.X, MaxX: s.X, MinY: s.Y, MaxY: s.Y, Valid: true}
	}
	b.MinX = min(b.MinX, s.X)
	b.MaxX = max(b.MaxX, s.X)
	b.MinY = min(b.MinY, s.Y)
	b.MaxY = max(b.MaxY, s.Y)
	return b
}

// WalkState is the position of the track walk. It is passed and returned by
// value; the planner keeps no walk state of its own.
type WalkState struct {
	Current sector.Sector // last sector with track
	Next    sector.Sector // sector the walk commits to next
	Claimed Bounds

	Started  bool // the first sector has been decided
	Finished bool // the walk hit a dead end

	LastCheckpoint uint32
}

// NewWalk returns a walk that begins at start.
func NewWalk(start sector.Sector) WalkState {
	return WalkState{Current: start, Next: start}
}

// Planner decides sectors for the track walk and records them in a Registry.
// It must only be used from one goroutine.
type Planner struct {
	cfg  config.TrackConfig
	size float64
	reg  *Registry
	rng  *rand.Rand
	log  *zap.Logger
}

// NewPlanner returns a planner for tiles of edge size.
func NewPlanner(cfg config.TrackConfig, size float64, reg *Registry, rng *rand.Rand, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{cfg: cfg, size: size, reg: reg, rng: rng, log: log}
}

// Registry returns the registry the planner writes to.
func (p *Planner) Registry() *Registry { return p.reg }

// Advance walks the track through needed. While the walk's next sector is
// among needed it is decided and the walk moves on. Once the walk leaves the
// batch, every sector of the batch that is still undecided is recorded as
// having no track.
func (p *Planner) Advance(state WalkState, needed []sector.Sector) WalkState {
	batch := sector.NewSet(needed...)

	for !state.Finished && batch.Has(state.Next) {
		s := state.Next
		if p.reg.Decided(s) {
			p.log.Error("walk reached a decided sector", zap.Stringer("sector", s))
			state.Finished = true
			break
		}

		info, next, ok := p.decide(state, s)
		if err := p.reg.Record(s, info); err != nil {
			p.log.Error("recording track sector", zap.Error(err))
			state.Finished = true
			break
		}

		state.Current = s
		state.Claimed = state.Claimed.Extend(s)
		state.LastCheckpoint = info.CheckpointID
		state.Started = true
		if !ok {
			p.log.Info("track walk reached a dead end", zap.Stringer("sector", s))
			state.Finished = true
			break
		}
		state.Next = next

		p.log.Debug("track sector decided",
			zap.Stringer("sector", s),
			zap.Stringer("next", next),
			zap.Uint32("checkpoint", info.CheckpointID),
			zap.Float64("exit_elevation", info.ExitElevation))
	}

	for _, s := range needed {
		if p.reg.Decided(s) {
			continue
		}
		if err := p.reg.Record(s, SectorInfo{}); err != nil {
			p.log.Error("recording empty sector", zap.Error(err))
		}
	}
	return state
}

// candidates returns the directions the walk may leave s by.
func (p *Planner) candidates(state WalkState, s sector.Sector) []sector.Direction {
	var out []sector.Direction
	for _, d := range sector.Directions {
		n := s.Neighbor(d)
		if state.Started && state.Claimed.Contains(n) {
			continue
		}
		// a sector already ruled out can never carry the track
		if p.reg.Decided(n) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// decide computes the info for s. ok is false when the walk cannot continue;
// s then carries a terminal segment.
func (p *Planner) decide(state WalkState, s sector.Sector) (info SectorInfo, next sector.Sector, ok bool) {
	cfg := p.cfg
	half := p.size / 2

	info.HasTrack = true
	info.CheckpointID = state.LastCheckpoint + 1

	var prev SectorInfo
	entryDir := sector.West
	if state.Started {
		var found bool
		status, pi := p.reg.Lookup(state.Current)
		if status == HasTrack {
			prev, found = pi, true
		}
		if d, adjacent := sector.DirectionTo(s, state.Current); adjacent && found {
			entryDir = d
			info.HasPrevious = true
			info.Previous = state.Current
		} else {
			p.log.Error("walk predecessor unusable",
				zap.Stringer("sector", s), zap.Stringer("previous", state.Current))
		}
	}

	cands := p.candidates(state, s)
	var exitDir sector.Direction
	switch {
	case len(cands) > 0:
		exitDir = cands[p.rng.IntN(len(cands))]
		next, ok = s.Neighbor(exitDir), true
		info.HasNext = true
		info.Next = next
	case info.HasPrevious:
		exitDir = entryDir.Opposite()
	default:
		exitDir = sector.East
	}
	if !info.HasPrevious {
		entryDir = exitDir.Opposite()
	}

	info.EntryPoint = EdgeMidpoint(entryDir, p.size)
	info.ExitPoint = EdgeMidpoint(exitDir, p.size)

	maxDiff := cfg.MaximumElevationDifference
	perturb := geom.ClampedNormal(p.rng, cfg.SteepnessMean*maxDiff, cfg.SteepnessDeviation*maxDiff, maxDiff)
	if info.HasPrevious {
		info.EntryElevation = prev.ExitElevation
	} else {
		info.EntryElevation = cfg.DefaultEntryPointHeight
	}
	info.ExitElevation = info.EntryElevation + perturb

	entry := info.Start()
	exit := info.End()
	lo, hi := cfg.Width, p.size-cfg.Width

	if info.HasPrevious {
		tangent := prev.End().Sub(prev.SecondControlPoint)
		cp1 := entry.Add(tangent)
		xy := geom.ClampToSquare(cp1.Vec2(), lo, hi)
		info.FirstControlPoint = xy.Vec3(cp1.Z())
	} else {
		info.FirstControlPoint = entry.Add(exit.Sub(entry).Mul(1.0 / 3))
	}

	center := mgl64.Vec2{half, half}
	t := mgl64.Clamp(0.5+geom.Normal(p.rng, cfg.CurvinessMean, cfg.CurvinessDisplacement), 0.1, 0.9)
	base := center.Add(info.ExitPoint.Sub(center).Mul(t))
	angle := geom.ClampedNormal(p.rng, 0, cfg.CurvinessRotation*cfg.MaximumRotationAngle, cfg.MaximumRotationAngle)
	rotated := info.ExitPoint.Add(mgl64.Rotate2D(mgl64.DegToRad(angle)).Mul2x1(base.Sub(info.ExitPoint)))
	cp2 := geom.ClampToSquare(rotated, lo, hi)
	lift := geom.ClampedNormal(p.rng, 0, cfg.Hilliness, maxDiff)
	info.SecondControlPoint = cp2.Vec3((info.EntryElevation+info.ExitElevation)/2 + lift)

	info.CurvePoints = SampleCurve(entry, info.FirstControlPoint, info.SecondControlPoint, exit, cfg.Resolution)
	info.Y0, info.Y1 = exitEdge(info.CurvePoints, exitDir, p.size, cfg.Width)
	return info, next, ok
}

// EdgeMidpoint returns the midpoint of the tile edge facing d.
func EdgeMidpoint(d sector.Direction, size float64) mgl64.Vec2 {
	half := size / 2
	switch d {
	case sector.North:
		return mgl64.Vec2{half, size}
	case sector.East:
		return mgl64.Vec2{size, half}
	case sector.South:
		return mgl64.Vec2{half, 0}
	default:
		return mgl64.Vec2{0, half}
	}
}

// edgeLine returns two points on the tile edge facing d.
func edgeLine(d sector.Direction, size float64) (mgl64.Vec2, mgl64.Vec2) {
	switch d {
	case sector.North:
		return mgl64.Vec2{0, size}, mgl64.Vec2{size, size}
	case sector.East:
		return mgl64.Vec2{size, 0}, mgl64.Vec2{size, size}
	case sector.South:
		return mgl64.Vec2{0, 0}, mgl64.Vec2{size, 0}
	default:
		return mgl64.Vec2{0, 0}, mgl64.Vec2{0, size}
	}
}

// SampleCurve returns n points along the cubic Bezier p0..p3, both ends included.
func SampleCurve(p0, p1, p2, p3 mgl64.Vec3, n int) []mgl64.Vec3 {
	if n < 2 {
		n = 2
	}
	out := make([]mgl64.Vec3, n)
	for i := range out {
		t := float64(i) / float64(n-1)
		out[i] = mgl64.CubicBezierCurve3D(t, p0, p1, p2, p3)
	}
	// pin the ends; the polynomial can drift by an ulp
	out[0], out[n-1] = p0, p3
	return out
}

// exitEdge returns where the left and right road edges, offset from the last
// curve segment, cross the exit border.
func exitEdge(curve []mgl64.Vec3, exitDir sector.Direction, size, width float64) (left, right mgl64.Vec3) {
	last := curve[len(curve)-1]
	dir := last.Vec2().Sub(curve[len(curve)-2].Vec2())
	if dir.Len() == 0 {
		ox, oy := exitDir.Offset()
		dir = mgl64.Vec2{float64(ox), float64(oy)}
	}
	n := geom.Perp(dir.Normalize()).Mul(width / 2)
	b0, b1 := edgeLine(exitDir, size)

	offset := func(o mgl64.Vec2) mgl64.Vec3 {
		a0 := last.Vec2().Add(o)
		p, ok := geom.IntersectLines(a0, a0.Add(dir), b0, b1)
		if !ok {
			p = a0
		}
		return p.Vec3(last.Z())
	}
	return offset(n), offset(n.Mul(-1))
}
