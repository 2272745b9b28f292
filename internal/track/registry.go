// Package track plans the race track as a random walk over the sector grid
// and turns each sector's share of it into curve, ribbon and terrain
// constraint geometry.
package track

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/sectorstream/internal/sector"
)

var (
	// ErrAlreadyDecided is returned when a sector's track info is written twice.
	ErrAlreadyDecided = errors.New("track: sector already decided")
	// ErrMissingPredecessor is returned when a sector's predecessor has no track info.
	ErrMissingPredecessor = errors.New("track: predecessor sector not decided")
)

// Status is the decision state of a sector, as reported to generation workers.
type Status int

const (
	Undecided Status = -1
	NoTrack   Status = 0
	HasTrack  Status = 1
)

func (s Status) String() string {
	switch s {
	case Undecided:
		return "undecided"
	case NoTrack:
		return "no-track"
	case HasTrack:
		return "track"
	}
	return "unknown"
}

// SectorInfo describes the track inside one sector. Points are tile-local.
// Once recorded it is never modified.
type SectorInfo struct {
	HasTrack bool

	HasPrevious bool
	Previous    sector.Sector
	HasNext     bool
	Next        sector.Sector

	EntryPoint     mgl64.Vec2
	ExitPoint      mgl64.Vec2
	EntryElevation float64
	ExitElevation  float64

	FirstControlPoint  mgl64.Vec3
	SecondControlPoint mgl64.Vec3
	CurvePoints        []mgl64.Vec3

	// CheckpointID is 0 when the sector has no checkpoint.
	CheckpointID uint32

	// Y0 and Y1 are where the left and right track edges cross the exit border.
	Y0, Y1 mgl64.Vec3
}

// Start returns the first curve point with its elevation.
func (i SectorInfo) Start() mgl64.Vec3 { return i.EntryPoint.Vec3(i.EntryElevation) }

// End returns the last curve point with its elevation.
func (i SectorInfo) End() mgl64.Vec3 { return i.ExitPoint.Vec3(i.ExitElevation) }

// Registry holds the decided sectors. Writes happen on the planning
// goroutine; generation workers read concurrently.
type Registry struct {
	mu    sync.RWMutex
	infos map[sector.Sector]SectorInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{infos: make(map[sector.Sector]SectorInfo)}
}

// Lookup returns the status of s and, when decided, its info.
func (r *Registry) Lookup(s sector.Sector) (Status, SectorInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.infos[s]
	switch {
	case !ok:
		return Undecided, SectorInfo{}
	case !info.HasTrack:
		return NoTrack, info
	default:
		return HasTrack, info
	}
}

// Decided reports whether s already has an entry.
func (r *Registry) Decided(s sector.Sector) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.infos[s]
	return ok
}

// Record stores info for s. A sector can only be recorded once.
func (r *Registry) Record(s sector.Sector, info SectorInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.infos[s]; ok {
		return fmt.Errorf("%w: %v", ErrAlreadyDecided, s)
	}
	r.infos[s] = info
	return nil
}

// Len returns the number of decided sectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

// Snapshot returns a copy of every decided sector.
func (r *Registry) Snapshot() map[sector.Sector]SectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[sector.Sector]SectorInfo, len(r.infos))
	for s, info := range r.infos {
		out[s] = info
	}
	return out
}
