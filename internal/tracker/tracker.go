// Package tracker follows moving actors and tells the terrain streamer when
// one of them crosses into another sector.
package tracker

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/sector"
)

// ErrUnknown is returned for ids that are not registered.
var ErrUnknown = errors.New("tracker: unknown actor")

// Streamer is the part of the terrain manager the tracker drives.
type Streamer interface {
	SectorFromLocation(location mgl64.Vec3) sector.Sector
	AddTrackedActor(id uuid.UUID, location mgl64.Vec3) error
	RemoveTrackedActor(id uuid.UUID) error
	HandleActorMovedSector(id uuid.UUID, from, to sector.Sector) error
}

// Tracker remembers the last sector of every registered actor.
type Tracker struct {
	streamer Streamer
	log      *zap.Logger
	current  map[uuid.UUID]sector.Sector
}

// New creates a tracker driving s.
func New(s Streamer, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		streamer: s,
		log:      log,
		current:  make(map[uuid.UUID]sector.Sector),
	}
}

// Register starts tracking a new actor at location and returns its id.
func (t *Tracker) Register(location mgl64.Vec3) (uuid.UUID, error) {
	id := uuid.New()
	if err := t.streamer.AddTrackedActor(id, location); err != nil {
		return uuid.Nil, fmt.Errorf("registering actor: %w", err)
	}
	t.current[id] = t.streamer.SectorFromLocation(location)
	return id, nil
}

// Unregister stops tracking id.
func (t *Tracker) Unregister(id uuid.UUID) error {
	if _, ok := t.current[id]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknown, id)
	}
	delete(t.current, id)
	return t.streamer.RemoveTrackedActor(id)
}

// Update records the new location of id. It reports whether the actor
// changed sector, in which case the streamer has been notified.
func (t *Tracker) Update(id uuid.UUID, location mgl64.Vec3) (bool, error) {
	prev, ok := t.current[id]
	if !ok {
		return false, fmt.Errorf("%w: %v", ErrUnknown, id)
	}
	now := t.streamer.SectorFromLocation(location)
	if now == prev {
		return false, nil
	}
	if err := t.streamer.HandleActorMovedSector(id, prev, now); err != nil {
		return false, fmt.Errorf("moving actor %v to %v: %w", id, now, err)
	}
	t.current[id] = now
	t.log.Debug("actor changed sector", zap.Stringer("actor", id), zap.Stringer("from", prev), zap.Stringer("to", now))
	return true, nil
}

// Sector returns the last known sector of id.
func (t *Tracker) Sector(id uuid.UUID) (sector.Sector, bool) {
	s, ok := t.current[id]
	return s, ok
}

// Len returns the number of tracked actors.
func (t *Tracker) Len() int { return len(t.current) }
