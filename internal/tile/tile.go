// Package tile implements the pooled terrain tile and its lifecycle.
package tile

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/sectorstream/internal/dem"
	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/terrain"
)

// ErrInvalidState is returned when an operation is not allowed in the tile's state.
var ErrInvalidState = errors.New("tile: invalid state")

// State is a tile lifecycle state.
type State int

const (
	Undefined State = iota
	Initialized
	Transition
	Finished
	Free
)

func (s State) String() string {
	switch s {
	case Undefined:
		return "undefined"
	case Initialized:
		return "initialized"
	case Transition:
		return "transition"
	case Finished:
		return "finished"
	case Free:
		return "free"
	}
	return "unknown"
}

// Renderer owns the rendering and collision resources of tiles.
// It is only called from the goroutine that owns the tiles.
type Renderer interface {
	CreateSection(t *Tile, section terrain.Section, mesh *terrain.Mesh)
	UpdateSection(t *Tile, section terrain.Section, mesh *terrain.Mesh)
	ClearSections(t *Tile)
	SetVisible(t *Tile, visible bool)
	SetPosition(t *Tile, origin mgl64.Vec2)
	Release(t *Tile)
}

// MeshData is the finished output of one generation job.
type MeshData struct {
	Sections [terrain.SectionCount]*terrain.Mesh
	Borders  dem.Borders
}

// Tile is one reusable spatial unit. All methods must be called from the
// owning goroutine.
type Tile struct {
	id         int
	sector     sector.Sector
	state      State
	actors     int
	freedAt    time.Time
	generation uint64

	edge     float64
	renderer Renderer
	created  [terrain.SectionCount]bool

	log *zap.Logger
}

// New returns an Undefined tile for sectors of edge size.
func New(id int, edge float64, log *zap.Logger) *Tile {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tile{id: id, edge: edge, log: log.With(zap.Int("tile", id))}
}

func (t *Tile) ID() int               { return t.id }
func (t *Tile) Sector() sector.Sector { return t.sector }
func (t *Tile) State() State          { return t.state }
func (t *Tile) Actors() int           { return t.actors }
func (t *Tile) FreedAt() time.Time    { return t.freedAt }

// Generation changes every time the tile is bound to a new sector or freed.
// Jobs carry the generation they were issued for.
func (t *Tile) Generation() uint64 { return t.generation }

// Setup allocates rendering resources. Calling it again is a no-op.
func (t *Tile) Setup(r Renderer) {
	if t.state != Undefined {
		return
	}
	t.renderer = r
	t.state = Initialized
	t.log.Debug("tile initialized")
}

// Reposition binds the tile to s and hides it until new mesh data arrives.
func (t *Tile) Reposition(s sector.Sector) error {
	if t.state != Initialized && t.state != Free {
		t.log.Error("reposition in wrong state", zap.Stringer("state", t.state), zap.Stringer("sector", s))
		return fmt.Errorf("%w: reposition from %v", ErrInvalidState, t.state)
	}
	t.sector = s
	t.actors = 0
	t.generation++
	t.state = Transition

	t.renderer.SetVisible(t, false)
	t.renderer.SetPosition(t, s.WorldOrigin(t.edge))
	return nil
}

// MarkDirty returns a finished tile to Transition so it can be regenerated
// in place. Its current mesh stays visible until the new data is applied.
func (t *Tile) MarkDirty() error {
	if t.state != Finished && t.state != Transition {
		return fmt.Errorf("%w: mark dirty from %v", ErrInvalidState, t.state)
	}
	t.generation++
	t.state = Transition
	return nil
}

// ApplyMeshData uploads the job output and shows the tile.
func (t *Tile) ApplyMeshData(data *MeshData) error {
	if t.state != Transition && t.state != Finished {
		t.log.Error("apply mesh data in wrong state", zap.Stringer("state", t.state))
		return fmt.Errorf("%w: apply mesh data from %v", ErrInvalidState, t.state)
	}
	for k, mesh := range data.Sections {
		if mesh == nil {
			continue
		}
		section := terrain.Section(k)
		if t.created[k] {
			t.renderer.UpdateSection(t, section, mesh)
		} else {
			t.renderer.CreateSection(t, section, mesh)
			t.created[k] = true
		}
	}
	t.state = Finished
	t.renderer.SetVisible(t, true)
	return nil
}

// Free clears and hides the tile and returns it to the origin sector.
func (t *Tile) Free(now time.Time) error {
	if t.state != Transition && t.state != Finished {
		return fmt.Errorf("%w: free from %v", ErrInvalidState, t.state)
	}
	t.renderer.ClearSections(t)
	t.renderer.SetVisible(t, false)
	t.created = [terrain.SectionCount]bool{}

	t.sector = sector.Origin
	t.actors = 0
	t.freedAt = now
	t.generation++
	t.state = Free
	return nil
}

// Destroy releases the rendering resources of a free tile.
func (t *Tile) Destroy() {
	if t.renderer != nil {
		t.renderer.Release(t)
	}
	t.state = Undefined
}

// Acquire records one more tracked actor depending on the tile.
func (t *Tile) Acquire() { t.actors++ }

// Release records one actor fewer and returns the remaining count.
func (t *Tile) Release() int {
	if t.actors > 0 {
		t.actors--
	}
	return t.actors
}
