package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// maxDepth bounds the fractal subdivision: a depth 10 tile has 2049² points.
const maxDepth = 10

// Validate reports every setting that would make generation impossible.
// The returned error aggregates all problems and matches ErrInvalid.
func (c *Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	t := c.Terrain
	check(t.TileEdgeSize > 0, "terrain.tile_edge_size must be positive, got %v", t.TileEdgeSize)
	check(t.TilesAroundActorRadius >= 0, "terrain.tiles_around_actor_radius must not be negative, got %d", t.TilesAroundActorRadius)
	check(t.Workers > 0, "terrain.workers must be at least 1, got %d", t.Workers)
	check(t.MeshUpdatesPerTick > 0, "terrain.mesh_updates_per_tick must be at least 1, got %d", t.MeshUpdatesPerTick)
	check(t.QueueCapacity > 0, "terrain.queue_capacity must be at least 1, got %d", t.QueueCapacity)
	check(t.FreeTileRetention >= 0, "terrain.free_tile_retention must not be negative")
	check(t.BorderRetryAttempts >= 0, "terrain.border_retry_attempts must not be negative")

	f := c.Fractal
	check(f.Depth >= 1 && f.Depth <= maxDepth, "fractal.depth must be in [1,%d], got %d", maxDepth, f.Depth)
	check(f.K >= 0, "fractal.k must not be negative, got %v", f.K)
	check(f.Roughness >= 0, "fractal.roughness must not be negative, got %v", f.Roughness)
	check(f.DetailAmplitude >= 0, "fractal.detail_amplitude must not be negative")
	check(f.BandHigh >= f.BandMedium, "fractal.band_high %v must not be below fractal.band_medium %v", f.BandHigh, f.BandMedium)

	tr := c.Track
	check(tr.Resolution >= 2, "track.resolution must be at least 2, got %d", tr.Resolution)
	check(tr.Width > 0, "track.width must be positive, got %v", tr.Width)
	check(tr.Width < t.TileEdgeSize, "track.width %v must be smaller than terrain.tile_edge_size %v", tr.Width, t.TileEdgeSize)
	check(tr.MaximumElevationDifference >= 0, "track.maximum_elevation_difference must not be negative")
	check(tr.SteepnessDeviation >= 0, "track.steepness_deviation must not be negative")
	check(tr.MaximumRotationAngle >= 0 && tr.MaximumRotationAngle <= 90,
		"track.maximum_rotation_angle must be in [0,90], got %v", tr.MaximumRotationAngle)
	check(t.SpawnSegmentIndex >= 0 && t.SpawnSegmentIndex < tr.Resolution,
		"terrain.spawn_segment_index must be in [0,%d), got %d", tr.Resolution, t.SpawnSegmentIndex)

	return err
}
