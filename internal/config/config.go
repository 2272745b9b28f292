// Package config handles engine configuration loading, validation and persistence.
package config

import "time"

// Config holds all engine settings.
type Config struct {
	Terrain    TerrainConfig    `yaml:"terrain"`
	Fractal    FractalConfig    `yaml:"fractal"`
	Track      TrackConfig      `yaml:"track"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TerrainConfig holds sector streaming and tile pool settings.
type TerrainConfig struct {
	TileEdgeSize               float64       `yaml:"tile_edge_size"`
	TilesAroundActorRadius     int           `yaml:"tiles_around_actor_radius"`
	FreeTileRetention          time.Duration `yaml:"free_tile_retention"`
	Workers                    int           `yaml:"workers"`
	MeshUpdatesPerTick         int           `yaml:"mesh_updates_per_tick"`
	QueueCapacity              int           `yaml:"queue_capacity"`
	BorderRetryAttempts        int           `yaml:"border_retry_attempts"`
	BorderRetryInterval        time.Duration `yaml:"border_retry_interval"`
	PlayerSpawnElevationOffset float64       `yaml:"player_spawn_elevation_offset"`
	SpawnSegmentIndex          int           `yaml:"spawn_segment_index"`
	SpawnSegmentOffset         float64       `yaml:"spawn_segment_offset"`
}

// FractalConfig holds the constrained fractal heightfield parameters.
type FractalConfig struct {
	H               float64 `yaml:"h"`         // roughness exponent across depth
	K               float64 `yaml:"k"`         // base deviation factor
	Roughness       float64 `yaml:"roughness"` // deviation scale in elevation units
	IBu             float64 `yaml:"i_bu"`      // bottom-up interpolation exponent
	Depth           int     `yaml:"depth"`
	DetailAmplitude float64 `yaml:"detail_amplitude"`
	DetailFrequency float64 `yaml:"detail_frequency"`
	BandMedium      float64 `yaml:"band_medium"` // elevation splitting low and medium terrain sections
	BandHigh        float64 `yaml:"band_high"`
}

// TrackConfig holds race track generation parameters.
type TrackConfig struct {
	Resolution                 int     `yaml:"resolution"`
	Width                      float64 `yaml:"width"`
	MaximumElevationDifference float64 `yaml:"maximum_elevation_difference"`
	DefaultEntryPointHeight    float64 `yaml:"default_entry_point_height"`
	ElevationOffset            float64 `yaml:"elevation_offset"`
	CurvinessMean              float64 `yaml:"curviness_mean"`
	CurvinessDisplacement      float64 `yaml:"curviness_displacement"`
	CurvinessRotation          float64 `yaml:"curviness_rotation"`
	MaximumRotationAngle       float64 `yaml:"maximum_rotation_angle"` // degrees
	Hilliness                  float64 `yaml:"hilliness"`
	SteepnessMean              float64 `yaml:"steepness_mean"`
	SteepnessDeviation         float64 `yaml:"steepness_deviation"`
	PointInsideTolerance       float64 `yaml:"point_inside_tolerance"`
}

// SimulationConfig drives the headless runner.
type SimulationConfig struct {
	Seed         uint64        `yaml:"seed"` // 0 picks a time-based seed
	Actors       int           `yaml:"actors"`
	Ticks        int           `yaml:"ticks"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Speed        float64       `yaml:"speed"` // world units per second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			TileEdgeSize:               65536,
			TilesAroundActorRadius:     3,
			FreeTileRetention:          30 * time.Second,
			Workers:                    1,
			MeshUpdatesPerTick:         8,
			QueueCapacity:              16,
			BorderRetryAttempts:        50,
			BorderRetryInterval:        10 * time.Millisecond,
			PlayerSpawnElevationOffset: 100,
			SpawnSegmentIndex:          0,
			SpawnSegmentOffset:         200,
		},
		Fractal: FractalConfig{
			H:               0.5,
			K:               0.55,
			Roughness:       2000,
			IBu:             -0.4,
			Depth:           6,
			DetailAmplitude: 0,
			DetailFrequency: 1.0 / 8192,
			BandMedium:      4000,
			BandHigh:        12000,
		},
		Track: TrackConfig{
			Resolution:                 20,
			Width:                      1500,
			MaximumElevationDifference: 20000,
			DefaultEntryPointHeight:    2000,
			ElevationOffset:            10,
			CurvinessMean:              0,
			CurvinessDisplacement:      0.2,
			CurvinessRotation:          0.4,
			MaximumRotationAngle:       45,
			Hilliness:                  2000,
			SteepnessMean:              0,
			SteepnessDeviation:         0.2,
			PointInsideTolerance:       100,
		},
		Simulation: SimulationConfig{
			Seed:         0,
			Actors:       1,
			Ticks:        600,
			TickInterval: 16 * time.Millisecond,
			Speed:        20000,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
