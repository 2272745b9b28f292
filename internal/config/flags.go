package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagSeed    = flag.Uint64("seed", 0, "Random seed for terrain and track generation (0 = time based)")
	flagWorkers = flag.Int("workers", 0, "Number of terrain generation workers")
	flagRadius  = flag.Int("radius", -1, "Sector ring radius around tracked actors")
	flagTicks   = flag.Int("ticks", 0, "Number of simulation ticks to run")
	flagLogFile = flag.String("log-file", "", "Write logs to this file as well as stdout")
	flagSave    = flag.Bool("save-config", false, "Write the effective config to the user config directory and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether --save-config was given.
func SaveRequested() bool {
	return *flagSave
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagSeed != 0 {
		cfg.Simulation.Seed = *flagSeed
	}
	if *flagWorkers > 0 {
		cfg.Terrain.Workers = *flagWorkers
	}
	if *flagRadius >= 0 {
		cfg.Terrain.TilesAroundActorRadius = *flagRadius
	}
	if *flagTicks > 0 {
		cfg.Simulation.Ticks = *flagTicks
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
