package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagImagery  = flag.String("imagery", "", "Imagery tile URL template ({z}/{x}/{y})")
	flagMaxLevel = flag.Int("max-level", 0, "Maximum quadtree level")
	flagMetrics  = flag.String("metrics", "", "Prometheus listen address")
	flagWidth    = flag.Int("width", 0, "Viewport width")
	flagHeight   = flag.Int("height", 0, "Viewport height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagImagery != "" {
		cfg.Imagery.URLTemplate = *flagImagery
	}
	if *flagMaxLevel > 0 {
		cfg.Engine.MaxLevel = *flagMaxLevel
	}
	if *flagMetrics != "" {
		cfg.Metrics.ListenAddr = *flagMetrics
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
}
