// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"
	"time"
)

// Config holds all viewer settings.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Cache   CacheConfig   `yaml:"cache"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Imagery ImageryConfig `yaml:"imagery"`
	Terrain TerrainConfig `yaml:"terrain"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds LOD engine tuning.
type EngineConfig struct {
	MinLevel         int     `yaml:"min_level" env:"EARTHVIEW_MIN_LEVEL"`
	MaxLevel         int     `yaml:"max_level" env:"EARTHVIEW_MAX_LEVEL"`
	ErrorThresholdPx float64 `yaml:"error_threshold_px" env:"EARTHVIEW_ERROR_THRESHOLD_PX"`
	Quality          float64 `yaml:"quality"`
	TilePixelWidth   int     `yaml:"tile_pixel_width"`
	MeshBudget       int     `yaml:"mesh_budget"`
	RequestBudget    int     `yaml:"request_budget"`
	Skirts           bool    `yaml:"skirts"`
	SkirtMinZoom     int     `yaml:"skirt_min_zoom"`
	SkirtDepth       float64 `yaml:"skirt_depth"`
}

// CacheConfig holds tile cache budgets.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" env:"EARTHVIEW_CACHE_MAX_ENTRIES"`
	MaxMB      int `yaml:"max_mb" env:"EARTHVIEW_CACHE_MAX_MB"`
}

// FetchConfig holds the download pipeline settings.
type FetchConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent" env:"EARTHVIEW_FETCH_MAX_CONCURRENT"`
	QueueSize     int           `yaml:"queue_size"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ImageryConfig holds the raster tile source.
type ImageryConfig struct {
	URLTemplate string `yaml:"url_template" env:"EARTHVIEW_IMAGERY_URL"`
	AccessToken string `yaml:"access_token" env:"EARTHVIEW_IMAGERY_TOKEN"`
}

// TerrainConfig holds the optional quantized-mesh terrain source.
type TerrainConfig struct {
	Enabled     bool   `yaml:"enabled" env:"EARTHVIEW_TERRAIN_ENABLED"`
	URLTemplate string `yaml:"url_template" env:"EARTHVIEW_TERRAIN_URL"`
	AccessToken string `yaml:"access_token" env:"EARTHVIEW_TERRAIN_TOKEN"`
}

// ViewerConfig holds viewport, start position and flight loop settings.
type ViewerConfig struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	FovYDeg  float64 `yaml:"fov_y_deg"`
	StartLon float64 `yaml:"start_lon"`
	StartLat float64 `yaml:"start_lat"`
	// TickInterval paces the update loop; Ticks stops the flight after
	// that many updates (0 runs until interrupted).
	TickInterval time.Duration `yaml:"tick_interval"`
	Ticks        int           `yaml:"ticks" env:"EARTHVIEW_TICKS"`
}

// MetricsConfig holds the optional Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"EARTHVIEW_METRICS_ADDR"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" env:"EARTHVIEW_LOG_LEVEL"`
	LogFile string `yaml:"log_file" env:"EARTHVIEW_LOG_FILE"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MinLevel:         0,
			MaxLevel:         18,
			ErrorThresholdPx: 48,
			Quality:          1.0,
			TilePixelWidth:   256,
			MeshBudget:       8,
			RequestBudget:    8,
			Skirts:           true,
			SkirtMinZoom:     6,
			SkirtDepth:       0.0005,
		},
		Cache: CacheConfig{
			MaxEntries: 512,
			MaxMB:      256,
		},
		Fetch: FetchConfig{
			MaxConcurrent: 6,
			QueueSize:     256,
			Timeout:       15 * time.Second,
		},
		Imagery: ImageryConfig{
			URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		},
		Terrain: TerrainConfig{
			Enabled: false,
		},
		Viewer: ViewerConfig{
			Width:        1280,
			Height:       720,
			FovYDeg:      60,
			StartLon:     0,
			StartLat:     0,
			TickInterval: 50 * time.Millisecond,
			Ticks:        0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.MinLevel < 0 || c.Engine.MaxLevel < c.Engine.MinLevel {
		return fmt.Errorf("engine levels: min %d, max %d", c.Engine.MinLevel, c.Engine.MaxLevel)
	}
	if c.Engine.ErrorThresholdPx <= 0 {
		return fmt.Errorf("error_threshold_px must be positive, got %v", c.Engine.ErrorThresholdPx)
	}
	if c.Engine.MeshBudget <= 0 || c.Engine.RequestBudget <= 0 {
		return fmt.Errorf("budgets must be positive: mesh %d, request %d",
			c.Engine.MeshBudget, c.Engine.RequestBudget)
	}
	if c.Fetch.MaxConcurrent <= 0 {
		return fmt.Errorf("fetch max_concurrent must be positive, got %d", c.Fetch.MaxConcurrent)
	}
	if c.Imagery.URLTemplate == "" {
		return fmt.Errorf("imagery url_template is required")
	}
	if c.Terrain.Enabled && c.Terrain.URLTemplate == "" {
		return fmt.Errorf("terrain enabled without url_template")
	}
	return nil
}
