// Package viewer wires the camera, LOD engine and tile sources into a
// running globe session.
package viewer

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/handaome/three-earth/internal/cache"
	"github.com/handaome/three-earth/internal/camera"
	"github.com/handaome/three-earth/internal/config"
	"github.com/handaome/three-earth/internal/fetch"
	"github.com/handaome/three-earth/internal/imagery"
	"github.com/handaome/three-earth/internal/logger"
	"github.com/handaome/three-earth/internal/lod"
	"github.com/handaome/three-earth/internal/terrain"
)

// GlobeRadius is the globe radius in scene units.
const GlobeRadius = 1.0

// Viewer owns one globe session: camera, engine, and the fetch pipeline.
type Viewer struct {
	cfg    *config.Config
	cam    *camera.GlobeCamera
	engine *lod.Engine
	sched  *fetch.Scheduler
	tiles  *cache.Cache
}

// New builds a viewer from configuration.
func New(cfg *config.Config) (*Viewer, error) {
	imagerySrc := imagery.NewTileSource(cfg.Imagery.URLTemplate, cfg.Imagery.AccessToken)
	imagerySrc.Client.Timeout = cfg.Fetch.Timeout

	var terrainSrc imagery.Source
	if cfg.Terrain.Enabled {
		src := imagery.NewTerrainSource(cfg.Terrain.URLTemplate, cfg.Terrain.AccessToken)
		src.Client.Timeout = cfg.Fetch.Timeout
		terrainSrc = src
	}

	sched := fetch.NewScheduler(int64(cfg.Fetch.MaxConcurrent), cfg.Fetch.QueueSize)
	tiles := cache.New()

	opts := lod.Options{
		Radius:           GlobeRadius,
		Quality:          cfg.Engine.Quality,
		TilePixelWidth:   cfg.Engine.TilePixelWidth,
		MinLevel:         cfg.Engine.MinLevel,
		MaxLevel:         cfg.Engine.MaxLevel,
		ErrorThresholdPx: cfg.Engine.ErrorThresholdPx,
		MeshBudget:       cfg.Engine.MeshBudget,
		RequestBudget:    cfg.Engine.RequestBudget,
		CacheMaxEntries:  cfg.Cache.MaxEntries,
		CacheMaxBytes:    int64(cfg.Cache.MaxMB) << 20,
		Surface: terrain.SurfaceOptions{
			Radius:       GlobeRadius,
			Skirts:       cfg.Engine.Skirts,
			SkirtMinZoom: cfg.Engine.SkirtMinZoom,
			SkirtDepth:   cfg.Engine.SkirtDepth,
		},
	}

	cam := camera.NewGlobeCamera(GlobeRadius)
	cam.FovY = cfg.Viewer.FovYDeg * math.Pi / 180
	cam.LookAtLonLat(cfg.Viewer.StartLon, cfg.Viewer.StartLat)

	return &Viewer{
		cfg:    cfg,
		cam:    cam,
		engine: lod.NewEngine(opts, imagerySrc, terrainSrc, sched, tiles),
		sched:  sched,
		tiles:  tiles,
	}, nil
}

// Camera returns the session camera for external input handling.
func (v *Viewer) Camera() *camera.GlobeCamera {
	return v.cam
}

// view snapshots the camera for one engine tick.
func (v *Viewer) view() lod.ViewState {
	aspect := float64(v.cfg.Viewer.Width) / float64(v.cfg.Viewer.Height)
	return lod.ViewState{
		Eye:            v.cam.Position(),
		ViewProj:       v.cam.ViewProjection(aspect),
		FovY:           v.cam.FovY,
		ViewportHeight: float64(v.cfg.Viewer.Height),
		Gaze:           v.cam.Gaze(),
		Orientation:    v.cam.Orientation,
	}
}

// Step advances the session one tick and returns what changed.
func (v *Viewer) Step() lod.TickResult {
	return v.engine.Update(v.view())
}

// Run flies a deterministic orbit: a slow eastward drift with a zoom cycle
// from high orbit down toward the surface and back. It returns when the
// context is cancelled or the configured tick count is reached.
func (v *Viewer) Run(ctx context.Context) error {
	if addr := v.cfg.Metrics.ListenAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(v.cfg.Viewer.TickInterval)
	defer ticker.Stop()

	lastLog := time.Now()
	for n := 0; ; n++ {
		if v.cfg.Viewer.Ticks > 0 && n >= v.cfg.Viewer.Ticks {
			logger.Info("flight complete", zap.Int("ticks", n))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		v.advanceFlight(n)
		res := v.Step()

		if time.Since(lastLog) >= time.Second {
			lastLog = time.Now()
			st := v.tiles.Stats()
			logger.Info("tick",
				zap.Int("n", n),
				zap.Int("visible", len(res.Visible)),
				zap.Int("missing", res.Missing),
				zap.Int("culled", res.Culled),
				zap.Int("live", v.engine.LiveCount()),
				zap.Int64("requested", v.sched.Requested()),
				zap.Int64("succeeded", v.sched.Succeeded()),
				zap.Int64("cache_bytes", st.Bytes),
				zap.Int64("evictions", st.Evictions),
			)
		}
	}
}

// advanceFlight moves the camera along the scripted orbit.
func (v *Viewer) advanceFlight(tick int) {
	t := float64(tick)
	v.cam.Yaw += 0.002
	// Zoom oscillates between high orbit and low pass.
	phase := (math.Sin(t*0.005) + 1) / 2 // 0..1
	v.cam.Distance = GlobeRadius * (1.05 + 2.0*phase)
}

// Close releases the fetch pipeline.
func (v *Viewer) Close() {
	v.sched.Close()
}
