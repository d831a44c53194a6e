package lod

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/handaome/three-earth/internal/cache"
	"github.com/handaome/three-earth/internal/fetch"
	"github.com/handaome/three-earth/internal/imagery"
	"github.com/handaome/three-earth/internal/logger"
	"github.com/handaome/three-earth/internal/metrics"
	"github.com/handaome/three-earth/internal/terrain"
	"github.com/handaome/three-earth/pkg/slippy"
)

// MeshState tracks a live mesh through its texture lifecycle.
type MeshState int

const (
	// Created: mesh exists, nothing requested yet.
	Created MeshState = iota
	// TextureRequested: a fetch is in flight.
	TextureRequested
	// TextureReady: the texture payload arrived and is attached.
	TextureReady
	// TextureFailed: the last fetch produced nothing. A later tick may
	// retry, since the scheduler's pending entry has been cleared.
	TextureFailed
)

func (s MeshState) String() string {
	switch s {
	case Created:
		return "created"
	case TextureRequested:
		return "texture-requested"
	case TextureReady:
		return "texture-ready"
	case TextureFailed:
		return "texture-failed"
	default:
		return "unknown"
	}
}

// LiveMesh is a tile currently held by the engine: renderable geometry plus
// the state of its texture.
type LiveMesh struct {
	Coord   slippy.TileCoord
	Mesh    *terrain.Mesh
	State   MeshState
	Texture []byte

	// terrainApplied is set once a decoded terrain tile has replaced the
	// synthesized surface grid.
	terrainApplied   bool
	terrainRequested bool
}

// Options configures an Engine.
type Options struct {
	Radius           float64
	Quality          float64
	TilePixelWidth   int
	MinLevel         int
	MaxLevel         int
	ErrorThresholdPx float64

	// MeshBudget caps live meshes created per tick; RequestBudget caps
	// fetches issued per tick. Both keep a single tick's work bounded.
	MeshBudget    int
	RequestBudget int

	CacheMaxEntries int
	CacheMaxBytes   int64

	Surface terrain.SurfaceOptions
}

// Engine owns the live tile set. It is single-threaded by contract: all
// methods run on the tick goroutine, and the only concurrency underneath
// is the fetch scheduler's worker pool.
type Engine struct {
	opts     Options
	selector *Selector
	sched    *fetch.Scheduler
	cache    *cache.Cache

	imagerySrc imagery.Source
	terrainSrc imagery.Source // nil disables terrain displacement

	live map[string]*LiveMesh
}

// TickResult reports what one Update changed, for the renderer to act on.
type TickResult struct {
	// Visible is the render set for this tick, front-of-view first.
	Visible []slippy.TileCoord
	// Attached lists meshes created this tick, Detached meshes retired.
	Attached []slippy.TileCoord
	Detached []slippy.TileCoord

	Missing        int
	Culled         int
	TexturesReady  int
	RequestsIssued int
}

// NewEngine wires a selector, scheduler and cache into an engine.
// terrainSrc may be nil; tiles then keep their synthesized surface grids.
func NewEngine(opts Options, imagerySrc, terrainSrc imagery.Source, sched *fetch.Scheduler, c *cache.Cache) *Engine {
	e := &Engine{
		opts:       opts,
		sched:      sched,
		cache:      c,
		imagerySrc: imagerySrc,
		terrainSrc: terrainSrc,
		live:       make(map[string]*LiveMesh),
	}
	e.selector = NewSelector(
		opts.Radius, opts.Quality, opts.TilePixelWidth,
		opts.MinLevel, opts.MaxLevel, opts.ErrorThresholdPx,
		func(coord slippy.TileCoord) bool {
			_, ok := e.live[coord.Key()]
			return ok
		},
	)
	c.OnEvict = func(cache.Entry) { metrics.CacheEvictions.Inc() }
	return e
}

// Live returns the live mesh for a tile key, if any.
func (e *Engine) Live(key string) (*LiveMesh, bool) {
	lm, ok := e.live[key]
	return lm, ok
}

// LiveCount returns the number of live meshes.
func (e *Engine) LiveCount() int {
	return len(e.live)
}

// Update advances the engine by one tick: absorb finished fetches, select
// the tile set for the view, create missing meshes and issue fetches within
// budget, retire tiles no longer needed, and trim the cache around the
// visible set.
func (e *Engine) Update(view ViewState) TickResult {
	var res TickResult

	e.absorb(&res)

	sel := e.selector.Select(view)
	res.Culled = sel.Culled
	res.Missing = len(sel.Missing)

	// Visible tiles and wanted refinements both stay protected from cache
	// trimming and from retirement.
	needed := make(map[string]struct{}, len(sel.Selected)+len(sel.Missing))
	for _, c := range sel.Selected {
		needed[c.Key()] = struct{}{}
	}
	for _, c := range sel.Missing {
		needed[c.Key()] = struct{}{}
	}

	e.ensureMeshes(sel.Missing, &res)
	e.issueRequests(sel, &res)
	e.retire(needed, &res)

	protected := make(map[string]struct{}, 2*len(needed))
	for key := range needed {
		protected[imgKey(key)] = struct{}{}
		protected[terKey(key)] = struct{}{}
	}
	e.cache.Trim(e.opts.CacheMaxEntries, e.opts.CacheMaxBytes, protected)

	res.Visible = sel.Selected
	metrics.LiveMeshes.Set(float64(len(e.live)))
	metrics.CacheBytes.Set(float64(e.cache.Stats().Bytes))
	return res
}

// absorb drains the scheduler and applies results. Payloads for retired
// tiles still go to the cache so a revisit is free, but are never attached
// to anything.
func (e *Engine) absorb(res *TickResult) {
	for _, r := range e.sched.Drain() {
		kind, tileKey, ok := strings.Cut(r.Key, ":")
		if !ok {
			continue
		}
		if r.Data != nil {
			e.cache.Put(r.Key, r.Data, int64(len(r.Data)))
		}

		lm, alive := e.live[tileKey]
		switch kind {
		case "img":
			if !alive || lm.State != TextureRequested {
				continue
			}
			if r.Data == nil {
				lm.State = TextureFailed
				continue
			}
			lm.Texture = r.Data
			lm.State = TextureReady
			res.TexturesReady++
		case "ter":
			if !alive || r.Data == nil {
				continue
			}
			e.applyTerrain(lm, r.Data)
		}
	}
}

func (e *Engine) applyTerrain(lm *LiveMesh, data []byte) {
	td, err := terrain.DecodeQuantizedMesh(data)
	if err != nil {
		logger.Warn("terrain decode failed",
			zap.String("tile", lm.Coord.Key()), zap.Error(err))
		return
	}
	lm.Mesh = terrain.MeshFromTerrain(td, lm.Coord, e.opts.Radius)
	lm.terrainApplied = true
}

// ensureMeshes creates placeholder meshes for missing tiles, highest
// priority first, within the per-tick budget.
func (e *Engine) ensureMeshes(missing []slippy.TileCoord, res *TickResult) {
	budget := e.opts.MeshBudget
	for _, c := range missing {
		if budget <= 0 {
			return
		}
		key := c.Key()
		if _, ok := e.live[key]; ok {
			continue
		}
		e.live[key] = &LiveMesh{
			Coord: c,
			Mesh:  terrain.BuildSurface(c, e.opts.Surface),
			State: Created,
		}
		res.Attached = append(res.Attached, c)
		budget--
	}
}

// issueRequests spends the request budget on live meshes that still need
// payloads, visible tiles first. The cache is consulted before the network.
func (e *Engine) issueRequests(sel Selection, res *TickResult) {
	budget := e.opts.RequestBudget

	order := make([]slippy.TileCoord, 0, len(sel.Selected)+len(sel.Missing))
	order = append(order, sel.Selected...)
	order = append(order, sel.Missing...)

	for _, c := range order {
		if budget <= 0 {
			return
		}
		lm, ok := e.live[c.Key()]
		if !ok {
			continue
		}
		budget -= e.requestFor(lm, res)
	}
}

// requestFor issues at most one fetch for the mesh and returns how much
// budget it spent. Cache hits are free.
func (e *Engine) requestFor(lm *LiveMesh, res *TickResult) int {
	tileKey := lm.Coord.Key()

	if lm.State == Created || lm.State == TextureFailed {
		if data, ok := e.cache.Get(imgKey(tileKey)); ok {
			lm.Texture = data.([]byte)
			lm.State = TextureReady
			res.TexturesReady++
		} else {
			e.sched.Request(imgKey(tileKey), e.fetchImagery)
			lm.State = TextureRequested
			res.RequestsIssued++
			return 1
		}
	}

	if e.terrainSrc != nil && !lm.terrainApplied && !lm.terrainRequested {
		if data, ok := e.cache.Get(terKey(tileKey)); ok {
			e.applyTerrain(lm, data.([]byte))
			lm.terrainRequested = true
		} else {
			e.sched.Request(terKey(tileKey), e.fetchTerrain)
			lm.terrainRequested = true
			res.RequestsIssued++
			return 1
		}
	}
	return 0
}

// retire drops live meshes for tiles the selector no longer wants. Their
// cached payloads survive for later revisits.
func (e *Engine) retire(needed map[string]struct{}, res *TickResult) {
	for key, lm := range e.live {
		if _, ok := needed[key]; ok {
			continue
		}
		delete(e.live, key)
		res.Detached = append(res.Detached, lm.Coord)
	}
}

func (e *Engine) fetchImagery(ctx context.Context, key string) ([]byte, error) {
	coord, err := slippy.ParseKey(strings.TrimPrefix(key, "img:"))
	if err != nil {
		return nil, err
	}
	return e.imagerySrc.Fetch(ctx, coord)
}

func (e *Engine) fetchTerrain(ctx context.Context, key string) ([]byte, error) {
	coord, err := slippy.ParseKey(strings.TrimPrefix(key, "ter:"))
	if err != nil {
		return nil, err
	}
	return e.terrainSrc.Fetch(ctx, coord)
}

func imgKey(tileKey string) string { return "img:" + tileKey }
func terKey(tileKey string) string { return "ter:" + tileKey }
