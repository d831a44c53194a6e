// Package lod selects and maintains the set of globe tiles matching the
// current view: quadtree refinement by screen-space error, frustum culling,
// and the async mesh/texture lifecycle behind it.
package lod

import (
	"math"
	"sort"

	"github.com/handaome/three-earth/pkg/geomath"
	"github.com/handaome/three-earth/pkg/slippy"
)

// ViewState is the per-tick camera snapshot the selector works from.
type ViewState struct {
	Eye            geomath.Vec3
	ViewProj       geomath.Mat4
	FovY           float64 // radians
	ViewportHeight float64 // pixels
	Gaze           geomath.Vec3 // unit view direction
	// Orientation is the globe's model rotation; tile bounding spheres are
	// rotated into world space with it before culling.
	Orientation geomath.Quat
}

// Selector walks the tile quadtree and picks the set to render.
type Selector struct {
	Radius           float64
	MinLevel         int
	MaxLevel         int
	ErrorThresholdPx float64
	// levelZeroError is the world-space geometric error of the root tile;
	// each level halves it.
	levelZeroError float64

	// Ready reports whether a tile can be rendered right now. A refined
	// tile whose children are not all ready (or covered by their own
	// subtrees) stays rendered itself until they are.
	Ready func(coord slippy.TileCoord) bool
}

// NewSelector creates a selector for a globe of the given radius.
// quality scales the geometric error attributed to coarse tiles:
// the root's error is quality * circumference / tilePixelWidth.
func NewSelector(radius, quality float64, tilePixelWidth, minLevel, maxLevel int, errorThresholdPx float64, ready func(slippy.TileCoord) bool) *Selector {
	return &Selector{
		Radius:           radius,
		MinLevel:         minLevel,
		MaxLevel:         maxLevel,
		ErrorThresholdPx: errorThresholdPx,
		levelZeroError:   2 * math.Pi * radius * quality / float64(tilePixelWidth),
		Ready:            ready,
	}
}

// BoundingSphere returns the world-space bounding sphere of a tile under
// the given globe orientation. The radius is the distance from the tile
// center to its farthest corner; rotation does not change it.
func (s *Selector) BoundingSphere(c slippy.TileCoord, orientation geomath.Quat) (geomath.Vec3, float64) {
	center := slippy.TileCenter(c, s.Radius)
	b := slippy.TileToBounds(c)

	r := 0.0
	for _, corner := range [4][2]float64{
		{b.LonMin, b.LatMin}, {b.LonMax, b.LatMin},
		{b.LonMin, b.LatMax}, {b.LonMax, b.LatMax},
	} {
		p := slippy.CartesianFromLonLat(corner[0], corner[1], s.Radius)
		if d := center.Distance(p); d > r {
			r = d
		}
	}
	return orientation.Rotate(center), r
}

// ScreenSpaceError estimates, in pixels, how large the tile's geometric
// error appears from the given view.
func (s *Selector) ScreenSpaceError(c slippy.TileCoord, view ViewState) float64 {
	center, radius := s.BoundingSphere(c, view.Orientation)
	dist := view.Eye.Distance(center) - radius
	if dist < 1e-9 {
		return math.Inf(1)
	}
	geomError := s.levelZeroError / float64(uint64(1)<<uint(c.Z))
	return geomError * view.ViewportHeight / (dist * 2 * math.Tan(view.FovY/2))
}

// Selection is the outcome of one quadtree walk.
type Selection struct {
	// Selected is the renderable tile set, ancestor-free and sorted by
	// angular distance from the gaze direction.
	Selected []slippy.TileCoord
	// Missing lists visible refinement targets that are not ready yet,
	// in the same priority order. The engine spends its mesh and request
	// budgets on these.
	Missing []slippy.TileCoord
	// Culled counts tiles rejected by the frustum test.
	Culled int
}

// Select walks the quadtree from the root and returns the tiles to render
// plus the ones still needed. The returned Selected set never contains a
// tile together with any of its ancestors.
func (s *Selector) Select(view ViewState) Selection {
	w := &walk{
		sel:     s,
		view:    view,
		frustum: geomath.FrustumFromMatrix(view.ViewProj),
	}

	tiles, _ := w.visit(slippy.TileCoord{Z: 0, X: 0, Y: 0})

	out := Selection{
		Selected: dedupe(tiles),
		Missing:  dedupe(w.missing),
		Culled:   w.culled,
	}
	s.sortByGaze(out.Selected, view)
	s.sortByGaze(out.Missing, view)
	return out
}

type walk struct {
	sel     *Selector
	view    ViewState
	frustum geomath.Frustum
	missing []slippy.TileCoord
	culled  int
}

// visit returns the renderable tiles for c's subtree and whether they fully
// cover c's visible area. Invisible tiles are trivially covered.
func (w *walk) visit(c slippy.TileCoord) ([]slippy.TileCoord, bool) {
	center, radius := w.sel.BoundingSphere(c, w.view.Orientation)
	if !w.frustum.IntersectsSphere(center, radius) {
		w.culled++
		return nil, true
	}

	refine := c.Z < w.sel.MinLevel
	if !refine && c.Z < w.sel.MaxLevel {
		refine = w.sel.ScreenSpaceError(c, w.view) > w.sel.ErrorThresholdPx
	}

	if refine {
		var tiles []slippy.TileCoord
		covered := true
		for _, child := range c.Children() {
			t, cov := w.visit(child)
			tiles = append(tiles, t...)
			if !cov {
				covered = false
			}
		}
		if covered {
			return tiles, true
		}
		// Some visible child cannot cover its area yet. Rendering a
		// partial child set would punch holes in the globe, so discard
		// the whole subtree result and keep showing this tile. The
		// children stay on the missing list, so refinement resumes once
		// they load.
	}

	if w.sel.Ready != nil && w.sel.Ready(c) {
		return []slippy.TileCoord{c}, true
	}
	w.missing = append(w.missing, c)
	return nil, false
}

// sortByGaze orders tiles by the angle between the gaze direction and the
// eye-to-tile-center direction, so tiles near the view center come first.
func (s *Selector) sortByGaze(tiles []slippy.TileCoord, view ViewState) {
	angle := func(c slippy.TileCoord) float64 {
		center, _ := s.BoundingSphere(c, view.Orientation)
		return view.Gaze.AngleTo(center.Sub(view.Eye))
	}
	sort.SliceStable(tiles, func(i, j int) bool {
		return angle(tiles[i]) < angle(tiles[j])
	})
}

func dedupe(tiles []slippy.TileCoord) []slippy.TileCoord {
	seen := make(map[slippy.TileCoord]struct{}, len(tiles))
	out := tiles[:0]
	for _, c := range tiles {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
