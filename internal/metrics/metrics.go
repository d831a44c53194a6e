// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TilesRequested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "earthview",
		Name:      "tiles_requested_total",
		Help:      "Tile fetches handed to the scheduler.",
	})
	TilesSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "earthview",
		Name:      "tiles_succeeded_total",
		Help:      "Tile fetches that returned a payload.",
	})
	TilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "earthview",
		Name:      "tiles_failed_total",
		Help:      "Tile fetches that errored or returned no payload.",
	})
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "earthview",
		Name:      "cache_evictions_total",
		Help:      "Entries evicted from the tile cache.",
	})

	LiveMeshes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "earthview",
		Name:      "live_meshes",
		Help:      "Meshes currently held by the LOD engine.",
	})
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "earthview",
		Name:      "pending_requests",
		Help:      "Tile fetches in flight.",
	})
	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "earthview",
		Name:      "cache_bytes",
		Help:      "Bytes held by the tile cache.",
	})
)
