package distance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"gonum.org/v1/gonum/graph/path"

	"github.com/royalcat/geoplace/roadnet"
)

// MaxRouteMeters is the longest straight-line distance routed by road.
const MaxRouteMeters = 35_000.0

var meter = otel.Meter("github.com/royalcat/geoplace/distance")

type pairKey struct {
	origin, destination orb.Point
}

// RoadNetwork routes distances along a road graph fetched around each queried
// pair. The last graph is reused while it still covers the pair, and routed
// distances are kept in an LRU cache keyed by the ordered coordinate pair.
type RoadNetwork struct {
	fetcher  roadnet.Fetcher
	bufferKm float64
	fallback Resolver
	log      *slog.Logger

	mu       sync.Mutex
	pairs    *lru.Cache[pairKey, float64]
	graph    *roadnet.Graph
	center   orb.Point
	radiusKm float64
	trees    map[int64]path.Shortest

	metricCacheHits   metric.Int64Counter
	metricCacheMisses metric.Int64Counter
	metricFetches     metric.Int64Counter
}

var _ Resolver = (*RoadNetwork)(nil)

func NewRoadNetwork(fetcher roadnet.Fetcher, opts ...Option) (*RoadNetwork, error) {
	o := loadOptions(opts...)
	log := o.log.With("component", "road_distance")

	pairs, err := lru.NewWithEvict(o.capacity, func(key pairKey, _ float64) {
		log.Debug("cache full, evicted pair", "origin", key.origin, "destination", key.destination)
	})
	if err != nil {
		return nil, fmt.Errorf("create distance cache: %w", err)
	}

	r := &RoadNetwork{
		fetcher:  fetcher,
		bufferKm: o.bufferKm,
		fallback: o.fallback,
		log:      log,
		pairs:    pairs,
	}

	r.metricCacheHits, err = meter.Int64Counter("distance_cache_hits_total")
	if err != nil {
		return nil, err
	}
	r.metricCacheMisses, err = meter.Int64Counter("distance_cache_misses_total")
	if err != nil {
		return nil, err
	}
	r.metricFetches, err = meter.Int64Counter("road_network_fetch_total")
	if err != nil {
		return nil, err
	}

	return r, nil
}

// DistanceInMeters returns the routed distance from origin to destination.
// Pairs further apart than MaxRouteMeters fail with ErrDistanceTooLarge. A
// failed fetch or a missing route yields +Inf, not an error. Altitude is not
// used for routing.
func (r *RoadNetwork) DistanceInMeters(ctx context.Context, origin, destination Location) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{origin: origin.Point, destination: destination.Point}
	if d, ok := r.pairs.Get(key); ok {
		r.metricCacheHits.Add(ctx, 1)
		return d, nil
	}
	r.metricCacheMisses.Add(ctx, 1)

	straight := geo.DistanceHaversine(origin.Point, destination.Point)
	if straight > MaxRouteMeters {
		return 0, fmt.Errorf("%w: %.0fm", ErrDistanceTooLarge, straight)
	}

	if !r.covers(origin.Point) || !r.covers(destination.Point) {
		center := geo.Midpoint(origin.Point, destination.Point)
		radiusKm := max(straight/2000+r.bufferKm, r.bufferKm)

		r.metricFetches.Add(ctx, 1)
		g, err := r.fetcher.Fetch(ctx, center, radiusKm*1000)
		if err != nil {
			r.log.Warn("road network fetch failed",
				"center", center,
				"radius_km", radiusKm,
				"error", fmt.Errorf("%w: %w", ErrRoutingFetchFailed, err),
			)
			return r.fallbackDistance(ctx, origin, destination)
		}
		r.install(g, center, radiusKm)
	}

	from, ok := r.graph.Nearest(origin.Point)
	if !ok {
		return math.Inf(1), nil
	}
	to, ok := r.graph.Nearest(destination.Point)
	if !ok {
		return math.Inf(1), nil
	}

	d := r.shortestFrom(from).WeightTo(to)
	if !math.IsInf(d, 1) {
		r.pairs.Add(key, d)
	}
	return d, nil
}

func (r *RoadNetwork) fallbackDistance(ctx context.Context, origin, destination Location) (float64, error) {
	if r.fallback == nil {
		return math.Inf(1), nil
	}
	return r.fallback.DistanceInMeters(ctx, origin, destination)
}

// covers reports whether p lies inside the cached graph with a quarter of the
// buffer to spare.
func (r *RoadNetwork) covers(p orb.Point) bool {
	if r.graph == nil {
		return false
	}
	radius := r.radiusKm - r.bufferKm*0.25
	return geo.DistanceHaversine(r.center, p)/1000 <= radius
}

func (r *RoadNetwork) install(g *roadnet.Graph, center orb.Point, radiusKm float64) {
	r.graph = g
	r.center = center
	r.radiusKm = radiusKm
	r.trees = map[int64]path.Shortest{}
	r.log.Debug("installed road network", "center", center, "radius_km", radiusKm, "nodes", g.Order())
}

func (r *RoadNetwork) shortestFrom(id int64) path.Shortest {
	if tree, ok := r.trees[id]; ok {
		return tree
	}
	tree := r.graph.ShortestFrom(id)
	r.trees[id] = tree
	return tree
}

// SetRoadNetwork installs a pre-fetched graph covering the circle around
// center. A nil graph drops everything, including cached distances.
func (r *RoadNetwork) SetRoadNetwork(g *roadnet.Graph, center orb.Point, radiusKm float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g == nil {
		r.clear()
		return
	}
	r.install(g, center, radiusKm)
}

// ClearCache drops the road graph and every cached distance.
func (r *RoadNetwork) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
}

func (r *RoadNetwork) clear() {
	r.graph = nil
	r.center = orb.Point{}
	r.radiusKm = 0
	r.trees = nil
	r.pairs.Purge()
}

// Cached reports whether the ordered pair has a cached distance without
// touching its recency.
func (r *RoadNetwork) Cached(origin, destination Location) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pairs.Contains(pairKey{origin: origin.Point, destination: destination.Point})
}

func (r *RoadNetwork) BufferKm() float64 {
	return r.bufferKm
}
