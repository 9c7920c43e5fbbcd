package roadnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
)

const (
	metersPerDegree = 111_000.0

	// MaxCoverageRadiusMeters is half of the longest distance routed by road.
	MaxCoverageRadiusMeters = 35_000.0 / 2
)

var (
	ErrCoverageTooLarge = errors.New("coverage area is too large for road routing")
	ErrNoPoints         = errors.New("no points to cover")
)

// Coverage is a road graph together with the circle it was fetched for.
type Coverage struct {
	Graph    *Graph
	Center   orb.Point
	RadiusKm float64
}

// CoverageProvider fetches one road graph covering a whole point set and keeps
// the most recent one for reuse.
type CoverageProvider struct {
	fetcher Fetcher
	log     *slog.Logger

	cached *Coverage
}

func NewCoverageProvider(fetcher Fetcher, opts ...Option) *CoverageProvider {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &CoverageProvider{
		fetcher: fetcher,
		log:     o.log.With("component", "coverage"),
	}
}

// Coverage returns a graph covering the smallest circle around points,
// inflated by bufferKm. A cached graph is reused when its circle contains the
// requested one.
func (p *CoverageProvider) Coverage(ctx context.Context, points []orb.Point, bufferKm float64) (Coverage, error) {
	if len(points) == 0 {
		return Coverage{}, ErrNoPoints
	}

	center, radiusDeg := BoundingBall(points)
	radiusM := (radiusDeg + bufferKm/111.0) * metersPerDegree
	if radiusM > MaxCoverageRadiusMeters {
		return Coverage{}, fmt.Errorf("%w: %.0fm", ErrCoverageTooLarge, radiusM)
	}

	if c := p.cached; c != nil {
		dLon := (center.Lon() - c.Center.Lon()) * metersPerDegree
		dLat := (center.Lat() - c.Center.Lat()) * metersPerDegree
		if math.Hypot(dLon, dLat)+radiusM <= c.RadiusKm*1000 {
			p.log.Debug("returning cached road network", "center", c.Center, "radius_km", c.RadiusKm)
			return *c, nil
		}
	}

	g, err := p.fetcher.Fetch(ctx, center, radiusM)
	if err != nil {
		return Coverage{}, fmt.Errorf("fetch coverage: %w", err)
	}

	p.cached = &Coverage{Graph: g, Center: center, RadiusKm: radiusM / 1000}
	p.log.Info("fetched coverage", "center", center, "radius_km", p.cached.RadiusKm, "nodes", g.Order())
	return *p.cached, nil
}

// Reset drops the cached graph.
func (p *CoverageProvider) Reset() {
	p.cached = nil
}
