// Package planner runs the linking, placement and scoring passes over a
// placement network with the preconditions the application enforces.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/royalcat/geoplace/distance"
	"github.com/royalcat/geoplace/efficiency"
	"github.com/royalcat/geoplace/linker"
	"github.com/royalcat/geoplace/placement"
	"github.com/royalcat/geoplace/roadnet"
	"github.com/royalcat/geoplace/solver"
)

var tracer = otel.Tracer("github.com/royalcat/geoplace/planner")

var (
	ErrUnknownResolver     = errors.New("unknown distance resolver")
	ErrPlacementNotAllowed = errors.New("placement not allowed")
	ErrScoreNotAllowed     = errors.New("scoring not allowed")
)

type options struct {
	log     *slog.Logger
	fetcher roadnet.Fetcher
}

type Option interface {
	apply(*options)
}

type loggerOption struct {
	log *slog.Logger
}

func (l loggerOption) apply(o *options) {
	o.log = l.log
}

func WithLogger(log *slog.Logger) Option {
	return loggerOption{log: log}
}

type fetcherOption struct {
	fetcher roadnet.Fetcher
}

func (f fetcherOption) apply(o *options) {
	o.fetcher = f.fetcher
}

// WithFetcher overrides the road data source picked from the config.
func WithFetcher(fetcher roadnet.Fetcher) Option {
	return fetcherOption{fetcher: fetcher}
}

// Planner owns one resolver and its caches, so calls are serialized.
type Planner struct {
	mu sync.Mutex

	cfg      Config
	resolver distance.Resolver
	road     *distance.RoadNetwork
	coverage *roadnet.CoverageProvider
	greedy   *solver.Greedy
	scorer   *efficiency.Scorer
	log      *slog.Logger
}

func New(cfg Config, opts ...Option) (*Planner, error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	log := o.log.With("component", "planner")

	greedy, err := solver.NewGreedy(cfg.Penalty)
	if err != nil {
		return nil, err
	}
	scorer, err := efficiency.NewScorer(cfg.Penalty)
	if err != nil {
		return nil, err
	}

	p := &Planner{
		cfg:    cfg,
		greedy: greedy,
		scorer: scorer,
		log:    log,
	}

	switch cfg.Resolver {
	case ResolverGeodetic, "":
		p.resolver = distance.StraightLine{}
	case ResolverRoad:
		fetcher := o.fetcher
		if fetcher == nil {
			fetcher = NewFetcher(cfg, log)
		}

		ropts := []distance.Option{
			distance.WithBufferKm(cfg.BufferKm),
			distance.WithCacheCapacity(cfg.CacheCapacity),
			distance.WithLogger(o.log),
		}
		if cfg.FallbackStraightLine {
			ropts = append(ropts, distance.WithFallback(distance.StraightLine{}))
		}
		p.road, err = distance.NewRoadNetwork(fetcher, ropts...)
		if err != nil {
			return nil, err
		}
		p.resolver = p.road
		p.coverage = roadnet.NewCoverageProvider(fetcher, roadnet.WithLogger(o.log))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResolver, cfg.Resolver)
	}

	return p, nil
}

// NewFetcher picks the road data source configured in cfg, a local PBF extract
// taking precedence over Overpass.
func NewFetcher(cfg Config, log *slog.Logger) roadnet.Fetcher {
	if cfg.PBF != "" {
		return roadnet.NewPBFFetcher(cfg.PBF, roadnet.WithLogger(log))
	}
	return roadnet.NewOverpassFetcher(cfg.Overpass.Endpoint, cfg.Overpass.Timeout, roadnet.WithLogger(log))
}

// BuildLinks drops every link not added by hand and rebuilds the backbone,
// densified to density when it is set. With road routing the whole point set
// is covered by one fetched graph first.
func (p *Planner) BuildLinks(ctx context.Context, network *placement.Network, density *float64) (*placement.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "BuildLinks")
	defer span.End()
	span.SetAttributes(attribute.Int("points", network.Order()))

	mst, err := linker.NewMST(p.resolver, density, p.log)
	if err != nil {
		return nil, err
	}

	stripped := network.Clone()
	removed := stripped.RemoveLinks(func(l placement.Link) bool {
		return l.Kind != placement.LinkManual
	})

	if p.road != nil && stripped.Order() > 0 {
		points := make([]orb.Point, 0, stripped.Order())
		for _, id := range stripped.IDs() {
			pt, _ := stripped.Point(id)
			points = append(points, pt.Location)
		}

		cov, err := p.coverage.Coverage(ctx, points, p.cfg.BufferKm)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("road network coverage: %w", err)
		}
		p.road.SetRoadNetwork(cov.Graph, cov.Center, cov.RadiusKm)
	}

	result, err := mst.BuildLinks(ctx, stripped)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p.log.InfoContext(ctx, "links built", "points", result.Order(), "removed", removed, "links", result.Size())
	return result, nil
}

// PlacementAllowed reports whether objects fit the network one per point.
func PlacementAllowed(network *placement.Network, objects int) bool {
	return network.Order() > 0 && network.IsConnected() && objects == network.Order()
}

// ScoreAllowed reports whether every point of a connected network holds an object.
func ScoreAllowed(network *placement.Network) bool {
	if network.Order() == 0 || !network.IsConnected() {
		return false
	}
	for _, id := range network.IDs() {
		if pt, _ := network.Point(id); pt.Object == nil {
			return false
		}
	}
	return true
}

// Place assigns objects and scores the result.
func (p *Planner) Place(ctx context.Context, network *placement.Network, objects []placement.Object) (*placement.Network, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, span := tracer.Start(ctx, "Place")
	defer span.End()

	if !PlacementAllowed(network, len(objects)) {
		return nil, 0, fmt.Errorf("%w: %d objects for %d points, connected=%v",
			ErrPlacementNotAllowed, len(objects), network.Order(), network.IsConnected())
	}

	placed, err := p.greedy.Place(network, objects)
	if err != nil {
		return nil, 0, err
	}
	scored, total, err := p.scorer.Score(placed)
	if err != nil {
		return nil, 0, err
	}

	p.log.InfoContext(ctx, "placement computed", "points", scored.Order(), "efficiency", total)
	return scored, total, nil
}

func (p *Planner) Score(ctx context.Context, network *placement.Network) (*placement.Network, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, span := tracer.Start(ctx, "Score")
	defer span.End()

	if !ScoreAllowed(network) {
		return nil, 0, ErrScoreNotAllowed
	}

	scored, total, err := p.scorer.Score(network)
	if err != nil {
		return nil, 0, err
	}
	p.log.DebugContext(ctx, "placement scored", "points", scored.Order(), "efficiency", total)
	return scored, total, nil
}

// MinimumDensity is the density of a spanning tree over the network.
func (p *Planner) MinimumDensity(network *placement.Network) float64 {
	return linker.MinimumDensity(network.Order())
}

func (p *Planner) Config() Config {
	return p.cfg
}
