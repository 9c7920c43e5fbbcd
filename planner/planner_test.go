package planner_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/royalcat/geoplace/linker"
	"github.com/royalcat/geoplace/placement"
	"github.com/royalcat/geoplace/planner"
	"github.com/royalcat/geoplace/roadnet"
)

func line(t *testing.T, n int) *placement.Network {
	t.Helper()
	net := placement.NewNetwork()
	for i := range n {
		if err := net.AddPoint(placement.NewPoint(placement.PointID(i+1), 10+float64(i)*0.001, 50)); err != nil {
			t.Fatal(err)
		}
	}
	return net
}

func newPlanner(t *testing.T, cfg planner.Config, opts ...planner.Option) *planner.Planner {
	t.Helper()
	p, err := planner.New(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildLinksDropsGenerated(t *testing.T) {
	p := newPlanner(t, planner.ConfigDefault())

	n := line(t, 4)
	if err := n.Link(1, 4, placement.LinkManual); err != nil {
		t.Fatal(err)
	}
	if err := n.Link(1, 3, placement.LinkDensification); err != nil {
		t.Fatal(err)
	}

	got, err := p.BuildLinks(context.Background(), n, nil)
	if err != nil {
		t.Fatal(err)
	}

	if l, ok := got.LinkBetween(1, 4); !ok || l.Kind != placement.LinkManual {
		t.Fatal("expected manual link to survive")
	}
	if got.HasLink(1, 3) {
		t.Fatal("expected generated link to be dropped")
	}
	// the chain is the tree, the manual link rides along
	if !got.IsConnected() || got.Size() != 4 {
		t.Fatalf("expected 3 backbone links plus the manual one, got %d links", got.Size())
	}
}

func TestPlacePreconditions(t *testing.T) {
	p := newPlanner(t, planner.ConfigDefault())
	ctx := context.Background()

	n := line(t, 3)
	objects := []placement.Object{
		placement.NewObject("X", 10), placement.NewObject("X", 10), placement.NewObject("Y", 10),
	}

	if _, _, err := p.Place(ctx, n, objects); !errors.Is(err, planner.ErrPlacementNotAllowed) {
		t.Fatalf("expected disconnected network to be rejected, got %v", err)
	}

	linked, err := p.BuildLinks(ctx, n, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.Place(ctx, linked, objects[:2]); !errors.Is(err, planner.ErrPlacementNotAllowed) {
		t.Fatalf("expected object count mismatch to be rejected, got %v", err)
	}
	if _, _, err := p.Place(ctx, placement.NewNetwork(), nil); !errors.Is(err, planner.ErrPlacementNotAllowed) {
		t.Fatalf("expected empty network to be rejected, got %v", err)
	}

	placed, total, err := p.Place(ctx, linked, objects)
	if err != nil {
		t.Fatal(err)
	}
	// X Y X along the line, nobody penalized
	if total != 30 {
		t.Fatalf("expected efficiency 30, got %v", total)
	}

	_, again, err := p.Score(ctx, placed)
	if err != nil {
		t.Fatal(err)
	}
	if again != total {
		t.Fatalf("expected rescoring to match, got %v and %v", again, total)
	}
}

func TestScorePreconditions(t *testing.T) {
	p := newPlanner(t, planner.ConfigDefault())
	ctx := context.Background()

	linked, err := p.BuildLinks(ctx, line(t, 2), nil)
	if err != nil {
		t.Fatal(err)
	}
	pt, _ := linked.Point(1)
	obj := placement.NewObject("X", 10)
	pt.Object = &obj

	if _, _, err := p.Score(ctx, linked); !errors.Is(err, planner.ErrScoreNotAllowed) {
		t.Fatalf("expected partially placed network to be rejected, got %v", err)
	}
	if p.MinimumDensity(linked) != 1 {
		t.Fatalf("expected minimum density 1 for two points, got %v", p.MinimumDensity(linked))
	}
}

func TestUnknownResolver(t *testing.T) {
	cfg := planner.ConfigDefault()
	cfg.Resolver = "teleport"
	if _, err := planner.New(cfg); !errors.Is(err, planner.ErrUnknownResolver) {
		t.Fatalf("expected unknown resolver error, got %v", err)
	}
}

func TestRoadCoveragePrefetch(t *testing.T) {
	b := roadnet.NewBuilder()
	for i := range 4 {
		b.AddNode(int64(i+1), orb.Point{10 + float64(i)*0.001, 50})
		if i > 0 {
			b.AddSegment(int64(i), int64(i+1), false)
		}
	}
	graph := b.Build()

	calls := 0
	fetcher := roadnet.FetcherFunc(func(ctx context.Context, center orb.Point, radiusMeters float64) (*roadnet.Graph, error) {
		calls++
		return graph, nil
	})

	cfg := planner.ConfigDefault()
	cfg.Resolver = planner.ResolverRoad
	p := newPlanner(t, cfg, planner.WithFetcher(fetcher))

	got, err := p.BuildLinks(context.Background(), line(t, 4), nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected a single coverage fetch, got %d", calls)
	}
	for i := 1; i < 4; i++ {
		if !got.HasLink(placement.PointID(i), placement.PointID(i+1)) {
			t.Fatalf("expected road neighbours %d and %d to be linked", i, i+1)
		}
	}
}

func TestRoadCoverageFailure(t *testing.T) {
	fetcher := roadnet.FetcherFunc(func(ctx context.Context, center orb.Point, radiusMeters float64) (*roadnet.Graph, error) {
		return nil, errors.New("offline")
	})

	cfg := planner.ConfigDefault()
	cfg.Resolver = planner.ResolverRoad
	p := newPlanner(t, cfg, planner.WithFetcher(fetcher))

	if _, err := p.BuildLinks(context.Background(), line(t, 3), nil); err == nil {
		t.Fatal("expected coverage failure to abort linking")
	}
}

func TestRoadInvalidDensity(t *testing.T) {
	fetcher := roadnet.FetcherFunc(func(ctx context.Context, center orb.Point, radiusMeters float64) (*roadnet.Graph, error) {
		t.Fatal("road network fetched for a rejected density")
		return nil, nil
	})

	cfg := planner.ConfigDefault()
	cfg.Resolver = planner.ResolverRoad
	p := newPlanner(t, cfg, planner.WithFetcher(fetcher))

	density := 1.5
	if _, err := p.BuildLinks(context.Background(), line(t, 3), &density); !errors.Is(err, linker.ErrInvalidDensity) {
		t.Fatalf("expected invalid density, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	name := filepath.Join(t.TempDir(), "geoplace.toml")
	data := `
penalty = 0.3
resolver = "road"
fallback_straight_line = true

[overpass]
endpoint = "http://localhost:12345/api/interpreter"
timeout = "30s"
`
	if err := os.WriteFile(name, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := planner.LoadConfig(name)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cfg.Penalty-0.3) > 1e-12 || cfg.Resolver != planner.ResolverRoad || !cfg.FallbackStraightLine {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Overpass.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.Overpass.Timeout)
	}
	if cfg.BufferKm != 1 || cfg.CacheCapacity != 4096 {
		t.Fatalf("expected defaults to be kept, got %+v", cfg)
	}
}
