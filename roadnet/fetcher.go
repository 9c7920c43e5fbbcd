package roadnet

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/valyala/fasthttp"
)

// Fetcher loads the drivable road graph inside a circle.
type Fetcher interface {
	Fetch(ctx context.Context, center orb.Point, radiusMeters float64) (*Graph, error)
}

type FetcherFunc func(ctx context.Context, center orb.Point, radiusMeters float64) (*Graph, error)

func (f FetcherFunc) Fetch(ctx context.Context, center orb.Point, radiusMeters float64) (*Graph, error) {
	return f(ctx, center, radiusMeters)
}

var ErrOverpassStatus = errors.New("unexpected overpass status")

const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassFetcher queries an Overpass API endpoint for the roads around a point.
type OverpassFetcher struct {
	endpoint string
	timeout  time.Duration
	client   *fasthttp.Client
	log      *slog.Logger
}

func NewOverpassFetcher(endpoint string, timeout time.Duration, opts ...Option) *OverpassFetcher {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &OverpassFetcher{
		endpoint: endpoint,
		timeout:  timeout,
		client: &fasthttp.Client{
			Name:                "geoplace",
			MaxResponseBodySize: 512 << 20,
		},
		log: o.log.With("component", "overpass"),
	}
}

func overpassQuery(center orb.Point, radiusMeters float64, timeout time.Duration) string {
	return fmt.Sprintf(
		`[out:xml][timeout:%d];(way(around:%.0f,%f,%f)["highway"];);(._;>;);out body;`,
		int(timeout.Seconds()), radiusMeters, center.Lat(), center.Lon(),
	)
}

func (f *OverpassFetcher) Fetch(ctx context.Context, center orb.Point, radiusMeters float64) (*Graph, error) {
	deadline := time.Now().Add(f.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString("data=" + url.QueryEscape(overpassQuery(center, radiusMeters, f.timeout)))

	start := time.Now()
	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrOverpassStatus, resp.StatusCode())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data osm.OSM
	if err := xml.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	g := buildFromOSM(&data, center, radiusMeters)
	f.log.Info("fetched road network",
		"center", center,
		"radius_m", radiusMeters,
		"size", humanize.Bytes(uint64(len(resp.Body()))),
		"nodes", g.Order(),
		"segments", g.Size(),
		"took", time.Since(start),
	)
	return g, nil
}

func buildFromOSM(data *osm.OSM, center orb.Point, radiusMeters float64) *Graph {
	b := NewBuilder()
	for _, n := range data.Nodes {
		b.AddNode(int64(n.ID), n.Point())
	}
	for _, w := range data.Ways {
		b.AddWay(w)
	}
	b.Truncate(center, radiusMeters)
	return b.Build()
}
