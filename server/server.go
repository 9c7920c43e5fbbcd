package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/royalcat/geoplace/distance"
	"github.com/royalcat/geoplace/linker"
	"github.com/royalcat/geoplace/placement"
	"github.com/royalcat/geoplace/planner"
	"github.com/royalcat/geoplace/roadnet"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

var meter = otel.Meter("github.com/royalcat/geoplace/server")

func Run(ctx context.Context, address string, p *planner.Planner) error {
	log := slog.Default()

	s, err := newServer(p, log)
	if err != nil {
		return err
	}

	server := &fasthttp.Server{
		ReadTimeout:        10 * time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            s.router().Handler,
	}

	go func() {
		log.Info("Server listening", "address", address)
		if err := server.ListenAndServe(address); err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	slog.Info("Server started")

	// wait cancel
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	planner *planner.Planner
	log     *slog.Logger

	metricRequests metric.Int64Counter
	metricPoints   metric.Int64Counter
	metricFailures metric.Int64Counter
}

func newServer(p *planner.Planner, log *slog.Logger) (*server, error) {
	requests, err := meter.Int64Counter("http_placement_call_total")
	if err != nil {
		return nil, err
	}
	points, err := meter.Int64Counter("placement_points_total")
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("http_placement_failure_total")
	if err != nil {
		return nil, err
	}

	return &server{
		planner: p,
		log:     log.With("component", "server"),

		metricRequests: requests,
		metricPoints:   points,
		metricFailures: failures,
	}, nil
}

func (s *server) router() *router.Router {
	r := router.New()
	r.POST("/placement/links", s.LinksHandler)
	r.POST("/placement/place", s.PlaceHandler)
	r.POST("/placement/score", s.ScoreHandler)
	r.POST("/placement/density", s.DensityHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

// response is a placement document with the total efficiency when one was
// computed.
type response struct {
	*placement.Document
	Efficiency *float64 `json:"efficiency,omitempty"`
}

type densityResponse struct {
	MinimumDensity float64 `json:"minimum_density"`
}

var bufPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

func (s *server) readNetwork(ctx *fasthttp.RequestCtx, endpoint string) (*placement.Document, *placement.Network, bool) {
	s.metricRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))

	doc, err := placement.ReadDocument(bytes.NewReader(ctx.Request.Body()))
	if err != nil {
		s.fail(ctx, endpoint, http.StatusBadRequest, "failed to parse request: "+err.Error())
		return nil, nil, false
	}
	network, err := doc.Network()
	if err != nil {
		s.fail(ctx, endpoint, http.StatusBadRequest, "invalid network: "+err.Error())
		return nil, nil, false
	}

	s.metricPoints.Add(ctx, int64(network.Order()), metric.WithAttributes(attribute.String("endpoint", endpoint)))
	return doc, network, true
}

func (s *server) fail(ctx *fasthttp.RequestCtx, endpoint string, status int, msg string) {
	s.metricFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	))
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(ctx, "request failed", "endpoint", endpoint, "error", msg)
	}
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyString(msg)
}

func (s *server) failErr(ctx *fasthttp.RequestCtx, endpoint string, err error) {
	switch {
	case errors.Is(err, linker.ErrInvalidDensity):
		s.fail(ctx, endpoint, http.StatusBadRequest, err.Error())
	case errors.Is(err, planner.ErrPlacementNotAllowed),
		errors.Is(err, planner.ErrScoreNotAllowed),
		errors.Is(err, roadnet.ErrCoverageTooLarge),
		errors.Is(err, distance.ErrDistanceTooLarge):
		s.fail(ctx, endpoint, http.StatusUnprocessableEntity, err.Error())
	default:
		s.fail(ctx, endpoint, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) write(ctx *fasthttp.RequestCtx, endpoint string, res any) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(res); err != nil {
		s.fail(ctx, endpoint, http.StatusInternalServerError, "failed to marshal response")
		return
	}

	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.SetBody(buf.Bytes())
}

// LinksHandler rebuilds the generated links of the posted network. An optional
// density query argument densifies the backbone.
func (s *server) LinksHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "links"

	var density *float64
	if arg := ctx.QueryArgs().Peek("density"); len(arg) > 0 {
		d, err := strconv.ParseFloat(string(arg), 64)
		if err != nil {
			s.fail(ctx, endpoint, http.StatusBadRequest, "invalid density: "+err.Error())
			return
		}
		density = &d
	}

	doc, network, ok := s.readNetwork(ctx, endpoint)
	if !ok {
		return
	}

	linked, err := s.planner.BuildLinks(ctx, network, density)
	if err != nil {
		s.failErr(ctx, endpoint, err)
		return
	}

	out := placement.NewDocument(linked)
	out.Objects = doc.Objects
	s.write(ctx, endpoint, response{Document: out})
}

// PlaceHandler places the objects listed in the document onto its points.
func (s *server) PlaceHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "place"

	doc, network, ok := s.readNetwork(ctx, endpoint)
	if !ok {
		return
	}

	placed, total, err := s.planner.Place(ctx, network, doc.Pending())
	if err != nil {
		s.failErr(ctx, endpoint, err)
		return
	}

	out := placement.NewDocument(placed)
	out.Objects = doc.Objects
	s.write(ctx, endpoint, response{Document: out, Efficiency: &total})
}

func (s *server) ScoreHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "score"

	doc, network, ok := s.readNetwork(ctx, endpoint)
	if !ok {
		return
	}

	scored, total, err := s.planner.Score(ctx, network)
	if err != nil {
		s.failErr(ctx, endpoint, err)
		return
	}

	out := placement.NewDocument(scored)
	out.Objects = doc.Objects
	s.write(ctx, endpoint, response{Document: out, Efficiency: &total})
}

// DensityHandler reports the density of a spanning tree over the posted points.
func (s *server) DensityHandler(ctx *fasthttp.RequestCtx) {
	const endpoint = "density"

	_, network, ok := s.readNetwork(ctx, endpoint)
	if !ok {
		return
	}

	s.write(ctx, endpoint, densityResponse{MinimumDensity: s.planner.MinimumDensity(network)})
}
