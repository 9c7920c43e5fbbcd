package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"

	"github.com/royalcat/geoplace/internal/stats"
	"github.com/royalcat/geoplace/internal/telemetry"
	"github.com/royalcat/geoplace/placement"
	"github.com/royalcat/geoplace/planner"
	"github.com/royalcat/geoplace/roadnet"
	"github.com/royalcat/geoplace/server"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
)

func main() {
	inputFlag := &cli.StringFlag{
		Name:      "input",
		Aliases:   []string{"i"},
		Required:  true,
		TakesFile: true,
	}
	outFlag := &cli.StringFlag{
		Name:        "out",
		Aliases:     []string{"o"},
		TakesFile:   true,
		DefaultText: "stdout",
	}

	app := &cli.App{
		Name:        "geoplace",
		Description: "Object placement planner over geographic point networks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "config",
				Aliases:   []string{"c"},
				TakesFile: true,
			},
			&cli.Float64Flag{
				Name:        "penalty",
				DefaultText: "0.5",
			},
			&cli.StringFlag{
				Name:        "resolver",
				Usage:       "distance resolver, geodetic or road",
				DefaultText: planner.ResolverGeodetic,
			},
			&cli.StringFlag{
				Name:      "pbf",
				Usage:     "route over a local osm.pbf extract instead of overpass",
				TakesFile: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "links",
				Usage: "rebuild the generated links of a network",
				Flags: []cli.Flag{
					inputFlag,
					outFlag,
					&cli.Float64Flag{
						Name:    "density",
						Aliases: []string{"d"},
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "log process resource usage when done",
					},
				},
				Action: links,
			},
			{
				Name:   "place",
				Usage:  "place the objects of a network onto its points",
				Flags:  []cli.Flag{inputFlag, outFlag},
				Action: place,
			},
			{
				Name:      "score",
				Usage:     "score the placement of one or more networks",
				ArgsUsage: "<network>...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
				},
				Action: score,
			},
			{
				Name:  "sample",
				Usage: "generate candidate points inside a bound",
				Flags: []cli.Flag{
					outFlag,
					&cli.StringFlag{
						Name:     "bound",
						Usage:    "minLon,minLat,maxLon,maxLat",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "spacing",
						Usage: "minimal distance between points in meters",
						Value: 500,
					},
					&cli.Int64Flag{
						Name:  "seed",
						Value: 1,
					},
				},
				Action: sample,
			},
			{
				Name:   "coverage",
				Usage:  "fetch the road network covering a network",
				Flags:  []cli.Flag{inputFlag},
				Action: coverage,
			},
			{
				Name:  "serve",
				Usage: "serve the placement api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:  "otlp",
						Usage: "otlp http endpoint, exporters are picked from OTEL_* variables when empty",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
				},
				Action: serve,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (planner.Config, error) {
	cfg := planner.ConfigDefault()
	if path := ctx.String("config"); path != "" {
		var err error
		cfg, err = planner.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet("penalty") {
		cfg.Penalty = ctx.Float64("penalty")
	}
	if ctx.IsSet("resolver") {
		cfg.Resolver = ctx.String("resolver")
	}
	if ctx.IsSet("pbf") {
		cfg.PBF = ctx.String("pbf")
	}
	return cfg, nil
}

func newPlanner(ctx *cli.Context) (*planner.Planner, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return planner.New(cfg)
}

func readNetwork(name string) (*placement.Document, *placement.Network, error) {
	doc, err := placement.ReadDocumentFile(name)
	if err != nil {
		return nil, nil, err
	}
	network, err := doc.Network()
	if err != nil {
		return nil, nil, fmt.Errorf("network %s: %w", name, err)
	}
	return doc, network, nil
}

func writeOutput(ctx *cli.Context, doc *placement.Document) error {
	if out := ctx.String("out"); out != "" {
		return placement.WriteDocumentFile(out, doc)
	}
	return placement.WriteDocument(os.Stdout, doc)
}

func links(ctx *cli.Context) error {
	p, err := newPlanner(ctx)
	if err != nil {
		return err
	}
	doc, network, err := readNetwork(ctx.String("input"))
	if err != nil {
		return err
	}

	if ctx.Bool("stats") {
		collector, err := stats.NewCollector(100 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			slog.Info("Resource usage", "stats", collector.Stop())
		}()
	}

	var density *float64
	if ctx.IsSet("density") {
		d := ctx.Float64("density")
		density = &d
	}

	linked, err := p.BuildLinks(ctx.Context, network, density)
	if err != nil {
		return fmt.Errorf("failed to build links: %w", err)
	}

	out := placement.NewDocument(linked)
	out.Objects = doc.Objects
	return writeOutput(ctx, out)
}

func place(ctx *cli.Context) error {
	p, err := newPlanner(ctx)
	if err != nil {
		return err
	}
	doc, network, err := readNetwork(ctx.String("input"))
	if err != nil {
		return err
	}

	placed, total, err := p.Place(ctx.Context, network, doc.Pending())
	if err != nil {
		return fmt.Errorf("failed to place objects: %w", err)
	}
	slog.Info("Placement complete", "efficiency", total)

	out := placement.NewDocument(placed)
	out.Objects = doc.Objects
	return writeOutput(ctx, out)
}

func score(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	files := ctx.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("no networks to score")
	}

	results, err := scoreFiles(ctx.Context, cfg.Penalty, files, ctx.Int("threads"))
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%d points\t%g\n", r.Name, r.Points, r.Efficiency)
	}
	return nil
}

func parseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bound %q: expected minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bound %q: %w", s, err)
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func sample(ctx *cli.Context) error {
	bound, err := parseBound(ctx.String("bound"))
	if err != nil {
		return err
	}

	network := placement.NewNetwork()
	for _, p := range placement.SamplePoints(bound, ctx.Float64("spacing"), ctx.Int64("seed")) {
		if err := network.AddPoint(p); err != nil {
			return err
		}
	}
	slog.Info("Sampled candidate points", "points", network.Order())

	return writeOutput(ctx, placement.NewDocument(network))
}

func coverage(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	_, network, err := readNetwork(ctx.String("input"))
	if err != nil {
		return err
	}

	points := make([]orb.Point, 0, network.Order())
	for _, id := range network.IDs() {
		pt, _ := network.Point(id)
		points = append(points, pt.Location)
	}

	provider := roadnet.NewCoverageProvider(planner.NewFetcher(cfg, slog.Default()))
	cov, err := provider.Coverage(ctx.Context, points, cfg.BufferKm)
	if err != nil {
		return err
	}

	fmt.Printf("center: %f,%f\n", cov.Center.Lon(), cov.Center.Lat())
	fmt.Printf("radius: %.3f km\n", cov.RadiusKm)
	fmt.Printf("road nodes: %d, road segments: %d\n", cov.Graph.Order(), cov.Graph.Size())
	return nil
}

func serve(ctx *cli.Context) error {
	client, err := telemetry.Setup(ctx.Context, "geoplace", ctx.String("otlp"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer client.Shutdown(context.Background())

	if err := stats.RegisterProcessMetrics(otel.Meter("github.com/royalcat/geoplace")); err != nil {
		return fmt.Errorf("failed to register process metrics: %w", err)
	}

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			slog.Info("Starting pprof server")
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				slog.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	slog.Info("Initing planner")
	p, err := newPlanner(ctx)
	if err != nil {
		return err
	}

	return server.Run(ctx.Context, ctx.String("listen"), p)
}
