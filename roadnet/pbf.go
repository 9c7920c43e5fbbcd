package roadnet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"golang.org/x/exp/mmap"
)

// PBFFetcher builds road graphs from a local .osm.pbf extract. Every fetch
// rescans the file, so it suits offline batch runs over small extracts.
type PBFFetcher struct {
	path    string
	threads int
	log     *slog.Logger
}

func NewPBFFetcher(path string, opts ...Option) *PBFFetcher {
	o := options{log: slog.Default(), threads: runtime.GOMAXPROCS(-1)}
	for _, opt := range opts {
		opt.apply(&o)
	}

	return &PBFFetcher{
		path:    path,
		threads: o.threads,
		log:     o.log.With("component", "pbf", "file", path),
	}
}

func (f *PBFFetcher) Fetch(ctx context.Context, center orb.Point, radiusMeters float64) (*Graph, error) {
	file, err := mmap.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("can`t open pbf: %w", err)
	}
	defer file.Close()

	size := int64(file.Len())
	f.log.Info("scanning extract", "size", humanize.Bytes(uint64(size)))

	bound := geo.NewBoundAroundPoint(center, radiusMeters*1.5)
	b := NewBuilder()
	ways := []*osm.Way{}

	start := time.Now()
	scanner := osmpbf.New(ctx, io.NewSectionReader(file, 0, size), f.threads)
	defer scanner.Close()
	scanner.SkipRelations = true

	err = scanWithProgress(scanner, size, "scanning roads", func(object osm.Object) {
		switch object := object.(type) {
		case *osm.Node:
			if p := object.Point(); bound.Contains(p) {
				b.AddNode(int64(object.ID), p)
			}
		case *osm.Way:
			if Drivable(object.Tags) {
				ways = append(ways, object)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan pbf: %w", err)
	}

	for _, w := range ways {
		b.AddWay(w)
	}
	b.Truncate(center, radiusMeters)
	g := b.Build()

	f.log.Info("built road network", "nodes", g.Order(), "segments", g.Size(), "took", time.Since(start))
	return g, nil
}

func scanWithProgress(scanner *osmpbf.Scanner, size int64, name string, it func(osm.Object)) error {
	bar := pb.Start64(size)
	bar.Set("prefix", name)
	bar.Set(pb.Bytes, true)
	bar.SetRefreshRate(time.Second * 5)
	if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
		bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }}` + "\n")
	}

	for scanner.Scan() {
		bar.SetCurrent(scanner.FullyScannedBytes())
		it(scanner.Object())
	}
	bar.Finish()

	return scanner.Err()
}
