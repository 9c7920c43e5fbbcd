// Package roadnet holds drivable road graphs built from OpenStreetMap data and
// the providers that fetch them around a set of points.
package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/royalcat/geoplace/internal/kdbush"
)

// snapLimitDegrees bounds the nearest node search. Fetched graphs never span
// more than a few tens of kilometers.
const snapLimitDegrees = 1.0

// Graph is a directed road graph weighted by segment length in meters.
type Graph struct {
	g      *simple.WeightedDirectedGraph
	coords map[int64]orb.Point
	index  *kdbush.KDBush[int64]
}

func newGraph(g *simple.WeightedDirectedGraph, coords map[int64]orb.Point) *Graph {
	points := make([]kdbush.Point[int64], 0, len(coords))
	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		p := coords[id]
		points = append(points, kdbush.Point[int64]{X: p.Lon(), Y: p.Lat(), Data: id})
	}

	return &Graph{
		g:      g,
		coords: coords,
		index:  kdbush.NewBush(points, 64),
	}
}

// Nearest snaps p to the closest road node by great-circle distance.
func (g *Graph) Nearest(p orb.Point) (int64, bool) {
	if g == nil || g.index.Len() == 0 {
		return 0, false
	}
	found, ok := g.index.Nearest(p.Lon(), p.Lat(), snapLimitDegrees, func(c kdbush.Point[int64]) float64 {
		return geo.DistanceHaversine(p, orb.Point{c.X, c.Y})
	})
	if !ok {
		return 0, false
	}
	return found.Data, true
}

// ShortestFrom returns the shortest path tree rooted at id.
func (g *Graph) ShortestFrom(id int64) path.Shortest {
	return path.DijkstraFrom(simple.Node(id), g.g)
}

// Distance returns the shortest route length between two nodes, +Inf when
// there is none.
func (g *Graph) Distance(from, to int64) float64 {
	if g.g.Node(from) == nil || g.g.Node(to) == nil {
		return math.Inf(1)
	}
	return g.ShortestFrom(from).WeightTo(to)
}

func (g *Graph) Location(id int64) (orb.Point, bool) {
	p, ok := g.coords[id]
	return p, ok
}

func (g *Graph) Order() int {
	if g == nil {
		return 0
	}
	return g.g.Nodes().Len()
}

func (g *Graph) Size() int {
	if g == nil {
		return 0
	}
	return g.g.Edges().Len()
}
