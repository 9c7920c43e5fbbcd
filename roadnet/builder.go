package roadnet

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"gonum.org/v1/gonum/graph/simple"
)

var drivableHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"road":           true,
	"service":        true,
}

// Drivable reports whether a way with these tags is open to motor vehicles.
func Drivable(tags osm.Tags) bool {
	if !drivableHighways[tags.Find("highway")] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	switch tags.Find("access") {
	case "no", "private":
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	switch tags.Find("service") {
	case "parking_aisle", "driveway":
		return false
	}
	return true
}

type direction int

const (
	bothWays direction = iota
	forward
	backward
)

func wayDirection(tags osm.Tags) direction {
	switch strings.ToLower(tags.Find("oneway")) {
	case "yes", "1", "true":
		return forward
	case "-1", "reverse":
		return backward
	case "no", "false", "0":
		return bothWays
	}
	if tags.Find("junction") == "roundabout" || tags.Find("highway") == "motorway" {
		return forward
	}
	return bothWays
}

type segment struct {
	from, to int64
}

// Builder accumulates nodes and road segments into a Graph.
type Builder struct {
	coords   map[int64]orb.Point
	segments map[segment]float64
}

func NewBuilder() *Builder {
	return &Builder{
		coords:   map[int64]orb.Point{},
		segments: map[segment]float64{},
	}
}

func (b *Builder) AddNode(id int64, p orb.Point) {
	b.coords[id] = p
}

// AddSegment adds a road segment between two known nodes. Of parallel
// segments only the shortest is kept. Unknown nodes and self loops are ignored.
func (b *Builder) AddSegment(from, to int64, oneway bool) bool {
	if from == to {
		return false
	}
	pf, ok := b.coords[from]
	if !ok {
		return false
	}
	pt, ok := b.coords[to]
	if !ok {
		return false
	}

	length := geo.DistanceHaversine(pf, pt)
	b.addDirected(from, to, length)
	if !oneway {
		b.addDirected(to, from, length)
	}
	return true
}

func (b *Builder) addDirected(from, to int64, length float64) {
	key := segment{from: from, to: to}
	if old, ok := b.segments[key]; ok && old <= length {
		return
	}
	b.segments[key] = length
}

// AddWay adds every consecutive node pair of a drivable way. Node coordinates
// must be added first.
func (b *Builder) AddWay(way *osm.Way) int {
	if !Drivable(way.Tags) {
		return 0
	}

	dir := wayDirection(way.Tags)
	added := 0
	for i := 1; i < len(way.Nodes); i++ {
		from, to := int64(way.Nodes[i-1].ID), int64(way.Nodes[i].ID)
		if dir == backward {
			from, to = to, from
		}
		if b.AddSegment(from, to, dir != bothWays) {
			added++
		}
	}
	return added
}

// Truncate drops every segment without at least one endpoint inside the circle.
func (b *Builder) Truncate(center orb.Point, radiusMeters float64) {
	inside := map[int64]bool{}
	for id, p := range b.coords {
		inside[id] = geo.DistanceHaversine(center, p) <= radiusMeters
	}
	for s := range b.segments {
		if !inside[s.from] && !inside[s.to] {
			delete(b.segments, s)
		}
	}
}

// Build creates the graph. Only nodes touched by a segment are kept.
func (b *Builder) Build() *Graph {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	coords := map[int64]orb.Point{}

	for s, length := range b.segments {
		coords[s.from] = b.coords[s.from]
		coords[s.to] = b.coords[s.to]
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(s.from), simple.Node(s.to), length))
	}

	return newGraph(g, coords)
}
