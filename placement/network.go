// Package placement holds the placement network: candidate points connected
// by undirected links, each point optionally carrying a placed object.
package placement

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type LinkKind string

const (
	LinkUntyped       LinkKind = ""
	LinkManual        LinkKind = "manual"
	LinkBackbone      LinkKind = "backbone"
	LinkDensification LinkKind = "densification"
)

// Link is an undirected network edge tagged with how it was created.
type Link struct {
	F, T graph.Node
	Kind LinkKind
}

func (l Link) From() graph.Node { return l.F }
func (l Link) To() graph.Node   { return l.T }
func (l Link) ReversedEdge() graph.Edge {
	return Link{F: l.T, T: l.F, Kind: l.Kind}
}

// Endpoints returns link ends with the lower id first.
func (l Link) Endpoints() (PointID, PointID) {
	u, v := PointID(l.F.ID()), PointID(l.T.ID())
	if u > v {
		return v, u
	}
	return u, v
}

// Network is an attributed undirected graph of placement points. Every node of
// the graph has a Point; AddPoint is the only way to add nodes.
type Network struct {
	g      *simple.UndirectedGraph
	points map[PointID]*Point
}

func NewNetwork() *Network {
	return &Network{
		g:      simple.NewUndirectedGraph(),
		points: map[PointID]*Point{},
	}
}

func (n *Network) AddPoint(p Point) error {
	if _, ok := n.points[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePoint, p.ID)
	}
	n.g.AddNode(simple.Node(p.ID))
	n.points[p.ID] = p.Clone()
	return nil
}

// Point returns the live point data for id; mutations are visible to the network.
func (n *Network) Point(id PointID) (*Point, bool) {
	p, ok := n.points[id]
	return p, ok
}

// MustPoint is like Point but reports a missing node as ErrMissingPoint.
func (n *Network) MustPoint(id PointID) (*Point, error) {
	p, ok := n.points[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPoint, id)
	}
	return p, nil
}

func (n *Network) SetPoint(id PointID, p Point) error {
	if _, ok := n.points[id]; !ok {
		return fmt.Errorf("%w: %s not in network", ErrMissingPoint, id)
	}
	p.ID = id
	n.points[id] = p.Clone()
	return nil
}

// Link adds an undirected link between u and v, or retypes an existing one.
func (n *Network) Link(u, v PointID, kind LinkKind) error {
	if u == v {
		return fmt.Errorf("%w: %s", ErrSelfLink, u)
	}
	if _, ok := n.points[u]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingPoint, u)
	}
	if _, ok := n.points[v]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingPoint, v)
	}
	n.g.SetEdge(Link{F: simple.Node(u), T: simple.Node(v), Kind: kind})
	return nil
}

func (n *Network) HasLink(u, v PointID) bool {
	return n.g.HasEdgeBetween(int64(u), int64(v))
}

func (n *Network) LinkBetween(u, v PointID) (Link, bool) {
	e := n.g.EdgeBetween(int64(u), int64(v))
	if e == nil {
		return Link{}, false
	}
	l, ok := e.(Link)
	return l, ok
}

func (n *Network) Unlink(u, v PointID) {
	n.g.RemoveEdge(int64(u), int64(v))
}

// RemoveLinks drops every link for which drop returns true.
func (n *Network) RemoveLinks(drop func(Link) bool) int {
	removed := 0
	for _, l := range n.Links() {
		if drop(l) {
			n.g.RemoveEdge(l.F.ID(), l.T.ID())
			removed++
		}
	}
	return removed
}

// Links returns all links ordered by their (lower, higher) endpoint ids.
func (n *Network) Links() []Link {
	links := []Link{}
	edges := n.g.Edges()
	for edges.Next() {
		l := edges.Edge().(Link)
		u, v := l.Endpoints()
		links = append(links, Link{F: simple.Node(u), T: simple.Node(v), Kind: l.Kind})
	}
	slices.SortFunc(links, compareLinks)
	return links
}

func compareLinks(a, b Link) int {
	au, av := a.Endpoints()
	bu, bv := b.Endpoints()
	if c := cmp.Compare(au, bu); c != 0 {
		return c
	}
	return cmp.Compare(av, bv)
}

// IDs returns every point id in ascending order.
func (n *Network) IDs() []PointID {
	ids := make([]PointID, 0, len(n.points))
	for id := range n.points {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Neighbors returns the ids adjacent to id in ascending order.
func (n *Network) Neighbors(id PointID) []PointID {
	ids := []PointID{}
	it := n.g.From(int64(id))
	for it.Next() {
		ids = append(ids, PointID(it.Node().ID()))
	}
	slices.Sort(ids)
	return ids
}

func (n *Network) Degree(id PointID) int {
	return n.g.From(int64(id)).Len()
}

// Order is the number of points.
func (n *Network) Order() int {
	return len(n.points)
}

// Size is the number of links.
func (n *Network) Size() int {
	return n.g.Edges().Len()
}

func (n *Network) IsConnected() bool {
	if n.Order() == 0 {
		return false
	}
	return len(topo.ConnectedComponents(n.g)) == 1
}

// Graph exposes the underlying graph for read-only algorithms.
func (n *Network) Graph() graph.Undirected {
	return n.g
}

// Clone deep-copies the network including points and their objects.
func (n *Network) Clone() *Network {
	c := NewNetwork()
	for _, id := range n.IDs() {
		c.g.AddNode(simple.Node(id))
		c.points[id] = n.points[id].Clone()
	}
	for _, l := range n.Links() {
		c.g.SetEdge(l)
	}
	return c
}
