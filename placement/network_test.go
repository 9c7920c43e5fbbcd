package placement_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/royalcat/geoplace/placement"
)

func pathNetwork(t *testing.T, ids ...placement.PointID) *placement.Network {
	t.Helper()
	n := placement.NewNetwork()
	for i, id := range ids {
		if err := n.AddPoint(placement.NewPoint(id, 10+float64(i)*0.01, 50)); err != nil {
			t.Fatalf("add point: %v", err)
		}
	}
	for i := 1; i < len(ids); i++ {
		if err := n.Link(ids[i-1], ids[i], placement.LinkManual); err != nil {
			t.Fatalf("link: %v", err)
		}
	}
	return n
}

func TestNetworkLinks(t *testing.T) {
	n := pathNetwork(t, 3, 1, 2)

	if n.Order() != 3 || n.Size() != 2 {
		t.Fatalf("expected 3 points and 2 links, got %d and %d", n.Order(), n.Size())
	}
	if !n.IsConnected() {
		t.Fatal("expected path to be connected")
	}
	if got := n.Neighbors(1); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected neighbours of 1: %v", got)
	}
	if n.Degree(3) != 1 {
		t.Fatalf("expected degree 1 for 3, got %d", n.Degree(3))
	}

	links := n.Links()
	u, v := links[0].Endpoints()
	if u != 1 || v != 2 {
		t.Fatalf("expected first link 1-2, got %d-%d", u, v)
	}

	if err := n.Link(2, 1, placement.LinkBackbone); err != nil {
		t.Fatal(err)
	}
	if n.Size() != 2 {
		t.Fatalf("relinking must not duplicate, got %d links", n.Size())
	}
	l, ok := n.LinkBetween(1, 2)
	if !ok || l.Kind != placement.LinkBackbone {
		t.Fatalf("expected retyped backbone link, got %+v", l)
	}

	removed := n.RemoveLinks(func(l placement.Link) bool { return l.Kind != placement.LinkManual })
	if removed != 1 || n.HasLink(1, 2) {
		t.Fatalf("expected backbone link removed, removed=%d", removed)
	}
	if n.IsConnected() {
		t.Fatal("expected network to split")
	}
}

func TestNetworkErrors(t *testing.T) {
	n := pathNetwork(t, 1, 2)

	if err := n.AddPoint(placement.NewPoint(1, 0, 0)); !errors.Is(err, placement.ErrDuplicatePoint) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := n.Link(1, 1, ""); !errors.Is(err, placement.ErrSelfLink) {
		t.Fatalf("expected self link error, got %v", err)
	}
	if err := n.Link(1, 9, ""); !errors.Is(err, placement.ErrMissingPoint) {
		t.Fatalf("expected missing point error, got %v", err)
	}
	if err := n.SetPoint(9, placement.NewPoint(9, 0, 0)); !errors.Is(err, placement.ErrMissingPoint) {
		t.Fatalf("expected missing point error, got %v", err)
	}
	if placement.NewNetwork().IsConnected() {
		t.Fatal("empty network must not count as connected")
	}
}

func TestNetworkClone(t *testing.T) {
	n := pathNetwork(t, 1, 2)
	p, _ := n.Point(1)
	obj := placement.NewObject("school", 10)
	p.Object = &obj

	c := n.Clone()
	cp, _ := c.Point(1)
	cp.Object.SetContextRate(5)
	cp.Object.Name = "park"
	c.Unlink(1, 2)

	if p.Object.Name != "school" || p.Object.ContextRate != nil {
		t.Fatalf("clone shares object with source: %+v", p.Object)
	}
	if !n.HasLink(1, 2) {
		t.Fatal("clone shares links with source")
	}
}

func TestObjectSameType(t *testing.T) {
	a := placement.NewObject("shop", 10)
	b := placement.NewObject("shop", 3)
	c := placement.NewObject("park", 10)

	if !a.SameType(&b) {
		t.Fatal("objects with the same name must share a type")
	}
	if a.SameType(&c) || a.SameType(nil) {
		t.Fatal("unexpected type match")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	alt := 120.0
	rate := 10.0
	doc := &placement.Document{
		Nodes: []placement.NodeDoc{
			{ID: 1, Lon: 10, Lat: 50, Alt: &alt, PlacedObjectType: "shop", IndependentContributionRate: &rate},
			{ID: 2, Lon: 10.01, Lat: 50},
		},
		Edges: []placement.EdgeDoc{{U: 2, V: 1, Type: placement.LinkManual}},
		Objects: map[string]placement.ObjectType{
			"shop": {Count: 1, ContributionRate: 10},
			"park": {Count: 2, ContributionRate: 4},
		},
	}

	name := filepath.Join(t.TempDir(), "network.json.zst")
	if err := placement.WriteDocumentFile(name, doc); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(name); err != nil {
		t.Fatal(err)
	}

	read, err := placement.ReadDocumentFile(name)
	if err != nil {
		t.Fatal(err)
	}
	n, err := read.Network()
	if err != nil {
		t.Fatal(err)
	}

	p, _ := n.Point(1)
	if p.Object == nil || p.Object.Name != "shop" || p.AltitudeOrZero() != 120 {
		t.Fatalf("unexpected point %+v", p)
	}
	if l, ok := n.LinkBetween(1, 2); !ok || l.Kind != placement.LinkManual {
		t.Fatalf("expected manual link, got %+v", l)
	}

	objects := read.Pending()
	if len(objects) != 3 || objects[0].Name != "park" || objects[2].Name != "shop" {
		t.Fatalf("unexpected object expansion %+v", objects)
	}

	back := placement.NewDocument(n)
	if len(back.Nodes) != 2 || back.Edges[0].U != 1 || back.Edges[0].V != 2 {
		t.Fatalf("unexpected document %+v", back)
	}
}

func TestDocumentInvalidEdge(t *testing.T) {
	doc := &placement.Document{
		Nodes: []placement.NodeDoc{{ID: 1}},
		Edges: []placement.EdgeDoc{{U: 1, V: 2}},
	}
	if _, err := doc.Network(); !errors.Is(err, placement.ErrMissingPoint) {
		t.Fatalf("expected missing point error, got %v", err)
	}
}

func TestDocumentIncompleteObject(t *testing.T) {
	rate := 10.0
	for _, node := range []placement.NodeDoc{
		{ID: 1, PlacedObjectType: "X"},
		{ID: 1, IndependentContributionRate: &rate},
	} {
		doc := &placement.Document{Nodes: []placement.NodeDoc{node}}
		if _, err := doc.Network(); !errors.Is(err, placement.ErrIncompleteObject) {
			t.Fatalf("expected incomplete object error for %+v, got %v", node, err)
		}
	}
}

func TestSamplePoints(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{10, 50}, Max: orb.Point{10.02, 50.02}}
	points := placement.SamplePoints(bound, 300, 1)
	if len(points) < 5 {
		t.Fatalf("expected several samples, got %d", len(points))
	}

	for i, a := range points {
		if !bound.Contains(a.Location) {
			t.Fatalf("point %v outside bound", a.Location)
		}
		for _, b := range points[i+1:] {
			if d := geo.Distance(a.Location, b.Location); d < 300*0.95 {
				t.Fatalf("points %d and %d only %.1fm apart", a.ID, b.ID, d)
			}
		}
	}
}
