package solver_test

import (
	"errors"
	"testing"

	"github.com/royalcat/geoplace/placement"
	"github.com/royalcat/geoplace/solver"
)

// path builds A(1) - B(2) - C(3).
func path(t *testing.T) *placement.Network {
	t.Helper()
	n := placement.NewNetwork()
	for i := 1; i <= 3; i++ {
		if err := n.AddPoint(placement.NewPoint(placement.PointID(i), float64(i), 0)); err != nil {
			t.Fatal(err)
		}
	}
	if err := n.Link(1, 2, ""); err != nil {
		t.Fatal(err)
	}
	if err := n.Link(2, 3, ""); err != nil {
		t.Fatal(err)
	}
	return n
}

func objects(args ...any) []placement.Object {
	out := []placement.Object{}
	for i := 0; i < len(args); i += 3 {
		for range args[i+2].(int) {
			out = append(out, placement.NewObject(args[i].(string), args[i+1].(float64)))
		}
	}
	return out
}

func assigned(t *testing.T, n *placement.Network, id placement.PointID) (string, float64) {
	t.Helper()
	p, ok := n.Point(id)
	if !ok || p.Object == nil || p.Object.ContextRate == nil {
		t.Fatalf("expected %s to hold a scored object", id)
	}
	return p.Object.Name, *p.Object.ContextRate
}

func TestGreedyPath(t *testing.T) {
	g, err := solver.NewGreedy(0.5)
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.Place(path(t), objects("X", 10.0, 2, "Y", 10.0, 1))
	if err != nil {
		t.Fatal(err)
	}

	// endpoints go first and take the first type on a tie
	if name, rate := assigned(t, got, 1); name != "X" || rate != 10 {
		t.Fatalf("A: expected X at 10, got %s at %v", name, rate)
	}
	if name, rate := assigned(t, got, 3); name != "X" || rate != 10 {
		t.Fatalf("C: expected X at 10, got %s at %v", name, rate)
	}
	if name, rate := assigned(t, got, 2); name != "Y" || rate != 10 {
		t.Fatalf("B: expected Y at 10, got %s at %v", name, rate)
	}
}

func TestGreedyPenalizesInterior(t *testing.T) {
	g, err := solver.NewGreedy(0.5)
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.Place(path(t), objects("X", 10.0, 3))
	if err != nil {
		t.Fatal(err)
	}

	if name, rate := assigned(t, got, 2); name != "X" || rate != 5 {
		t.Fatalf("B: expected X at 5, got %s at %v", name, rate)
	}
}

func TestGreedyAvoidsSameType(t *testing.T) {
	g, err := solver.NewGreedy(0.5)
	if err != nil {
		t.Fatal(err)
	}

	n := path(t)
	if err := n.AddPoint(placement.NewPoint(4, 4, 0)); err != nil {
		t.Fatal(err)
	}
	if err := n.Link(3, 4, ""); err != nil {
		t.Fatal(err)
	}

	// order is 1, 4, 2, 3; Y is worth less than X but more than a penalized X
	got, err := g.Place(n, objects("X", 10.0, 3, "Y", 6.0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := assigned(t, got, 1); name != "X" {
		t.Fatalf("1: expected X, got %s", name)
	}
	if name, _ := assigned(t, got, 4); name != "X" {
		t.Fatalf("4: expected X, got %s", name)
	}
	if name, rate := assigned(t, got, 2); name != "Y" || rate != 6 {
		t.Fatalf("2: expected Y at 6, got %s at %v", name, rate)
	}
	if name, rate := assigned(t, got, 3); name != "X" || rate != 5 {
		t.Fatalf("3: expected X at 5, got %s at %v", name, rate)
	}
}

func TestGreedyRunsOutOfObjects(t *testing.T) {
	g, err := solver.NewGreedy(0.2)
	if err != nil {
		t.Fatal(err)
	}

	in := path(t)
	p, _ := in.Point(2)
	stale := placement.NewObject("stale", 100)
	p.Object = &stale

	got, err := g.Place(in, objects("X", 1.0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := got.Point(2); p.Object != nil {
		t.Fatalf("expected last point to stay empty, got %+v", p.Object)
	}
	if p, _ := in.Point(2); p.Object == nil || p.Object.Name != "stale" {
		t.Fatal("input network must not be mutated")
	}
}

func TestInvalidPenalty(t *testing.T) {
	for _, p := range []float64{-0.5, 1.01} {
		if _, err := solver.NewGreedy(p); !errors.Is(err, placement.ErrInvalidPenalty) {
			t.Errorf("penalty %v: expected invalid penalty error, got %v", p, err)
		}
	}
}
